package zrm

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-metrics"

	"github.com/zrm-robotics/zrm-go/transport"
)

// discoveryTopic carries node announcement snapshots. The "@zrm" prefix
// keeps runtime topics out of the user topic namespace.
const discoveryTopic = "@zrm/graph"

// Context wraps one transport session and hosts the graph replica shared
// by every Node created on it. Most programs use the implicit global
// Context through Init/Shutdown; an explicit Context keeps the coupling
// visible.
type Context struct {
	logger           *slog.Logger
	sink             metrics.MetricSink
	labels           []metrics.Label
	tr               transport.PubSub
	graph            *Graph
	clk              clock.Clock
	announceInterval time.Duration
	liveness         time.Duration

	mu       sync.Mutex
	closed   bool
	nodeRefs int

	cancelSub func()
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// NewContext opens an explicit context. Close is only safe once every
// Node created on it has been closed.
func NewContext(opts ...Option) (*Context, error) {
	cfg := config{
		announceInterval: defaultAnnounceInterval,
		liveness:         defaultLivenessTimeout,
		clk:              clock.New(),
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.tr == nil {
		cfg.tr = sharedBus()
	}
	if cfg.msink == nil {
		cfg.msink = metrics.Default()
	}

	var logger *slog.Logger
	if cfg.logHandler != nil {
		logger = slog.New(cfg.logHandler)
	} else {
		logger = slog.Default()
	}

	ctx := &Context{
		logger:           logger,
		sink:             cfg.msink,
		labels:           cfg.metricLabels,
		tr:               cfg.tr,
		clk:              cfg.clk,
		announceInterval: cfg.announceInterval,
		liveness:         cfg.liveness,
		closeCh:          make(chan struct{}),
	}
	ctx.graph = newGraph(cfg.clk, cfg.liveness, logger, cfg.msink, cfg.metricLabels)

	ch, cancel, err := ctx.tr.Subscribe(discoveryTopic)
	if err != nil {
		return nil, err
	}
	ctx.cancelSub = cancel

	ctx.wg.Add(1)
	go ctx.discoveryLoop(ch)

	return ctx, nil
}

// Graph returns the context's replica of the distributed entity graph.
func (c *Context) Graph() *Graph {
	return c.graph
}

// Close tears the context down. It is idempotent and fails with
// ErrContextBusy while nodes created on it remain open. The transport is
// never closed here: it is either caller-owned or the process-shared bus.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.nodeRefs > 0 {
		c.mu.Unlock()
		return ErrContextBusy
	}
	c.closed = true
	c.mu.Unlock()

	c.cancelSub()
	close(c.closeCh)
	c.wg.Wait()
	return nil
}

func (c *Context) attachNode() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	c.nodeRefs++
	return nil
}

func (c *Context) detachNode() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nodeRefs > 0 {
		c.nodeRefs--
	}
}

// publishAnnouncement ships a snapshot to every replica, including our
// own: applying locally first keeps the local graph current even when the
// transport does not self-deliver promptly.
func (c *Context) publishAnnouncement(ann *Announcement) {
	c.graph.apply(ann)

	env, err := Serialize(ann)
	if err != nil {
		c.logger.Warn("announcement encode failed", LabelError.L(err))
		return
	}
	if err := c.tr.Publish(discoveryTopic, env.Encode()); err != nil {
		c.logger.Warn("announcement publish failed", LabelError.L(err))
		return
	}
	c.sink.IncrCounterWithLabels(MetricZrmAnnounceCount, 1,
		append(c.labels, LabelNode.M(ann.NodeName)))
}

func (c *Context) discoveryLoop(ch <-chan transport.Message) {
	defer c.wg.Done()

	announcementType, announcementName, err := typeFor[Announcement]()
	if err != nil {
		panic(err)
	}

	reaper := c.clk.Ticker(c.announceInterval)
	defer reaper.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			env, err := DecodeEnvelope(msg.Payload)
			if err != nil {
				c.logger.Warn("dropping malformed announcement", LabelError.L(err))
				continue
			}
			ann, err := deserializeAs[Announcement](env, announcementType, announcementName)
			if err != nil {
				c.sink.IncrCounterWithLabels(MetricZrmTypeMismatchCount, 1,
					append(c.labels,
						LabelTopic.M(discoveryTopic),
						LabelType.M(env.TypeName)))
				c.logger.Warn("dropping announcement", LabelError.L(err))
				continue
			}
			c.graph.apply(ann)
		case <-reaper.C:
			c.graph.prune()
		case <-c.closeCh:
			return
		}
	}
}

// Process-shared bus backing contexts constructed without an explicit
// transport. Sharing one bus lets independently constructed contexts in
// the same process discover each other, the way transport sessions on one
// host peer up in a real deployment.
var (
	sharedBusOnce sync.Once
	sharedBusInst *transport.MemoryPubSub
)

func sharedBus() transport.PubSub {
	sharedBusOnce.Do(func() {
		sharedBusInst = transport.NewMemoryPubSub()
	})
	return sharedBusInst
}

// Global implicit context, guarded lazy construction.
var (
	globalMu  sync.Mutex
	globalCtx *Context
)

// Init initializes the process-wide implicit context. Calling Init when
// it is already initialized is a no-op; re-initialization is allowed only
// after Shutdown.
func Init(opts ...Option) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCtx != nil {
		return nil
	}
	ctx, err := NewContext(opts...)
	if err != nil {
		return err
	}
	globalCtx = ctx
	return nil
}

// Shutdown closes the implicit global context. Safe to call when nothing
// was initialized.
func Shutdown() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCtx == nil {
		return nil
	}
	err := globalCtx.Close()
	if err != nil {
		return err
	}
	globalCtx = nil
	return nil
}

func defaultContext() (*Context, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCtx == nil {
		ctx, err := NewContext()
		if err != nil {
			return nil, err
		}
		globalCtx = ctx
	}
	return globalCtx, nil
}
