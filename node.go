package zrm

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// entity is the node-facing side of publishers, subscribers, servers and
// clients: enough to announce them and to close them when the node goes.
type entity interface {
	info() EntityInfo
	Close() error
}

// Node owns a set of entities and a view of the entity graph. Node names
// are human-readable and need not be unique across the graph; replicas
// key entries by an internal unique id.
type Node struct {
	name   string
	id     string
	ctx    *Context
	logger *slog.Logger

	mu       sync.Mutex
	closed   bool
	version  uint64
	entities []entity

	closeCh chan struct{}
	wg      sync.WaitGroup
}

type nodeConfig struct {
	ctx *Context
}

// NodeOption configures a Node.
type NodeOption func(*nodeConfig)

// WithContext binds the node to an explicit Context instead of the
// implicit global one.
func WithContext(ctx *Context) NodeOption {
	return func(c *nodeConfig) {
		c.ctx = ctx
	}
}

// NewNode creates a node and announces it to the graph. Without
// WithContext it lazily initializes and joins the global context.
func NewNode(name string, opts ...NodeOption) (*Node, error) {
	var cfg nodeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx := cfg.ctx
	if ctx == nil {
		var err error
		ctx, err = defaultContext()
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.attachNode(); err != nil {
		return nil, err
	}

	n := &Node{
		name:    name,
		id:      uuid.NewString(),
		ctx:     ctx,
		logger:  ctx.logger.With(LabelNode.L(name)),
		closeCh: make(chan struct{}),
	}
	n.announce()

	n.wg.Add(1)
	go n.announceLoop()

	return n, nil
}

// Name returns the node's human-readable name.
func (n *Node) Name() string {
	return n.name
}

// Graph returns the entity graph view bound to the node's context.
func (n *Node) Graph() *Graph {
	return n.ctx.graph
}

// Close closes every still-open entity, sends a best-effort departure
// announcement and releases the context reference. Idempotent and safe
// to call concurrently.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	remaining := n.entities
	n.entities = nil
	n.mu.Unlock()

	close(n.closeCh)
	n.wg.Wait()

	for _, e := range remaining {
		if err := e.Close(); err != nil {
			n.logger.Warn("entity close failed", LabelError.L(err))
		}
	}

	// Departure is best-effort: replicas also expire us by deadline.
	n.ctx.publishAnnouncement(&Announcement{
		NodeID:    n.id,
		NodeName:  n.name,
		Departing: true,
	})
	n.ctx.detachNode()
	return nil
}

// addEntity registers an entity with the node and announces the new
// snapshot immediately so peers converge before the next periodic tick.
func (n *Node) addEntity(e entity) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrNodeClosed
	}
	n.entities = append(n.entities, e)
	n.mu.Unlock()

	n.announce()
	return nil
}

func (n *Node) removeEntity(e entity) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	for i, cur := range n.entities {
		if cur == e {
			n.entities = append(n.entities[:i], n.entities[i+1:]...)
			break
		}
	}
	n.mu.Unlock()

	n.announce()
}

func (n *Node) announce() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.version++
	ann := &Announcement{
		NodeID:   n.id,
		NodeName: n.name,
		Version:  n.version,
		Entities: make([]EntityInfo, 0, len(n.entities)),
	}
	for _, e := range n.entities {
		ann.Entities = append(ann.Entities, e.info())
	}
	n.mu.Unlock()

	n.ctx.publishAnnouncement(ann)
}

// announceLoop refreshes the node's snapshot so lost announcements
// self-heal and the liveness deadline keeps being pushed back.
func (n *Node) announceLoop() {
	defer n.wg.Done()
	ticker := n.ctx.clk.Ticker(n.ctx.announceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.announce()
		case <-n.closeCh:
			return
		}
	}
}
