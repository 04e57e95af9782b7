package zrm

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-metrics"
)

// EntityKind classifies the entities a node announces to the graph.
type EntityKind uint8

const (
	KindPublisher EntityKind = iota + 1
	KindSubscriber
	KindService
	KindClient
)

func (k EntityKind) String() string {
	switch k {
	case KindPublisher:
		return "publisher"
	case KindSubscriber:
		return "subscriber"
	case KindService:
		return "service"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// EntityInfo is one (kind, topic-or-service-name) pair owned by a node.
type EntityInfo struct {
	Kind EntityKind `msgpack:"kind"`
	Name string     `msgpack:"name"`
}

// Announcement is a full snapshot of a node's entities, published on the
// discovery topic. Snapshots are idempotent: a later version fully
// supersedes any earlier one from the same node, so lost announcements
// self-heal on the next tick.
type Announcement struct {
	NodeID    string       `msgpack:"node_id"`
	NodeName  string       `msgpack:"node_name"`
	Version   uint64       `msgpack:"version"`
	Departing bool         `msgpack:"departing"`
	Entities  []EntityInfo `msgpack:"entities"`
}

func init() {
	RegisterMessage("graph", "Announcement", Announcement{})
}

// Graph is the local, eventually consistent replica of the distributed
// entity graph. Reads are point-in-time: after a change, counts stabilize
// only once the convergence window has passed.
type Graph struct {
	mu       sync.RWMutex
	clk      clock.Clock
	liveness time.Duration
	logger   *slog.Logger
	sink     metrics.MetricSink
	labels   []metrics.Label

	nodes map[string]*graphEntry
}

type graphEntry struct {
	name     string
	version  uint64
	deadline time.Time
	entities []EntityInfo
}

func newGraph(clk clock.Clock, liveness time.Duration, logger *slog.Logger, sink metrics.MetricSink, labels []metrics.Label) *Graph {
	return &Graph{
		clk:      clk,
		liveness: liveness,
		logger:   logger,
		sink:     sink,
		labels:   labels,
		nodes:    make(map[string]*graphEntry),
	}
}

// apply folds an announcement into the replica.
func (g *Graph) apply(ann *Announcement) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ann.Departing {
		if _, ok := g.nodes[ann.NodeID]; ok {
			delete(g.nodes, ann.NodeID)
			g.sink.IncrCounterWithLabels(MetricZrmGraphNodeDepartCount, 1,
				append(g.labels, LabelNode.M(ann.NodeName)))
			g.logger.Debug("node departed graph", LabelNode.L(ann.NodeName))
		}
		return
	}

	entry, ok := g.nodes[ann.NodeID]
	if ok && ann.Version < entry.version {
		// Out-of-order snapshot, the replica already holds newer state.
		return
	}
	if !ok {
		entry = &graphEntry{}
		g.nodes[ann.NodeID] = entry
	}
	entry.name = ann.NodeName
	entry.version = ann.Version
	entry.deadline = g.clk.Now().Add(g.liveness)
	entry.entities = ann.Entities
}

// prune drops every node whose liveness deadline elapsed without a
// refresh. A crashed node disappears here instead of via a departure
// announcement; that staleness is accepted.
func (g *Graph) prune() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clk.Now()
	for id, entry := range g.nodes {
		if entry.deadline.Before(now) {
			delete(g.nodes, id)
			g.sink.IncrCounterWithLabels(MetricZrmGraphNodePruneCount, 1,
				append(g.labels, LabelNode.M(entry.name)))
			g.logger.Debug("node pruned from graph", LabelNode.L(entry.name))
		}
	}
}

// Count returns how many distinct (node, entity) pairs currently match
// the given kind and topic or service name.
func (g *Graph) Count(kind EntityKind, name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	count := 0
	for _, entry := range g.nodes {
		for _, ent := range entry.entities {
			if ent.Kind == kind && ent.Name == name {
				count++
			}
		}
	}
	return count
}

// NodeNames returns the names of the currently live nodes known to the
// replica. Duplicate names collapse to one entry; they remain distinct
// inside the replica because it is keyed by node id.
func (g *Graph) NodeNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[string]struct{}, len(g.nodes))
	names := make([]string, 0, len(g.nodes))
	for _, entry := range g.nodes {
		if _, dup := seen[entry.name]; dup {
			continue
		}
		seen[entry.name] = struct{}{}
		names = append(names, entry.name)
	}
	return names
}
