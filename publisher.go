package zrm

import (
	"sync"
)

// Publisher sends typed messages on a topic. Publishing is
// fire-and-forget: there is no acknowledgement and delivery is only as
// good as the transport's best effort.
type Publisher[T any] struct {
	node     *Node
	topic    string
	typeName string

	mu     sync.Mutex
	closed bool
}

// NewPublisher creates a publisher owned by the node. T must be a
// registered message type.
func NewPublisher[T any](n *Node, topic string) (*Publisher[T], error) {
	_, typeName, err := typeFor[T]()
	if err != nil {
		return nil, err
	}
	p := &Publisher[T]{
		node:     n,
		topic:    topic,
		typeName: typeName,
	}
	if err := n.addEntity(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Topic returns the topic the publisher is bound to.
func (p *Publisher[T]) Topic() string {
	return p.topic
}

// Publish serializes the message and puts it on the topic.
func (p *Publisher[T]) Publish(msg *T) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPublisherClosed
	}
	p.mu.Unlock()

	env, err := Serialize(msg)
	if err != nil {
		return err
	}
	ctx := p.node.ctx
	if err := ctx.tr.Publish(p.topic, env.Encode()); err != nil {
		ctx.sink.IncrCounterWithLabels(MetricZrmPublishErrorCount, 1,
			append(ctx.labels, LabelTopic.M(p.topic)))
		return err
	}
	ctx.sink.IncrCounterWithLabels(MetricZrmPublishCount, 1,
		append(ctx.labels, LabelTopic.M(p.topic)))
	return nil
}

// Close deregisters the publisher from the node and the graph. Idempotent.
func (p *Publisher[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.node.removeEntity(p)
	return nil
}

func (p *Publisher[T]) info() EntityInfo {
	return EntityInfo{Kind: KindPublisher, Name: p.topic}
}
