package zrm

import (
	"reflect"
	"sync"

	"github.com/zrm-robotics/zrm-go/transport"
)

// Subscriber receives typed messages from a topic. Every subscriber on a
// topic independently receives every message published there; delivery is
// fan-out, never load-balanced.
type Subscriber[T any] struct {
	node     *Node
	topic    string
	want     reflect.Type
	typeName string
	callback func(*T)

	cancel func()
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	latest *T
}

// NewSubscriber creates a subscriber owned by the node. The callback is
// optional; pass nil to consume via Latest only. The callback runs on the
// subscriber's delivery goroutine, concurrently with the caller.
func NewSubscriber[T any](n *Node, topic string, callback func(*T)) (*Subscriber[T], error) {
	want, typeName, err := typeFor[T]()
	if err != nil {
		return nil, err
	}

	ch, cancel, err := n.ctx.tr.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	s := &Subscriber[T]{
		node:     n,
		topic:    topic,
		want:     want,
		typeName: typeName,
		callback: callback,
		cancel:   cancel,
	}
	if err := n.addEntity(s); err != nil {
		cancel()
		return nil, err
	}

	s.wg.Add(1)
	go s.receive(ch)
	return s, nil
}

// Topic returns the topic the subscriber is bound to.
func (s *Subscriber[T]) Topic() string {
	return s.topic
}

// Latest returns the most recently decoded message, or false if nothing
// has arrived yet. It never blocks.
func (s *Subscriber[T]) Latest() (*T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latest != nil
}

// Close cancels the transport subscription, waits for the delivery
// goroutine to drain and deregisters from the graph. Idempotent.
func (s *Subscriber[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.node.removeEntity(s)
	return nil
}

func (s *Subscriber[T]) info() EntityInfo {
	return EntityInfo{Kind: KindSubscriber, Name: s.topic}
}

func (s *Subscriber[T]) receive(ch <-chan transport.Message) {
	defer s.wg.Done()
	ctx := s.node.ctx
	for raw := range ch {
		env, err := DecodeEnvelope(raw.Payload)
		if err != nil {
			ctx.sink.IncrCounterWithLabels(MetricZrmDeliverDroppedCount, 1,
				append(ctx.labels, LabelTopic.M(s.topic)))
			s.node.logger.Warn("dropping malformed message",
				LabelTopic.L(s.topic), LabelError.L(err))
			continue
		}
		msg, err := deserializeAs[T](env, s.want, s.typeName)
		if err != nil {
			// Publisher and subscriber are decoupled: a mismatch is
			// observable here but never raised into the publisher.
			ctx.sink.IncrCounterWithLabels(MetricZrmTypeMismatchCount, 1,
				append(ctx.labels,
					LabelTopic.M(s.topic),
					LabelType.M(env.TypeName)))
			s.node.logger.Warn("dropping message",
				LabelTopic.L(s.topic), LabelError.L(err))
			continue
		}

		s.mu.Lock()
		s.latest = msg
		s.mu.Unlock()

		ctx.sink.IncrCounterWithLabels(MetricZrmDeliverCount, 1,
			append(ctx.labels, LabelTopic.M(s.topic)))
		if s.callback != nil {
			s.callback(msg)
		}
	}
}
