// Package transport provides the topic-scoped publish/subscribe primitives
// the zrm runtime is layered on. Delivery is asynchronous, unordered and
// best-effort; everything above (typing, discovery, request/response) is
// synthesized by the zrm package.
package transport

// Message is the transport envelope delivered to subscribers.
type Message struct {
	Topic   string
	Payload []byte
}

// PubSub is the minimal broadcast-style session contract. The cancel
// function returned by Subscribe releases the subscription and closes its
// channel; it is safe to call more than once.
type PubSub interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}
