package zrm

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPubSub_Delivery(t *testing.T) {
	ctx, _ := newTestContext(t)
	talker := newTestNode(t, "talker", ctx)
	listener := newTestNode(t, "listener", ctx)

	var (
		mu       sync.Mutex
		received []testPing
	)
	sub, err := NewSubscriber(listener, "chat", func(msg *testPing) {
		mu.Lock()
		received = append(received, *msg)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Close()

	pub, err := NewPublisher[testPing](talker, "chat")
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.Publish(&testPing{Seq: 1, Label: "hi"}))
	require.NoError(t, pub.Publish(&testPing{Seq: 2, Label: "there"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, testPing{Seq: 1, Label: "hi"}, received[0])
	require.Equal(t, testPing{Seq: 2, Label: "there"}, received[1])
}

func TestPubSub_FanOut(t *testing.T) {
	ctx, _ := newTestContext(t)
	talker := newTestNode(t, "talker", ctx)

	var counts [3]atomic.Int64
	for i := range counts {
		listener := newTestNode(t, "listener", ctx)
		c := &counts[i]
		sub, err := NewSubscriber(listener, "broadcast", func(*testPing) {
			c.Add(1)
		})
		require.NoError(t, err)
		defer sub.Close()
	}

	pub, err := NewPublisher[testPing](talker, "broadcast")
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.Publish(&testPing{Seq: 1}))

	// Every subscriber gets its own copy, delivery is never load-balanced.
	require.Eventually(t, func() bool {
		return counts[0].Load() == 1 && counts[1].Load() == 1 && counts[2].Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPubSub_Latest(t *testing.T) {
	ctx, _ := newTestContext(t)
	node := newTestNode(t, "solo", ctx)

	sub, err := NewSubscriber[testTelemetry](node, "readings", nil)
	require.NoError(t, err)
	defer sub.Close()

	_, ok := sub.Latest()
	require.False(t, ok, "nothing arrived yet")

	pub, err := NewPublisher[testTelemetry](node, "readings")
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.Publish(&testTelemetry{Reading: 1.5}))
	require.NoError(t, pub.Publish(&testTelemetry{Reading: 2.5}))

	require.Eventually(t, func() bool {
		latest, ok := sub.Latest()
		return ok && latest.Reading == 2.5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPubSub_ManyMessages(t *testing.T) {
	ctx, _ := newTestContext(t)
	talker := newTestNode(t, "talker", ctx)
	listener := newTestNode(t, "listener", ctx)

	var received atomic.Int64
	sub, err := NewSubscriber(listener, "firehose", func(*testPing) {
		received.Add(1)
	})
	require.NoError(t, err)
	defer sub.Close()

	pub, err := NewPublisher[testPing](talker, "firehose")
	require.NoError(t, err)
	defer pub.Close()

	const total = 100
	for i := int64(0); i < total; i++ {
		require.NoError(t, pub.Publish(&testPing{Seq: i}))
	}

	// Delivery is best-effort; a slow subscriber may shed a few under
	// load, but the common case loses nothing.
	require.Eventually(t, func() bool {
		return received.Load() >= 95
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPubSub_MismatchedTypeDropped(t *testing.T) {
	ctx, _ := newTestContext(t)
	node := newTestNode(t, "mixed", ctx)

	var delivered atomic.Int64
	sub, err := NewSubscriber(node, "shared/topic", func(*testTelemetry) {
		delivered.Add(1)
	})
	require.NoError(t, err)
	defer sub.Close()

	pingPub, err := NewPublisher[testPing](node, "shared/topic")
	require.NoError(t, err)
	defer pingPub.Close()
	telPub, err := NewPublisher[testTelemetry](node, "shared/topic")
	require.NoError(t, err)
	defer telPub.Close()

	// Publishing the wrong type succeeds: the mismatch is the
	// subscriber's to observe, never the publisher's to see.
	require.NoError(t, pingPub.Publish(&testPing{Seq: 1}))
	require.NoError(t, telPub.Publish(&testTelemetry{Reading: 9.9}))

	require.Eventually(t, func() bool {
		return delivered.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	latest, ok := sub.Latest()
	require.True(t, ok)
	require.Equal(t, 9.9, latest.Reading)
	require.Equal(t, int64(1), delivered.Load(), "the mistyped message must be dropped, not delivered")
}

func TestPublisher_ClosedRejectsPublish(t *testing.T) {
	ctx, _ := newTestContext(t)
	node := newTestNode(t, "pubnode", ctx)

	pub, err := NewPublisher[testPing](node, "once")
	require.NoError(t, err)
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	require.ErrorIs(t, pub.Publish(&testPing{}), ErrPublisherClosed)
}

func TestSubscriber_CloseStopsDelivery(t *testing.T) {
	ctx, _ := newTestContext(t)
	node := newTestNode(t, "subnode", ctx)

	var delivered atomic.Int64
	sub, err := NewSubscriber(node, "quiet", func(*testPing) {
		delivered.Add(1)
	})
	require.NoError(t, err)

	pub, err := NewPublisher[testPing](node, "quiet")
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.Publish(&testPing{Seq: 1}))
	require.Eventually(t, func() bool {
		return delivered.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	require.NoError(t, pub.Publish(&testPing{Seq: 2}))
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int64(1), delivered.Load(), "no delivery after close")
}
