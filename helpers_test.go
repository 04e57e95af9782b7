package zrm

import (
	"testing"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/stretchr/testify/require"

	"github.com/zrm-robotics/zrm-go/transport"
)

// Test-local schema module. Registered once per process from init, like
// any schema package.
type testPing struct {
	Seq   int64  `msgpack:"seq"`
	Label string `msgpack:"label"`
}

type testTelemetry struct {
	Reading float64 `msgpack:"reading"`
}

type testEmpty struct{}

type testEchoRequest struct {
	Input string `msgpack:"input"`
}

type testEchoResponse struct {
	Output string `msgpack:"output"`
}

func init() {
	RegisterMessage("zrmtest", "Ping", testPing{})
	RegisterMessage("zrmtest", "Telemetry", testTelemetry{})
	RegisterMessage("zrmtest", "Empty", testEmpty{})
	RegisterService("zrmtest", "Echo", testEchoRequest{}, testEchoResponse{})
}

// newTestContext builds a Context on a private bus so tests cannot see
// each other's traffic. Short intervals keep Eventually polls snappy.
func newTestContext(t *testing.T) (*Context, *transport.MemoryPubSub) {
	t.Helper()
	bus := transport.NewMemoryPubSub()
	ctx, err := NewContext(
		WithTransport(bus),
		WithMetricSink(&metrics.BlackholeSink{}),
		WithAnnounceInterval(50*time.Millisecond),
		WithLivenessTimeout(400*time.Millisecond),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ctx.Close()
		_ = bus.Close()
	})
	return ctx, bus
}

func newTestNode(t *testing.T, name string, ctx *Context) *Node {
	t.Helper()
	n, err := NewNode(name, WithContext(ctx))
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}
