package examples_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	zrm "github.com/zrm-robotics/zrm-go"
	"github.com/zrm-robotics/zrm-go/srvs/examples"
	"github.com/zrm-robotics/zrm-go/transport"
)

func TestAddTwoIntsEndToEnd(t *testing.T) {
	bus := transport.NewMemoryPubSub()
	defer bus.Close()

	zctx, err := zrm.NewContext(zrm.WithTransport(bus))
	require.NoError(t, err)
	defer zctx.Close()

	serverNode, err := zrm.NewNode("adder", zrm.WithContext(zctx))
	require.NoError(t, err)
	defer serverNode.Close()

	srv, err := zrm.NewService(serverNode, "add_two_ints",
		func(req *examples.AddTwoIntsRequest) (*examples.AddTwoIntsResponse, error) {
			return &examples.AddTwoIntsResponse{Sum: req.A + req.B}, nil
		})
	require.NoError(t, err)
	defer srv.Close()

	clientNode, err := zrm.NewNode("asker", zrm.WithContext(zctx))
	require.NoError(t, err)
	defer clientNode.Close()

	client, err := zrm.NewClient[examples.AddTwoIntsRequest, examples.AddTwoIntsResponse](clientNode, "add_two_ints")
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rsp, err := client.Call(ctx, &examples.AddTwoIntsRequest{A: 19, B: 23})
	require.NoError(t, err)
	require.Equal(t, int64(42), rsp.Sum)
}
