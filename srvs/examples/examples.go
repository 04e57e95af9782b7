// Package examples provides service types used by the demos and tests.
package examples

import (
	zrm "github.com/zrm-robotics/zrm-go"
)

type AddTwoIntsRequest struct {
	A int64 `msgpack:"a"`
	B int64 `msgpack:"b"`
}

type AddTwoIntsResponse struct {
	Sum int64 `msgpack:"sum"`
}

func init() {
	zrm.RegisterService("examples", "AddTwoInts", AddTwoIntsRequest{}, AddTwoIntsResponse{})
}
