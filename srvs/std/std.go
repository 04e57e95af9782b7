// Package std provides common general-purpose service types.
package std

import (
	zrm "github.com/zrm-robotics/zrm-go"
)

// Trigger is a no-argument service that reports success plus a
// human-readable message.
type TriggerRequest struct{}

type TriggerResponse struct {
	Success bool   `msgpack:"success"`
	Message string `msgpack:"message"`
}

// SetBool toggles a boolean on the server side.
type SetBoolRequest struct {
	Data bool `msgpack:"data"`
}

type SetBoolResponse struct {
	Success bool   `msgpack:"success"`
	Message string `msgpack:"message"`
}

func init() {
	zrm.RegisterService("std", "Trigger", TriggerRequest{}, TriggerResponse{})
	zrm.RegisterService("std", "SetBool", SetBoolRequest{}, SetBoolResponse{})
}
