package zrm

import (
	"errors"
	"fmt"
)

var (
	// Type identifier and registry errors.
	ErrInvalidIdentifier   = errors.New("zrm: invalid type identifier format")
	ErrInvalidCategory     = errors.New("zrm: category must be 'msgs' or 'srvs'")
	ErrModuleNotRegistered = errors.New("zrm: message module not registered")
	ErrTypeNotFound        = errors.New("zrm: type not found in module")
	ErrNotRegistered       = errors.New("zrm: type is not a registered message type")
	ErrAlreadyRegistered   = errors.New("zrm: type identifier already registered")

	// Lifecycle errors.
	ErrContextClosed    = errors.New("zrm: context is closed")
	ErrContextBusy      = errors.New("zrm: context still has open nodes")
	ErrNodeClosed       = errors.New("zrm: node is closed")
	ErrPublisherClosed  = errors.New("zrm: publisher is closed")
	ErrSubscriberClosed = errors.New("zrm: subscriber is closed")
	ErrServerClosed     = errors.New("zrm: service server is closed")

	// Service call errors.
	ErrCallTimeout  = errors.New("zrm: service call timed out")
	ErrClientClosed = errors.New("zrm: service client closed")
)

// MessageTypeMismatchError reports an envelope whose type identifier does
// not match the type the receiver declared. The payload is never decoded
// when this error is returned.
type MessageTypeMismatchError struct {
	Expected string
	Actual   string
}

func (e *MessageTypeMismatchError) Error() string {
	return fmt.Sprintf("zrm: message type mismatch: expected %q, got %q", e.Expected, e.Actual)
}

// ServiceError is a fault produced by a remote service handler, carried
// back to the caller in the response frame.
type ServiceError struct {
	Service string
	Reason  string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("zrm: service %q failed: %s", e.Service, e.Reason)
}
