package zrm

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/zrm-robotics/zrm-go/transport"
)

// The transport has no native request/response primitive, so services
// synthesize one: requests and responses travel on two topics derived
// from the service name, correlated by a per-call id. Independently
// started clients and servers agree on the topics without coordination.

func serviceRequestTopic(name string) string {
	return "@zrm/srv/" + name + "/req"
}

func serviceResponseTopic(name string) string {
	return "@zrm/srv/" + name + "/rsp"
}

// rpcFrame is the correlation wrapper around a standard envelope. Fault
// is set instead of Body when the server failed to produce a response.
type rpcFrame struct {
	CallID string `msgpack:"call_id"`
	Fault  string `msgpack:"fault,omitempty"`
	Body   []byte `msgpack:"body,omitempty"`
}

// Handler processes one request. Handlers run concurrently for distinct
// requests and may block.
type Handler[Req, Rsp any] func(*Req) (*Rsp, error)

// ServiceServer answers calls addressed to a service name.
type ServiceServer[Req, Rsp any] struct {
	node    *Node
	name    string
	reqType reflect.Type
	reqName string
	handler Handler[Req, Rsp]

	cancel func()
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewService creates a service server owned by the node. Req and Rsp must
// be registered (typically a service's .Request/.Response pair).
func NewService[Req, Rsp any](n *Node, name string, handler Handler[Req, Rsp]) (*ServiceServer[Req, Rsp], error) {
	reqType, reqName, err := typeFor[Req]()
	if err != nil {
		return nil, err
	}
	if _, _, err := typeFor[Rsp](); err != nil {
		return nil, err
	}

	ch, cancel, err := n.ctx.tr.Subscribe(serviceRequestTopic(name))
	if err != nil {
		return nil, err
	}

	s := &ServiceServer[Req, Rsp]{
		node:    n,
		name:    name,
		reqType: reqType,
		reqName: reqName,
		handler: handler,
		cancel:  cancel,
	}
	if err := n.addEntity(s); err != nil {
		cancel()
		return nil, err
	}

	s.wg.Add(1)
	go s.serve(ch)
	return s, nil
}

// Name returns the service name.
func (s *ServiceServer[Req, Rsp]) Name() string {
	return s.name
}

// Close stops accepting requests, waits for in-flight handlers and
// deregisters from the graph. Idempotent.
func (s *ServiceServer[Req, Rsp]) Close() error {
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

func (s *ServiceServer[Req, Rsp]) info() EntityInfo {
	return EntityInfo{Kind: KindService, Name: s.name}
}

func (s *ServiceServer[Req, Rsp]) serve(ch <-chan transport.Message) {
	defer s.wg.Done()
	for raw := range ch {
		var frame rpcFrame
		if err := msgpack.Unmarshal(raw.Payload, &frame); err != nil {
			s.node.logger.Warn("dropping malformed request frame",
				LabelService.L(s.name), LabelError.L(err))
			continue
		}
		env, err := DecodeEnvelope(frame.Body)
		if err != nil {
			s.respondFault(frame.CallID, err)
			continue
		}
		req, err := deserializeAs[Req](env, s.reqType, s.reqName)
		if err != nil {
			// A mistyped request is the caller's failure, not ours.
			s.node.ctx.sink.IncrCounterWithLabels(MetricZrmTypeMismatchCount, 1,
				append(s.node.ctx.labels,
					LabelService.M(s.name),
					LabelType.M(env.TypeName)))
			s.respondFault(frame.CallID, err)
			continue
		}

		// One worker per request: N concurrent calls complete in one
		// handler latency, not N of them.
		s.wg.Add(1)
		go func(callID string, req *Req) {
			defer s.wg.Done()
			rsp, err := s.handler(req)
			if err != nil {
				s.respondFault(callID, err)
				return
			}
			env, err := Serialize(rsp)
			if err != nil {
				s.respondFault(callID, err)
				return
			}
			s.respond(rpcFrame{CallID: callID, Body: env.Encode()})
		}(frame.CallID, req)
	}
}

func (s *ServiceServer[Req, Rsp]) respondFault(callID string, cause error) {
	s.respond(rpcFrame{CallID: callID, Fault: cause.Error()})
}

func (s *ServiceServer[Req, Rsp]) respond(frame rpcFrame) {
	buf, err := msgpack.Marshal(frame)
	if err != nil {
		s.node.logger.Warn("response encode failed",
			LabelService.L(s.name), LabelError.L(err))
		return
	}
	if err := s.node.ctx.tr.Publish(serviceResponseTopic(s.name), buf); err != nil {
		s.node.logger.Warn("response publish failed",
			LabelService.L(s.name), LabelCallID.L(frame.CallID), LabelError.L(err))
	}
}

type callResult[Rsp any] struct {
	rsp *Rsp
	err error
}

// ServiceClient issues calls to a service name. Concurrent calls make
// independent progress; each blocks only its own caller.
type ServiceClient[Req, Rsp any] struct {
	node    *Node
	name    string
	reqName string
	rspType reflect.Type
	rspName string

	cancel  func()
	closeCh chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	pending map[string]chan callResult[Rsp]
}

// NewClient creates a service client owned by the node.
func NewClient[Req, Rsp any](n *Node, name string) (*ServiceClient[Req, Rsp], error) {
	_, reqName, err := typeFor[Req]()
	if err != nil {
		return nil, err
	}
	rspType, rspName, err := typeFor[Rsp]()
	if err != nil {
		return nil, err
	}

	ch, cancel, err := n.ctx.tr.Subscribe(serviceResponseTopic(name))
	if err != nil {
		return nil, err
	}

	c := &ServiceClient[Req, Rsp]{
		node:    n,
		name:    name,
		reqName: reqName,
		rspType: rspType,
		rspName: rspName,
		cancel:  cancel,
		closeCh: make(chan struct{}),
		pending: make(map[string]chan callResult[Rsp]),
	}
	if err := n.addEntity(c); err != nil {
		cancel()
		return nil, err
	}

	c.wg.Add(1)
	go c.dispatch(ch)
	return c, nil
}

// Name returns the service name the client is bound to.
func (c *ServiceClient[Req, Rsp]) Name() string {
	return c.name
}

// Call sends a request and blocks until the matching response arrives,
// the context expires (ErrCallTimeout on deadline) or the client closes
// (ErrClientClosed). Only the calling goroutine blocks; responses for
// other in-flight calls keep being dispatched.
func (c *ServiceClient[Req, Rsp]) Call(ctx context.Context, req *Req) (*Rsp, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	callID := uuid.NewString()
	resCh := make(chan callResult[Rsp], 1)
	c.pending[callID] = resCh
	c.mu.Unlock()

	zctx := c.node.ctx
	defer c.forget(callID)

	env, err := Serialize(req)
	if err != nil {
		return nil, err
	}
	buf, err := msgpack.Marshal(rpcFrame{CallID: callID, Body: env.Encode()})
	if err != nil {
		return nil, fmt.Errorf("zrm: encode request frame: %w", err)
	}
	if err := zctx.tr.Publish(serviceRequestTopic(c.name), buf); err != nil {
		return nil, err
	}
	zctx.sink.IncrCounterWithLabels(MetricZrmCallCount, 1,
		append(zctx.labels, LabelService.M(c.name)))

	select {
	case res := <-resCh:
		return res.rsp, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			zctx.sink.IncrCounterWithLabels(MetricZrmCallTimeoutCount, 1,
				append(zctx.labels, LabelService.M(c.name)))
			return nil, fmt.Errorf("%w: service %q", ErrCallTimeout, c.name)
		}
		return nil, ctx.Err()
	case <-c.closeCh:
		zctx.sink.IncrCounterWithLabels(MetricZrmCallAbortedCount, 1,
			append(zctx.labels, LabelService.M(c.name)))
		return nil, ErrClientClosed
	}
}

// Close unblocks every waiting caller with ErrClientClosed, cancels the
// response subscription and deregisters from the graph. Idempotent.
func (c *ServiceClient[Req, Rsp]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.closeCh)
	c.cancel()
	c.wg.Wait()
	c.node.removeEntity(c)
	return nil
}

func (c *ServiceClient[Req, Rsp]) info() EntityInfo {
	return EntityInfo{Kind: KindClient, Name: c.name}
}

func (c *ServiceClient[Req, Rsp]) forget(callID string) {
	c.mu.Lock()
	delete(c.pending, callID)
	c.mu.Unlock()
}

func (c *ServiceClient[Req, Rsp]) dispatch(ch <-chan transport.Message) {
	defer c.wg.Done()
	zctx := c.node.ctx
	for raw := range ch {
		var frame rpcFrame
		if err := msgpack.Unmarshal(raw.Payload, &frame); err != nil {
			c.node.logger.Warn("dropping malformed response frame",
				LabelService.L(c.name), LabelError.L(err))
			continue
		}

		c.mu.Lock()
		resCh, ok := c.pending[frame.CallID]
		if ok {
			delete(c.pending, frame.CallID)
		}
		c.mu.Unlock()
		if !ok {
			// Duplicate, timed-out or another client's response.
			zctx.sink.IncrCounterWithLabels(MetricZrmCallStrayCount, 1,
				append(zctx.labels, LabelService.M(c.name)))
			continue
		}

		resCh <- c.decodeResult(&frame)
	}
}

func (c *ServiceClient[Req, Rsp]) decodeResult(frame *rpcFrame) callResult[Rsp] {
	if frame.Fault != "" {
		return callResult[Rsp]{err: &ServiceError{Service: c.name, Reason: frame.Fault}}
	}
	env, err := DecodeEnvelope(frame.Body)
	if err != nil {
		return callResult[Rsp]{err: err}
	}
	rsp, err := deserializeAs[Rsp](env, c.rspType, c.rspName)
	if err != nil {
		return callResult[Rsp]{err: err}
	}
	return callResult[Rsp]{rsp: rsp}
}
