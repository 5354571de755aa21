// Package grpcmock provides a scriptable corepb.ControlPlaneClient for
// tests that exercise the invocation engine without a live control
// plane. Each RPC name owns a FIFO queue of handlers; registering one
// with Handle consumes it on the next call to that method.
package grpcmock

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"

	"github.com/latticerun/lattice-go/proto/corepb"
)

type unaryHandler func(any) (any, error)

// MockControlPlane implements corepb.ControlPlaneClient entirely from
// registered handlers; a call to a method with an empty queue and no
// HandleRepeating fallback returns an "unexpected call" error.
type MockControlPlane struct {
	mu       sync.Mutex
	queues   map[string][]unaryHandler
	defaults map[string]unaryHandler
}

// NewMockControlPlane returns an empty mock; register expectations
// with Handle before using it.
func NewMockControlPlane() *MockControlPlane {
	return &MockControlPlane{
		queues:   make(map[string][]unaryHandler),
		defaults: make(map[string]unaryHandler),
	}
}

// Handle registers a typed handler for rpc, appended to that method's
// FIFO queue.
func Handle[Req, Resp any](m *MockControlPlane, rpc string, handler func(Req) (Resp, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[rpc] = append(m.queues[rpc], wrapHandler(rpc, handler))
}

// HandleRepeating registers a handler that answers every call to rpc
// not already satisfied by a queued Handle expectation — for
// long-poll loops where the number of calls isn't part of the test's
// assertion.
func HandleRepeating[Req, Resp any](m *MockControlPlane, rpc string, handler func(Req) (Resp, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults[rpc] = wrapHandler(rpc, handler)
}

func wrapHandler[Req, Resp any](rpc string, handler func(Req) (Resp, error)) unaryHandler {
	return func(in any) (any, error) {
		req, ok := in.(Req)
		if !ok {
			return nil, fmt.Errorf("grpcmock: request type mismatch for %s: expected %T, got %T", rpc, *new(Req), in)
		}
		return handler(req)
	}
}

// AssertExhausted fails unless every registered expectation was consumed.
func (m *MockControlPlane) AssertExhausted() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for rpc, q := range m.queues {
		if len(q) > 0 {
			return fmt.Errorf("grpcmock: %d unconsumed expectation(s) for %s", len(q), rpc)
		}
	}
	return nil
}

func (m *MockControlPlane) dequeue(rpc string) (unaryHandler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[rpc]
	if len(q) == 0 {
		if d, ok := m.defaults[rpc]; ok {
			return d, nil
		}
		return nil, fmt.Errorf("grpcmock: unexpected call to %s", rpc)
	}
	m.queues[rpc] = q[1:]
	return q[0], nil
}

func call[Resp any](m *MockControlPlane, rpc string, req any) (Resp, error) {
	var zero Resp
	h, err := m.dequeue(rpc)
	if err != nil {
		return zero, err
	}
	resp, err := h(req)
	if err != nil {
		return zero, err
	}
	typed, ok := resp.(Resp)
	if !ok {
		return zero, fmt.Errorf("grpcmock: response type mismatch for %s: got %T", rpc, resp)
	}
	return typed, nil
}

func (m *MockControlPlane) FunctionMap(_ context.Context, req *corepb.FunctionMapRequest, _ ...grpc.CallOption) (*corepb.FunctionMapResponse, error) {
	return call[*corepb.FunctionMapResponse](m, "FunctionMap", req)
}

func (m *MockControlPlane) FunctionPutInputs(_ context.Context, req *corepb.FunctionPutInputsRequest, _ ...grpc.CallOption) (*corepb.FunctionPutInputsResponse, error) {
	return call[*corepb.FunctionPutInputsResponse](m, "FunctionPutInputs", req)
}

func (m *MockControlPlane) FunctionRetryInputs(_ context.Context, req *corepb.FunctionRetryInputsRequest, _ ...grpc.CallOption) (*corepb.FunctionRetryInputsResponse, error) {
	return call[*corepb.FunctionRetryInputsResponse](m, "FunctionRetryInputs", req)
}

func (m *MockControlPlane) FunctionGetOutputs(_ context.Context, req *corepb.FunctionGetOutputsRequest, _ ...grpc.CallOption) (*corepb.FunctionGetOutputsResponse, error) {
	return call[*corepb.FunctionGetOutputsResponse](m, "FunctionGetOutputs", req)
}

func (m *MockControlPlane) FunctionCallCancel(_ context.Context, req *corepb.FunctionCallCancelRequest, _ ...grpc.CallOption) (*corepb.FunctionCallCancelResponse, error) {
	return call[*corepb.FunctionCallCancelResponse](m, "FunctionCallCancel", req)
}

func (m *MockControlPlane) FunctionGet(_ context.Context, req *corepb.FunctionGetRequest, _ ...grpc.CallOption) (*corepb.FunctionGetResponse, error) {
	return call[*corepb.FunctionGetResponse](m, "FunctionGet", req)
}

func (m *MockControlPlane) BlobCreate(_ context.Context, req *corepb.BlobCreateRequest, _ ...grpc.CallOption) (*corepb.BlobCreateResponse, error) {
	return call[*corepb.BlobCreateResponse](m, "BlobCreate", req)
}

func (m *MockControlPlane) BlobGet(_ context.Context, req *corepb.BlobGetRequest, _ ...grpc.CallOption) (*corepb.BlobGetResponse, error) {
	return call[*corepb.BlobGetResponse](m, "BlobGet", req)
}

func (m *MockControlPlane) AuthTokenGet(_ context.Context, req *corepb.AuthTokenGetRequest, _ ...grpc.CallOption) (*corepb.AuthTokenGetResponse, error) {
	return call[*corepb.AuthTokenGetResponse](m, "AuthTokenGet", req)
}
