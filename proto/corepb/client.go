package corepb

import (
	"context"

	"google.golang.org/grpc"
)

// ControlPlaneClient is the RPC surface this module consumes from the
// control plane. It plays the same role as a generated
// protoc-gen-go-grpc client stub; see codec.go for why these methods
// are hand-written instead of generated.
type ControlPlaneClient interface {
	FunctionMap(ctx context.Context, req *FunctionMapRequest, opts ...grpc.CallOption) (*FunctionMapResponse, error)
	FunctionPutInputs(ctx context.Context, req *FunctionPutInputsRequest, opts ...grpc.CallOption) (*FunctionPutInputsResponse, error)
	FunctionRetryInputs(ctx context.Context, req *FunctionRetryInputsRequest, opts ...grpc.CallOption) (*FunctionRetryInputsResponse, error)
	FunctionGetOutputs(ctx context.Context, req *FunctionGetOutputsRequest, opts ...grpc.CallOption) (*FunctionGetOutputsResponse, error)
	FunctionCallCancel(ctx context.Context, req *FunctionCallCancelRequest, opts ...grpc.CallOption) (*FunctionCallCancelResponse, error)
	FunctionGet(ctx context.Context, req *FunctionGetRequest, opts ...grpc.CallOption) (*FunctionGetResponse, error)
	BlobCreate(ctx context.Context, req *BlobCreateRequest, opts ...grpc.CallOption) (*BlobCreateResponse, error)
	BlobGet(ctx context.Context, req *BlobGetRequest, opts ...grpc.CallOption) (*BlobGetResponse, error)
	AuthTokenGet(ctx context.Context, req *AuthTokenGetRequest, opts ...grpc.CallOption) (*AuthTokenGetResponse, error)
}

// client is the concrete ControlPlaneClient backed by a grpc.ClientConn.
type client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a dialed connection as a ControlPlaneClient.
func NewClient(cc grpc.ClientConnInterface) ControlPlaneClient {
	return &client{cc: cc}
}

const serviceName = "/lattice.client.LatticeService/"

func (c *client) FunctionMap(ctx context.Context, req *FunctionMapRequest, opts ...grpc.CallOption) (*FunctionMapResponse, error) {
	out := new(FunctionMapResponse)
	if err := c.cc.Invoke(ctx, serviceName+"FunctionMap", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) FunctionPutInputs(ctx context.Context, req *FunctionPutInputsRequest, opts ...grpc.CallOption) (*FunctionPutInputsResponse, error) {
	out := new(FunctionPutInputsResponse)
	if err := c.cc.Invoke(ctx, serviceName+"FunctionPutInputs", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) FunctionRetryInputs(ctx context.Context, req *FunctionRetryInputsRequest, opts ...grpc.CallOption) (*FunctionRetryInputsResponse, error) {
	out := new(FunctionRetryInputsResponse)
	if err := c.cc.Invoke(ctx, serviceName+"FunctionRetryInputs", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) FunctionGetOutputs(ctx context.Context, req *FunctionGetOutputsRequest, opts ...grpc.CallOption) (*FunctionGetOutputsResponse, error) {
	out := new(FunctionGetOutputsResponse)
	if err := c.cc.Invoke(ctx, serviceName+"FunctionGetOutputs", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) FunctionCallCancel(ctx context.Context, req *FunctionCallCancelRequest, opts ...grpc.CallOption) (*FunctionCallCancelResponse, error) {
	out := new(FunctionCallCancelResponse)
	if err := c.cc.Invoke(ctx, serviceName+"FunctionCallCancel", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) FunctionGet(ctx context.Context, req *FunctionGetRequest, opts ...grpc.CallOption) (*FunctionGetResponse, error) {
	out := new(FunctionGetResponse)
	if err := c.cc.Invoke(ctx, serviceName+"FunctionGet", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) BlobCreate(ctx context.Context, req *BlobCreateRequest, opts ...grpc.CallOption) (*BlobCreateResponse, error) {
	out := new(BlobCreateResponse)
	if err := c.cc.Invoke(ctx, serviceName+"BlobCreate", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) BlobGet(ctx context.Context, req *BlobGetRequest, opts ...grpc.CallOption) (*BlobGetResponse, error) {
	out := new(BlobGetResponse)
	if err := c.cc.Invoke(ctx, serviceName+"BlobGet", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) AuthTokenGet(ctx context.Context, req *AuthTokenGetRequest, opts ...grpc.CallOption) (*AuthTokenGetResponse, error) {
	out := new(AuthTokenGetResponse)
	if err := c.cc.Invoke(ctx, serviceName+"AuthTokenGet", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
