package lattice

// function.go exposes the public entry points of the invocation
// engine: Remote (single blocking call), Spawn (fire-and-forget), and
// Map (parallel fan-out). Function registration itself is out of
// scope; a Function handle here is only ever obtained by looking up an
// already-deployed function.

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/latticerun/lattice-go/proto/corepb"
)

// maxSystemRetries bounds how many times Remote transparently retries
// an InternalFailure before surfacing it to the caller.
const maxSystemRetries = 8

// FunctionService looks up deployed functions by name.
type FunctionService interface {
	FromName(ctx context.Context, appName, name string, params *FunctionFromNameParams) (*Function, error)
}

type functionServiceImpl struct{ client *Client }

// FunctionFromNameParams overrides the client's default environment
// when resolving a function.
type FunctionFromNameParams struct {
	Environment string
}

// Function references a deployed remote function.
type Function struct {
	FunctionID string

	handleMetadata *corepb.HandleMetadata
	client         *Client
}

// FromName resolves a deployed function by its app and object name.
func (s *functionServiceImpl) FromName(ctx context.Context, appName, name string, params *FunctionFromNameParams) (*Function, error) {
	if params == nil {
		params = &FunctionFromNameParams{}
	}

	resp, err := s.client.cpClient.FunctionGet(ctx, &corepb.FunctionGetRequest{
		AppName:         appName,
		ObjectTag:       name,
		EnvironmentName: environmentName(params.Environment, s.client.profile),
	})
	if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
		return nil, NotFoundError{Message: fmt.Sprintf("function '%s/%s' not found", appName, name)}
	}
	if err != nil {
		return nil, err
	}

	s.client.logger.DebugContext(ctx, "resolved function", "function_id", resp.FunctionID, "app_name", appName, "name", name)
	return &Function{FunctionID: resp.FunctionID, handleMetadata: resp.HandleMetadata, client: s.client}, nil
}

func (f *Function) isGenerator() bool {
	return f.handleMetadata != nil && f.handleMetadata.IsGenerator
}

func (f *Function) checkNoWebURL(op string) error {
	if f.handleMetadata == nil || f.handleMetadata.WebURL == "" {
		return nil
	}
	return InvalidError{Message: fmt.Sprintf(
		"a webhook function cannot be invoked for remote execution via %s; call its web url %q instead", op, f.handleMetadata.WebURL)}
}

// Remote executes a single input and waits for its result,
// transparently retrying a bounded number of InternalFailures.
func (f *Function) Remote(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	f.client.logger.DebugContext(ctx, "executing remote call", "function_id", f.FunctionID)
	if err := f.checkNoWebURL("Remote"); err != nil {
		return nil, err
	}

	inv, err := createInvocation(ctx, f.client.cpClient, f.FunctionID, args, kwargs)
	if err != nil {
		return nil, err
	}

	for retryCount := 0; ; {
		output, err := inv.runFunction(ctx)
		if err == nil {
			f.client.logger.DebugContext(ctx, "remote call completed", "function_id", f.FunctionID)
			return output, nil
		}
		var internal InternalFailure
		if !asInternalFailure(err, &internal) || retryCount >= maxSystemRetries {
			return nil, err
		}
		f.client.logger.DebugContext(ctx, "retrying remote call after internal failure", "function_id", f.FunctionID, "retry_count", retryCount)
		retryCount++
	}
}

func asInternalFailure(err error, target *InternalFailure) bool {
	if f, ok := err.(InternalFailure); ok {
		*target = f
		return true
	}
	return false
}

// Spawn submits a single input and returns immediately with a handle
// that can be polled or cancelled independently.
func (f *Function) Spawn(ctx context.Context, args []any, kwargs map[string]any) (*FunctionCall, error) {
	f.client.logger.DebugContext(ctx, "spawning call", "function_id", f.FunctionID)
	if err := f.checkNoWebURL("Spawn"); err != nil {
		return nil, err
	}

	inv, err := createInvocation(ctx, f.client.cpClient, f.FunctionID, args, kwargs)
	if err != nil {
		return nil, err
	}
	f.client.logger.DebugContext(ctx, "call spawned", "function_id", f.FunctionID, "call_id", inv.callID)
	return &FunctionCall{CallID: inv.callID, client: f.client.cpClient}, nil
}

// PollFunction submits a single input and waits up to timeout for its
// result, failing with TimeoutError if nothing arrives in time.
func (f *Function) PollFunction(ctx context.Context, args []any, kwargs map[string]any, timeout time.Duration) (any, error) {
	inv, err := createInvocation(ctx, f.client.cpClient, f.FunctionID, args, kwargs)
	if err != nil {
		return nil, err
	}
	return inv.pollFunction(ctx, timeout)
}

// RunGenerator submits a single input to a generator function and
// streams its yielded values until GenStatusComplete.
func (f *Function) RunGenerator(ctx context.Context, args []any, kwargs map[string]any) (<-chan any, <-chan error) {
	inv, err := createInvocation(ctx, f.client.cpClient, f.FunctionID, args, kwargs)
	if err != nil {
		errs := make(chan error, 1)
		errs <- err
		close(errs)
		values := make(chan any)
		close(values)
		return values, errs
	}
	return inv.runGenerator(ctx)
}

// Map fans a stream of argument tuples out across the function's
// container fleet, sharing one fixed kwargs across every call. Output
// ordering follows the function's generator-ness: index order for
// plain functions, arrival order for generators.
func (f *Function) Map(ctx context.Context, argsSeq <-chan []any, kwargs map[string]any) (<-chan any, <-chan error) {
	f.client.logger.DebugContext(ctx, "starting map", "function_id", f.FunctionID)

	return runMap(ctx, f.client.cpClient, mapRequest{
		functionID:  f.FunctionID,
		argsSeq:     argsSeq,
		kwargs:      kwargs,
		isGenerator: f.isGenerator(),
	})
}

// GetWebURL returns the function's web endpoint URL, or "" if it is
// not deployed as one.
func (f *Function) GetWebURL() string {
	if f.handleMetadata == nil {
		return ""
	}
	return f.handleMetadata.WebURL
}
