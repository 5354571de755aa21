package lattice

// invocation.go implements the single-call lifecycle: allocate a call
// id, submit one input, and poll outputs until a result arrives. Two
// consumption modes sit on top of the same get_items sequence:
// runFunction (single value) and runGenerator (a stream of values).

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/latticerun/lattice-go/proto/corepb"
)

// outputsPollTimeout caps a single FunctionGetOutputs long-poll; the
// client re-polls rather than ask the server for a longer single wait.
const outputsPollTimeout = backendPollMax * time.Second

// pollGracePeriod is added on top of the requested long-poll window
// when bounding the RPC itself, so ordinary network latency doesn't
// race the server's own timeout handling.
const pollGracePeriod = 10 * time.Second

// invocation is a single function call bound to one CallID.
type invocation struct {
	client corepb.ControlPlaneClient
	callID string
	input  *corepb.Input
}

// createInvocation encodes one input, allocates a call id via
// FunctionMap (default retry policy), and submits the input via
// PutInputs with unlimited retries and RESOURCE_EXHAUSTED treated as
// backpressure, not failure.
func createInvocation(ctx context.Context, cp corepb.ControlPlaneClient, functionID string, args []any, kwargs map[string]any) (*invocation, error) {
	input, err := encodeInput(ctx, cp, args, kwargs, "")
	if err != nil {
		return nil, err
	}

	mapResp, err := cp.FunctionMap(ctx, &corepb.FunctionMapRequest{FunctionID: functionID}, withRetryPolicy(defaultRetryPolicy()))
	if err != nil {
		return nil, fmt.Errorf("FunctionMap failed: %w", err)
	}

	_, err = cp.FunctionPutInputs(ctx, &corepb.FunctionPutInputsRequest{
		FunctionID: functionID,
		CallID:     mapResp.CallID,
		Inputs:     []*corepb.PutInputsItem{{Idx: 0, Input: input}},
	}, withRetryPolicy(unlimitedRetryPolicy(codes.ResourceExhausted)))
	if err != nil {
		return nil, fmt.Errorf("FunctionPutInputs failed: %w", err)
	}

	return &invocation{client: cp, callID: mapResp.CallID, input: input}, nil
}

// invocationFromCallID resumes polling an existing call, as used by a
// spawned FunctionCall's Get.
func invocationFromCallID(cp corepb.ControlPlaneClient, callID string) *invocation {
	return &invocation{client: cp, callID: callID}
}

// getItems is the lazy "poll until non-empty, then drain" sequence:
// it re-polls FunctionGetOutputs with a bounded per-call timeout until
// at least one output is observed or the caller's overall timeout
// elapses, then yields every output from that single response.
//
// timeout == nil means no deadline. A zero timeout still performs
// exactly one poll.
func (inv *invocation) getItems(ctx context.Context, timeout *time.Duration) ([]*corepb.OutputItem, error) {
	start := time.Now()
	pollTimeout := outputsPollTimeout
	if timeout != nil {
		pollTimeout = min(*timeout, outputsPollTimeout)
	}

	for {
		resp, err := inv.client.FunctionGetOutputs(ctx, &corepb.FunctionGetOutputsRequest{
			CallID:               inv.callID,
			TimeoutSeconds:       pollTimeout.Seconds(),
			ReturnEmptyOnTimeout: true,
		}, withRetryPolicy(zeroBaseDelayPolicy()), withCallTimeout(pollTimeout+pollGracePeriod))
		if err != nil {
			return nil, fmt.Errorf("FunctionGetOutputs failed: %w", err)
		}

		if len(resp.Outputs) > 0 {
			return resp.Outputs, nil
		}

		if timeout == nil {
			continue
		}
		remaining := *timeout - time.Since(start)
		if remaining <= 0 {
			return nil, nil
		}
		pollTimeout = min(outputsPollTimeout, remaining)
	}
}

// runFunction waits indefinitely for the single result of a
// non-generator call.
func (inv *invocation) runFunction(ctx context.Context) (any, error) {
	items, err := inv.getItems(ctx, nil)
	if err != nil {
		return nil, err
	}
	item := items[0]
	if item.Result.GenStatus != corepb.GenStatusNone {
		return nil, InvalidError{Message: "run_function received a generator-shaped result from a non-generator call"}
	}
	return decodeResult(ctx, inv.client, item.Result)
}

// pollFunction waits at most timeout for the single result, failing
// with TimeoutError if nothing arrives.
func (inv *invocation) pollFunction(ctx context.Context, timeout time.Duration) (any, error) {
	items, err := inv.getItems(ctx, &timeout)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, TimeoutError{Message: fmt.Sprintf("timeout exceeded: %.1fs", timeout.Seconds())}
	}
	return decodeResult(ctx, inv.client, items[0].Result)
}

// runGenerator returns a channel of decoded values for a generator
// call. The channel is closed once a GenStatusComplete marker is
// observed or an error occurs; errCh carries at most one error.
func (inv *invocation) runGenerator(ctx context.Context) (<-chan any, <-chan error) {
	values := make(chan any)
	errs := make(chan error, 1)

	go func() {
		defer close(values)
		defer close(errs)

		for {
			items, err := inv.getItems(ctx, nil)
			if err != nil {
				errs <- err
				return
			}
			for _, item := range items {
				if item.Result.GenStatus == corepb.GenStatusComplete {
					return
				}
				value, err := decodeResult(ctx, inv.client, item.Result)
				if err != nil {
					errs <- err
					return
				}
				select {
				case values <- value:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()

	return values, errs
}
