package lattice

// function_call.go implements FunctionCall: a handle returned by
// Function.Spawn that can be polled or cancelled independently of the
// call that created it.

import (
	"context"
	"fmt"
	"time"

	"github.com/latticerun/lattice-go/proto/corepb"
)

// FunctionCall references a fire-and-forget invocation. It holds no
// local buffer; Get re-polls the call id from scratch.
type FunctionCall struct {
	CallID string

	client corepb.ControlPlaneClient
}

// FunctionCallFromID resumes a FunctionCall by its CallID, for
// consumption from a different goroutine or process than the one that
// spawned it.
func FunctionCallFromID(client corepb.ControlPlaneClient, callID string) *FunctionCall {
	return &FunctionCall{CallID: callID, client: client}
}

// Get waits for the call's result. A zero timeout waits indefinitely;
// a positive timeout fails with TimeoutError once exceeded.
func (fc *FunctionCall) Get(ctx context.Context, timeout time.Duration) (any, error) {
	inv := invocationFromCallID(fc.client, fc.CallID)
	if timeout <= 0 {
		return inv.runFunction(ctx)
	}
	return inv.pollFunction(ctx, timeout)
}

// Cancel cancels the call. If terminateContainers is true, containers
// already running the call's input are torn down; otherwise the call
// is merely abandoned server-side.
func (fc *FunctionCall) Cancel(ctx context.Context, terminateContainers bool) error {
	_, err := fc.client.FunctionCallCancel(ctx, &corepb.FunctionCallCancelRequest{
		CallID:              fc.CallID,
		TerminateContainers: terminateContainers,
	})
	if err != nil {
		return fmt.Errorf("FunctionCallCancel failed: %w", err)
	}
	return nil
}
