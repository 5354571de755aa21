package lattice

// map.go is the parallel fan-out engine: three cooperating goroutines
// (drain, pump, poll) share a bounded queue and a small set of
// counters to submit many inputs for one call id and reassemble their
// outputs — in index order for plain functions, in arrival order for
// generators.
//
// The "sentinel yield" scheduling crutch used by cooperative-generator
// sources is unnecessary here: closing the drain→pump channel plays
// that role, and have_all_inputs combined with num_outputs ==
// num_inputs is the termination predicate.

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"

	"github.com/latticerun/lattice-go/proto/corepb"
)

// mapQueueCapacity bounds the drain→pump channel. Large enough to
// smooth batch formation; the real flow-control mechanism is the
// RESOURCE_EXHAUSTED retry loop in the pump stage.
const mapQueueCapacity = 4 * mapInvocationChunkSize

// mapQueueItem is one encoded input moving from drain to pump.
type mapQueueItem struct {
	idx   uint64
	input *corepb.Input
}

// mapState holds the counters and reassembly buffer shared by the
// three Map goroutines. Each field is written by at most one
// goroutine (drain writes numInputs, pump writes haveAllInputs, poll
// writes numOutputs and pendingOutputs); readers take the lock for a
// consistent snapshot.
type mapState struct {
	mu             sync.Mutex
	numInputs      uint64
	numOutputs     uint64
	haveAllInputs  bool
	pendingOutputs map[uint64]*corepb.GenericResult
}

func (s *mapState) addInput() {
	s.mu.Lock()
	s.numInputs++
	s.mu.Unlock()
}

func (s *mapState) setHaveAllInputs() {
	s.mu.Lock()
	s.haveAllInputs = true
	s.mu.Unlock()
}

// done reports whether every input has been submitted and every
// output accounted for.
func (s *mapState) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.haveAllInputs && s.numOutputs == s.numInputs
}

// mapRequest is the input to the Map engine: argsSeq is the async
// source of argument tuples (closed by the caller once exhausted),
// kwargs is shared across every call, and isGenerator selects
// ordering/flattening semantics for the output stream.
type mapRequest struct {
	functionID  string
	argsSeq     <-chan []any
	kwargs      map[string]any
	isGenerator bool
}

// runMap drives the three-stage pipeline and returns a channel of
// decoded output values and a channel carrying at most one error. The
// output channel is closed once all inputs are accounted for or an
// error aborts the engine; no further outputs are yielded after an
// abort, but outputs already sent are not retracted.
func runMap(ctx context.Context, cp corepb.ControlPlaneClient, req mapRequest) (<-chan any, <-chan error) {
	out := make(chan any)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		mapResp, err := cp.FunctionMap(ctx, &corepb.FunctionMapRequest{FunctionID: req.functionID}, withRetryPolicy(defaultRetryPolicy()))
		if err != nil {
			errc <- fmt.Errorf("FunctionMap failed: %w", err)
			return
		}
		callID := mapResp.CallID

		state := &mapState{pendingOutputs: make(map[uint64]*corepb.GenericResult)}
		queue := make(chan mapQueueItem, mapQueueCapacity)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return drainStage(gctx, cp, req, state, queue) })
		g.Go(func() error { return pumpStage(gctx, cp, req.functionID, callID, state, queue) })
		g.Go(func() error { return pollStage(gctx, cp, callID, req.isGenerator, state, out) })

		if err := g.Wait(); err != nil {
			errc <- err
		}
	}()

	return out, errc
}

// drainStage reads argument tuples off the source, assigns each a
// dense 0-based idx, encodes it, and enqueues it for the pump. Closing
// queue signals exhaustion in place of an explicit sentinel value.
func drainStage(ctx context.Context, cp corepb.ControlPlaneClient, req mapRequest, state *mapState, queue chan<- mapQueueItem) error {
	defer close(queue)

	var idx uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case args, ok := <-req.argsSeq:
			if !ok {
				return nil
			}
			input, err := encodeInput(ctx, cp, args, req.kwargs, "")
			if err != nil {
				return err
			}
			item := mapQueueItem{idx: idx, input: input}
			idx++
			state.addInput()

			select {
			case queue <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// pumpStage batches queued inputs up to mapInvocationChunkSize and
// submits each batch via PutInputs, retrying RESOURCE_EXHAUSTED
// indefinitely — the server's primary flow-control signal. It flushes
// a partial batch when the queue is closed, then marks haveAllInputs.
func pumpStage(ctx context.Context, cp corepb.ControlPlaneClient, functionID, callID string, state *mapState, queue <-chan mapQueueItem) error {
	defer state.setHaveAllInputs()

	batch := make([]mapQueueItem, 0, mapInvocationChunkSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		items := make([]*corepb.PutInputsItem, len(batch))
		for i, qi := range batch {
			items[i] = &corepb.PutInputsItem{Idx: qi.idx, Input: qi.input}
		}
		_, err := cp.FunctionPutInputs(ctx, &corepb.FunctionPutInputsRequest{
			FunctionID: functionID,
			CallID:     callID,
			Inputs:     items,
		}, withRetryPolicy(unlimitedRetryPolicy(codes.ResourceExhausted)))
		if err != nil {
			return fmt.Errorf("FunctionPutInputs failed: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-queue:
			if !ok {
				return flush()
			}
			batch = append(batch, item)
			if len(batch) >= mapInvocationChunkSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

// pollStage repeatedly long-polls for outputs until state.done(),
// decoding and delivering them to out — immediately and in arrival
// order for generators, or reassembled into input-index order for
// plain functions via pendingOutputs.
func pollStage(ctx context.Context, cp corepb.ControlPlaneClient, callID string, isGenerator bool, state *mapState, out chan<- any) error {
	for {
		if state.done() {
			return assertDrained(state)
		}

		resp, err := cp.FunctionGetOutputs(ctx, &corepb.FunctionGetOutputsRequest{
			CallID:               callID,
			TimeoutSeconds:       outputsPollTimeout.Seconds(),
			ReturnEmptyOnTimeout: true,
		}, withRetryPolicy(zeroBaseDelayPolicy()), withCallTimeout(outputsPollTimeout+pollGracePeriod))
		if err != nil {
			return fmt.Errorf("FunctionGetOutputs failed: %w", err)
		}

		for _, item := range resp.Outputs {
			if err := handleOutput(ctx, cp, item, isGenerator, state, out); err != nil {
				return err
			}
		}

		if state.done() {
			return assertDrained(state)
		}
	}
}

func handleOutput(ctx context.Context, cp corepb.ControlPlaneClient, item *corepb.OutputItem, isGenerator bool, state *mapState, out chan<- any) error {
	if isGenerator {
		if item.Result.GenStatus == corepb.GenStatusComplete {
			state.mu.Lock()
			state.numOutputs++
			state.mu.Unlock()
			return nil
		}
		value, err := decodeResult(ctx, cp, item.Result)
		if err != nil {
			return err
		}
		return sendOutput(ctx, out, value)
	}

	state.mu.Lock()
	state.pendingOutputs[item.Idx] = item.Result
	state.mu.Unlock()

	return drainPendingInOrder(ctx, cp, state, out)
}

// drainPendingInOrder emits buffered results in index order for as
// long as the next expected idx (numOutputs) is present, so
// non-generator output delivery equals input index order regardless
// of server return order.
func drainPendingInOrder(ctx context.Context, cp corepb.ControlPlaneClient, state *mapState, out chan<- any) error {
	for {
		state.mu.Lock()
		result, ok := state.pendingOutputs[state.numOutputs]
		if ok {
			delete(state.pendingOutputs, state.numOutputs)
			state.numOutputs++
		}
		state.mu.Unlock()

		if !ok {
			return nil
		}

		value, err := decodeResult(ctx, cp, result)
		if err != nil {
			return err
		}
		if err := sendOutput(ctx, out, value); err != nil {
			return err
		}
	}
}

func sendOutput(ctx context.Context, out chan<- any, value any) error {
	select {
	case out <- value:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// assertDrained is the defensive invariant from the termination
// condition: once have_all_inputs && num_outputs == num_inputs, no
// reassembly entries should remain buffered.
func assertDrained(state *mapState) error {
	state.mu.Lock()
	defer state.mu.Unlock()
	if len(state.pendingOutputs) != 0 {
		return fmt.Errorf("internal error: %d outputs left undelivered at Map completion", len(state.pendingOutputs))
	}
	return nil
}
