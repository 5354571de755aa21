package lattice

import (
	"context"
	"testing"

	"github.com/onsi/gomega"

	"github.com/latticerun/lattice-go/proto/corepb"
	"github.com/latticerun/lattice-go/testsupport/grpcmock"
)

func encodeIntResult(t *testing.T, v int) []byte {
	t.Helper()
	data, err := cborSerialize(v)
	if err != nil {
		t.Fatalf("cborSerialize: %v", err)
	}
	return data
}

// toInts normalizes a slice of decoded CBOR numeric values (which may
// surface as int64, uint64, or float64) to plain ints for assertions.
func toInts(t *testing.T, values []any) []int {
	t.Helper()
	out := make([]int, len(values))
	for i, v := range values {
		switch n := v.(type) {
		case int64:
			out[i] = int(n)
		case uint64:
			out[i] = int(n)
		case float64:
			out[i] = int(n)
		default:
			t.Fatalf("unexpected decoded type %T for value %v", v, v)
		}
	}
	return out
}

// TestMapReordersOutputsToInputIndexOrder covers the "out-of-order Map"
// seed scenario: inputs [0,1,2,3] submitted, the server returns outputs
// in order [2,0,3,1], and the engine must yield [f(0), f(1), f(2), f(3)].
func TestMapReordersOutputsToInputIndexOrder(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	mock := grpcmock.NewMockControlPlane()
	grpcmock.Handle(mock, "FunctionMap", func(*corepb.FunctionMapRequest) (*corepb.FunctionMapResponse, error) {
		return &corepb.FunctionMapResponse{CallID: "call-1"}, nil
	})
	grpcmock.Handle(mock, "FunctionPutInputs", func(req *corepb.FunctionPutInputsRequest) (*corepb.FunctionPutInputsResponse, error) {
		g.Expect(req.Inputs).Should(gomega.HaveLen(4))
		return &corepb.FunctionPutInputsResponse{}, nil
	})

	outOfOrder := []*corepb.OutputItem{
		{Idx: 2, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, InlineData: encodeIntResult(t, 200), DataFormat: corepb.DataFormatCBOR}},
		{Idx: 0, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, InlineData: encodeIntResult(t, 0), DataFormat: corepb.DataFormatCBOR}},
		{Idx: 3, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, InlineData: encodeIntResult(t, 300), DataFormat: corepb.DataFormatCBOR}},
		{Idx: 1, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, InlineData: encodeIntResult(t, 100), DataFormat: corepb.DataFormatCBOR}},
	}
	delivered := false
	grpcmock.HandleRepeating(mock, "FunctionGetOutputs", func(*corepb.FunctionGetOutputsRequest) (*corepb.FunctionGetOutputsResponse, error) {
		if delivered {
			return &corepb.FunctionGetOutputsResponse{}, nil
		}
		delivered = true
		return &corepb.FunctionGetOutputsResponse{Outputs: outOfOrder}, nil
	})

	f := &Function{FunctionID: "fn-square", client: &Client{cpClient: mock, logger: discardLogger()}}

	argsSeq := make(chan []any)
	go func() {
		defer close(argsSeq)
		for i := 0; i < 4; i++ {
			argsSeq <- []any{i}
		}
	}()

	out, errs := f.Map(context.Background(), argsSeq, nil)

	var got []any
	for v := range out {
		got = append(got, v)
	}
	g.Expect(<-errs).Should(gomega.BeNil())
	g.Expect(toInts(t, got)).Should(gomega.Equal([]int{0, 100, 200, 300}))
}

// TestMapGeneratorPassesThroughInArrivalOrder covers the generator
// seed scenario: one input yields 3 values then a completion marker,
// and the engine must pass them through without reordering.
func TestMapGeneratorPassesThroughInArrivalOrder(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	mock := grpcmock.NewMockControlPlane()
	grpcmock.Handle(mock, "FunctionMap", func(*corepb.FunctionMapRequest) (*corepb.FunctionMapResponse, error) {
		return &corepb.FunctionMapResponse{CallID: "call-1"}, nil
	})
	grpcmock.Handle(mock, "FunctionPutInputs", func(req *corepb.FunctionPutInputsRequest) (*corepb.FunctionPutInputsResponse, error) {
		g.Expect(req.Inputs).Should(gomega.HaveLen(1))
		return &corepb.FunctionPutInputsResponse{}, nil
	})

	outputs := []*corepb.OutputItem{
		{Idx: 0, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, InlineData: encodeIntResult(t, 1), DataFormat: corepb.DataFormatCBOR}},
		{Idx: 0, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, InlineData: encodeIntResult(t, 2), DataFormat: corepb.DataFormatCBOR}},
		{Idx: 0, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, InlineData: encodeIntResult(t, 3), DataFormat: corepb.DataFormatCBOR}},
		{Idx: 0, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, GenStatus: corepb.GenStatusComplete}},
	}
	delivered := false
	grpcmock.HandleRepeating(mock, "FunctionGetOutputs", func(*corepb.FunctionGetOutputsRequest) (*corepb.FunctionGetOutputsResponse, error) {
		if delivered {
			return &corepb.FunctionGetOutputsResponse{}, nil
		}
		delivered = true
		return &corepb.FunctionGetOutputsResponse{Outputs: outputs}, nil
	})

	f := &Function{
		FunctionID:     "fn-gen",
		handleMetadata: &corepb.HandleMetadata{IsGenerator: true},
		client:         &Client{cpClient: mock, logger: discardLogger()},
	}

	argsSeq := make(chan []any, 1)
	argsSeq <- []any{}
	close(argsSeq)

	out, errs := f.Map(context.Background(), argsSeq, nil)

	var got []any
	for v := range out {
		got = append(got, v)
	}
	g.Expect(<-errs).Should(gomega.BeNil())
	g.Expect(toInts(t, got)).Should(gomega.Equal([]int{1, 2, 3}))
}

// TestMapEmptyLongPollsEventuallyYieldOutput covers the empty
// long-poll seed scenario: the server returns no outputs for several
// polls before finally returning the single result.
func TestMapEmptyLongPollsEventuallyYieldOutput(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	mock := grpcmock.NewMockControlPlane()
	grpcmock.Handle(mock, "FunctionMap", func(*corepb.FunctionMapRequest) (*corepb.FunctionMapResponse, error) {
		return &corepb.FunctionMapResponse{CallID: "call-1"}, nil
	})
	grpcmock.Handle(mock, "FunctionPutInputs", func(*corepb.FunctionPutInputsRequest) (*corepb.FunctionPutInputsResponse, error) {
		return &corepb.FunctionPutInputsResponse{}, nil
	})

	emptyPolls := 0
	delivered := false
	grpcmock.HandleRepeating(mock, "FunctionGetOutputs", func(*corepb.FunctionGetOutputsRequest) (*corepb.FunctionGetOutputsResponse, error) {
		if emptyPolls < 3 {
			emptyPolls++
			return &corepb.FunctionGetOutputsResponse{}, nil
		}
		if delivered {
			return &corepb.FunctionGetOutputsResponse{}, nil
		}
		delivered = true
		return &corepb.FunctionGetOutputsResponse{Outputs: []*corepb.OutputItem{
			{Idx: 0, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, InlineData: encodeIntResult(t, 7), DataFormat: corepb.DataFormatCBOR}},
		}}, nil
	})

	f := &Function{FunctionID: "fn-slow", client: &Client{cpClient: mock, logger: discardLogger()}}
	argsSeq := make(chan []any, 1)
	argsSeq <- []any{}
	close(argsSeq)

	out, errs := f.Map(context.Background(), argsSeq, nil)
	var got []any
	for v := range out {
		got = append(got, v)
	}
	g.Expect(<-errs).Should(gomega.BeNil())
	g.Expect(toInts(t, got)).Should(gomega.Equal([]int{7}))
	g.Expect(emptyPolls).Should(gomega.Equal(3))
}
