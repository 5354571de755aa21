package lattice

import (
	"context"
	"testing"
	"time"

	"github.com/onsi/gomega"

	"github.com/latticerun/lattice-go/proto/corepb"
	"github.com/latticerun/lattice-go/testsupport/grpcmock"
)

func TestCreateInvocationSingleSuccess(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	mock := grpcmock.NewMockControlPlane()
	grpcmock.Handle(mock, "FunctionMap", func(req *corepb.FunctionMapRequest) (*corepb.FunctionMapResponse, error) {
		g.Expect(req.FunctionID).Should(gomega.Equal("fn-square"))
		return &corepb.FunctionMapResponse{CallID: "call-1"}, nil
	})
	grpcmock.Handle(mock, "FunctionPutInputs", func(req *corepb.FunctionPutInputsRequest) (*corepb.FunctionPutInputsResponse, error) {
		g.Expect(req.Inputs).Should(gomega.HaveLen(1))
		g.Expect(req.Inputs[0].Idx).Should(gomega.BeEquivalentTo(0))
		return &corepb.FunctionPutInputsResponse{}, nil
	})
	result, err := cborSerialize(1764)
	g.Expect(err).ShouldNot(gomega.HaveOccurred())
	grpcmock.Handle(mock, "FunctionGetOutputs", func(req *corepb.FunctionGetOutputsRequest) (*corepb.FunctionGetOutputsResponse, error) {
		g.Expect(req.CallID).Should(gomega.Equal("call-1"))
		return &corepb.FunctionGetOutputsResponse{Outputs: []*corepb.OutputItem{{
			Idx: 0,
			Result: &corepb.GenericResult{
				Status:     corepb.StatusSuccess,
				InlineData: result,
				DataFormat: corepb.DataFormatCBOR,
			},
		}}}, nil
	})

	inv, err := createInvocation(context.Background(), mock, "fn-square", []any{42}, nil)
	g.Expect(err).ShouldNot(gomega.HaveOccurred())

	value, err := inv.runFunction(context.Background())
	g.Expect(err).ShouldNot(gomega.HaveOccurred())
	g.Expect(value).Should(gomega.BeEquivalentTo(1764))
	g.Expect(mock.AssertExhausted()).Should(gomega.Succeed())
}

func TestCreateInvocationSingleFailure(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	mock := grpcmock.NewMockControlPlane()
	grpcmock.Handle(mock, "FunctionMap", func(*corepb.FunctionMapRequest) (*corepb.FunctionMapResponse, error) {
		return &corepb.FunctionMapResponse{CallID: "call-1"}, nil
	})
	grpcmock.Handle(mock, "FunctionPutInputs", func(*corepb.FunctionPutInputsRequest) (*corepb.FunctionPutInputsResponse, error) {
		return &corepb.FunctionPutInputsResponse{}, nil
	})
	grpcmock.Handle(mock, "FunctionGetOutputs", func(*corepb.FunctionGetOutputsRequest) (*corepb.FunctionGetOutputsResponse, error) {
		return &corepb.FunctionGetOutputsResponse{Outputs: []*corepb.OutputItem{{
			Idx: 0,
			Result: &corepb.GenericResult{
				Status:    corepb.StatusFailure,
				Exception: "Failure!",
				Traceback: "Traceback (most recent call last):\n  ...\nException: Failure!",
			},
		}}}, nil
	})

	inv, err := createInvocation(context.Background(), mock, "fn-boom", []any{}, nil)
	g.Expect(err).ShouldNot(gomega.HaveOccurred())

	_, err = inv.runFunction(context.Background())
	g.Expect(err).Should(gomega.HaveOccurred())
	g.Expect(err.Error()).Should(gomega.ContainSubstring("Failure!"))
}

func TestPollFunctionTimeout(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	mock := grpcmock.NewMockControlPlane()
	grpcmock.Handle(mock, "FunctionMap", func(*corepb.FunctionMapRequest) (*corepb.FunctionMapResponse, error) {
		return &corepb.FunctionMapResponse{CallID: "call-1"}, nil
	})
	grpcmock.Handle(mock, "FunctionPutInputs", func(*corepb.FunctionPutInputsRequest) (*corepb.FunctionPutInputsResponse, error) {
		return &corepb.FunctionPutInputsResponse{}, nil
	})
	// Withholds outputs for every poll within the caller's timeout.
	grpcmock.HandleRepeating(mock, "FunctionGetOutputs", func(*corepb.FunctionGetOutputsRequest) (*corepb.FunctionGetOutputsResponse, error) {
		return &corepb.FunctionGetOutputsResponse{}, nil
	})

	inv, err := createInvocation(context.Background(), mock, "fn-slow", []any{}, nil)
	g.Expect(err).ShouldNot(gomega.HaveOccurred())

	_, err = inv.pollFunction(context.Background(), 10*time.Millisecond)
	var timeoutErr TimeoutError
	g.Expect(err).Should(gomega.BeAssignableToTypeOf(timeoutErr))
}

func TestRunGeneratorStreamsUntilComplete(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	mock := grpcmock.NewMockControlPlane()
	grpcmock.Handle(mock, "FunctionMap", func(*corepb.FunctionMapRequest) (*corepb.FunctionMapResponse, error) {
		return &corepb.FunctionMapResponse{CallID: "call-1"}, nil
	})
	grpcmock.Handle(mock, "FunctionPutInputs", func(*corepb.FunctionPutInputsRequest) (*corepb.FunctionPutInputsResponse, error) {
		return &corepb.FunctionPutInputsResponse{}, nil
	})

	one, _ := cborSerialize(1)
	two, _ := cborSerialize(2)
	three, _ := cborSerialize(3)
	grpcmock.Handle(mock, "FunctionGetOutputs", func(*corepb.FunctionGetOutputsRequest) (*corepb.FunctionGetOutputsResponse, error) {
		return &corepb.FunctionGetOutputsResponse{Outputs: []*corepb.OutputItem{
			{Idx: 0, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, InlineData: one, DataFormat: corepb.DataFormatCBOR}},
			{Idx: 0, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, InlineData: two, DataFormat: corepb.DataFormatCBOR}},
			{Idx: 0, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, InlineData: three, DataFormat: corepb.DataFormatCBOR}},
			{Idx: 0, Result: &corepb.GenericResult{Status: corepb.StatusSuccess, GenStatus: corepb.GenStatusComplete}},
		}}, nil
	})

	inv, err := createInvocation(context.Background(), mock, "fn-gen", []any{}, nil)
	g.Expect(err).ShouldNot(gomega.HaveOccurred())

	values, errs := inv.runGenerator(context.Background())
	var got []any
	for v := range values {
		got = append(got, v)
	}
	g.Expect(<-errs).Should(gomega.BeNil())
	g.Expect(got).Should(gomega.HaveLen(3))
	g.Expect(got[0]).Should(gomega.BeEquivalentTo(1))
	g.Expect(got[2]).Should(gomega.BeEquivalentTo(3))
}
