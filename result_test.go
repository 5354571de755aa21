package lattice

import (
	"context"
	"testing"

	"github.com/onsi/gomega"

	"github.com/latticerun/lattice-go/proto/corepb"
)

func TestDecodeResultSuccess(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	payload, err := cborSerialize(1764)
	g.Expect(err).ShouldNot(gomega.HaveOccurred())

	value, err := decodeResult(context.Background(), noopControlPlane{}, &corepb.GenericResult{
		Status:     corepb.StatusSuccess,
		InlineData: payload,
		DataFormat: corepb.DataFormatCBOR,
	})
	g.Expect(err).ShouldNot(gomega.HaveOccurred())
	g.Expect(value).Should(gomega.BeEquivalentTo(1764))
}

func TestDecodeResultFailureWithoutPayloadIsRemoteError(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	_, err := decodeResult(context.Background(), noopControlPlane{}, &corepb.GenericResult{
		Status:    corepb.StatusFailure,
		Exception: "Failure!",
	})
	var remote RemoteError
	g.Expect(err).Should(gomega.BeAssignableToTypeOf(remote))
	g.Expect(err.Error()).Should(gomega.ContainSubstring("Failure!"))
}

func TestDecodeResultFailureWithUndecodablePayloadIsExecutionError(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	_, err := decodeResult(context.Background(), noopControlPlane{}, &corepb.GenericResult{
		Status:     corepb.StatusFailure,
		InlineData: []byte{0xff, 0xff, 0xff}, // not valid CBOR nor pickle
		Traceback:  "Traceback (most recent call last): ...",
	})
	var execErr ExecutionError
	g.Expect(err).Should(gomega.BeAssignableToTypeOf(execErr))
	g.Expect(err.Error()).Should(gomega.ContainSubstring("could not deserialize"))
}

func TestDecodeResultTimeout(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	_, err := decodeResult(context.Background(), noopControlPlane{}, &corepb.GenericResult{
		Status:    corepb.StatusTimeout,
		Exception: "deadline exceeded",
	})
	var timeoutErr TimeoutError
	g.Expect(err).Should(gomega.BeAssignableToTypeOf(timeoutErr))
}
