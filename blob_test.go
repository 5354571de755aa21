package lattice

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onsi/gomega"
	"google.golang.org/grpc"

	"github.com/latticerun/lattice-go/proto/corepb"
)

// blobUploadStub serves BlobCreate against an in-process httptest
// server and records the uploaded bytes.
type blobUploadStub struct {
	noopControlPlane
	server   *httptest.Server
	uploaded []byte
}

func newBlobUploadStub(t *testing.T) *blobUploadStub {
	stub := &blobUploadStub{}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		stub.uploaded = body
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *blobUploadStub) BlobCreate(_ context.Context, _ *corepb.BlobCreateRequest, _ ...grpc.CallOption) (*corepb.BlobCreateResponse, error) {
	return &corepb.BlobCreateResponse{BlobID: "blob-1", UploadURL: s.server.URL}, nil
}

func TestBlobUploadStreamsPayload(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	stub := newBlobUploadStub(t)
	payload := bytes.Repeat([]byte("a"), 10000)

	blobID, err := blobUpload(context.Background(), stub, payload)
	g.Expect(err).ShouldNot(gomega.HaveOccurred())
	g.Expect(blobID).Should(gomega.Equal("blob-1"))
	g.Expect(stub.uploaded).Should(gomega.Equal(payload))
}

type blobGetStub struct {
	noopControlPlane
	downloadURL string
}

func (s blobGetStub) BlobGet(context.Context, *corepb.BlobGetRequest, ...grpc.CallOption) (*corepb.BlobGetResponse, error) {
	return &corepb.BlobGetResponse{DownloadURL: s.downloadURL}, nil
}

func TestBlobDownloadStreamsPayload(t *testing.T) {
	t.Parallel()
	g := gomega.NewWithT(t)

	want := []byte("hello from the blob side-channel")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(want)
	}))
	t.Cleanup(server.Close)

	got, err := blobDownload(context.Background(), blobGetStub{downloadURL: server.URL}, "blob-1")
	g.Expect(err).ShouldNot(gomega.HaveOccurred())
	g.Expect(got).Should(gomega.Equal(want))
}
