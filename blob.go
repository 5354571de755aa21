package lattice

// blob.go implements the large-object side-channel: uploading and
// downloading payloads that exceed maxObjectSizeBytes, out-of-band
// from the control-plane RPC channel.

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/djherbis/buffer"
	"github.com/djherbis/nio/v3"

	"github.com/latticerun/lattice-go/proto/corepb"
)

// blobPipeBufferSize is the capacity of the in-memory pipe buffer that
// sits between the payload and the HTTP transfer in blobUpload and
// blobDownload. It bounds only the pipe itself: the uploaded payload
// and the downloaded bytes are still held whole in memory.
const blobPipeBufferSize = 4 * 1024 * 1024 // 4 MiB

// blobUpload stores data out-of-band and returns its blob id. The
// payload is written to the presigned upload URL through a pipe that
// buffers at most blobPipeBufferSize bytes; data itself stays in
// memory for the whole upload, so peak memory includes the full
// payload.
func blobUpload(ctx context.Context, cp corepb.ControlPlaneClient, data []byte) (string, error) {
	md5sum := md5.Sum(data)
	sha256sum := sha256.Sum256(data)
	contentMD5 := base64.StdEncoding.EncodeToString(md5sum[:])
	contentSHA256 := base64.StdEncoding.EncodeToString(sha256sum[:])

	resp, err := cp.BlobCreate(ctx, corepb.BlobCreateRequest{
		ContentMD5:          contentMD5,
		ContentSHA256Base64: contentSHA256,
		ContentLength:       int64(len(data)),
	}.Build())
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}
	if resp.Multipart {
		return "", fmt.Errorf("payload size exceeds multipart upload threshold, unsupported by this client")
	}
	if resp.UploadURL == "" {
		return "", fmt.Errorf("missing upload URL in BlobCreate response")
	}

	pr, pw := nio.Pipe(buffer.New(blobPipeBufferSize))
	go func() {
		_, copyErr := pw.Write(data)
		pw.CloseWithError(copyErr)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, resp.UploadURL, pr)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-MD5", contentMD5)

	uploadResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload blob: %w", err)
	}
	defer uploadResp.Body.Close()
	if uploadResp.StatusCode < 200 || uploadResp.StatusCode >= 300 {
		return "", fmt.Errorf("blob upload failed: %s", uploadResp.Status)
	}

	return resp.BlobID, nil
}

// blobDownload fetches a blob by id, streaming the response body
// through the same bounded pipe discipline as blobUpload.
func blobDownload(ctx context.Context, cp corepb.ControlPlaneClient, blobID string) ([]byte, error) {
	resp, err := cp.BlobGet(ctx, corepb.BlobGetRequest{BlobID: blobID}.Build())
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resp.DownloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	dlResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode < 200 || dlResp.StatusCode >= 300 {
		return nil, fmt.Errorf("blob download failed: status=%d", dlResp.StatusCode)
	}

	pr, pw := nio.Pipe(buffer.New(blobPipeBufferSize))
	go func() {
		_, copyErr := io.Copy(pw, dlResp.Body)
		pw.CloseWithError(copyErr)
	}()

	buf, err := io.ReadAll(pr)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob data: %w", err)
	}
	return buf, nil
}
