package lattice

// result.go decodes a GenericResult envelope into a Go value or an
// error. On failure it tries to materialize the remote payload as a
// transferred exception; with no payload it uses the plain message.

import (
	"context"
	"fmt"

	"github.com/latticerun/lattice-go/proto/corepb"
)

// decodeResult fetches the result payload (inline or via the blob
// side-channel) and, depending on status, either decodes the success
// value or reconstructs a propagatable error.
func decodeResult(ctx context.Context, cp corepb.ControlPlaneClient, result *corepb.GenericResult) (any, error) {
	if result == nil {
		return nil, RemoteError{Message: "received a null result from invocation"}
	}

	data, err := resultPayload(ctx, cp, result)
	if err != nil {
		return nil, err
	}

	switch result.Status {
	case corepb.StatusTimeout:
		return nil, TimeoutError{Message: result.Exception}
	case corepb.StatusInternalFailure:
		return nil, InternalFailure{Message: result.Exception}
	case corepb.StatusSuccess:
		return decodeDataFormat(data, result.DataFormat)
	default:
		return nil, decodeFailure(data, result)
	}
}

func resultPayload(ctx context.Context, cp corepb.ControlPlaneClient, result *corepb.GenericResult) ([]byte, error) {
	if result.WhichData() == "data_blob_id" {
		if result.DataBlobID == nil {
			return nil, InvalidError{Message: "result selected data_blob_id but carries none"}
		}
		return blobDownload(ctx, cp, *result.DataBlobID)
	}
	return result.InlineData, nil
}

// decodeFailure handles GenericResult.Status == FAILURE: the payload,
// if present, is a transferred exception object. With no payload the
// plain exception string becomes a RemoteError; a payload that can't be
// materialized locally becomes an ExecutionError carrying the remote
// traceback.
func decodeFailure(data []byte, result *corepb.GenericResult) error {
	if len(data) == 0 {
		return RemoteError{Message: result.Exception}
	}

	decoded, err := decodeException(data)
	if err != nil {
		return ExecutionError{Message: fmt.Sprintf(
			"could not deserialize remote exception due to local error: %v\nremote traceback:\n%s", err, result.Traceback)}
	}

	exc, ok := asRemoteException(decoded)
	if !ok {
		return ExecutionError{Message: fmt.Sprintf(
			"got remote exception of incorrect type: %T\nremote traceback:\n%s", decoded, result.Traceback)}
	}
	return exc
}

// decodeException decodes an exception payload, trying CBOR first and
// falling back to pickle for legacy exception payloads from functions
// that predate this client's CBOR-only enforcement on the success path.
func decodeException(data []byte) (any, error) {
	if v, err := cborDeserialize(data); err == nil {
		return v, nil
	}
	return pickleDeserialize(data)
}

// RemoteException is the materialized form of a remote exception
// whose payload decoded to a recognizable (message, type) shape.
type RemoteException struct {
	Type    string
	Message string
}

func (e RemoteException) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// asRemoteException recognizes the decoded exception shapes this
// client understands: a pickled Python exception ([type, args...] or
// a map with "exc_type"/"message" keys) or a CBOR-encoded equivalent.
func asRemoteException(decoded any) (RemoteException, bool) {
	switch v := decoded.(type) {
	case map[any]any:
		excType, _ := v["exc_type"].(string)
		msg, _ := v["message"].(string)
		if excType == "" && msg == "" {
			return RemoteException{}, false
		}
		return RemoteException{Type: excType, Message: msg}, true
	case map[string]any:
		excType, _ := v["exc_type"].(string)
		msg, _ := v["message"].(string)
		if excType == "" && msg == "" {
			return RemoteException{}, false
		}
		return RemoteException{Type: excType, Message: msg}, true
	case []any:
		if len(v) == 0 {
			return RemoteException{}, false
		}
		excType, _ := v[0].(string)
		var msg string
		if len(v) > 1 {
			msg = fmt.Sprint(v[1])
		}
		if excType == "" {
			return RemoteException{}, false
		}
		return RemoteException{Type: excType, Message: msg}, true
	default:
		return RemoteException{}, false
	}
}

// decodeDataFormat decodes a successful payload according to its
// declared format.
func decodeDataFormat(data []byte, format corepb.DataFormat) (any, error) {
	switch format {
	case corepb.DataFormatCBOR:
		return cborDeserialize(data)
	case corepb.DataFormatPickle:
		return nil, fmt.Errorf("pickle output format is not supported - remote function must return CBOR format")
	default:
		return nil, fmt.Errorf("unsupported data format: %s", format.String())
	}
}
