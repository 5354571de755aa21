package lattice

// codec.go is the input encoder and the opaque user-value codec: it
// turns (args, kwargs) into the bytes carried on an Input, routing to
// the blob side-channel once the serialized size crosses
// maxObjectSizeBytes, and it decodes GenericResult payloads back into
// Go values.

import (
	"bytes"
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	pickle "github.com/kisielk/og-rek"

	"github.com/latticerun/lattice-go/proto/corepb"
)

// maxObjectSizeBytes is the inline/blob threshold: payloads strictly
// larger than this are routed through the blob side-channel.
const maxObjectSizeBytes = 2 * 1024 * 1024 // 2 MiB

// mapInvocationChunkSize is the maximum number of inputs the Map
// engine's pump stage submits per FunctionPutInputs call.
const mapInvocationChunkSize = 100

// backendPollMax is the maximum single-poll timeout advertised to the
// server; the client re-polls rather than treat a longer caller
// timeout as a single long-poll.
const backendPollMax = 60

// cborEncoder is configured with time tags enabled so that time.Time
// arguments round-trip as tagged datetimes rather than plain strings.
var cborEncoder, _ = cbor.EncOptions{
	Time:    cbor.TimeRFC3339Nano,
	TimeTag: cbor.EncTagRequired,
}.EncMode()

func cborSerialize(v any) ([]byte, error) {
	data, err := cborEncoder.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error encoding CBOR data: %w", err)
	}
	return data, nil
}

func cborDeserialize(data []byte) (any, error) {
	var v any
	if err := cbor.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("error decoding CBOR data: %w", err)
	}
	return v, nil
}

// pickleDeserialize decodes a legacy pickle-encoded payload. Used only
// as a fallback when an exception payload isn't valid CBOR — a mixed
// fleet may still emit pickle-encoded exceptions for functions that
// predate this client's CBOR-only enforcement on the success path.
func pickleDeserialize(data []byte) (any, error) {
	decoder := pickle.NewDecoder(bytes.NewReader(data))
	v, err := decoder.Decode()
	if err != nil {
		return nil, fmt.Errorf("error unpickling data: %w", err)
	}
	return v, nil
}

// encodeInput serializes (args, kwargs) and, if oversized, uploads them
// through the blob side-channel, returning an Input carrying exactly
// one of inline bytes or a blob id.
func encodeInput(ctx context.Context, cp corepb.ControlPlaneClient, args []any, kwargs map[string]any, methodName string) (*corepb.Input, error) {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	serialized, err := cborSerialize([]any{args, kwargs})
	if err != nil {
		return nil, err
	}

	builder := corepb.Input{DataFormat: corepb.DataFormatCBOR}
	if methodName != "" {
		builder.MethodName = &methodName
	}

	if len(serialized) > maxObjectSizeBytes {
		blobID, err := blobUpload(ctx, cp, serialized)
		if err != nil {
			return nil, err
		}
		builder.ArgsBlobID = &blobID
		return builder.Build(), nil
	}

	builder.InlineArgs = serialized
	return builder.Build(), nil
}
