package corepb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype under which jsonCodec is
// registered. Call sites select it with grpc.CallContentSubtype(codecName)
// as a default dial option, since this module has no protoc step to
// produce real protobuf-generated message types (see DESIGN.md).
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements google.golang.org/grpc/encoding.Codec over the
// plain structs in this package.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

// CodecName exposes the registered content-subtype for dial-option setup.
func CodecName() string {
	return codecName
}
