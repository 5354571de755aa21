// Package corepb defines the wire messages exchanged with the control
// plane: function call setup, input submission, output polling, and
// the blob side-channel. Message shapes follow the control-plane RPC
// surface described in the project's specification; field names are
// chosen to match that surface directly rather than to mirror any
// particular wire format.
//
// Messages are plain structs carried over gRPC using a JSON codec (see
// jsonCodec in codec.go) rather than generated protobuf types, since
// this module has no protoc step. Input, PutInputsItem and the request
// messages have a Build() method returning a pointer to a copy, so call
// sites read the same way they would against a generated protobuf API.
package corepb

// DataFormat identifies how an Input or GenericResult payload is encoded.
type DataFormat int32

const (
	DataFormatUnspecified DataFormat = iota
	DataFormatCBOR
	DataFormatPickle
)

func (f DataFormat) String() string {
	switch f {
	case DataFormatCBOR:
		return "CBOR"
	case DataFormatPickle:
		return "PICKLE"
	default:
		return "UNSPECIFIED"
	}
}

// Status is the outcome of a single invocation.
type Status int32

const (
	StatusUnspecified Status = iota
	StatusSuccess
	StatusFailure
	StatusTimeout
	StatusInternalFailure
)

// GenStatus marks whether a result is a plain output or a generator's
// terminal marker.
type GenStatus int32

const (
	GenStatusNone GenStatus = iota
	GenStatusComplete
)

// Input is a single argument tuple encoded for transport. Exactly one
// of InlineArgs or ArgsBlobID is set.
type Input struct {
	InlineArgs []byte     `json:"args,omitempty"`
	ArgsBlobID *string    `json:"args_blob_id,omitempty"`
	DataFormat DataFormat `json:"data_format"`
	MethodName *string    `json:"method_name,omitempty"`
}

type inputBuilder = Input

func (b inputBuilder) Build() *Input { v := b; return &v }

// InputBuilder constructs an Input via the builder pattern.
var InputBuilder = inputBuilder{}

// PutInputsItem pairs an Input with its dense, 0-based index within a call.
type PutInputsItem struct {
	Idx   uint64 `json:"idx"`
	Input *Input `json:"input"`
}

type putInputsItemBuilder = PutInputsItem

func (b putInputsItemBuilder) Build() *PutInputsItem { v := b; return &v }

// FunctionMapRequest allocates a call context for a function.
type FunctionMapRequest struct {
	FunctionID      string           `json:"function_id"`
	PipelinedInputs []*PutInputsItem `json:"pipelined_inputs,omitempty"`
}

type functionMapRequestBuilder = FunctionMapRequest

func (b functionMapRequestBuilder) Build() *FunctionMapRequest { v := b; return &v }

// FunctionMapResponse carries the freshly allocated call id.
type FunctionMapResponse struct {
	CallID string `json:"call_id"`
}

// FunctionPutInputsRequest submits a batch of inputs (1 up to the Map engine's chunk size) for a call.
type FunctionPutInputsRequest struct {
	FunctionID string           `json:"function_id"`
	CallID     string           `json:"call_id"`
	Inputs     []*PutInputsItem `json:"inputs"`
}

type functionPutInputsRequestBuilder = FunctionPutInputsRequest

func (b functionPutInputsRequestBuilder) Build() *FunctionPutInputsRequest { v := b; return &v }

// FunctionPutInputsResponse is intentionally empty; inputs are acknowledged
// by idx via subsequent GetOutputs calls.
type FunctionPutInputsResponse struct{}

// FunctionRetryInputsRequest resubmits a single input after a retryable
// failure, bumping its retry count.
type FunctionRetryInputsRequest struct {
	CallID     string `json:"call_id"`
	Idx        uint64 `json:"idx"`
	Input      *Input `json:"input"`
	RetryCount uint32 `json:"retry_count"`
}

type functionRetryInputsRequestBuilder = FunctionRetryInputsRequest

func (b functionRetryInputsRequestBuilder) Build() *FunctionRetryInputsRequest { v := b; return &v }

// FunctionRetryInputsResponse acknowledges the resubmission.
type FunctionRetryInputsResponse struct{}

// GenericResult is the outcome of a single invocation, bound to an
// input's idx by the enclosing OutputItem.
type GenericResult struct {
	Status     Status     `json:"status"`
	GenStatus  GenStatus  `json:"gen_status"`
	InlineData []byte     `json:"data,omitempty"`
	DataBlobID *string    `json:"data_blob_id,omitempty"`
	DataFormat DataFormat `json:"data_format"`
	Exception  string     `json:"exception,omitempty"`
	Traceback  string     `json:"traceback,omitempty"`
}

// WhichData reports which of InlineData/DataBlobID is set, mirroring a
// protobuf oneof accessor.
func (r *GenericResult) WhichData() string {
	if r.DataBlobID != nil {
		return "data_blob_id"
	}
	return "data"
}

// OutputItem binds a GenericResult to the idx of the Input that produced
// it (or, for a generator-complete marker, to the parent input's idx).
type OutputItem struct {
	Idx    uint64         `json:"idx"`
	Result *GenericResult `json:"result"`
}

// FunctionGetOutputsRequest long-polls for outputs of a call.
type FunctionGetOutputsRequest struct {
	CallID               string  `json:"call_id"`
	TimeoutSeconds       float64 `json:"timeout"`
	ReturnEmptyOnTimeout bool    `json:"return_empty_on_timeout"`
}

type functionGetOutputsRequestBuilder = FunctionGetOutputsRequest

func (b functionGetOutputsRequestBuilder) Build() *FunctionGetOutputsRequest { v := b; return &v }

// FunctionGetOutputsResponse carries zero or more outputs observed
// within the requested timeout.
type FunctionGetOutputsResponse struct {
	Outputs []*OutputItem `json:"outputs,omitempty"`
}

// FunctionCallCancelRequest cancels an in-flight or spawned call.
type FunctionCallCancelRequest struct {
	CallID              string `json:"call_id"`
	TerminateContainers bool   `json:"terminate_containers"`
}

type functionCallCancelRequestBuilder = FunctionCallCancelRequest

func (b functionCallCancelRequestBuilder) Build() *FunctionCallCancelRequest { v := b; return &v }

// FunctionCallCancelResponse is empty.
type FunctionCallCancelResponse struct{}

// BlobCreateRequest requests a presigned upload URL for a payload of
// known size and checksum.
type BlobCreateRequest struct {
	ContentMD5          string `json:"content_md5"`
	ContentSHA256Base64 string `json:"content_sha256_base64"`
	ContentLength       int64  `json:"content_length"`
}

type blobCreateRequestBuilder = BlobCreateRequest

func (b blobCreateRequestBuilder) Build() *BlobCreateRequest { v := b; return &v }

// BlobCreateResponse carries either a single upload URL or a multipart
// upload descriptor (multipart is not supported by this client).
type BlobCreateResponse struct {
	BlobID    string `json:"blob_id"`
	UploadURL string `json:"upload_url,omitempty"`
	Multipart bool   `json:"multipart,omitempty"`
}

// BlobGetRequest requests a presigned download URL for a blob id.
type BlobGetRequest struct {
	BlobID string `json:"blob_id"`
}

type blobGetRequestBuilder = BlobGetRequest

func (b blobGetRequestBuilder) Build() *BlobGetRequest { v := b; return &v }

// BlobGetResponse carries the presigned download URL.
type BlobGetResponse struct {
	DownloadURL string `json:"download_url"`
}

// FunctionGetRequest looks up a deployed function by app/name.
type FunctionGetRequest struct {
	AppName         string `json:"app_name"`
	ObjectTag       string `json:"object_tag"`
	EnvironmentName string `json:"environment_name,omitempty"`
}

type functionGetRequestBuilder = FunctionGetRequest

func (b functionGetRequestBuilder) Build() *FunctionGetRequest { v := b; return &v }

// FunctionGetResponse carries the resolved function's handle metadata.
type FunctionGetResponse struct {
	FunctionID     string          `json:"function_id"`
	HandleMetadata *HandleMetadata `json:"handle_metadata,omitempty"`
}

// HandleMetadata carries the client-relevant properties of a deployed function.
type HandleMetadata struct {
	IsGenerator           bool         `json:"is_generator"`
	SupportedInputFormats []DataFormat `json:"supported_input_formats,omitempty"`
	InputPlaneURL         string       `json:"input_plane_url,omitempty"`
	WebURL                string       `json:"web_url,omitempty"`
}

// AuthTokenGetRequest is empty; auth derives from per-RPC metadata headers.
type AuthTokenGetRequest struct{}

// AuthTokenGetResponse carries the bearer token.
type AuthTokenGetResponse struct {
	Token string `json:"token"`
}
