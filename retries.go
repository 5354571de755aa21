package lattice

// retries.go represents the RPC retry policy as data, passed into the
// transport wrapper as a grpc.CallOption, rather than branching on it
// inline at each call site.

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
)

// unlimitedRetries signals "retry forever" in RetryPolicy.maxRetries.
const unlimitedRetries = -1

// RetryPolicy configures how the transport wrapper retries a single
// RPC. The zero value is not meaningful on its own; use
// defaultRetryPolicy, unlimitedRetryPolicy or zeroBaseDelayPolicy to
// build one.
type RetryPolicy struct {
	maxRetries      int
	baseDelay       time.Duration
	maxDelay        time.Duration
	backoffFactor   float64
	additionalCodes []codes.Code
}

func defaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		maxRetries:    defaultRetryAttempts,
		baseDelay:     defaultRetryBaseDelay,
		maxDelay:      defaultRetryMaxDelay,
		backoffFactor: defaultRetryBackoffMul,
	}
}

// unlimitedRetryPolicy retries indefinitely with backoff capped at
// maxDelay. Used for FunctionPutInputs, where the server signals
// backpressure via RESOURCE_EXHAUSTED and admission is expected to
// eventually succeed.
func unlimitedRetryPolicy(additional ...codes.Code) RetryPolicy {
	p := defaultRetryPolicy()
	p.maxRetries = unlimitedRetries
	p.additionalCodes = additional
	return p
}

// zeroBaseDelayPolicy retries indefinitely with no initial delay, used
// by the Map engine's output poller: a long-poll that returns promptly
// on timeout should be re-issued immediately, not after a backoff.
func zeroBaseDelayPolicy() RetryPolicy {
	p := unlimitedRetryPolicy()
	p.baseDelay = 0
	return p
}

// retryCallOption carries a RetryPolicy through grpc.CallOption so the
// retry interceptor can read per-call overrides without a parallel
// argument-passing convention.
type retryCallOption struct {
	grpc.EmptyCallOption
	policy RetryPolicy
}

// withRetryPolicy attaches p to a single RPC invocation.
func withRetryPolicy(p RetryPolicy) grpc.CallOption {
	return retryCallOption{policy: p}
}

// timeoutCallOption carries a per-RPC absolute timeout, honored only if
// no shorter deadline is already set on the context.
type timeoutCallOption struct {
	grpc.EmptyCallOption
	timeout time.Duration
}

func withCallTimeout(d time.Duration) grpc.CallOption {
	return timeoutCallOption{timeout: d}
}
