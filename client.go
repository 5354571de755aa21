package lattice

// client.go handles client construction, auth, timeout, and retry logic.

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/latticerun/lattice-go/proto/corepb"
)

const (
	maxMessageSize         = 100 * 1024 * 1024 // 100 MB
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 100 * time.Millisecond
	defaultRetryMaxDelay   = 1 * time.Second
	defaultRetryBackoffMul = 2.0
)

var builtinTransientCodes = map[codes.Code]struct{}{
	codes.DeadlineExceeded: {},
	codes.Unavailable:      {},
	codes.Canceled:         {},
	codes.Internal:         {},
	codes.Unknown:          {},
}

// Client exposes the control-plane operations this package consumes.
// Build one with NewClient/NewClientWithOptions; do not construct it
// directly.
type Client struct {
	config  config
	profile Profile
	logger  *slog.Logger

	cpClient         corepb.ControlPlaneClient
	authTokenManager *AuthTokenManager

	mu   sync.RWMutex
	conn *grpc.ClientConn

	// Functions resolves deployed functions by name.
	Functions FunctionService
}

// ClientParams overrides the default profile resolution.
type ClientParams struct {
	TokenID            string
	TokenSecret        string
	Environment        string
	Config             *config
	Logger             *slog.Logger
	ControlPlaneClient corepb.ControlPlaneClient
}

// NewClient builds a client from the default profile (environment
// variables and ~/.lattice.toml).
func NewClient() (*Client, error) {
	return NewClientWithOptions(nil)
}

// NewClientWithOptions builds a client, applying any non-empty
// overrides in params on top of the resolved profile.
func NewClientWithOptions(params *ClientParams) (*Client, error) {
	if params == nil {
		params = &ClientParams{}
	}

	var cfg config
	if params.Config != nil {
		cfg = *params.Config
	} else {
		var err error
		cfg, err = readConfigFile()
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	profile := getProfile(os.Getenv("LATTICE_PROFILE"), cfg)
	if params.TokenID != "" {
		profile.TokenID = params.TokenID
	}
	if params.TokenSecret != "" {
		profile.TokenSecret = params.TokenSecret
	}
	if params.Environment != "" {
		profile.Environment = params.Environment
	}

	logger := params.Logger
	if logger == nil {
		var err error
		logger, err = newLogger(profile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	c := &Client{config: cfg, profile: profile, logger: logger}
	logger.Debug("initializing client", "server_url", profile.ServerURL)

	if params.ControlPlaneClient != nil {
		c.cpClient = params.ControlPlaneClient
	} else {
		conn, err := dial(profile, c)
		if err != nil {
			return nil, fmt.Errorf("failed to create control plane client: %w", err)
		}
		c.conn = conn
		c.cpClient = corepb.NewClient(conn)
	}

	c.authTokenManager = NewAuthTokenManager(c.cpClient, c.logger)
	if err := c.authTokenManager.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to start auth token manager: %w", err)
	}
	c.Functions = &functionServiceImpl{client: c}

	logger.Debug("client initialized successfully")
	return c, nil
}

// Close stops the background auth-token refresh and closes the
// underlying connection, if this client dialed one itself.
func (c *Client) Close() error {
	c.logger.Debug("closing client")
	c.authTokenManager.Stop()
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func dial(profile Profile, c *Client) (*grpc.ClientConn, error) {
	var target string
	var creds credentials.TransportCredentials
	if after, ok := strings.CutPrefix(profile.ServerURL, "https://"); ok {
		target = after
		creds = credentials.NewTLS(&tls.Config{})
	} else if after, ok := strings.CutPrefix(profile.ServerURL, "http://"); ok {
		target = after
		creds = insecure.NewCredentials()
	} else {
		return nil, status.Errorf(codes.InvalidArgument, "invalid server URL: %s", profile.ServerURL)
	}

	c.logger.Debug("connecting", "target", target)

	return grpc.NewClient(
		target,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMessageSize),
			grpc.MaxCallSendMsgSize(maxMessageSize),
			grpc.CallContentSubtype(corepb.CodecName()),
		),
		grpc.WithChainUnaryInterceptor(
			headerInjectorUnaryInterceptor(profile),
			authTokenInterceptor(c),
			retryInterceptor(c),
			timeoutInterceptor(),
		),
	)
}

func injectRequiredHeaders(ctx context.Context, profile Profile) (context.Context, error) {
	if profile.TokenID == "" || profile.TokenSecret == "" {
		return nil, fmt.Errorf("missing token_id or token_secret; set them in ~/.lattice.toml, environment variables, or via ClientParams")
	}
	return metadata.AppendToOutgoingContext(
		ctx,
		"x-lattice-token-id", profile.TokenID,
		"x-lattice-token-secret", profile.TokenSecret,
	), nil
}

func headerInjectorUnaryInterceptor(profile Profile) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, err := injectRequiredHeaders(ctx, profile)
		if err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// authTokenInterceptor injects a proactively-refreshed bearer token
// into every outgoing request except the one that fetches it.
func authTokenInterceptor(c *Client) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, inv grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if !strings.HasSuffix(method, "AuthTokenGet") {
			token, err := c.authTokenManager.GetToken(ctx)
			if err != nil || token == "" {
				return fmt.Errorf("failed to get auth token: %w", err)
			}
			ctx = metadata.AppendToOutgoingContext(ctx, "x-lattice-auth-token", token)
		}
		return inv(ctx, method, req, reply, cc, opts...)
	}
}

func timeoutInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, inv grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		for _, o := range opts {
			if to, ok := o.(timeoutCallOption); ok && to.timeout > 0 {
				if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= to.timeout {
					break
				}
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, to.timeout)
				defer cancel()
				break
			}
		}
		return inv(ctx, method, req, reply, cc, opts...)
	}
}

// retryInterceptor implements the transport-wide retry policy
// described by RetryPolicy: exponential backoff with jitter from
// baseDelay, a built-in transient-error set plus any additional codes
// listed on the call, and either a finite retry budget or unlimited
// retries (maxRetries == unlimitedRetries).
func retryInterceptor(c *Client) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, inv grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		policy := defaultRetryPolicy()
		for _, o := range opts {
			if rc, ok := o.(retryCallOption); ok {
				policy = rc.policy
				break
			}
		}

		retryable := builtinTransientCodes
		if len(policy.additionalCodes) > 0 {
			retryable = make(map[codes.Code]struct{}, len(builtinTransientCodes)+len(policy.additionalCodes))
			for k := range builtinTransientCodes {
				retryable[k] = struct{}{}
			}
			for _, code := range policy.additionalCodes {
				retryable[code] = struct{}{}
			}
		}

		idempotency := uuid.NewString()
		delay := policy.baseDelay
		if delay <= 0 {
			delay = 1 * time.Millisecond
		}

		for attempt := 0; ; attempt++ {
			aCtx := metadata.AppendToOutgoingContext(ctx,
				"x-idempotency-key", idempotency,
				"x-retry-attempt", strconv.Itoa(attempt),
			)

			err := inv(aCtx, method, req, reply, cc, opts...)
			if err == nil {
				return nil
			}

			st, ok := status.FromError(err)
			if !ok {
				return err // non-gRPC error: surfaced unwrapped
			}
			if _, ok := retryable[st.Code()]; !ok {
				return err // non-transient status: surfaced unwrapped
			}
			if policy.maxRetries != unlimitedRetries && attempt >= policy.maxRetries {
				c.logger.DebugContext(ctx, "exhausted retries", "method", method, "attempts", attempt+1, "error", err)
				return err
			}

			// Jitter: sleep a random duration in [delay/2, delay].
			sleep := delay/2 + rand.N(delay/2+1)
			c.logger.DebugContext(ctx, "retrying transient failure", "method", method, "attempt", attempt, "delay", sleep, "error", err)
			if sleepCtx(ctx, sleep) != nil {
				return err // ctx cancelled or deadline exceeded
			}

			factor := policy.backoffFactor
			if factor <= 0 {
				factor = defaultRetryBackoffMul
			}
			maxDelay := policy.maxDelay
			if maxDelay <= 0 {
				maxDelay = defaultRetryMaxDelay
			}
			delay = min(time.Duration(float64(delay)*factor), maxDelay)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
