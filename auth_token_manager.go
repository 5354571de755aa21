package lattice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/latticerun/lattice-go/proto/corepb"
)

const (
	// refreshWindow is how many seconds before expiry a token is proactively refreshed.
	refreshWindow = 5 * 60
	// defaultExpiryOffset is used when a token carries no exp claim (not expected).
	defaultExpiryOffset = 20 * 60
)

type tokenAndExpiry struct {
	token  string
	expiry int64
}

// AuthTokenManager refreshes the bearer token used on every RPC,
// proactively, refreshWindow seconds before it expires, coalescing
// concurrent refresh attempts into one in-flight fetch.
type AuthTokenManager struct {
	client corepb.ControlPlaneClient
	logger *slog.Logger

	tokenAndExpiry atomic.Value

	mu         sync.Mutex
	running    bool
	cancelFn   context.CancelFunc
	fetchGroup singleflight.Group
}

// NewAuthTokenManager constructs a manager; call Start to begin
// background refresh.
func NewAuthTokenManager(client corepb.ControlPlaneClient, logger *slog.Logger) *AuthTokenManager {
	m := &AuthTokenManager{client: client, logger: logger}
	m.tokenAndExpiry.Store(tokenAndExpiry{})
	return m
}

// Start fetches an initial token and launches the background refresh
// goroutine. Returns an error if the initial fetch fails.
func (m *AuthTokenManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	refreshCtx, cancel := context.WithCancel(ctx)
	m.cancelFn = cancel
	m.mu.Unlock()

	if err := m.runFetch(refreshCtx); err != nil {
		m.Stop()
		return fmt.Errorf("failed to fetch initial auth token: %w", err)
	}

	go m.backgroundRefresh(refreshCtx)
	return nil
}

// Stop ends the refresh goroutine.
func (m *AuthTokenManager) Stop() {
	m.mu.Lock()
	m.running = false
	cancel := m.cancelFn
	m.cancelFn = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (m *AuthTokenManager) runFetch(ctx context.Context) error {
	_, err, _ := m.fetchGroup.Do("fetch", func() (any, error) {
		return m.fetchToken(ctx)
	})
	return err
}

// GetToken returns a valid token, triggering an on-demand refresh if
// the cached one is expired.
func (m *AuthTokenManager) GetToken(ctx context.Context) (string, error) {
	if token := m.currentToken(); token != "" && !m.isExpired() {
		return token, nil
	}

	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	if running {
		if err := m.runFetch(ctx); err == nil {
			if token := m.currentToken(); token != "" && !m.isExpired() {
				return token, nil
			}
		}
	}

	return "", fmt.Errorf("no valid auth token available")
}

func (m *AuthTokenManager) backgroundRefresh(ctx context.Context) {
	for {
		data := m.tokenAndExpiry.Load().(tokenAndExpiry)
		now := time.Now().Unix()
		refreshAt := data.expiry - refreshWindow

		var delay time.Duration
		if refreshAt > now {
			delay = time.Duration(refreshAt-now) * time.Second
		}

		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		if err := m.runFetch(ctx); err != nil {
			m.logger.ErrorContext(ctx, "failed to refresh auth token", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func (m *AuthTokenManager) fetchToken(ctx context.Context) (string, error) {
	resp, err := m.client.AuthTokenGet(ctx, &corepb.AuthTokenGetRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to get new auth token: %w", err)
	}

	token := resp.Token
	if token == "" {
		return "", fmt.Errorf("internal error: control plane returned an empty auth token")
	}

	expiry := jwtExpiry(token)
	if expiry == 0 {
		m.logger.Warn("auth token does not contain an exp claim")
		expiry = time.Now().Unix() + defaultExpiryOffset
	}

	m.tokenAndExpiry.Store(tokenAndExpiry{token: token, expiry: expiry})
	m.logger.DebugContext(ctx, "fetched auth token", "refresh_in", time.Duration(expiry-time.Now().Unix()-refreshWindow)*time.Second)
	return token, nil
}

// jwtExpiry reads the exp claim without verifying the signature — this
// client has no server signing key, and the token's authenticity is
// already established by the channel it arrived over.
func jwtExpiry(token string) int64 {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return exp.Unix()
}

func (m *AuthTokenManager) currentToken() string {
	return m.tokenAndExpiry.Load().(tokenAndExpiry).token
}

func (m *AuthTokenManager) isExpired() bool {
	data := m.tokenAndExpiry.Load().(tokenAndExpiry)
	return time.Now().Unix() >= data.expiry
}
