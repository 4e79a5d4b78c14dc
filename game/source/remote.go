package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sv4u/playlistroulette/game/config"
	"github.com/sv4u/playlistroulette/game/logging"
)

// DefaultTimeout bounds one request to the playlist API.
const DefaultTimeout = 60 * time.Second

// Credentials supplies the playlist API base URL and access token.
type Credentials interface {
	APIURL() string
	Token() string
}

// RemoteOptions configures a Remote loader.
type RemoteOptions struct {
	Timeout    time.Duration // 0 = DefaultTimeout
	HTTPClient *http.Client  // overrides Timeout when set
	Breaker    *CircuitBreaker
	Logger     *logging.Logger
}

// Remote loads playlists from the playlist API: GET {base}/playlists?token=...
type Remote struct {
	creds   Credentials
	client  *http.Client
	breaker *CircuitBreaker
	logger  *logging.Logger
}

// NewRemote creates a remote loader reading its credentials on every load,
// so a reconnect takes effect without rebuilding the loader.
func NewRemote(creds Credentials, opts RemoteOptions) *Remote {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = NewCircuitBreaker(3, 1, time.Minute)
	}
	return &Remote{creds: creds, client: client, breaker: breaker, logger: opts.Logger}
}

// Name implements Loader.
func (r *Remote) Name() string {
	return "remote"
}

// BreakerStatus reports the state of the remote API circuit breaker.
func (r *Remote) BreakerStatus() CircuitBreakerStatus {
	return r.breaker.GetStatus()
}

// ResetBreaker closes the circuit breaker.
func (r *Remote) ResetBreaker() {
	r.breaker.Reset()
}

// CleanBaseURL drops any query string and ensures a trailing slash.
func CleanBaseURL(raw string) string {
	base, _, _ := strings.Cut(strings.TrimSpace(raw), "?")
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// PlaylistsURL builds the playlists endpoint for base and token.
func PlaylistsURL(base, token string) string {
	return CleanBaseURL(base) + "playlists?token=" + url.QueryEscape(token)
}

// Load implements Loader.
func (r *Remote) Load(ctx context.Context) (Catalog, error) {
	base, token := r.creds.APIURL(), r.creds.Token()
	if strings.TrimSpace(base) == "" || token == "" {
		return nil, &DataSourceError{Source: r.Name(), Op: "configure", Err: &config.ConfigError{Message: "API URL and token are not configured"}}
	}
	if !r.breaker.AllowRequest() {
		return nil, &DataSourceError{Source: r.Name(), Op: "fetch", Err: ErrCircuitOpen}
	}

	cat, err := r.fetch(ctx, PlaylistsURL(base, token))
	if err != nil {
		// Cancellation does not count against the API.
		if ctx.Err() == nil {
			r.breaker.RecordFailure()
		}
		r.logger.ErrorWithOperation("remote_fetch", "playlist API request failed", err)
		return nil, &DataSourceError{Source: r.Name(), Op: "fetch", Err: err}
	}
	r.breaker.RecordSuccess()
	r.logger.InfoWithOperation("remote_fetch", fmt.Sprintf("fetched %d playlists", len(cat)))
	return cat, nil
}

func (r *Remote) fetch(ctx context.Context, endpoint string) (Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return DecodeCatalog(resp.Body)
}
