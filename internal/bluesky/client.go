// Package bluesky implements the read-side AT Protocol gateway the crawler
// consumes: single-post fetch, paginated quote listing, and handle
// resolution, with optional app-password authentication.
//
// All calls are rate limited and retried with jittered backoff. A post the
// remote reports missing surfaces as model.ErrNotFound so traversals can
// skip it and continue.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bangertree/bangertree/internal/model"
	"github.com/bangertree/bangertree/internal/telemetry"
)

const (
	defaultAPIBase  = "https://public.api.bsky.app"
	defaultAuthBase = "https://bsky.social"
	defaultPageSize = 100
)

// Config carries every knob the gateway needs. It is built once from the
// loaded configuration and passed in; the client keeps no ambient state.
type Config struct {
	APIBase  string
	AuthBase string

	// Handle and AppPassword are optional. Without them the gateway runs
	// unauthenticated and is subject to the public rate limits.
	Handle      string
	AppPassword string

	PageSize int

	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// RPS <= 0 disables rate limiting.
	RPS   float64
	Burst int
}

// Client is the API gateway. It is safe for use from a single crawl
// goroutine; the handle cache has its own lock so resolution can be shared.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      retryPolicy
	logger     *zap.Logger

	accessJwt string

	mu       sync.Mutex
	didCache map[string]string
}

// NewClient builds a gateway from cfg. Zero-valued fields fall back to the
// public Bluesky endpoints and conservative defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.AuthBase == "" {
		cfg.AuthBase = defaultAuthBase
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		retry:      newRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
		logger:     logger,
		didCache:   make(map[string]string),
	}
}

// HasCredentials reports whether the config carries a handle/app-password
// pair. Callers use this to decide whether Login is worth attempting.
func (c *Client) HasCredentials() bool {
	return c.cfg.Handle != "" && c.cfg.AppPassword != ""
}

// Login establishes an authenticated session using the configured app
// password. The crawler works without it, just under tighter rate limits.
func (c *Client) Login(ctx context.Context) error {
	if !c.HasCredentials() {
		return fmt.Errorf("no credentials configured")
	}

	payload, err := json.Marshal(map[string]string{
		"identifier": c.cfg.Handle,
		"password":   c.cfg.AppPassword,
	})
	if err != nil {
		return fmt.Errorf("marshal session request: %w", err)
	}

	endpoint := c.cfg.AuthBase + "/xrpc/com.atproto.server.createSession"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read session response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("create session failed (status %d): %s", resp.StatusCode, body)
	}

	var session struct {
		AccessJwt string `json:"accessJwt"`
		Handle    string `json:"handle"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return fmt.Errorf("unmarshal session response: %w", err)
	}

	c.accessJwt = session.AccessJwt
	c.logger.Info("authenticated with Bluesky", zap.String("handle", session.Handle))
	return nil
}

// GetPost fetches a single post by AT URI via getPostThread with depth 0.
// A deleted or blocked post returns model.ErrNotFound.
func (c *Client) GetPost(ctx context.Context, uri string) (model.Post, error) {
	params := url.Values{
		"uri":          {uri},
		"depth":        {"0"},
		"parentHeight": {"0"},
	}

	var resp struct {
		Thread struct {
			Type string    `json:"$type"`
			Post *postView `json:"post"`
		} `json:"thread"`
	}
	if err := c.get(ctx, "app.bsky.feed.getPostThread", params, &resp); err != nil {
		return model.Post{}, err
	}

	if resp.Thread.Post == nil ||
		strings.HasSuffix(resp.Thread.Type, "#notFoundPost") ||
		strings.HasSuffix(resp.Thread.Type, "#blockedPost") {
		return model.Post{}, fmt.Errorf("get post %s: %w", uri, model.ErrNotFound)
	}

	return resp.Thread.Post.toPost(time.Now().UTC()), nil
}

// GetQuotes returns one page of posts quoting uri, plus the continuation
// cursor. An empty cursor in the result signals the end of pagination.
// getQuotes requires the DID form of the URI, so a handle-form URI is
// resolved first.
func (c *Client) GetQuotes(ctx context.Context, uri, cursor string) ([]model.Post, string, error) {
	didURI, err := c.ResolveURI(ctx, uri)
	if err != nil {
		return nil, "", fmt.Errorf("resolve quote target: %w", err)
	}

	params := url.Values{
		"uri":   {didURI},
		"limit": {strconv.Itoa(c.cfg.PageSize)},
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var resp struct {
		Posts  []postView `json:"posts"`
		Cursor string     `json:"cursor"`
	}
	if err := c.get(ctx, "app.bsky.feed.getQuotes", params, &resp); err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	posts := make([]model.Post, 0, len(resp.Posts))
	for _, v := range resp.Posts {
		posts = append(posts, v.toPost(now))
	}
	return posts, resp.Cursor, nil
}

// ResolveHandle converts a handle to its DID, memoizing within the process.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	c.mu.Lock()
	did, ok := c.didCache[handle]
	c.mu.Unlock()
	if ok {
		return did, nil
	}

	var resp struct {
		DID string `json:"did"`
	}
	params := url.Values{"handle": {handle}}
	if err := c.get(ctx, "com.atproto.identity.resolveHandle", params, &resp); err != nil {
		return "", fmt.Errorf("resolve handle %s: %w", handle, err)
	}
	if resp.DID == "" {
		return "", fmt.Errorf("resolve handle %s: empty did", handle)
	}

	c.mu.Lock()
	c.didCache[handle] = resp.DID
	c.mu.Unlock()
	return resp.DID, nil
}

// ResolveURI rewrites a handle-form AT URI to its DID form. DID-form URIs
// pass through without a network call.
func (c *Client) ResolveURI(ctx context.Context, uri string) (string, error) {
	if isDIDForm(uri) {
		return uri, nil
	}
	authority, rest, err := splitATURI(uri)
	if err != nil {
		return "", err
	}
	did, err := c.ResolveHandle(ctx, authority)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("at://%s/%s", did, rest), nil
}

// get performs a rate-limited, retried GET against the public xrpc API and
// decodes the JSON body into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(waitStart); waited > time.Millisecond {
		telemetry.ObserveRateLimitDelay(waited)
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.retry.backoff(attempt - 1)
			c.logger.Debug("retrying API call",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry wait: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = c.doGet(ctx, endpoint, params, out)
		if lastErr == nil {
			return nil
		}
		if !c.retry.shouldRetry(lastErr, attempt+1) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values, out any) error {
	reqURL := c.cfg.APIBase + "/xrpc/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.ObserveAPIRequest(endpoint, "error", time.Since(start))
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	telemetry.ObserveAPIRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal %s response: %w", endpoint, err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &transientError{status: resp.StatusCode, body: truncate(body, 200)}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", endpoint, model.ErrNotFound)
	case resp.StatusCode == http.StatusBadRequest && isNotFoundBody(body):
		return fmt.Errorf("%s: %w", endpoint, model.ErrNotFound)
	default:
		return fmt.Errorf("%s failed (status %d): %s", endpoint, resp.StatusCode, truncate(body, 200))
	}
}

// isNotFoundBody detects the xrpc error envelope for a missing record, which
// getPostThread reports as a 400 rather than a 404.
func isNotFoundBody(body []byte) bool {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return envelope.Error == "NotFound" || envelope.Error == "RecordNotFound"
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
