package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

var (
	// ErrFetchFailed is matched by every error returned from a failed fetch.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrLockTimeout is returned when a cache entry lock could not be acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for cache lock")
)

// Error is the typed outcome of a failed fetch.
type Error struct {
	URL        string
	Attempts   int
	StatusCode int
	// Permanent is set for client errors (4xx) which are never retried.
	Permanent bool
	Err       error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed after %d attempt(s): status %d", e.URL, e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrFetchFailed }

// ClientConfig configures a Client.
type ClientConfig struct {
	MaxRetries        int
	RetryDelay        time.Duration
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Headers           map[string]string
}

// Client performs GET requests with bounded retries, exponential backoff and rate limiting.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        ClientConfig
	log        *log.Logger
}

// NewClient creates a new Client. Zero values in cfg fall back to defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		cfg:        cfg,
		log:        log.Default().WithPrefix("fetch"),
	}
}

// Get fetches url and returns the response body.
// 4xx responses abort immediately, everything else is retried up to MaxRetries times.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	fetchErr := &Error{URL: url}

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay * time.Duration(1<<(attempt-1))
			c.log.Debug("retrying request", "url", url, "attempt", attempt+1, "delay", delay)
			if err := sleep(ctx, delay); err != nil {
				fetchErr.Err = err
				return nil, fetchErr
			}
		}

		fetchErr.Attempts = attempt + 1
		body, status, err := c.do(ctx, url)
		if err == nil {
			return body, nil
		}

		fetchErr.Err = err
		fetchErr.StatusCode = status
		if ctx.Err() != nil {
			return nil, fetchErr
		}
		if status >= 400 && status < 500 {
			fetchErr.Permanent = true
			c.log.Warn("client error, not retrying", "url", url, "status", status)
			return nil, fetchErr
		}
		c.log.Warn("request failed", "url", url, "attempt", attempt+1, "status", status, "error", err)
	}

	return nil, fetchErr
}

func (c *Client) do(ctx context.Context, url string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
