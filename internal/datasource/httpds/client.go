// Package httpds is the HTTP client shared by the poller, the artifact
// download and the enrichment fetcher. It adds optional retry with
// exponential backoff, context-aware waits and a TransportError type for
// failures that never produced a usable response.
//
// Retries are off by default (MaxRetries=0): every caller in this module
// owns its own retry policy, and the client only adds a transport-level one
// when configured to.
package httpds

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"communitysolar/internal/metrics"
)

// Config configures the HTTP client.
//
// Zero values are given defaults:
//   - Timeout:        30s
//   - MaxRetries:     0
//   - InitialBackoff: 200ms
//   - MaxBackoff:     5s
type Config struct {
	// Name labels outbound-call metrics, e.g. "arcgis" or "solar".
	Name string

	// Timeout is the per-request timeout applied at the http.Client level.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the initial request
	// for transport errors, 429 and 5xx.
	MaxRetries int

	// InitialBackoff is the base backoff for the first retry; each retry
	// doubles it up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// BaseHeaders are added to every request; per-request headers win.
	BaseHeaders http.Header

	// Transport is an optional custom RoundTripper.
	Transport http.RoundTripper
}

// Client wraps an http.Client with retry and backoff behavior.
type Client struct {
	name           string
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	baseHeaders    http.Header

	// wait is injectable to make tests fast and deterministic.
	wait func(context.Context, time.Duration) error
}

// NewClient constructs a Client from Config, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "http"
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicitly configurable
			},
		}
	}

	hdr := http.Header{}
	for k, vs := range cfg.BaseHeaders {
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}

	return &Client{
		name: cfg.Name,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		baseHeaders:    hdr,
		wait:           SleepContext,
	}
}

// Do sends a request, retrying transport errors and retryable statuses up to
// MaxRetries times. The body is a byte slice so it can be re-sent. A
// Retry-After header on a retried response stretches the wait, capped at
// MaxBackoff.
//
// The returned *http.Response has a non-nil Body which the caller must close.
// Any status that is not retried, 4xx included, is returned as a response,
// not an error. Errors are *TransportError unless ctx ended.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, headers http.Header) (*http.Response, error) {
	if method == "" {
		return nil, fmt.Errorf("httpds: method must not be empty")
	}
	if url == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}

	attempts := c.maxRetries + 1
	var lastErr error
	var hint time.Duration

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, NewTransportError(url, 0, err)
		}
		for k, vs := range c.baseHeaders {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Set(k, v)
			}
		}

		hint = 0
		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = NewTransportError(url, 0, err)
			metrics.RecordAPICall(c.name, lastErr, time.Since(start))
		} else {
			if !isRetryableStatus(resp.StatusCode) || attempt+1 >= attempts {
				var statusErr error
				if resp.StatusCode >= 400 {
					statusErr = fmt.Errorf("status %d", resp.StatusCode)
				}
				metrics.RecordAPICall(c.name, statusErr, time.Since(start))
				return resp, nil
			}
			hint = retryAfter(resp.Header.Get("Retry-After"), time.Now())
			_ = resp.Body.Close()
			lastErr = NewTransportError(url, resp.StatusCode, errRetryableStatus)
			metrics.RecordAPICall(c.name, lastErr, time.Since(start))
		}

		if attempt+1 >= attempts {
			return nil, lastErr
		}

		backoff := backoffDuration(c.initialBackoff, attempt, c.maxBackoff)
		if hint > backoff {
			backoff = min(hint, c.maxBackoff)
		}
		if err := c.wait(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// Get is a convenience wrapper over Do for HTTP GET. The caller must close
// the response body.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, headers)
}

// isRetryableStatus reports whether the status should trigger a retry: 5xx
// and 429 are transient, everything else is final.
func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// retryAfter parses a Retry-After value given as delay-seconds or an HTTP
// date. Unparseable or past values yield 0.
func retryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0
	}
	if d := t.Sub(now); d > 0 {
		return d
	}
	return 0
}

// backoffDuration returns initial * 2^attempt, clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt <= 0 {
		if initial > max {
			return max
		}
		return initial
	}
	d := initial << attempt
	if d > max || d <= 0 {
		return max
	}
	return d
}

// SleepContext waits for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
