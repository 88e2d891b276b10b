package httpds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes caps how much of a response Fetch reads into memory.
const MaxBodyBytes = 64 << 20

// Fetch GETs url and returns the body and status code. A non-2xx status is
// not an error here; callers decide what it means. err is a *TransportError
// (or a ctx error) only when no complete response was read.
func (c *Client) Fetch(ctx context.Context, url string, headers http.Header) ([]byte, int, error) {
	resp, err := c.Get(ctx, url, headers)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, NewTransportError(url, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	return body, resp.StatusCode, nil
}

// GetJSON GETs url, requires a 2xx status and decodes the body into v. The
// raw body is returned as well so callers can archive it.
func (c *Client) GetJSON(ctx context.Context, url string, v any) ([]byte, error) {
	body, status, err := c.Fetch(ctx, url, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return body, NewTransportError(url, status, fmt.Errorf("unexpected status"))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return body, NewTransportError(url, status, fmt.Errorf("decode json: %w", err))
	}
	return body, nil
}

// Download GETs url and streams the body into w, returning bytes written.
// A non-2xx status is a *TransportError.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	resp, err := c.Get(ctx, url, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, NewTransportError(url, resp.StatusCode, fmt.Errorf("unexpected status"))
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, NewTransportError(url, resp.StatusCode, fmt.Errorf("copy body: %w", err))
	}
	return n, nil
}
