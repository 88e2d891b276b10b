package httpds

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var errRetryableStatus = errors.New("retryable status")

// TransportError is a network-level failure, a non-2xx status where the
// caller required success, or a body that could not be decoded. StatusCode is
// zero when no response was received or the status was not at fault.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("httpds: %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("httpds: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError builds a TransportError for rawURL. Credentials are
// masked in the URL and in any *url.Error wrapped by err, whose message
// would otherwise repeat the full request URL.
func NewTransportError(rawURL string, status int, err error) *TransportError {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redact(ue.URL)
	}
	return &TransportError{URL: redact(rawURL), StatusCode: status, Err: err}
}

// redact masks the query string's "key", "token" and "api_key" values so API
// keys never reach logs or error messages. An unparseable URL loses its whole
// query.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if base, _, found := strings.Cut(raw, "?"); found {
			return base + "?REDACTED"
		}
		return raw
	}
	q := u.Query()
	changed := false
	for _, k := range []string{"key", "token", "api_key"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
