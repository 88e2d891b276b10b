package poller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"communitysolar/internal/datasource/httpds"
)

// statusServer answers the n-th status request with statuses[n], repeating
// the last one.
func statusServer(t *testing.T, statuses ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/result.csv" {
			_, _ = w.Write([]byte("latitude,longitude\n39.7,-86.1\n"))
			return
		}
		n := int(calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		fmt.Fprintf(w, `{"status":%q,"resultUrl":"%s/result.csv"}`, statuses[n], srv.URL)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestPoller(opt Options) (*Poller, *[]time.Duration) {
	var slept []time.Duration
	p := New(nil, opt)
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func TestAwaitCompletionAfterPending(t *testing.T) {
	t.Parallel()

	srv, calls := statusServer(t, "Pending", "Pending", "Completed")
	p, slept := newTestPoller(Options{})

	got, err := p.AwaitCompletion(context.Background(), Job{StatusURL: srv.URL + "/status"})
	if err != nil {
		t.Fatalf("AwaitCompletion() error = %v", err)
	}
	if got != srv.URL+"/result.csv" {
		t.Fatalf("result url = %q", got)
	}
	if calls.Load() != 3 {
		t.Fatalf("status calls = %d, want 3", calls.Load())
	}
	if len(*slept) != 2 || (*slept)[0] != DefaultInterval {
		t.Fatalf("sleeps = %v, want two of %v", *slept, DefaultInterval)
	}
}

func TestAwaitCompletionMaxAttempts(t *testing.T) {
	t.Parallel()

	srv, calls := statusServer(t, "Processing")
	p, _ := newTestPoller(Options{MaxAttempts: 4})

	_, err := p.AwaitCompletion(context.Background(), Job{StatusURL: srv.URL})
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TimeoutError", err)
	}
	if te.Attempts != 4 || te.Last != "Processing" || calls.Load() != 4 {
		t.Fatalf("TimeoutError = %+v, calls = %d", te, calls.Load())
	}
}

func TestAwaitCompletionFailedStatus(t *testing.T) {
	t.Parallel()

	srv, _ := statusServer(t, "Failed", "Completed")

	strict, _ := newTestPoller(Options{StopOnFailed: true})
	if _, err := strict.AwaitCompletion(context.Background(), Job{StatusURL: srv.URL}); !errors.Is(err, ErrJobFailed) {
		t.Fatalf("strict error = %v, want ErrJobFailed", err)
	}

	srv2, calls := statusServer(t, "Failed", "Completed")
	lenient, _ := newTestPoller(Options{})
	if _, err := lenient.AwaitCompletion(context.Background(), Job{StatusURL: srv2.URL}); err != nil {
		t.Fatalf("lenient error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("lenient calls = %d, want 2", calls.Load())
	}
}

func TestAwaitCompletionTransportErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) }},
		{"no result url", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"status":"Completed"}`)) }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			p, _ := newTestPoller(Options{})
			_, err := p.AwaitCompletion(context.Background(), Job{StatusURL: srv.URL})
			var te *httpds.TransportError
			if !errors.As(err, &te) {
				t.Fatalf("error = %v, want *httpds.TransportError", err)
			}
			if calls.Load() != 1 {
				t.Fatalf("calls = %d, want 1 (no retry)", calls.Load())
			}
		})
	}
}

func TestAwaitCompletionCanceledDuringSleep(t *testing.T) {
	t.Parallel()

	srv, _ := statusServer(t, "Pending")
	p := New(nil, Options{Interval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.AwaitCompletion(ctx, Job{StatusURL: srv.URL}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
}

func TestCustomInterpreter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("DONE https://example.test/export.csv"))
	}))
	defer srv.Close()

	p, _ := newTestPoller(Options{})
	got, err := p.AwaitCompletion(context.Background(), Job{
		StatusURL: srv.URL,
		Interpret: func(b []byte) (Status, error) {
			var raw, url string
			if _, err := fmt.Sscanf(string(b), "%s %s", &raw, &url); err != nil {
				return Status{}, err
			}
			return Status{State: Completed, Raw: raw, ResultURL: url}, nil
		},
	})
	if err != nil || got != "https://example.test/export.csv" {
		t.Fatalf("AwaitCompletion() = %q, %v", got, err)
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	srv, _ := statusServer(t, "Completed")
	p, _ := newTestPoller(Options{})

	var buf bytes.Buffer
	n, err := p.Fetch(context.Background(), srv.URL+"/result.csv", &buf)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if n != int64(buf.Len()) || buf.String() != "latitude,longitude\n39.7,-86.1\n" {
		t.Fatalf("Fetch() = %d, %q", n, buf.String())
	}
}

func TestStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   statusBody
		want State
	}{
		{statusBody{Status: "Completed", ResultURL: "u"}, Completed},
		{statusBody{Status: "COMPLETED"}, Completed},
		{statusBody{Status: "Failed"}, Failed},
		{statusBody{Status: " error "}, Failed},
		{statusBody{Status: "Pending"}, Pending},
		{statusBody{}, Pending},
	}
	for _, tt := range tests {
		if got := tt.in.status(); got.State != tt.want || got.Raw != tt.in.Status || got.ResultURL != tt.in.ResultURL {
			t.Errorf("%+v.status() = %+v, want state %v", tt.in, got, tt.want)
		}
	}
}

func TestAwaitCompletionRedactsKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p, _ := newTestPoller(Options{})
	_, err := p.AwaitCompletion(context.Background(), Job{StatusURL: srv.URL + "/jobs/1?token=hunter2"})
	var te *httpds.TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusForbidden {
		t.Fatalf("error = %v, want *httpds.TransportError with 403", err)
	}
	if strings.Contains(err.Error(), "hunter2") {
		t.Fatalf("error leaks token: %v", err)
	}
}
