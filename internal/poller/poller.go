// Package poller waits for an asynchronous export job to complete and then
// downloads its result artifact.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"communitysolar/internal/datasource/httpds"
)

// DefaultInterval is the wait between status checks.
const DefaultInterval = 5 * time.Second

// State is the interpreted job state.
type State int

const (
	Pending State = iota
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Status is one interpreted status response.
type Status struct {
	State     State
	Raw       string
	ResultURL string
}

// Job names the status endpoint and how to read it. A nil Interpret reads
// the export service's {"status", "resultUrl"} JSON document.
type Job struct {
	StatusURL string
	Interpret func(body []byte) (Status, error)
}

// Options tunes polling. Zero values poll every DefaultInterval forever.
type Options struct {
	Interval time.Duration

	// MaxAttempts bounds status requests. Zero means unlimited.
	MaxAttempts int

	// StopOnFailed makes a failed status terminal (ErrJobFailed). Otherwise
	// it is retried like pending.
	StopOnFailed bool
}

// ErrJobFailed is returned when the job reports failure and StopOnFailed is set.
var ErrJobFailed = errors.New("poller: job failed")

// TimeoutError is returned when MaxAttempts status checks never saw completion.
type TimeoutError struct {
	URL      string
	Attempts int
	Last     string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("poller: job %s not completed after %d attempts (last status %q)", e.URL, e.Attempts, e.Last)
}

// Poller polls job status endpoints through an httpds.Client.
type Poller struct {
	client *httpds.Client
	opt    Options

	// sleep is injectable so tests do not wait.
	sleep func(context.Context, time.Duration) error
}

// New returns a Poller. A nil client gets httpds defaults.
func New(client *httpds.Client, opt Options) *Poller {
	if client == nil {
		client = httpds.NewClient(httpds.Config{Name: "poller"})
	}
	if opt.Interval <= 0 {
		opt.Interval = DefaultInterval
	}
	if opt.MaxAttempts < 0 {
		opt.MaxAttempts = 0
	}
	return &Poller{client: client, opt: opt, sleep: httpds.SleepContext}
}

// AwaitCompletion requests job.StatusURL until the job completes and returns
// its result URL. Transport failures (including non-2xx statuses and
// unreadable bodies) are returned as *httpds.TransportError without retry;
// the interval sleep honours ctx.
func (p *Poller) AwaitCompletion(ctx context.Context, job Job) (string, error) {
	if job.StatusURL == "" {
		return "", fmt.Errorf("poller: status url must not be empty")
	}

	var last string
	for attempt := 1; ; attempt++ {
		st, err := p.check(ctx, job)
		if err != nil {
			return "", err
		}
		last = st.Raw

		switch st.State {
		case Completed:
			if st.ResultURL == "" {
				return "", httpds.NewTransportError(job.StatusURL, 0, errors.New("completed without result url"))
			}
			log.Printf("poller: job=%s status=%s attempt=%d result=%s", job.StatusURL, st.Raw, attempt, st.ResultURL)
			return st.ResultURL, nil
		case Failed:
			if p.opt.StopOnFailed {
				return "", fmt.Errorf("%w: status %q", ErrJobFailed, st.Raw)
			}
		}

		if p.opt.MaxAttempts > 0 && attempt >= p.opt.MaxAttempts {
			return "", &TimeoutError{URL: job.StatusURL, Attempts: attempt, Last: last}
		}
		log.Printf("poller: job=%s status=%s attempt=%d; retrying in %s", job.StatusURL, st.Raw, attempt, p.opt.Interval)
		if err := p.sleep(ctx, p.opt.Interval); err != nil {
			return "", err
		}
	}
}

// check makes one status request. Without an interpreter the body is
// decoded as the export service's JSON status document.
func (p *Poller) check(ctx context.Context, job Job) (Status, error) {
	if job.Interpret == nil {
		var b statusBody
		if _, err := p.client.GetJSON(ctx, job.StatusURL, &b); err != nil {
			return Status{}, err
		}
		return b.status(), nil
	}

	body, code, err := p.client.Fetch(ctx, job.StatusURL, nil)
	if err != nil {
		return Status{}, err
	}
	if code < 200 || code > 299 {
		return Status{}, httpds.NewTransportError(job.StatusURL, code, errors.New("status request failed"))
	}
	st, err := job.Interpret(body)
	if err != nil {
		return Status{}, httpds.NewTransportError(job.StatusURL, code, err)
	}
	return st, nil
}

// Fetch downloads the completed job's artifact into w.
func (p *Poller) Fetch(ctx context.Context, resultURL string, w io.Writer) (int64, error) {
	n, err := p.client.Download(ctx, resultURL, w)
	if err != nil {
		return n, err
	}
	log.Printf("poller: downloaded %d bytes from %s", n, resultURL)
	return n, nil
}

// statusBody is {"status": "...", "resultUrl": "..."}.
type statusBody struct {
	Status    string `json:"status"`
	ResultURL string `json:"resultUrl"`
}

// status classifies the document: "Completed" is completed and "Failed" or
// "Error" failed, case-insensitively; anything else, including a missing
// status, is pending.
func (b statusBody) status() Status {
	st := Status{Raw: b.Status, ResultURL: b.ResultURL}
	switch strings.ToLower(strings.TrimSpace(b.Status)) {
	case "completed":
		st.State = Completed
	case "failed", "error":
		st.State = Failed
	default:
		st.State = Pending
	}
	return st
}
