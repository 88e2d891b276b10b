// Package metrics records operational metrics for the ingestion pipeline
// behind a small pluggable Backend.
//
// The global backend defaults to a no-op, so instrumentation is always safe to
// call. Concrete systems (Prometheus Pushgateway, Datadog) live in
// subpackages and are installed by main via SetBackend.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal       = "ingest_step_total"
	StepDuration    = "ingest_step_duration_seconds"
	RecordsTotal    = "ingest_records_total"
	CommitsTotal    = "ingest_commits_total"
	APIRequests     = "ingest_api_requests_total"
	APIRequestTimes = "ingest_api_request_duration_seconds"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep counts one pipeline stage (poll, read, infer, load, enrich) and
// its duration, labelled by outcome.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err),
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter. Kinds in use: "read",
// "skipped", "inserted", "rejected", "failed", "enriched".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordCommits counts transaction commits made by the loader.
func RecordCommits(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(CommitsTotal, float64(delta), Labels{
		"job": job,
	})
}

// RecordAPICall counts one outbound HTTP call to a named upstream.
func RecordAPICall(api string, err error, d time.Duration) {
	lbls := Labels{
		"api":    api,
		"status": status(err),
	}
	backend.IncCounter(APIRequests, 1, lbls)
	backend.ObserveHistogram(APIRequestTimes, d.Seconds(), lbls)
}
