// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A batch run has no long-lived HTTP endpoint to scrape, so collected metrics
// are pushed to a Pushgateway on Flush. All Prometheus-specific dependencies
// stay in this package.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"communitysolar/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec
	stepDuration *prometheus.SummaryVec

	recordCounter *prometheus.CounterVec // labels: dataset, kind
	commitCounter *prometheus.CounterVec // labels: dataset

	apiCounter  *prometheus.CounterVec
	apiDuration *prometheus.SummaryVec
}

var objectives = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" grouping key; defaults to "solarload".
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "solarload"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline stage executions by dataset, step and status.",
		}, []string{"dataset", "step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of pipeline stages in seconds.",
			Objectives: objectives,
		}, []string{"dataset", "step", "status"}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Record-level counts per dataset and kind (read, inserted, rejected, ...).",
		}, []string{"dataset", "kind"}),
		commitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.CommitsTotal,
			Help: "Loader transaction commits per dataset.",
		}, []string{"dataset"}),
		apiCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.APIRequests,
			Help: "Outbound API requests by upstream and status.",
		}, []string{"api", "status"}),
		apiDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.APIRequestTimes,
			Help:       "Outbound API request latency in seconds.",
			Objectives: objectives,
		}, []string{"api", "status"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":   b.stepCounter,
		"step summary":   b.stepDuration,
		"record counter": b.recordCounter,
		"commit counter": b.commitCounter,
		"api counter":    b.apiCounter,
		"api summary":    b.apiDuration,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

// IncCounter routes a counter update to its collector. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["job"], labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RecordsTotal:
		if b.recordCounter != nil {
			b.recordCounter.WithLabelValues(labels["job"], labels["kind"]).Add(delta)
		}
	case metrics.CommitsTotal:
		if b.commitCounter != nil {
			b.commitCounter.WithLabelValues(labels["job"]).Add(delta)
		}
	case metrics.APIRequests:
		if b.apiCounter != nil {
			b.apiCounter.WithLabelValues(labels["api"], labels["status"]).Add(delta)
		}
	}
}

// ObserveHistogram records a duration on the matching summary.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		if b.stepDuration != nil {
			b.stepDuration.WithLabelValues(labels["job"], labels["step"], labels["status"]).Observe(value)
		}
	case metrics.APIRequestTimes:
		if b.apiDuration != nil {
			b.apiDuration.WithLabelValues(labels["api"], labels["status"]).Observe(value)
		}
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}
