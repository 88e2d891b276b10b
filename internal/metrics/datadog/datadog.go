// Package datadog forwards ingestion metrics to a DogStatsD agent.
//
// Metric names are rewritten to Datadog's dotted style
// (ingest_step_total -> ingest.step.total), counters become Count and
// durations become Distribution so percentiles aggregate across hosts.
package datadog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"

	"communitysolar/internal/metrics"
)

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address: "127.0.0.1:8125" or "unix:///path".
	Addr string

	// Namespace prefixes every metric, e.g. "solarload.".
	Namespace string

	// GlobalTags are attached to every metric, e.g. "env:prod".
	GlobalTags []string
}

// Backend implements metrics.Backend over a statsd client. The zero value
// drops everything.
type Backend struct {
	client statsd.ClientInterface
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend dials the agent. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}

	var opts []statsd.Option
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}

	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{client: c}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	// Count takes an int64; fractional deltas are truncated.
	_ = b.client.Count(metricName(name), int64(delta), tags(labels), 1)
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Distribution(metricName(name), value, tags(labels), 1)
}

// Flush drains buffered metrics and closes the client; call it once at exit.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	if err := b.client.Flush(); err != nil {
		return fmt.Errorf("datadog: flush: %w", err)
	}
	return b.client.Close()
}

func metricName(name string) string {
	return strings.ReplaceAll(name, "_", ".")
}

// tagReplacer strips characters DogStatsD uses as datagram separators.
var tagReplacer = strings.NewReplacer(",", "_", "|", "_", "#", "_")

// tags renders labels as sorted "key:value" tags.
func tags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, tagReplacer.Replace(k)+":"+tagReplacer.Replace(v))
	}
	sort.Strings(out)
	return out
}
