// Package pipeline sequences the ingestion run: the export dataset (poll,
// download, project, load), the partitioned dataset (tag, hand off, load)
// and the enrichment pass keyed by loaded locations.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"communitysolar/internal/config"
	"communitysolar/internal/enrich"
	"communitysolar/internal/metrics"
	"communitysolar/internal/poller"
	"communitysolar/internal/storage"
)

// Poller waits for and downloads export jobs. *poller.Poller satisfies it.
type Poller interface {
	AwaitCompletion(ctx context.Context, job poller.Job) (string, error)
	Fetch(ctx context.Context, resultURL string, w io.Writer) (int64, error)
}

// Enricher fetches and persists one enrichment record. *enrich.Fetcher
// satisfies it.
type Enricher interface {
	Enrich(ctx context.Context, c enrich.Candidate) (enrich.Record, error)
}

// Deps are the driver's remote collaborators. A nil Poller skips export
// datasets and a nil Enricher skips enrichment; a nil Limiter does not
// throttle.
type Deps struct {
	Poller   Poller
	Enricher Enricher
	Limiter  *rate.Limiter
}

// Options are the run settings.
type Options struct {
	Datasets []config.Dataset

	WorkDir    string
	RejectsDir string

	PollTimeout time.Duration

	FilterColumn string
	FilterValue  any
	EnrichLimit  int

	CommitEvery   int
	ProgressEvery int
}

// Driver runs datasets against one open store. Not safe for concurrent use.
type Driver struct {
	store *storage.Store
	deps  Deps
	opt   Options
	runID string
}

// New returns a Driver with a fresh run id.
func New(store *storage.Store, deps Deps, opt Options) *Driver {
	if opt.WorkDir == "" {
		opt.WorkDir = "."
	}
	if opt.Datasets == nil {
		opt.Datasets = config.DefaultDatasets()
	}
	return &Driver{store: store, deps: deps, opt: opt, runID: uuid.NewString()}
}

// RunID identifies this driver's log lines and summary.
func (d *Driver) RunID() string { return d.runID }

// Result is the outcome of one dataset.
type Result struct {
	Dataset string
	Table   string

	// Skipped is set when the dataset had no source configured.
	Skipped bool

	ReaderSkipped int
	Attempted     int
	Committed     int
	Failed        int
	Elapsed       time.Duration
}

// Summary is the outcome of a run.
type Summary struct {
	RunID   string
	Results []Result
}

// Failed sums row and record failures over every dataset.
func (s Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		n += r.Failed
	}
	return n
}

// Run processes every dataset in order. Row and record failures are counted
// in the summary; setup failures stop the run and are returned with the
// partial summary.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	return d.run(ctx, func(config.Dataset) bool { return true })
}

// EnrichOnly runs just the enrichment datasets.
func (d *Driver) EnrichOnly(ctx context.Context) (Summary, error) {
	return d.run(ctx, func(ds config.Dataset) bool { return ds.Kind == config.KindEnrichment })
}

func (d *Driver) run(ctx context.Context, include func(config.Dataset) bool) (Summary, error) {
	sum := Summary{RunID: d.runID}
	start := time.Now()
	log.Printf("pipeline: run=%s start datasets=%d", d.runID, len(d.opt.Datasets))

	for _, ds := range d.opt.Datasets {
		if !include(ds) {
			continue
		}
		var (
			res Result
			err error
		)
		t0 := time.Now()
		switch ds.Kind {
		case config.KindExport:
			res, err = d.loadExport(ctx, ds)
		case config.KindPartitions:
			res, err = d.loadPartitions(ctx, ds)
		case config.KindEnrichment:
			res, err = d.enrich(ctx, ds)
		default:
			err = fmt.Errorf("pipeline: dataset %s: unknown kind %q", ds.Name, ds.Kind)
		}
		res.Dataset, res.Table = ds.Name, ds.Table
		res.Elapsed = time.Since(t0)
		sum.Results = append(sum.Results, res)
		metrics.RecordStep(ds.Name, "dataset", err, res.Elapsed)
		if err != nil {
			log.Printf("pipeline: run=%s dataset=%s failed: %v", d.runID, ds.Name, err)
			return sum, err
		}
		if !res.Skipped {
			log.Printf("pipeline: run=%s dataset=%s table=%s attempted=%d committed=%d failed=%d reader_skipped=%d elapsed=%s",
				d.runID, ds.Name, ds.Table, res.Attempted, res.Committed, res.Failed, res.ReaderSkipped, res.Elapsed.Round(time.Millisecond))
		}
	}

	log.Printf("pipeline: run=%s done failed=%d elapsed=%s", d.runID, sum.Failed(), time.Since(start).Round(time.Millisecond))
	return sum, nil
}

// Reset drops every managed table, enrichment tables first since they are
// keyed by the others.
func (d *Driver) Reset(ctx context.Context) error {
	var first, rest []string
	for _, ds := range d.opt.Datasets {
		if ds.Kind == config.KindEnrichment {
			first = append(first, ds.Table)
		} else {
			rest = append(rest, ds.Table)
		}
	}
	start := time.Now()
	err := d.store.Reset(ctx, append(first, rest...)...)
	metrics.RecordStep("reset", "drop", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("pipeline: reset: %w", err)
	}
	log.Printf("pipeline: run=%s reset tables=%d", d.runID, len(first)+len(rest))
	return nil
}

// Structure writes every table's columns to w.
func (d *Driver) Structure(ctx context.Context, w io.Writer) error {
	tables, err := d.store.Describe(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: structure: %w", err)
	}
	return storage.WriteStructure(w, tables)
}

// step times fn and reports it under job/name.
func step(job, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(job, name, err, time.Since(start))
	return err
}
