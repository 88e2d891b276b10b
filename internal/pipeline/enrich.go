package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"communitysolar/internal/config"
	"communitysolar/internal/enrich"
	"communitysolar/internal/metrics"
	"communitysolar/internal/storage"
)

// enrich ensures the enrichment table, selects candidate locations and runs
// the enricher for each, paced by the limiter. Per-record failures are
// logged and counted; only ctx cancellation and setup errors stop the pass.
func (d *Driver) enrich(ctx context.Context, ds config.Dataset) (Result, error) {
	if d.deps.Enricher == nil {
		log.Printf("pipeline: dataset=%s has no enrichment API configured; skipping", ds.Name)
		return Result{Skipped: true}, nil
	}
	if err := step(ds.Name, "ensure", func() error {
		return d.store.EnsureTable(ctx, enrich.TableSchema(ds.Table, ds.IDColumn))
	}); err != nil {
		return Result{}, fmt.Errorf("pipeline: %s: %w", ds.Name, err)
	}

	var cands []enrich.Candidate
	err := step(ds.Name, "select", func() error {
		var err error
		cands, err = d.candidates(ctx, ds)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %s: select candidates: %w", ds.Name, err)
	}
	log.Printf("pipeline: dataset=%s candidates=%d from %s where %s=%v", ds.Name, len(cands), ds.SourceTable, d.opt.FilterColumn, d.opt.FilterValue)

	var res Result
	for _, c := range cands {
		if d.deps.Limiter != nil {
			if err := d.deps.Limiter.Wait(ctx); err != nil {
				return res, fmt.Errorf("pipeline: %s: %w", ds.Name, err)
			}
		}
		res.Attempted++
		if _, err := d.deps.Enricher.Enrich(ctx, c); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, fmt.Errorf("pipeline: %s: %w", ds.Name, ctxErr)
			}
			res.Failed++
			metrics.RecordRow(ds.Name, "failed", 1)
			log.Printf("pipeline: dataset=%s location=%d %s: %v", ds.Name, c.ID, failureKind(err), err)
			continue
		}
		res.Committed++
		metrics.RecordRow(ds.Name, "inserted", 1)
	}
	return res, nil
}

func (d *Driver) candidates(ctx context.Context, ds config.Dataset) ([]enrich.Candidate, error) {
	q := d.store.Dialect().Quote
	query := fmt.Sprintf("SELECT %s AS id, %s AS latitude, %s AS longitude FROM %s WHERE %s = :value AND %s IS NOT NULL AND %s IS NOT NULL ORDER BY %s",
		q(ds.SourceIDColumn), q("latitude"), q("longitude"), q(ds.SourceTable),
		q(d.opt.FilterColumn), q("latitude"), q("longitude"), q(ds.SourceIDColumn))
	return storage.SelectLimit[enrich.Candidate](ctx, d.store, query, map[string]any{"value": d.opt.FilterValue}, d.opt.EnrichLimit)
}

func failureKind(err error) string {
	var fe *enrich.FetchError
	var pe *enrich.ParseError
	switch {
	case errors.As(err, &fe):
		return "fetch failed"
	case errors.As(err, &pe):
		return "unusable response"
	default:
		return "failed"
	}
}
