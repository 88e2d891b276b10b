package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"communitysolar/internal/metrics"
	"communitysolar/internal/schema"
	"communitysolar/internal/table"
)

// LoadOptions tunes a single Load call. The zero value commits once at the
// end and logs progress every 1000 rows.
type LoadOptions struct {
	// CommitEvery commits after this many attempted rows. Zero means one
	// commit at the end, so a crash mid-load loses the whole table's rows.
	CommitEvery int

	// ProgressEvery logs a progress line every N attempted rows.
	ProgressEvery int

	// Job labels metrics; defaults to the table name.
	Job string

	// OnFailure, when set, is called for every rejected row in addition to
	// it being recorded in the report.
	OnFailure func(RowFailure)
}

// RowFailure is one rejected row.
type RowFailure struct {
	Index  int
	Values []any
	Err    error
}

// LoadReport summarizes a Load call.
type LoadReport struct {
	Table     string
	Attempted int
	Committed int
	Failures  []RowFailure
	Elapsed   time.Duration
}

// Load inserts every row of t into the table described by sch, in source
// order, one parameterized insert per row. A row that does not fit (wrong
// width, bad value, constraint violation) is recorded in the report and the
// load continues. Only errors the dialect classifies as fatal stop it; rows
// of the current transaction are then lost.
//
// Row values are matched positionally against sch.DataColumns(); the caller
// is responsible for t.Columns naming the same columns in the same order.
func Load(ctx context.Context, s *Store, sch schema.Schema, t *table.Table, opt LoadOptions) (LoadReport, error) {
	if opt.ProgressEvery <= 0 {
		opt.ProgressEvery = 1000
	}
	if opt.Job == "" {
		opt.Job = sch.Table
	}

	cols := sch.DataColumns()
	names := sch.DataColumnNames()
	rep := LoadReport{Table: sch.Table}
	start := time.Now()

	if len(cols) == 0 {
		return rep, fmt.Errorf("storage: load %s: schema has no data columns", sch.Table)
	}
	if t.Len() == 0 {
		log.Printf("loader: table=%s no rows to load", sch.Table)
		return rep, nil
	}

	b := &batch{s: s, query: s.db.Rebind(InsertSQL(s.d, sch.Table, names))}
	if err := b.begin(ctx); err != nil {
		return rep, err
	}
	defer b.abort()

	pending := 0
	for i, row := range t.Rows {
		if err := ctx.Err(); err != nil {
			return finish(rep, start), fmt.Errorf("storage: load %s: %w", sch.Table, err)
		}
		rep.Attempted++

		err := b.insertRow(ctx, sch.Table, i, cols, row)
		switch {
		case err == nil:
			pending++
		case IsFatal(s.d, err) || isTxError(err):
			log.Printf("loader: table=%s fatal error at row %d: %v", sch.Table, i, err)
			metrics.RecordRow(opt.Job, "failed", 1)
			return finish(rep, start), fmt.Errorf("storage: load %s: row %d: %w", sch.Table, i, err)
		default:
			f := RowFailure{Index: i, Values: row, Err: err}
			rep.Failures = append(rep.Failures, f)
			log.Printf("loader: table=%s row %d rejected: %v values=%v", sch.Table, i, err, []any(row))
			if opt.OnFailure != nil {
				opt.OnFailure(f)
			}
		}

		if opt.CommitEvery > 0 && rep.Attempted%opt.CommitEvery == 0 {
			if err := b.commit(); err != nil {
				return finish(rep, start), err
			}
			rep.Committed += pending
			pending = 0
			metrics.RecordCommits(opt.Job, 1)
			if err := b.begin(ctx); err != nil {
				return finish(rep, start), err
			}
		}
		if rep.Attempted%opt.ProgressEvery == 0 {
			log.Printf("loader: table=%s progress attempted=%d/%d failures=%d",
				sch.Table, rep.Attempted, t.Len(), len(rep.Failures))
		}
	}

	if err := b.commit(); err != nil {
		return finish(rep, start), err
	}
	rep.Committed += pending
	metrics.RecordCommits(opt.Job, 1)
	metrics.RecordRow(opt.Job, "inserted", int64(rep.Committed))
	metrics.RecordRow(opt.Job, "rejected", int64(len(rep.Failures)))

	rep = finish(rep, start)
	log.Printf("loader: table=%s done attempted=%d committed=%d failures=%d elapsed=%s",
		sch.Table, rep.Attempted, rep.Committed, len(rep.Failures), rep.Elapsed.Truncate(time.Millisecond))
	return rep, nil
}

func finish(rep LoadReport, start time.Time) LoadReport {
	rep.Elapsed = time.Since(start)
	return rep
}

// batch is one open transaction with its prepared insert.
type batch struct {
	s     *Store
	query string
	tx    *sqlx.Tx
	stmt  *sqlx.Stmt
}

func (b *batch) begin(ctx context.Context) error {
	tx, err := b.s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	stmt, err := tx.PreparexContext(ctx, b.query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("storage: prepare insert: %w", err)
	}
	b.tx, b.stmt = tx, stmt
	return nil
}

func (b *batch) commit() error {
	_ = b.stmt.Close()
	err := b.tx.Commit()
	b.tx, b.stmt = nil, nil
	if err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

func (b *batch) abort() {
	if b.tx == nil {
		return
	}
	_ = b.stmt.Close()
	_ = b.tx.Rollback()
	b.tx, b.stmt = nil, nil
}

// insertRow coerces and inserts one row. Width and coercion problems never
// reach the store.
func (b *batch) insertRow(ctx context.Context, tableName string, i int, cols []schema.Column, row table.Row) error {
	if len(row) != len(cols) {
		return &SchemaMismatchError{Table: tableName, Row: i, Want: len(cols), Got: len(row)}
	}
	args := make([]any, len(cols))
	for j, c := range cols {
		v, err := Coerce(row[j], c.Type)
		if err != nil {
			return &RowInsertError{Table: tableName, Row: i, Column: c.Name, Values: row, Err: err}
		}
		args[j] = v
	}

	if !b.s.d.Savepoints() {
		if _, err := b.stmt.ExecContext(ctx, args...); err != nil {
			return b.classify(tableName, i, row, err)
		}
		return nil
	}

	if _, err := b.tx.ExecContext(ctx, "SAVEPOINT load_row"); err != nil {
		return &txError{op: "savepoint", err: err}
	}
	if _, err := b.stmt.ExecContext(ctx, args...); err != nil {
		if _, rbErr := b.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT load_row"); rbErr != nil {
			return &txError{op: "rollback to savepoint", err: rbErr}
		}
		return b.classify(tableName, i, row, err)
	}
	if _, err := b.tx.ExecContext(ctx, "RELEASE SAVEPOINT load_row"); err != nil {
		return &txError{op: "release savepoint", err: err}
	}
	return nil
}

func (b *batch) classify(tableName string, i int, row table.Row, err error) error {
	if IsFatal(b.s.d, err) {
		return err
	}
	return &RowInsertError{Table: tableName, Row: i, Values: row, Err: err}
}

// txError means the transaction itself is in an unknown state.
type txError struct {
	op  string
	err error
}

func (e *txError) Error() string { return "storage: " + e.op + ": " + e.err.Error() }
func (e *txError) Unwrap() error { return e.err }

func isTxError(err error) bool {
	var te *txError
	return errors.As(err, &te)
}
