package storage_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"communitysolar/internal/schema"
	"communitysolar/internal/storage"
	_ "communitysolar/internal/storage/sqlite"
	"communitysolar/internal/table"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), storage.Config{Kind: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustTable(t *testing.T, cols []string, rows ...table.Row) *table.Table {
	t.Helper()
	tb := table.New(cols)
	for _, r := range rows {
		require.NoError(t, tb.Append(r))
	}
	return tb
}

func TestEnsureTableIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	sch := schema.Infer("LOCATIONS", "location_id", []string{"latitude", "add_full"},
		schema.Overrides{"latitude": schema.Real})

	require.NoError(t, s.EnsureTable(ctx, sch))
	require.NoError(t, s.EnsureTable(ctx, sch))

	ok, err := s.TableExists(ctx, "LOCATIONS")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.TableExists(ctx, "locations")
	require.NoError(t, err)
	require.False(t, ok, "table lookup must be exact")

	cols, err := s.Columns(ctx, "LOCATIONS")
	require.NoError(t, err)
	require.Equal(t, []storage.ColumnInfo{
		{Name: "location_id", Type: "INTEGER", PK: true},
		{Name: "latitude", Type: "REAL"},
		{Name: "add_full", Type: "TEXT"},
	}, cols)
}

func TestEnsureTableNeverAlters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.EnsureTable(ctx, schema.Infer("T", "id", []string{"a"}, nil)))
	require.NoError(t, s.EnsureTable(ctx, schema.Infer("T", "id", []string{"a", "b"}, nil)))

	cols, err := s.Columns(ctx, "T")
	require.NoError(t, err)
	require.Len(t, cols, 2)
}

func TestLoadIsolatesRowFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	sch := schema.Schema{Table: "T", Columns: []schema.Column{
		{Name: "id", Type: schema.Integer, Identity: true, NotNull: true},
		{Name: "name", Type: schema.Text},
		{Name: "code", Type: schema.Integer, NotNull: true},
	}}
	require.NoError(t, s.EnsureTable(ctx, sch))

	src := mustTable(t, []string{"name", "code"},
		table.Row{"a", "1"},
		table.Row{"b", ""}, // NULL into NOT NULL: store rejects
		table.Row{"c", "645.0"},
		table.Row{"d", "x"}, // coercion rejects
		table.Row{"e", "5"},
	)

	var seen []int
	rep, err := storage.Load(ctx, s, sch, src, storage.LoadOptions{
		OnFailure: func(f storage.RowFailure) { seen = append(seen, f.Index) },
	})
	require.NoError(t, err)
	require.Equal(t, 5, rep.Attempted)
	require.Equal(t, 3, rep.Committed)
	require.Len(t, rep.Failures, 2)
	require.Equal(t, []int{1, 3}, seen)

	require.Equal(t, 1, rep.Failures[0].Index)
	require.Equal(t, []any{"b", ""}, rep.Failures[0].Values)
	var rie *storage.RowInsertError
	require.True(t, errors.As(rep.Failures[0].Err, &rie))
	require.True(t, errors.As(rep.Failures[1].Err, &rie))
	require.Equal(t, "code", rie.Column)

	n, err := s.Count(ctx, "T")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	var codes []int64
	require.NoError(t, s.Select(ctx, &codes, `SELECT code FROM "T" ORDER BY id`, nil))
	require.Equal(t, []int64{1, 645, 5}, codes)
}

func TestLoadWidthMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	sch := schema.Infer("W", "id", []string{"a", "b"}, nil)
	require.NoError(t, s.EnsureTable(ctx, sch))

	src := table.New([]string{"a", "b"})
	src.Rows = []table.Row{{"1", "2"}, {"only"}, {"3", "4"}}

	rep, err := storage.Load(ctx, s, sch, src, storage.LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, rep.Committed)
	require.Len(t, rep.Failures, 1)

	var sme *storage.SchemaMismatchError
	require.True(t, errors.As(rep.Failures[0].Err, &sme))
	require.Equal(t, 2, sme.Want)
	require.Equal(t, 1, sme.Got)
}

func TestLoadCommitEvery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	sch := schema.Infer("C", "id", []string{"v"}, schema.Overrides{"v": schema.Integer})
	require.NoError(t, s.EnsureTable(ctx, sch))

	src := table.New([]string{"v"})
	for i := 0; i < 7; i++ {
		src.Rows = append(src.Rows, table.Row{int64(i)})
	}

	rep, err := storage.Load(ctx, s, sch, src, storage.LoadOptions{CommitEvery: 3, ProgressEvery: 2})
	require.NoError(t, err)
	require.Equal(t, 7, rep.Committed)

	n, err := s.Count(ctx, "C")
	require.NoError(t, err)
	require.EqualValues(t, 7, n)
}

func TestLoadCanceled(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	sch := schema.Infer("X", "id", []string{"v"}, nil)
	require.NoError(t, s.EnsureTable(context.Background(), sch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := storage.Load(ctx, s, sch, mustTable(t, []string{"v"}, table.Row{"1"}), storage.LoadOptions{})
	require.Error(t, err)
}

func TestLoadAppendsOnRerun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	sch := schema.Infer("R", "id", []string{"v"}, nil)
	require.NoError(t, s.EnsureTable(ctx, sch))
	src := mustTable(t, []string{"v"}, table.Row{"a"}, table.Row{"b"})

	for i := 0; i < 2; i++ {
		_, err := storage.Load(ctx, s, sch, src, storage.LoadOptions{})
		require.NoError(t, err)
	}
	n, err := s.Count(ctx, "R")
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
}

func TestInsertReturningIDAndSelect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	sch := schema.Infer("P", "pid", []string{"code", "name"}, schema.Overrides{"code": schema.Integer})
	require.NoError(t, s.EnsureTable(ctx, sch))

	id1, err := s.InsertReturningID(ctx, "P", "pid", []string{"code", "name"}, []any{int64(645), "x"})
	require.NoError(t, err)
	id2, err := s.InsertReturningID(ctx, "P", "pid", []string{"code", "name"}, []any{int64(100), "y"})
	require.NoError(t, err)
	require.Equal(t, id1+1, id2)

	type row struct {
		PID  int64  `db:"pid"`
		Name string `db:"name"`
	}
	var got []row
	err = s.Select(ctx, &got, `SELECT pid, name FROM "P" WHERE code IN (:codes) ORDER BY pid LIMIT :limit`,
		map[string]any{"codes": []int64{645, 100}, "limit": 10})
	require.NoError(t, err)
	require.Equal(t, []row{{id1, "x"}, {id2, "y"}}, got)

	_, err = s.InsertReturningID(ctx, "P", "pid", []string{"code"}, []any{1, 2})
	var sme *storage.SchemaMismatchError
	require.True(t, errors.As(err, &sme))
}

func TestResetAndDescribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.EnsureTable(ctx, schema.Infer("A", "id", []string{"x"}, nil)))
	require.NoError(t, s.EnsureTable(ctx, schema.Infer("B", "id", []string{"y"}, nil)))

	tables, err := s.Describe(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Equal(t, "A", tables[0].Name)

	var buf bytes.Buffer
	require.NoError(t, storage.WriteStructure(&buf, tables))
	require.True(t, strings.Contains(buf.String(), "Table: B"), buf.String())

	require.NoError(t, s.Reset(ctx, "B", "A", "MISSING"))
	names, err := s.Tables(ctx)
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestSelectLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	sch := schema.Infer("LOCATIONS", "location_id", []string{"latitude", "dlgf_prop_class_code"},
		schema.Overrides{"latitude": schema.Real, "dlgf_prop_class_code": schema.Integer})
	require.NoError(t, s.EnsureTable(ctx, sch))
	tb := mustTable(t, sch.DataColumnNames(),
		table.Row{"39.1", "645"}, table.Row{"39.2", "100"}, table.Row{"39.3", "645.0"}, table.Row{"", "645"}, table.Row{"39.5", "645"})
	_, err := storage.Load(ctx, s, sch, tb, storage.LoadOptions{})
	require.NoError(t, err)

	type cand struct {
		ID  int64   `db:"id"`
		Lat float64 `db:"latitude"`
	}
	q := `SELECT location_id AS id, latitude FROM LOCATIONS
WHERE dlgf_prop_class_code = :code AND latitude IS NOT NULL ORDER BY location_id`

	got, err := storage.SelectLimit[cand](ctx, s, q, map[string]any{"code": int64(645)}, 2)
	require.NoError(t, err)
	require.Equal(t, []cand{{1, 39.1}, {3, 39.3}}, got)

	all, err := storage.SelectLimit[cand](ctx, s, q, map[string]any{"code": int64(645)}, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}
