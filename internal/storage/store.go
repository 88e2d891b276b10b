// Package storage is the destination-store layer: a dialect registry, a Store
// that owns the sqlx handle, and the per-row fault-isolating bulk loader.
//
// Backends (sqlite, postgres, mysql, mssql) register a Dialect at init time;
// callers pick one by kind and never branch on the backend themselves.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"communitysolar/internal/schema"
)

// Dialect is the backend-specific surface the Store needs. Everything that
// differs between SQL engines lives behind it: driver name, identifier
// quoting, DDL rendering, catalog queries and error classification.
type Dialect interface {
	// Kind is the registry key, e.g. "sqlite".
	Kind() string
	// DriverName is the database/sql driver name the DSN is opened with.
	DriverName() string
	// Prepare validates or rewrites the DSN before opening.
	Prepare(dsn string) (string, error)
	// Init runs once on a freshly opened handle (pragmas, session options).
	Init(ctx context.Context, db *sqlx.DB) error

	Quote(ident string) string
	CreateTableSQL(s schema.Schema) (string, error)

	// TablesQuery lists user tables as a single "name" column.
	TablesQuery() string
	// ColumnsQuery returns name, type, notnull, pk for the table bound to
	// the single ? placeholder, in declared order.
	ColumnsQuery() string

	// InsertReturningSQL renders an INSERT that yields the new identity value
	// as a single-row result set. ok=false means the backend reports the id
	// through sql.Result.LastInsertId instead.
	InsertReturningSQL(table, idColumn string, columns []string) (query string, ok bool)

	// Savepoints reports whether a failed statement poisons the enclosing
	// transaction, so each row must run inside its own savepoint.
	Savepoints() bool

	// IsFatal reports whether err means the store itself is unusable (I/O,
	// disk full, lost connection) as opposed to a rejected row.
	IsFatal(err error) bool
}

var (
	mu       sync.RWMutex
	dialects = map[string]Dialect{}
)

// Register makes a dialect available under d.Kind(). It is called from
// backend packages' init functions and replaces any previous registration.
func Register(d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[d.Kind()] = d
}

// Lookup returns the dialect registered for kind.
func Lookup(kind string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[kind]
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %s)", kind, strings.Join(kindsLocked(), ", "))
	}
	return d, nil
}

// Kinds lists registered dialect kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	return kindsLocked()
}

func kindsLocked() []string {
	out := make([]string, 0, len(dialects))
	for k := range dialects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Config selects and tunes a backend.
type Config struct {
	Kind string
	DSN  string

	// MaxOpenConns caps the pool. The pipeline is single-threaded, so the
	// default is 1.
	MaxOpenConns int
}

// Store is an open destination store. It is not safe for concurrent loads.
type Store struct {
	db *sqlx.DB
	d  Dialect
}

// Open connects to the store described by cfg and pings it.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := Lookup(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("storage: %s: DSN must not be empty", cfg.Kind)
	}
	dsn, err := d.Prepare(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage: %s: dsn: %w", cfg.Kind, err)
	}

	raw, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: %s: open: %w", cfg.Kind, err)
	}
	conns := cfg.MaxOpenConns
	if conns <= 0 {
		conns = 1
	}
	raw.SetMaxOpenConns(conns)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := raw.PingContext(pingCtx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("storage: %s: ping: %w", cfg.Kind, err)
	}

	s := NewStore(sqlx.NewDb(raw, d.DriverName()), d)
	if err := d.Init(ctx, s.db); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("storage: %s: init: %w", cfg.Kind, err)
	}
	log.Printf("storage: connected kind=%s", cfg.Kind)
	return s, nil
}

// NewStore wraps an existing handle. Tests use it with in-memory databases.
func NewStore(db *sqlx.DB, d Dialect) *Store {
	return &Store{db: db, d: d}
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// Dialect returns the store's dialect.
func (s *Store) Dialect() Dialect { return s.d }

// DB exposes the sqlx handle for ad-hoc queries.
func (s *Store) DB() *sqlx.DB { return s.db }

// TableExists reports whether a table with exactly this name exists.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	names, err := s.Tables(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == table {
			return true, nil
		}
	}
	return false, nil
}

// EnsureTable creates the table for sch when it does not exist yet. An
// existing table is left untouched, even if its shape differs.
func (s *Store) EnsureTable(ctx context.Context, sch schema.Schema) error {
	exists, err := s.TableExists(ctx, sch.Table)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("storage: table %s already exists", sch.Table)
		return nil
	}
	stmt, err := s.d.CreateTableSQL(sch)
	if err != nil {
		return fmt.Errorf("storage: ddl %s: %w", sch.Table, err)
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("storage: create %s: %w", sch.Table, err)
	}
	log.Printf("storage: table %s created columns=%d", sch.Table, len(sch.Columns))
	return nil
}

// Reset drops the given tables in order, ignoring ones that do not exist.
func (s *Store) Reset(ctx context.Context, tables ...string) error {
	for _, t := range tables {
		exists, err := s.TableExists(ctx, t)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if _, err := s.db.ExecContext(ctx, "DROP TABLE "+s.d.Quote(t)); err != nil {
			return fmt.Errorf("storage: drop %s: %w", t, err)
		}
		log.Printf("storage: dropped table %s", t)
	}
	return nil
}

// Select runs a named query (":name" parameters), expanding slice arguments
// for IN clauses, and scans every row into dest.
func (s *Store) Select(ctx context.Context, dest any, query string, args map[string]any) error {
	q, params, err := sqlx.Named(query, args)
	if err != nil {
		return fmt.Errorf("storage: select: bind: %w", err)
	}
	q, params, err = sqlx.In(q, params...)
	if err != nil {
		return fmt.Errorf("storage: select: expand: %w", err)
	}
	if err := s.db.SelectContext(ctx, dest, s.db.Rebind(q), params...); err != nil {
		return fmt.Errorf("storage: select: %w", err)
	}
	return nil
}

// SelectLimit runs a named query like Select and scans at most limit rows
// into T (all rows when limit <= 0). Stopping client-side keeps the query
// free of LIMIT/TOP syntax, which differs across backends.
func SelectLimit[T any](ctx context.Context, s *Store, query string, args map[string]any, limit int) ([]T, error) {
	q, params, err := sqlx.Named(query, args)
	if err != nil {
		return nil, fmt.Errorf("storage: select: bind: %w", err)
	}
	q, params, err = sqlx.In(q, params...)
	if err != nil {
		return nil, fmt.Errorf("storage: select: expand: %w", err)
	}
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(q), params...)
	if err != nil {
		return nil, fmt.Errorf("storage: select: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		var v T
		if err := rows.StructScan(&v); err != nil {
			return nil, fmt.Errorf("storage: select: scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: select: %w", err)
	}
	return out, nil
}

// InsertReturningID inserts one row and returns the identity value the store
// assigned to it.
func (s *Store) InsertReturningID(ctx context.Context, table, idColumn string, columns []string, values []any) (int64, error) {
	if len(columns) != len(values) {
		return 0, &SchemaMismatchError{Table: table, Want: len(columns), Got: len(values)}
	}
	q, returning := s.d.InsertReturningSQL(table, idColumn, columns)
	q = s.db.Rebind(q)

	if returning {
		var id int64
		if err := s.db.QueryRowxContext(ctx, q, values...).Scan(&id); err != nil {
			return 0, &RowInsertError{Table: table, Values: values, Err: err}
		}
		return id, nil
	}
	res, err := s.db.ExecContext(ctx, q, values...)
	if err != nil {
		return 0, &RowInsertError{Table: table, Values: values, Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: %s: last insert id: %w", table, err)
	}
	return id, nil
}

// Count returns the number of rows in table.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+s.d.Quote(table)); err != nil {
		return 0, fmt.Errorf("storage: count %s: %w", table, err)
	}
	return n, nil
}

// InsertSQL renders the plain positional INSERT used by the loader.
func InsertSQL(d Dialect, table string, columns []string) string {
	cols := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = d.Quote(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
}
