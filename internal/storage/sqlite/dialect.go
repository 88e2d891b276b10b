// Package sqlite registers the SQLite dialect (modernc.org/sqlite, pure Go)
// with the storage registry. It is the default backend.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"communitysolar/internal/schema"
	"communitysolar/internal/storage"
	sqliteddl "communitysolar/internal/storage/sqlite/ddl"
)

// Kind is the registry key.
const Kind = "sqlite"

// Dialect implements storage.Dialect for SQLite.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func init() {
	storage.Register(Dialect{})
}

func (Dialect) Kind() string       { return Kind }
func (Dialect) DriverName() string { return "sqlite" }

// Prepare accepts plain file paths ("community_solar.db") and file: URIs and
// asks the driver to write time.Time values as SQLite datetime text, the
// same shape CURRENT_TIMESTAMP produces. The driver strips its own
// parameters from plain paths.
func (Dialect) Prepare(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || strings.Contains(dsn, "_time_format=") {
		return dsn, nil
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_time_format=sqlite", nil
}

// Init enables foreign keys; the driver leaves them off per connection.
func (Dialect) Init(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("sqlite: pragma: %w", err)
	}
	return nil
}

func (Dialect) Quote(ident string) string { return sqliteddl.QuoteIdent(ident) }

func (Dialect) CreateTableSQL(s schema.Schema) (string, error) {
	return sqliteddl.CreateTableSQL(s)
}

func (Dialect) TablesQuery() string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
}

func (Dialect) ColumnsQuery() string {
	return `SELECT name, type, "notnull" AS "notnull", pk > 0 AS pk FROM pragma_table_info(?) ORDER BY cid`
}

// InsertReturningSQL uses RETURNING (SQLite 3.35+).
func (d Dialect) InsertReturningSQL(table, idColumn string, columns []string) (string, bool) {
	return storage.InsertSQL(d, table, columns) + " RETURNING " + d.Quote(idColumn), true
}

// Savepoints is false: a failed statement does not abort the transaction.
func (Dialect) Savepoints() bool { return false }

// IsFatal reports I/O, corruption, disk-full and read-only errors.
func (Dialect) IsFatal(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_IOERR,
		sqlite3.SQLITE_CORRUPT,
		sqlite3.SQLITE_FULL,
		sqlite3.SQLITE_CANTOPEN,
		sqlite3.SQLITE_NOTADB,
		sqlite3.SQLITE_READONLY:
		return true
	}
	return false
}
