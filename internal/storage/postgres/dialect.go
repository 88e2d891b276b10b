// Package postgres registers the Postgres dialect. Connections go through
// pgx's database/sql driver ("pgx").
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"communitysolar/internal/schema"
	"communitysolar/internal/storage"
	pgddl "communitysolar/internal/storage/postgres/ddl"
)

// Kind is the registry key.
const Kind = "postgres"

// Dialect implements storage.Dialect for Postgres.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func init() {
	storage.Register(Dialect{})
}

func (Dialect) Kind() string       { return Kind }
func (Dialect) DriverName() string { return "pgx" }

// Prepare parses the DSN with pgx so malformed strings fail before dialing.
func (Dialect) Prepare(dsn string) (string, error) {
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", err
	}
	return dsn, nil
}

func (Dialect) Init(context.Context, *sqlx.DB) error { return nil }

func (Dialect) Quote(ident string) string { return pgddl.QuoteIdent(ident) }

func (Dialect) CreateTableSQL(s schema.Schema) (string, error) {
	return pgddl.CreateTableSQL(s)
}

func (Dialect) TablesQuery() string {
	return `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`
}

func (Dialect) ColumnsQuery() string {
	return `SELECT c.column_name AS name,
       UPPER(c.data_type) AS type,
       c.is_nullable = 'NO' AS "notnull",
       EXISTS (
         SELECT 1
         FROM information_schema.table_constraints tc
         JOIN information_schema.key_column_usage k
           ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
         WHERE tc.constraint_type = 'PRIMARY KEY'
           AND tc.table_schema = c.table_schema
           AND tc.table_name = c.table_name
           AND k.column_name = c.column_name
       ) AS pk
FROM information_schema.columns c
WHERE c.table_schema = current_schema() AND c.table_name = ?
ORDER BY c.ordinal_position`
}

func (d Dialect) InsertReturningSQL(table, idColumn string, columns []string) (string, bool) {
	return storage.InsertSQL(d, table, columns) + " RETURNING " + d.Quote(idColumn), true
}

// Savepoints is true: after a failed statement Postgres rejects everything
// until the transaction (or savepoint) is rolled back.
func (Dialect) Savepoints() bool { return true }

// IsFatal treats connection, resource, operator-intervention, system and
// internal error classes as fatal. Constraint and data errors are per row.
func (Dialect) IsFatal(err error) bool {
	var ce *pgconn.ConnectError
	if errors.As(err, &ce) || pgconn.Timeout(err) {
		return true
	}
	var pe *pgconn.PgError
	if !errors.As(err, &pe) {
		return false
	}
	return isFatalState(pe.Code)
}

func isFatalState(code string) bool {
	if len(code) < 2 {
		return false
	}
	switch code[:2] {
	case "08", // connection exception
		"53", // insufficient resources (disk full, out of memory)
		"57", // operator intervention (shutdown)
		"58", // system error (I/O)
		"XX": // internal error
		return true
	}
	return false
}

// Redact returns the DSN's user, host, port and database with the password
// dropped, for log lines.
func Redact(dsn string) string {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return "<invalid dsn>"
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)
}
