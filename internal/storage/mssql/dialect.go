// Package mssql registers the Microsoft SQL Server dialect (go-mssqldb,
// driver name "sqlserver").
package mssql

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	gddl "communitysolar/internal/ddl"
	"communitysolar/internal/schema"
	"communitysolar/internal/storage"
	msddl "communitysolar/internal/storage/mssql/ddl"
)

// Kind is the registry key.
const Kind = "mssql"

// Dialect implements storage.Dialect for SQL Server.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func init() {
	storage.Register(Dialect{})
}

func (Dialect) Kind() string       { return Kind }
func (Dialect) DriverName() string { return "sqlserver" }

// Prepare validates the DSN early to fail fast on obvious mistakes.
func (Dialect) Prepare(dsn string) (string, error) {
	if _, err := msdsn.Parse(dsn); err != nil {
		return "", err
	}
	return dsn, nil
}

func (Dialect) Init(context.Context, *sqlx.DB) error { return nil }

// Quote accepts schema-qualified names ("dbo.LOCATIONS").
func (Dialect) Quote(ident string) string {
	return gddl.QuoteFQN(ident, msddl.QuoteIdent)
}

func (Dialect) CreateTableSQL(s schema.Schema) (string, error) {
	return msddl.CreateTableSQL(s)
}

func (Dialect) TablesQuery() string {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = SCHEMA_NAME()
ORDER BY TABLE_NAME`
}

func (Dialect) ColumnsQuery() string {
	return `SELECT c.COLUMN_NAME AS name,
       UPPER(c.DATA_TYPE) AS type,
       CASE WHEN c.IS_NULLABLE = 'NO' THEN 1 ELSE 0 END AS notnull,
       CASE WHEN EXISTS (
         SELECT 1
         FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
         JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
           ON k.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND k.TABLE_SCHEMA = tc.TABLE_SCHEMA
         WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
           AND tc.TABLE_SCHEMA = c.TABLE_SCHEMA
           AND tc.TABLE_NAME = c.TABLE_NAME
           AND k.COLUMN_NAME = c.COLUMN_NAME
       ) THEN 1 ELSE 0 END AS pk
FROM INFORMATION_SCHEMA.COLUMNS c
WHERE c.TABLE_SCHEMA = SCHEMA_NAME() AND c.TABLE_NAME = ?
ORDER BY c.ORDINAL_POSITION`
}

// InsertReturningSQL uses an OUTPUT clause, which T-SQL places between the
// column list and VALUES.
func (d Dialect) InsertReturningSQL(table, idColumn string, columns []string) (string, bool) {
	q := storage.InsertSQL(d, table, columns)
	q = strings.Replace(q, ") VALUES (", ") OUTPUT INSERTED."+d.Quote(idColumn)+" VALUES (", 1)
	return q, true
}

// Savepoints is false: with XACT_ABORT off, constraint violations end the
// statement, not the transaction.
func (Dialect) Savepoints() bool { return false }

// IsFatal treats severity >= 20 and the out-of-space and I/O error numbers
// as fatal.
func (Dialect) IsFatal(err error) bool {
	var me mssql.Error
	if !errors.As(err, &me) {
		return false
	}
	if me.Class >= 20 {
		return true
	}
	switch me.Number {
	case 823, 824, // I/O
		1105, // filegroup full
		9002: // transaction log full
		return true
	}
	return false
}
