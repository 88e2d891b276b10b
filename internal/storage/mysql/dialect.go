// Package mysql registers the MySQL dialect (go-sql-driver/mysql).
package mysql

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"communitysolar/internal/schema"
	"communitysolar/internal/storage"
	myddl "communitysolar/internal/storage/mysql/ddl"
)

// Kind is the registry key.
const Kind = "mysql"

// Dialect implements storage.Dialect for MySQL.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func init() {
	storage.Register(Dialect{})
}

func (Dialect) Kind() string       { return Kind }
func (Dialect) DriverName() string { return "mysql" }

// Prepare parses the DSN and forces parseTime so DATETIME columns scan into
// time.Time.
func (Dialect) Prepare(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (Dialect) Init(context.Context, *sqlx.DB) error { return nil }

func (Dialect) Quote(ident string) string { return myddl.QuoteIdent(ident) }

func (Dialect) CreateTableSQL(s schema.Schema) (string, error) {
	return myddl.CreateTableSQL(s)
}

func (Dialect) TablesQuery() string {
	return `SELECT table_name AS name FROM information_schema.tables
WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
ORDER BY table_name`
}

func (Dialect) ColumnsQuery() string {
	return "SELECT column_name AS name, UPPER(data_type) AS type, " +
		"is_nullable = 'NO' AS `notnull`, column_key = 'PRI' AS pk " +
		"FROM information_schema.columns " +
		"WHERE table_schema = DATABASE() AND table_name = ? " +
		"ORDER BY ordinal_position"
}

// InsertReturningSQL returns the plain insert; MySQL reports the identity
// through LastInsertId.
func (d Dialect) InsertReturningSQL(table, _ string, columns []string) (string, bool) {
	return storage.InsertSQL(d, table, columns), false
}

// Savepoints is false: InnoDB rolls back only the failed statement.
func (Dialect) Savepoints() bool { return false }

// IsFatal reports lost connections and out-of-space server errors.
func (Dialect) IsFatal(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case 1021, // ER_DISK_FULL
		1030, // ER_GET_ERRNO (storage engine)
		1114, // ER_RECORD_FILE_FULL
		1053: // ER_SERVER_SHUTDOWN
		return true
	}
	return false
}
