package ddl

import (
	"fmt"
	"strings"

	gddl "communitysolar/internal/ddl"
	"communitysolar/internal/schema"
)

// BuildCreateTableSQL returns a SQLite CREATE TABLE statement:
//
//	CREATE TABLE IF NOT EXISTS "table" (
//	  "id" INTEGER PRIMARY KEY AUTOINCREMENT,
//	  "col1" TYPE [NOT NULL] [DEFAULT expr]
//	);
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	cols, err := gddl.RenderColumns(t, QuoteIdent)
	if err != nil {
		return "", fmt.Errorf("sqlite %w", err)
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		gddl.QuoteFQN(t.FQN, QuoteIdent),
		strings.Join(cols, ",\n  "),
	), nil
}

// CreateTableSQL maps s and renders it.
func CreateTableSQL(s schema.Schema) (string, error) {
	return BuildCreateTableSQL(gddl.FromSchema(s, Dialect))
}

// QuoteIdent double-quotes an identifier, doubling embedded quotes.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
