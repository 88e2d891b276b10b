package ddl

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	gddl "communitysolar/internal/ddl"
	"communitysolar/internal/schema"
)

// BuildCreateTableSQL builds a Postgres CREATE TABLE IF NOT EXISTS statement.
// A dotted FQN ("public.t") is quoted segment by segment.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	cols, err := gddl.RenderColumns(t, QuoteIdent)
	if err != nil {
		return "", fmt.Errorf("postgres %w", err)
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

// QuoteIdent quotes a single identifier with pgx's sanitizer.
func QuoteIdent(id string) string {
	return pgx.Identifier{id}.Sanitize()
}
