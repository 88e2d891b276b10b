// Package ddl contains MySQL-specific helpers for generating DDL.
package ddl

import (
	"fmt"
	"strings"

	gddl "communitysolar/internal/ddl"
	"communitysolar/internal/schema"
)

// IdentityType is an InnoDB auto-increment key.
const IdentityType = "BIGINT AUTO_INCREMENT PRIMARY KEY"

// MapType maps a storage type into a MySQL column type.
//
//	Integer   -> BIGINT
//	Real      -> DOUBLE
//	Timestamp -> DATETIME
//	Text      -> TEXT
func MapType(t schema.StorageType) string {
	switch t {
	case schema.Integer:
		return "BIGINT"
	case schema.Real:
		return "DOUBLE"
	case schema.Timestamp:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

// Dialect is the type mapping FromSchema uses for MySQL.
var Dialect = gddl.Dialect{MapType: MapType, IdentityType: IdentityType}

// BuildCreateTableSQL renders a MySQL CREATE TABLE IF NOT EXISTS statement
// with backtick-quoted identifiers.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	cols, err := gddl.RenderColumns(t, QuoteIdent)
	if err != nil {
		return "", fmt.Errorf("mysql %w", err)
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

// QuoteIdent backtick-quotes an identifier, doubling embedded backticks.
func QuoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}
