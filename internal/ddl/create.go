// Package ddl defines a small, backend-agnostic model for SQL DDL and the
// shared column renderer the backend builders wrap.
//
// Backend packages (internal/storage/<kind>/ddl) own identifier quoting, type
// mapping and the outer statement (IF NOT EXISTS, T-SQL guards).
package ddl

import (
	"fmt"
	"strings"

	"communitysolar/internal/schema"
)

// Dialect is what a backend supplies to turn a schema.Schema into a TableDef.
type Dialect struct {
	// MapType returns the SQL type for a storage type.
	MapType func(schema.StorageType) string
	// IdentityType is the full type clause of the auto-increment key, e.g.
	// "INTEGER PRIMARY KEY AUTOINCREMENT".
	IdentityType string
}

// FromSchema maps s into a TableDef using d. Identity columns take
// d.IdentityType verbatim; other columns are nullable unless NotNull is set.
func FromSchema(s schema.Schema, d Dialect) TableDef {
	t := TableDef{FQN: s.Table, Columns: make([]ColumnDef, 0, len(s.Columns))}
	for _, c := range s.Columns {
		if c.Identity {
			t.Columns = append(t.Columns, ColumnDef{Name: c.Name, SQLType: d.IdentityType, Identity: true})
			continue
		}
		t.Columns = append(t.Columns, ColumnDef{
			Name:     c.Name,
			SQLType:  d.MapType(c.Type),
			Nullable: !c.NotNull,
			Default:  c.Default,
		})
	}
	return t
}

// RenderColumns validates t and renders one clause per column, plus a trailing
// PRIMARY KEY clause when non-identity columns are marked PrimaryKey. Column
// clauses have the form:
//
//	<quote(Name)> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
// Identity columns never get NOT NULL appended; their SQLType already implies it.
func RenderColumns(t TableDef, quote func(string) string) ([]string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return nil, fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		// Names are not trimmed: source headers are kept byte-for-byte.
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return nil, fmt.Errorf("ddl: column %s missing SQLType", c.Name)
		}

		var sb strings.Builder
		sb.WriteString(quote(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable && !c.Identity {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey && !c.Identity {
			pks = append(pks, quote(c.Name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	return cols, nil
}

// QuoteFQN splits a dotted name and quotes each non-empty segment.
func QuoteFQN(fqn string, quote func(string) string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quote(p))
	}
	return strings.Join(out, ".")
}
