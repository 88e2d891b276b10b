package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// ColumnInfo is one column as reported by the store's catalog.
type ColumnInfo struct {
	Name    string `db:"name"`
	Type    string `db:"type"`
	NotNull bool   `db:"notnull"`
	PK      bool   `db:"pk"`
}

// TableInfo is one table and its columns in declared order.
type TableInfo struct {
	Name    string
	Columns []ColumnInfo
}

// Tables lists user tables in name order.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, s.d.TablesQuery()); err != nil {
		return nil, fmt.Errorf("storage: list tables: %w", err)
	}
	return names, nil
}

// Columns reads the catalog entry for one table.
func (s *Store) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	var cols []ColumnInfo
	if err := s.db.SelectContext(ctx, &cols, s.db.Rebind(s.d.ColumnsQuery()), table); err != nil {
		return nil, fmt.Errorf("storage: columns %s: %w", table, err)
	}
	return cols, nil
}

// Describe returns every user table with its columns.
func (s *Store) Describe(ctx context.Context) ([]TableInfo, error) {
	names, err := s.Tables(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TableInfo, 0, len(names))
	for _, n := range names {
		cols, err := s.Columns(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, TableInfo{Name: n, Columns: cols})
	}
	return out, nil
}

// WriteStructure prints a plain listing of tables and columns.
func WriteStructure(w io.Writer, tables []TableInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, t := range tables {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "Table: %s\n", t.Name)
		fmt.Fprintln(tw, "  column\ttype\tnot null\tpk")
		for _, c := range t.Columns {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", c.Name, strings.ToUpper(c.Type), yesNo(c.NotNull), yesNo(c.PK))
		}
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
