package ddl

import (
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"communitysolar/internal/schema"
)

func bare(s string) string { return s }

func TestRenderColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		want        []string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: " ", SQLType: "INT"}}},
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			errContains: "missing SQLType",
		},
		{
			name: "nullable and not null",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "a", SQLType: "TEXT", Nullable: true},
				{Name: "b", SQLType: "INT"},
			}},
			want: []string{"a TEXT", "b INT NOT NULL"},
		},
		{
			name: "default is trimmed and emitted raw",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "created_at", SQLType: "TIMESTAMP", Nullable: true, Default: "  CURRENT_TIMESTAMP "},
			}},
			want: []string{"created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP"},
		},
		{
			name: "identity column skips NOT NULL and PK clause",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "id", SQLType: "INTEGER PRIMARY KEY AUTOINCREMENT", Identity: true, PrimaryKey: true},
				{Name: "x", SQLType: "TEXT", Nullable: true},
			}},
			want: []string{"id INTEGER PRIMARY KEY AUTOINCREMENT", "x TEXT"},
		},
		{
			name: "composite primary key",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "a", SQLType: "INT", PrimaryKey: true},
				{Name: "b", SQLType: "INT", PrimaryKey: true},
			}},
			want: []string{"a INT NOT NULL", "b INT NOT NULL", "PRIMARY KEY (a, b)"},
		},
		{
			name: "names keep surrounding spaces",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: " Org Name ", SQLType: "TEXT", Nullable: true},
			}},
			want: []string{" Org Name  TEXT"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := RenderColumns(tt.def, bare)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("RenderColumns() error = %v, want substring %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("RenderColumns() unexpected error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("RenderColumns() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromSchema(t *testing.T) {
	t.Parallel()

	s := schema.Infer("LOCATIONS", "location_id", []string{"latitude", "add_full"},
		schema.Overrides{"latitude": schema.Real})
	d := Dialect{
		MapType: func(st schema.StorageType) string {
			if st == schema.Real {
				return "REAL"
			}
			return "TEXT"
		},
		IdentityType: "SERIAL",
	}

	want := TableDef{FQN: "LOCATIONS", Columns: []ColumnDef{
		{Name: "location_id", SQLType: "SERIAL", Identity: true},
		{Name: "latitude", SQLType: "REAL", Nullable: true},
		{Name: "add_full", SQLType: "TEXT", Nullable: true},
	}}
	if diff := cmp.Diff(want, FromSchema(s, d)); diff != "" {
		t.Fatalf("FromSchema() mismatch (-want +got):\n%s", diff)
	}
}

func TestQuoteFQN(t *testing.T) {
	t.Parallel()

	q := func(s string) string { return "[" + s + "]" }
	if got := QuoteFQN("dbo. Users", q); got != "[dbo].[Users]" {
		t.Fatalf("QuoteFQN() = %q", got)
	}
	if got := QuoteFQN("LOCATIONS", q); got != "[LOCATIONS]" {
		t.Fatalf("QuoteFQN() = %q", got)
	}
}

var benchmarkSink []string

func BenchmarkRenderColumns_Wide(b *testing.B) {
	cols := make([]ColumnDef, 0, 64)
	for i := 0; i < 64; i++ {
		cols = append(cols, ColumnDef{Name: "col_" + strconv.Itoa(i), SQLType: "TEXT", Nullable: true})
	}
	def := TableDef{FQN: "wide", Columns: cols}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, err := RenderColumns(def, bare)
		if err != nil {
			b.Fatalf("RenderColumns() error = %v", err)
		}
		benchmarkSink = out
	}
}
