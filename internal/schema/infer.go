package schema

import (
	"encoding/json"
	"fmt"
)

// DefaultIDColumn names the identity column when the caller does not.
const DefaultIDColumn = "id"

// Overrides maps known column names to their storage type. Columns absent from
// the map are stored as Text.
type Overrides map[string]StorageType

// ParseOverrides converts a name->type-name map (as found in config files).
func ParseOverrides(m map[string]string) (Overrides, error) {
	out := make(Overrides, len(m))
	for col, name := range m {
		t, err := ParseStorageType(name)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", col, err)
		}
		out[col] = t
	}
	return out, nil
}

// UnmarshalJSON accepts {"col": "real", ...}.
func (o *Overrides) UnmarshalJSON(b []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("schema: overrides: %w", err)
	}
	v, err := ParseOverrides(raw)
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Infer derives a table schema purely from column names and overrides; row
// values are never consulted, so a numeric-looking column without an override
// stays Text.
//
// The identity column comes first. If idColumn is already a source column the
// identity column is renamed by appending "_" until the name is free, which
// keeps the function total and deterministic.
func Infer(tableName, idColumn string, columns []string, overrides Overrides) Schema {
	if idColumn == "" {
		idColumn = DefaultIDColumn
	}
	taken := make(map[string]bool, len(columns))
	for _, c := range columns {
		taken[c] = true
	}
	for taken[idColumn] {
		idColumn += "_"
	}

	cols := make([]Column, 0, len(columns)+1)
	cols = append(cols, Column{Name: idColumn, Type: Integer, Identity: true, NotNull: true})
	for _, name := range columns {
		t, ok := overrides[name]
		if !ok {
			t = Text
		}
		cols = append(cols, Column{Name: name, Type: t})
	}
	return Schema{Table: tableName, Columns: cols}
}
