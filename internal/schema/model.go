// Package schema holds the relational table model produced by inference:
// a closed set of storage types and an ordered column list whose first entry
// is the store-managed identity column.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StorageType is the closed set of column types the loader knows how to
// coerce values into.
type StorageType int

const (
	Text StorageType = iota
	Integer
	Real
	Timestamp
)

// String returns the lower-case name used in config files and logs.
func (t StorageType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Timestamp:
		return "timestamp"
	default:
		return "text"
	}
}

// ParseStorageType maps a logical type name to a StorageType. An empty name
// is Text; unknown names are an error so typos in override files surface.
func ParseStorageType(s string) (StorageType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "string", "varchar":
		return Text, nil
	case "int", "integer", "bigint":
		return Integer, nil
	case "real", "float", "double", "numeric", "decimal":
		return Real, nil
	case "timestamp", "datetime", "timestamptz":
		return Timestamp, nil
	default:
		return Text, fmt.Errorf("schema: unknown storage type %q", s)
	}
}

// MarshalJSON encodes the type by name.
func (t StorageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a type name.
func (t *StorageType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("schema: storage type must be a string: %w", err)
	}
	v, err := ParseStorageType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Column is one destination column.
type Column struct {
	Name string
	Type StorageType

	// Identity marks the store-assigned auto-increment key.
	Identity bool
	NotNull  bool

	// Default is a raw SQL expression, e.g. CURRENT_TIMESTAMP.
	Default string
}

// Schema is an ordered table definition. Columns[0] is the identity column
// for every schema built by Infer.
type Schema struct {
	Table   string
	Columns []Column
}

// Identity returns the identity column, if any.
func (s Schema) Identity() (Column, bool) {
	for _, c := range s.Columns {
		if c.Identity {
			return c, true
		}
	}
	return Column{}, false
}

// DataColumns returns the columns the loader supplies values for, i.e. every
// column except the identity column, in declared order.
func (s Schema) DataColumns() []Column {
	out := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if !c.Identity {
			out = append(out, c)
		}
	}
	return out
}

// DataColumnNames is DataColumns projected to names.
func (s Schema) DataColumnNames() []string {
	cols := s.DataColumns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
