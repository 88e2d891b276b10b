package ddl

// ColumnDef describes a single column in a table definition. It uses simple,
// database-agnostic fields; backends decide quoting and statement shape.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type already mapped for the backend
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: part of a composite PRIMARY KEY clause
//   - Identity: SQLType carries the backend's auto-increment key clause
//   - Default: raw default expression (e.g., CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Identity   bool
	Default    string
}

// TableDef holds the table name (FQN, optionally "schema.table") and an
// ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}
