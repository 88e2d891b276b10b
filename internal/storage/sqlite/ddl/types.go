// Package ddl contains SQLite-specific helpers for generating DDL.
package ddl

import (
	gddl "communitysolar/internal/ddl"
	"communitysolar/internal/schema"
)

// IdentityType is the auto-increment key clause. AUTOINCREMENT keeps ids
// monotonic across deletes, matching the other backends' identity columns.
const IdentityType = "INTEGER PRIMARY KEY AUTOINCREMENT"

// MapType maps a storage type to a SQLite column type (type affinity).
//
//	Integer   -> INTEGER
//	Real      -> REAL
//	Timestamp -> DATETIME (NUMERIC affinity, ISO-8601 text)
//	Text      -> TEXT
func MapType(t schema.StorageType) string {
	switch t {
	case schema.Integer:
		return "INTEGER"
	case schema.Real:
		return "REAL"
	case schema.Timestamp:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

// Dialect is the type mapping FromSchema uses for SQLite.
var Dialect = gddl.Dialect{MapType: MapType, IdentityType: IdentityType}
