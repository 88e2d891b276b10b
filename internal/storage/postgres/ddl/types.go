// Package ddl contains Postgres-specific helpers for generating DDL.
package ddl

import (
	gddl "communitysolar/internal/ddl"
	"communitysolar/internal/schema"
)

// IdentityType is a standard SQL identity column (Postgres 10+).
const IdentityType = "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"

// MapType maps a storage type into a Postgres SQL type.
//
//	Integer   -> BIGINT
//	Real      -> DOUBLE PRECISION
//	Timestamp -> TIMESTAMPTZ
//	Text      -> TEXT
func MapType(t schema.StorageType) string {
	switch t {
	case schema.Integer:
		return "BIGINT"
	case schema.Real:
		return "DOUBLE PRECISION"
	case schema.Timestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// Dialect is the type mapping FromSchema uses for Postgres.
var Dialect = gddl.Dialect{MapType: MapType, IdentityType: IdentityType}
