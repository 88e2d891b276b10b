// Package ddl contains MSSQL-specific helpers for generating DDL.
package ddl

import (
	gddl "communitysolar/internal/ddl"
	"communitysolar/internal/schema"
)

// IdentityType is a SQL Server identity key.
const IdentityType = "BIGINT IDENTITY(1,1) PRIMARY KEY"

// MapType maps a storage type into a SQL Server column type. Text uses
// NVARCHAR(MAX) because scraped values carry arbitrary Unicode.
func MapType(t schema.StorageType) string {
	switch t {
	case schema.Integer:
		return "BIGINT"
	case schema.Real:
		return "FLOAT"
	case schema.Timestamp:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

// Dialect is the type mapping FromSchema uses for SQL Server.
var Dialect = gddl.Dialect{MapType: MapType, IdentityType: IdentityType}
