// Package all wires every built-in storage dialect into the storage registry.
//
// It exists purely for side effects: a blank import runs each backend's init,
// which registers it under its kind:
//
//   - "sqlite"   (communitysolar/internal/storage/sqlite, default)
//   - "postgres" (communitysolar/internal/storage/postgres)
//   - "mysql"    (communitysolar/internal/storage/mysql)
//   - "mssql"    (communitysolar/internal/storage/mssql)
//
// Typical usage in cmd/solarload:
//
//	import _ "communitysolar/internal/storage/all"
//
//	store, err := storage.Open(ctx, storage.Config{Kind: cfg.DBDriver, DSN: cfg.DSN})
package all

import (
	_ "communitysolar/internal/storage/mssql"
	_ "communitysolar/internal/storage/mysql"
	_ "communitysolar/internal/storage/postgres"
	_ "communitysolar/internal/storage/sqlite"
)
