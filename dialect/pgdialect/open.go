package pgdialect

import (
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/nicia-ai/typegraph/dialect"
	"github.com/nicia-ai/typegraph/internal/sqlbuilder"
	"github.com/nicia-ai/typegraph/storage"
)

// DriverName is the database/sql driver name this package opens
// connections under. internal/sqlbuilder.Driver.Dialect dispatches on a
// prefix match against dialect.Postgres ("postgres"), so the pgx/v5/stdlib
// driver — which registers itself as "pgx" — is re-registered here under
// that name rather than opened directly.
const DriverName = dialect.Postgres

func init() {
	sql.Register(DriverName, stdlib.GetDefaultDriver())
}

// Open dials a PostgreSQL database at dsn and returns a storage.Backend
// wired with this package's Strategy. Unlike sqlitedialect.Open, calls are
// not serialized: PostgreSQL's MVCC and row-level locking handle
// concurrent writers natively.
func Open(dsn string, tables storage.TableNames) (*storage.SQLBackend, error) {
	return OpenWithSlowQuery(dsn, tables, 0)
}

// OpenWithSlowQuery is Open with query statistics collection enabled: see
// sqlitedialect.OpenWithSlowQuery for the wrapper this applies (spec
// §6.2's Config.SlowQuery knob).
func OpenWithSlowQuery(dsn string, tables storage.TableNames, slowQuery time.Duration) (*storage.SQLBackend, error) {
	drv, err := sqlbuilder.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}
	var d dialect.Driver = drv
	if slowQuery > 0 {
		d = sqlbuilder.NewStatsDriver(drv, sqlbuilder.WithSlowThreshold(slowQuery), sqlbuilder.WithSlowQueryLog())
	}
	return storage.NewSQLBackend(d, New(), tables, nil)
}
