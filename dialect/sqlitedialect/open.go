package sqlitedialect

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nicia-ai/typegraph/dialect"
	"github.com/nicia-ai/typegraph/internal/sqlbuilder"
	"github.com/nicia-ai/typegraph/storage"
)

// Open dials a SQLite database at dsn and returns a storage.Backend wired
// with this package's Strategy. Every call that reaches the connection is
// serialized through a single-slot semaphore: SQLite allows only one
// writer at a time and the pure-Go modernc.org/sqlite driver does not
// queue writers the way cgo builds using the OS SQLite library do (spec
// §5).
func Open(dsn string, tables storage.TableNames) (*storage.SQLBackend, error) {
	return OpenWithSlowQuery(dsn, tables, 0)
}

// OpenWithSlowQuery is Open with query statistics collection enabled: every
// call issued through the returned backend is wrapped by a
// sqlbuilder.StatsDriver that logs via log/slog whenever a query or exec
// exceeds slowQuery (spec §6.2's Config.SlowQuery knob). slowQuery <= 0
// disables the wrapper, matching Open's behavior.
func OpenWithSlowQuery(dsn string, tables storage.TableNames, slowQuery time.Duration) (*storage.SQLBackend, error) {
	drv, err := sqlbuilder.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}
	var d dialect.Driver = drv
	if slowQuery > 0 {
		d = sqlbuilder.NewStatsDriver(drv, sqlbuilder.WithSlowThreshold(slowQuery), sqlbuilder.WithSlowQueryLog())
	}
	sem := semaphore.NewWeighted(1)
	serialize := func(ctx context.Context, fn func() error) error {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer sem.Release(1)
		return fn()
	}
	return storage.NewSQLBackend(d, New(), tables, serialize)
}
