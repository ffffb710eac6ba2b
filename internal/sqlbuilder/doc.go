// Package sqlbuilder wraps database/sql with the dialect.Driver/dialect.Tx
// contract the storage and query layers depend on.
//
// It does not build SQL text — that's the query package's job via the
// CTE-based compiler. This package only owns the plumbing around an
// opened connection: translating dialect.ExecQuerier calls into
// database/sql calls, and the StatsDriver instrumentation decorator used
// to observe query volume and slow queries.
//
// # Opening a connection
//
//	drv, err := sqlbuilder.Open(dialect.SQLite, "file:graph.db?_fk=1")
//	defer drv.Close()
//
// # Instrumentation
//
// StatsDriver counts queries/execs/errors and flags slow queries; it wraps
// any dialect.Driver and is what sqlitedialect.OpenWithSlowQuery and
// pgdialect.OpenWithSlowQuery use to honor Config.SlowQuery:
//
//	statsDrv := sqlbuilder.NewStatsDriver(drv, sqlbuilder.WithSlowQueryLog())
package sqlbuilder
