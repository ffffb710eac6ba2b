// Package sqlitedialect implements dialect.Strategy for SQLite, backed by
// the pure-Go modernc.org/sqlite driver (no cgo dependency).
package sqlitedialect

import (
	"fmt"

	"github.com/nicia-ai/typegraph/dialect"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// DriverName is the database/sql driver name registered by
// modernc.org/sqlite.
const DriverName = "sqlite"

// maxBindParams is SQLite's SQLITE_MAX_VARIABLE_NUMBER default (999);
// the engine chunks multi-row INSERTs to stay under it (spec §4.5, B3).
const maxBindParams = 999

// Strategy is the dialect.Strategy implementation for SQLite.
type Strategy struct{}

// New returns the SQLite dialect.Strategy.
func New() Strategy {
	return Strategy{}
}

// Name implements dialect.Strategy.
func (Strategy) Name() string { return dialect.SQLite }

// BoolLiteral implements dialect.Strategy: SQLite has no native boolean
// type, so 1/0 is the canonical literal form.
func (Strategy) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// Placeholder implements dialect.Strategy: SQLite binds positionally with
// "?", independent of ordinal.
func (Strategy) Placeholder(_ int) string {
	return "?"
}

// JSONMode implements dialect.Strategy: SQLite has no native JSON column
// type, so payloads are stored as TEXT.
func (Strategy) JSONMode() dialect.JSONMode {
	return dialect.JSONText
}

// JSONExtract implements dialect.Strategy using SQLite's json_extract.
func (Strategy) JSONExtract(expr, fieldPath string) string {
	return fmt.Sprintf("json_extract(%s, '$.%s')", expr, fieldPath)
}

// MaxBindParams implements dialect.Strategy.
func (Strategy) MaxBindParams() int { return maxBindParams }

// Capabilities implements dialect.Strategy.
func (Strategy) Capabilities() dialect.Capabilities {
	return dialect.Capabilities{
		Transactions:   true,
		Returning:      true, // SQLite >= 3.35
		PartialIndexes: true,
		GinIndexes:     false,
		CTE:            true,
		JSONB:          false,
	}
}

var _ dialect.Strategy = Strategy{}
