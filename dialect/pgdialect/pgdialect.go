// Package pgdialect implements dialect.Strategy for PostgreSQL, backed by
// jackc/pgx/v5.
package pgdialect

import (
	"fmt"
	"strings"

	"github.com/nicia-ai/typegraph/dialect"
)

// maxBindParams is PostgreSQL's protocol limit on bind parameters per
// statement; the engine chunks multi-row INSERTs to stay under it (spec
// §4.5, B3).
const maxBindParams = 65535

// maxVectorDim is pgvector's ceiling for a column an ivfflat/hnsw index
// can cover; storage/embedding uses this to decide whether a dialect has
// a native vector column at all.
const maxVectorDim = 2000

// Strategy is the dialect.Strategy implementation for PostgreSQL.
type Strategy struct{}

// New returns the PostgreSQL dialect.Strategy.
func New() Strategy {
	return Strategy{}
}

// Name implements dialect.Strategy.
func (Strategy) Name() string { return dialect.Postgres }

// BoolLiteral implements dialect.Strategy.
func (Strategy) BoolLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

// Placeholder implements dialect.Strategy: pgx uses ordinal "$n" bind
// parameters.
func (Strategy) Placeholder(i int) string {
	return fmt.Sprintf("$%d", i)
}

// JSONMode implements dialect.Strategy: payloads are stored in a native
// JSONB column and parsed by the driver.
func (Strategy) JSONMode() dialect.JSONMode {
	return dialect.JSONBinary
}

// JSONExtract implements dialect.Strategy using PostgreSQL's ->> text
// extraction operator for a dotted fieldPath.
func (Strategy) JSONExtract(expr, fieldPath string) string {
	segments := strings.Split(fieldPath, ".")
	var b strings.Builder
	b.WriteString(expr)
	for i, seg := range segments {
		if i == len(segments)-1 {
			fmt.Fprintf(&b, "->>'%s'", seg)
		} else {
			fmt.Fprintf(&b, "->'%s'", seg)
		}
	}
	return b.String()
}

// MaxBindParams implements dialect.Strategy.
func (Strategy) MaxBindParams() int { return maxBindParams }

// Capabilities implements dialect.Strategy.
func (Strategy) Capabilities() dialect.Capabilities {
	return dialect.Capabilities{
		Transactions:    true,
		Returning:       true,
		PartialIndexes:  true,
		GinIndexes:      true,
		CTE:             true,
		JSONB:           true,
		VectorNativeDim: maxVectorDim,
	}
}

var _ dialect.Strategy = Strategy{}
