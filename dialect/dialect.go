// Package dialect provides the database-dialect abstraction shared by the
// storage engine and the query compiler.
//
// TypeGraph speaks exactly two dialects: SQLite (dialect/sqlitedialect) and
// PostgreSQL (dialect/pgdialect). Each dialect is a small strategy object
// describing boolean literals, JSON payload shape, bind-parameter limits,
// and a capability set; the engine itself never special-cases a dialect by
// name outside of this package's contract.
package dialect

import "context"

// Dialect name constants. These are the only two values the engine
// recognizes; MySQL and other SQL dialects are out of scope (spec §1).
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// ExecQuerier wraps the Exec and Query methods. It is implemented by both
// Driver and Tx, following the same split the teacher's database/sql
// wrapper uses.
type ExecQuerier interface {
	// Exec runs a statement that does not return rows. args must be
	// []any; v, if non-nil, must be a *Result pointer to populate.
	Exec(ctx context.Context, query string, args, v any) error
	// Query runs a statement that returns rows. args must be []any; v
	// must be a *Rows pointer to populate.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface every storage backend must satisfy.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns one of the Dialect name constants.
	Dialect() string
	// Capabilities reports the feature set of this backend.
	Capabilities() Capabilities
}

// Tx is a Driver scoped to a transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Capabilities reports what a backend supports so the storage engine and
// compiler can adapt rather than assume.
type Capabilities struct {
	Transactions    bool
	Returning       bool
	PartialIndexes  bool
	GinIndexes      bool
	CTE             bool
	JSONB           bool
	VectorNativeDim int // 0 when the dialect has no native vector type.
}

// JSONMode describes how a dialect stores and returns JSON payloads.
type JSONMode int

const (
	// JSONText stores payloads as TEXT and requires the executor to
	// unmarshal the column itself (SQLite).
	JSONText JSONMode = iota
	// JSONBinary stores payloads as a native JSON/JSONB column that the
	// driver parses into a structured value (PostgreSQL).
	JSONBinary
)

// Strategy is the per-dialect SQL-rendering behavior the compiler depends
// on. Implementations live in dialect/sqlitedialect and dialect/pgdialect.
type Strategy interface {
	// Name returns one of the Dialect name constants.
	Name() string
	// BoolLiteral renders a boolean literal in this dialect's SQL text
	// ("1"/"0" for SQLite, "TRUE"/"FALSE" for PostgreSQL).
	BoolLiteral(v bool) string
	// Placeholder returns the bind-parameter placeholder for the i'th
	// argument (1-indexed), e.g. "?" or "$3".
	Placeholder(i int) string
	// JSONMode reports how JSON payload columns are stored.
	JSONMode() JSONMode
	// JSONExtract renders an expression extracting fieldPath from the
	// JSON column expr (e.g. json_extract(expr, '$.a.b') or expr->>'a').
	JSONExtract(expr, fieldPath string) string
	// MaxBindParams is the dialect's bind-parameter ceiling used to chunk
	// multi-row INSERTs (SQLite 999, PostgreSQL 65535).
	MaxBindParams() int
	// Capabilities reports the feature set of this dialect.
	Capabilities() Capabilities
}
