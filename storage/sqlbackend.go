package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nicia-ai/typegraph"
	"github.com/nicia-ai/typegraph/dialect"
	"github.com/nicia-ai/typegraph/internal/sqlbuilder"
)

// execQuerier is the subset of dialect.ExecQuerier that SQLBackend depends
// on; sqlbuilder.Driver, sqlbuilder.Tx, and their Stats/Debug decorators
// all satisfy it.
type execQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// txStarter is implemented by drivers capable of beginning a transaction.
// A transaction-scoped SQLBackend (conn is a *sqlbuilder.Tx) does not
// implement it, which is how Transaction rejects nested calls.
type txStarter interface {
	Tx(ctx context.Context) (dialect.Tx, error)
}

// SQLBackend is the Backend implementation shared by sqlitedialect and
// pgdialect: both construct one over a dialect.Driver opened with their
// own Strategy and DSN. It speaks hand-built SQL text against the five
// tables; the query package's compiled SQL flows through Execute instead.
type SQLBackend struct {
	conn     execQuerier
	strategy dialect.Strategy
	tables   TableNames
	// serialize, when non-nil, is acquired around every call that reaches
	// conn. Used by the SQLite backend to serialize access through a
	// one-at-a-time queue (spec §5); left nil for PostgreSQL.
	serialize func(context.Context, func() error) error
}

// NewSQLBackend builds a Backend over an already-open dialect.Driver.
// serialize, if non-nil, wraps every statement (see golang.org/x/sync/semaphore
// callers in dialect/sqlitedialect).
func NewSQLBackend(drv dialect.Driver, strategy dialect.Strategy, tables TableNames, serialize func(context.Context, func() error) error) (*SQLBackend, error) {
	if tables == (TableNames{}) {
		tables = DefaultTableNames()
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	conn, ok := drv.(execQuerier)
	if !ok {
		return nil, typegraph.NewConfigurationError("driver does not implement Exec/Query", nil)
	}
	return &SQLBackend{conn: conn, strategy: strategy, tables: tables, serialize: serialize}, nil
}

func (b *SQLBackend) run(ctx context.Context, fn func() error) error {
	if b.serialize != nil {
		return b.serialize(ctx, fn)
	}
	return fn()
}

// Dialect implements Backend.
func (b *SQLBackend) Dialect() string { return b.strategy.Name() }

// Capabilities implements Backend.
func (b *SQLBackend) Capabilities() dialect.Capabilities { return b.strategy.Capabilities() }

// TableNames implements Backend.
func (b *SQLBackend) TableNames() TableNames { return b.tables }

// Close implements Backend.
func (b *SQLBackend) Close() error {
	if closer, ok := b.conn.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Transaction implements Backend.
func (b *SQLBackend) Transaction(ctx context.Context, fn func(ctx context.Context, tx Backend) error) error {
	if !b.strategy.Capabilities().Transactions {
		return typegraph.NewConfigurationError("backend does not support transactions", nil)
	}
	starter, ok := b.conn.(txStarter)
	if !ok {
		return typegraph.ErrTxStarted
	}
	tx, err := starter.Tx(ctx)
	if err != nil {
		return typegraph.NewDatabaseOperationError("begin transaction", err)
	}
	scoped := &SQLBackend{conn: tx, strategy: b.strategy, tables: b.tables}
	if err := fn(ctx, scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return &typegraph.RollbackError{Err: err}
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return typegraph.NewDatabaseOperationError("commit transaction", err)
	}
	return nil
}

// ph renders the i'th (1-indexed) bind placeholder for this dialect.
func (b *SQLBackend) ph(i int) string { return b.strategy.Placeholder(i) }

// placeholders renders n consecutive placeholders starting at 1, comma
// joined.
func (b *SQLBackend) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = b.ph(i + 1)
	}
	return strings.Join(parts, ", ")
}

func marshalProps(props map[string]any) (string, error) {
	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", typegraph.NewValidationError("props", err)
	}
	return string(b), nil
}

func unmarshalProps(raw any) (map[string]any, error) {
	if raw == nil {
		return map[string]any{}, nil
	}
	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, fmt.Errorf("unexpected props column type %T", raw)
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func scanNullTime(raw any) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case time.Time:
		return &v, nil
	case []byte:
		t, err := time.Parse(time.RFC3339Nano, string(v))
		if err != nil {
			return nil, err
		}
		return &t, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, err
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("unexpected timestamp column type %T", raw)
	}
}

func scanTime(raw any) (time.Time, error) {
	t, err := scanNullTime(raw)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, nil
	}
	return *t, nil
}

// exec runs a non-row-returning statement. The affected-row count is not
// reported; only an error is returned.
func (b *SQLBackend) exec(ctx context.Context, query string, args []any) error {
	return b.run(ctx, func() error {
		var res sql.Result
		if err := b.conn.Exec(ctx, query, args, &res); err != nil {
			return typegraph.NewDatabaseOperationError(query, err)
		}
		return nil
	})
}

// queryRows runs a row-returning statement, invoking fn once per row with
// a function that scans into dest.
func (b *SQLBackend) queryRows(ctx context.Context, query string, args []any, fn func(scan func(dest ...any) error) error) error {
	return b.run(ctx, func() error {
		var rows sqlbuilder.Rows
		if err := b.conn.Query(ctx, query, args, &rows); err != nil {
			return typegraph.NewDatabaseOperationError(query, err)
		}
		defer rows.Close()
		for rows.Next() {
			if err := fn(rows.Scan); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

// temporalPredicate renders the WHERE-clause fragment (without a leading
// AND) implementing f against a row whose soft-delete/validity columns
// are prefixed by prefix (e.g. "" or "e."). args receives any bind values
// the fragment needs, and the returned placeholders are numbered starting
// at startIdx.
func (b *SQLBackend) temporalPredicate(f Filter, prefix string, startIdx int, args *[]any) string {
	switch f.Mode {
	case IncludeTombstones:
		return "1=1"
	case IncludeEnded:
		return fmt.Sprintf("%sdeleted_at IS NULL", prefix)
	case AsOf:
		*args = append(*args, f.At, f.At)
		return fmt.Sprintf(
			"%sdeleted_at IS NULL AND (%svalid_from IS NULL OR %svalid_from <= %s) AND (%svalid_to IS NULL OR %svalid_to >= %s)",
			prefix, prefix, prefix, b.ph(startIdx), prefix, prefix, b.ph(startIdx+1),
		)
	default: // Current
		return fmt.Sprintf("%sdeleted_at IS NULL AND (%svalid_from IS NULL OR %svalid_from <= %s) AND (%svalid_to IS NULL OR %svalid_to >= %s)",
			prefix, prefix, prefix, b.phNow(startIdx, args), prefix, prefix, b.phNow(startIdx+1, args))
	}
}

// phNow appends time.Now() to args and returns its placeholder. Current
// mode compares validFrom and validTo against "now" rather than treating
// any non-NULL bound as automatically out of range, matching I4's "NULL as
// live" rule while still excluding rows outside their validity window.
func (b *SQLBackend) phNow(idx int, args *[]any) string {
	*args = append(*args, time.Now())
	return b.ph(idx)
}

var _ Backend = (*SQLBackend)(nil)
