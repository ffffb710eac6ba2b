package embedding

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/nicia-ai/typegraph"
	"github.com/nicia-ai/typegraph/dialect"
	"github.com/nicia-ai/typegraph/internal/sqlbuilder"
	"github.com/nicia-ai/typegraph/storage"
)

// execQuerier is the connection surface SQLStore depends on, mirroring
// storage.SQLBackend's own internal split between Driver and Tx so an
// embedding store can share either.
type execQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// SQLStore is the Store implementation backing both dialects: the SQL it
// issues is dialect-agnostic, with the vector column's wire encoding
// delegated to the codec selected by strategy.Capabilities().VectorNativeDim
// (spec's "embeddings table wiring" expansion).
type SQLStore struct {
	conn     execQuerier
	strategy dialect.Strategy
	table    string
}

// NewSQLStore builds a Store over an already-open dialect.Driver, reusing
// the same table-name configuration as the rest of the backend.
func NewSQLStore(drv dialect.Driver, strategy dialect.Strategy, tables storage.TableNames) (*SQLStore, error) {
	conn, ok := drv.(execQuerier)
	if !ok {
		return nil, typegraph.NewConfigurationError("driver does not implement Exec/Query", nil)
	}
	if tables.Embeddings == "" {
		tables = storage.DefaultTableNames()
	}
	return &SQLStore{conn: conn, strategy: strategy, table: tables.Embeddings}, nil
}

func (s *SQLStore) ph(i int) string { return s.strategy.Placeholder(i) }

func (s *SQLStore) exec(ctx context.Context, query string, args []any) error {
	var res sql.Result
	if err := s.conn.Exec(ctx, query, args, &res); err != nil {
		return typegraph.NewDatabaseOperationError(query, err)
	}
	return nil
}

func (s *SQLStore) queryRows(ctx context.Context, query string, args []any, fn func(scan func(dest ...any) error) error) error {
	var rows sqlbuilder.Rows
	if err := s.conn.Query(ctx, query, args, &rows); err != nil {
		return typegraph.NewDatabaseOperationError(query, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows.Scan); err != nil {
			return err
		}
	}
	return rows.Err()
}

// native reports whether this dialect stores vectors in a native column
// type (PostgreSQL's pgvector extension) rather than an opaque blob.
func (s *SQLStore) native() bool {
	return s.strategy.Capabilities().VectorNativeDim > 0
}

// Upsert implements Store. The PRIMARY KEY is (graph_id, node_kind,
// node_id), so a plain INSERT ... ON CONFLICT-less "delete then insert"
// pair keeps this portable across both dialects without relying on
// UPSERT syntax that diverges between them.
func (s *SQLStore) Upsert(ctx context.Context, r Record) error {
	encoded, err := encodeVector(s.strategy, r.Vector)
	if err != nil {
		return err
	}
	del := fmt.Sprintf(`DELETE FROM %s WHERE graph_id = %s AND node_kind = %s AND node_id = %s`,
		s.table, s.ph(1), s.ph(2), s.ph(3))
	if err := s.exec(ctx, del, []any{r.GraphID, r.NodeKind, r.NodeID}); err != nil {
		return err
	}
	ins := fmt.Sprintf(`INSERT INTO %s (graph_id, node_kind, node_id, vector, dims, deleted_at) VALUES (%s, %s, %s, %s, %s, %s)`,
		s.table, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	return s.exec(ctx, ins, []any{r.GraphID, r.NodeKind, r.NodeID, encoded, r.Dims(), nullableTime(r.DeletedAt)})
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, graphID, nodeKind, nodeID string) (*Record, error) {
	query := fmt.Sprintf(
		`SELECT vector, dims, deleted_at FROM %s WHERE graph_id = %s AND node_kind = %s AND node_id = %s AND deleted_at IS NULL`,
		s.table, s.ph(1), s.ph(2), s.ph(3))
	var out *Record
	err := s.queryRows(ctx, query, []any{graphID, nodeKind, nodeID}, func(scan func(dest ...any) error) error {
		var raw any
		var deletedAt any
		if err := scan(&raw, new(int), &deletedAt); err != nil {
			return err
		}
		vec, err := decodeVector(s.strategy, raw)
		if err != nil {
			return err
		}
		dt, err := scanNullTime(deletedAt)
		if err != nil {
			return err
		}
		out = &Record{GraphID: graphID, NodeKind: nodeKind, NodeID: nodeID, Vector: vec, DeletedAt: dt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete implements Store (soft delete, mirroring Backend.DeleteNode).
func (s *SQLStore) Delete(ctx context.Context, graphID, nodeKind, nodeID string, deletedAt time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET deleted_at = %s WHERE graph_id = %s AND node_kind = %s AND node_id = %s`,
		s.table, s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	return s.exec(ctx, query, []any{deletedAt, graphID, nodeKind, nodeID})
}

// Nearest implements Store. On PostgreSQL the ordering and the limit are
// pushed into the query via pgvector's <=> cosine-distance operator,
// letting an ivfflat/hnsw index on the column do the work. SQLite has no
// such operator, so rows are decoded and ranked in Go — acceptable for the
// embedded, single-writer deployments sqlitedialect targets (spec §5), not
// for a high-cardinality production index.
func (s *SQLStore) Nearest(ctx context.Context, graphID, nodeKind string, query []float32, limit int) ([]Match, error) {
	if len(query) == 0 {
		return nil, errDimMismatch(0, 0)
	}
	if s.native() {
		return s.nearestNative(ctx, graphID, nodeKind, query, limit)
	}
	return s.nearestBruteForce(ctx, graphID, nodeKind, query, limit)
}

func (s *SQLStore) nearestNative(ctx context.Context, graphID, nodeKind string, query []float32, limit int) ([]Match, error) {
	encoded, err := encodeVector(s.strategy, query)
	if err != nil {
		return nil, err
	}
	sqlText := fmt.Sprintf(
		`SELECT node_id, vector, dims, (vector <=> %s) AS distance FROM %s
		 WHERE graph_id = %s AND node_kind = %s AND deleted_at IS NULL
		 ORDER BY vector <=> %s LIMIT %s`,
		s.ph(1), s.table, s.ph(2), s.ph(3), s.ph(1), s.ph(4))
	var out []Match
	err = s.queryRows(ctx, sqlText, []any{encoded, graphID, nodeKind, limit}, func(scan func(dest ...any) error) error {
		var nodeID string
		var raw any
		var distance float64
		if err := scan(&nodeID, &raw, new(int), &distance); err != nil {
			return err
		}
		vec, err := decodeVector(s.strategy, raw)
		if err != nil {
			return err
		}
		out = append(out, Match{
			Record:   Record{GraphID: graphID, NodeKind: nodeKind, NodeID: nodeID, Vector: vec},
			Distance: distance,
		})
		return nil
	})
	return out, err
}

func (s *SQLStore) nearestBruteForce(ctx context.Context, graphID, nodeKind string, query []float32, limit int) ([]Match, error) {
	sqlText := fmt.Sprintf(`SELECT node_id, vector, dims FROM %s WHERE graph_id = %s AND node_kind = %s AND deleted_at IS NULL`,
		s.table, s.ph(1), s.ph(2))
	var candidates []Match
	err := s.queryRows(ctx, sqlText, []any{graphID, nodeKind}, func(scan func(dest ...any) error) error {
		var nodeID string
		var raw any
		if err := scan(&nodeID, &raw, new(int)); err != nil {
			return err
		}
		vec, err := decodeVector(s.strategy, raw)
		if err != nil {
			return err
		}
		if len(vec) != len(query) {
			return nil
		}
		candidates = append(candidates, Match{
			Record:   Record{GraphID: graphID, NodeKind: nodeKind, NodeID: nodeID, Vector: vec},
			Distance: cosineDistance(query, vec),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
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

var _ Store = (*SQLStore)(nil)
