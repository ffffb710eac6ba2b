package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const edgeColumns = "graph_id, id, kind, from_kind, from_id, to_kind, to_id, props, valid_from, valid_to, created_at, updated_at, deleted_at"

func (b *SQLBackend) scanEdge(scan func(dest ...any) error) (Edge, error) {
	var e Edge
	var propsRaw, validFromRaw, validToRaw, deletedAtRaw any
	if err := scan(&e.GraphID, &e.ID, &e.Kind, &e.FromKind, &e.FromID, &e.ToKind, &e.ToID, &propsRaw, &validFromRaw, &validToRaw, &e.CreatedAt, &e.UpdatedAt, &deletedAtRaw); err != nil {
		return Edge{}, err
	}
	props, err := unmarshalProps(propsRaw)
	if err != nil {
		return Edge{}, err
	}
	e.Props = props
	if e.ValidFrom, err = scanNullTime(validFromRaw); err != nil {
		return Edge{}, err
	}
	if e.ValidTo, err = scanNullTime(validToRaw); err != nil {
		return Edge{}, err
	}
	if e.DeletedAt, err = scanNullTime(deletedAtRaw); err != nil {
		return Edge{}, err
	}
	return e, nil
}

// InsertEdge implements Backend.
func (b *SQLBackend) InsertEdge(ctx context.Context, e Edge) error {
	propsJSON, err := marshalProps(e.Props)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (graph_id, id, kind, from_kind, from_id, to_kind, to_id, props, valid_from, valid_to, created_at, updated_at, deleted_at) VALUES (%s)`,
		b.tables.Edges, b.placeholders(13),
	)
	args := []any{e.GraphID, e.ID, e.Kind, e.FromKind, e.FromID, e.ToKind, e.ToID, propsJSON, nullableTime(e.ValidFrom), nullableTime(e.ValidTo), e.CreatedAt, e.UpdatedAt, nullableTime(e.DeletedAt)}
	return b.exec(ctx, query, args)
}

// GetEdge implements Backend.
func (b *SQLBackend) GetEdge(ctx context.Context, graphID, id string, f Filter) (*Edge, error) {
	args := []any{graphID, id}
	temporal := b.temporalPredicate(f, "", 3, &args)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE graph_id = %s AND id = %s AND %s`,
		edgeColumns, b.tables.Edges, b.ph(1), b.ph(2), temporal)
	var out *Edge
	err := b.queryRows(ctx, query, args, func(scan func(dest ...any) error) error {
		e, err := b.scanEdge(scan)
		if err != nil {
			return err
		}
		out = &e
		return nil
	})
	return out, err
}

// UpdateEdge implements Backend.
func (b *SQLBackend) UpdateEdge(ctx context.Context, e Edge) error {
	propsJSON, err := marshalProps(e.Props)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`UPDATE %s SET props = %s, valid_from = %s, valid_to = %s, updated_at = %s WHERE graph_id = %s AND id = %s`,
		b.tables.Edges, b.ph(1), b.ph(2), b.ph(3), b.ph(4), b.ph(5), b.ph(6),
	)
	args := []any{propsJSON, nullableTime(e.ValidFrom), nullableTime(e.ValidTo), e.UpdatedAt, e.GraphID, e.ID}
	return b.exec(ctx, query, args)
}

// DeleteEdge implements Backend (soft delete).
func (b *SQLBackend) DeleteEdge(ctx context.Context, graphID, id string, deletedAt time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET deleted_at = %s, valid_to = %s, updated_at = %s WHERE graph_id = %s AND id = %s`,
		b.tables.Edges, b.ph(1), b.ph(2), b.ph(3), b.ph(4), b.ph(5))
	return b.exec(ctx, query, []any{deletedAt, deletedAt, deletedAt, graphID, id})
}

// HardDeleteEdge implements Backend.
func (b *SQLBackend) HardDeleteEdge(ctx context.Context, graphID, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE graph_id = %s AND id = %s`, b.tables.Edges, b.ph(1), b.ph(2))
	return b.exec(ctx, query, []any{graphID, id})
}

// CountEdgesFrom implements Backend, used for cardinality enforcement
// (spec §4.2.5). When spec.ActiveOnly is set only edges with validTo IS
// NULL are counted (the "oneActive" predicate); includeTombstones widens
// the count to soft-deleted rows as well. The engine's cardinality check
// passes false.
func (b *SQLBackend) CountEdgesFrom(ctx context.Context, graphID string, spec EdgeFromSpec, includeTombstones bool) (int64, error) {
	conds := []string{
		fmt.Sprintf("graph_id = %s", b.ph(1)),
		fmt.Sprintf("kind = %s", b.ph(2)),
		fmt.Sprintf("from_kind = %s", b.ph(3)),
		fmt.Sprintf("from_id = %s", b.ph(4)),
	}
	args := []any{graphID, spec.EdgeKind, spec.FromKind, spec.FromID}
	if !includeTombstones {
		conds = append(conds, "deleted_at IS NULL")
	}
	if spec.ActiveOnly {
		conds = append(conds, "valid_to IS NULL")
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, b.tables.Edges, strings.Join(conds, " AND "))
	var count int64
	err := b.queryRows(ctx, query, args, func(scan func(dest ...any) error) error {
		return scan(&count)
	})
	return count, err
}

// EdgeExistsBetween implements Backend, used by the engine's "unique"
// cardinality check (spec §4.2.5).
func (b *SQLBackend) EdgeExistsBetween(ctx context.Context, graphID, edgeKind, fromKind, fromID, toKind, toID string, f Filter) (bool, error) {
	args := []any{graphID, edgeKind, fromKind, fromID, toKind, toID}
	temporal := b.temporalPredicate(f, "", 7, &args)
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE graph_id = %s AND kind = %s AND from_kind = %s AND from_id = %s AND to_kind = %s AND to_id = %s AND %s`,
		b.tables.Edges, b.ph(1), b.ph(2), b.ph(3), b.ph(4), b.ph(5), b.ph(6), temporal)
	found := false
	err := b.queryRows(ctx, query, args, func(scan func(dest ...any) error) error {
		var one int
		if err := scan(&one); err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// FindEdgesConnectedTo implements Backend: every edge touching (kind, id)
// as either endpoint that passes f, used by delete-behavior enforcement
// (spec §4.2.3) and by the engine's HardDeleteNode.
func (b *SQLBackend) FindEdgesConnectedTo(ctx context.Context, graphID, kind, id string, f Filter) ([]Edge, error) {
	args := []any{graphID, kind, id, kind, id}
	temporal := b.temporalPredicate(f, "", 6, &args)
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE graph_id = %s AND ((from_kind = %s AND from_id = %s) OR (to_kind = %s AND to_id = %s)) AND %s`,
		edgeColumns, b.tables.Edges, b.ph(1), b.ph(2), b.ph(3), b.ph(4), b.ph(5), temporal,
	)
	var out []Edge
	err := b.queryRows(ctx, query, args, func(scan func(dest ...any) error) error {
		e, err := b.scanEdge(scan)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// FindEdgesByKind implements Backend.
func (b *SQLBackend) FindEdgesByKind(ctx context.Context, graphID string, kinds []string, f Filter) ([]Edge, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	args := []any{graphID}
	kindPh := make([]string, len(kinds))
	idx := 2
	for i, k := range kinds {
		kindPh[i] = b.ph(idx)
		args = append(args, k)
		idx++
	}
	temporal := b.temporalPredicate(f, "", idx, &args)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE graph_id = %s AND kind IN (%s) AND %s`,
		edgeColumns, b.tables.Edges, b.ph(1), strings.Join(kindPh, ", "), temporal)
	var out []Edge
	err := b.queryRows(ctx, query, args, func(scan func(dest ...any) error) error {
		e, err := b.scanEdge(scan)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// CountEdgesByKind implements Backend.
func (b *SQLBackend) CountEdgesByKind(ctx context.Context, graphID string, kinds []string, f Filter) (int64, error) {
	if len(kinds) == 0 {
		return 0, nil
	}
	args := []any{graphID}
	kindPh := make([]string, len(kinds))
	idx := 2
	for i, k := range kinds {
		kindPh[i] = b.ph(idx)
		args = append(args, k)
		idx++
	}
	temporal := b.temporalPredicate(f, "", idx, &args)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE graph_id = %s AND kind IN (%s) AND %s`,
		b.tables.Edges, b.ph(1), strings.Join(kindPh, ", "), temporal)
	var count int64
	err := b.queryRows(ctx, query, args, func(scan func(dest ...any) error) error {
		return scan(&count)
	})
	return count, err
}
