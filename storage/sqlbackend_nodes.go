package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// InsertNode implements Backend.
func (b *SQLBackend) InsertNode(ctx context.Context, n Node) error {
	propsJSON, err := marshalProps(n.Props)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (graph_id, kind, id, props, version, valid_from, valid_to, created_at, updated_at, deleted_at) VALUES (%s)`,
		b.tables.Nodes, b.placeholders(10),
	)
	args := []any{n.GraphID, n.Kind, n.ID, propsJSON, n.Version, nullableTime(n.ValidFrom), nullableTime(n.ValidTo), n.CreatedAt, n.UpdatedAt, nullableTime(n.DeletedAt)}
	return b.exec(ctx, query, args)
}

// InsertNodesBatch implements Backend, chunking rows to stay under the
// dialect's bind-parameter ceiling (spec §4.5, B3).
func (b *SQLBackend) InsertNodesBatch(ctx context.Context, ns []Node) error {
	const cols = 10
	chunkSize := b.strategy.MaxBindParams() / cols
	if chunkSize < 1 {
		chunkSize = 1
	}
	for start := 0; start < len(ns); start += chunkSize {
		end := start + chunkSize
		if end > len(ns) {
			end = len(ns)
		}
		if err := b.insertNodesChunk(ctx, ns[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (b *SQLBackend) insertNodesChunk(ctx context.Context, ns []Node) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (graph_id, kind, id, props, version, valid_from, valid_to, created_at, updated_at, deleted_at) VALUES ", b.tables.Nodes)
	args := make([]any, 0, len(ns)*10)
	idx := 1
	for i, n := range ns {
		if i > 0 {
			sb.WriteString(", ")
		}
		propsJSON, err := marshalProps(n.Props)
		if err != nil {
			return err
		}
		ph := make([]string, 10)
		for j := range ph {
			ph[j] = b.ph(idx)
			idx++
		}
		fmt.Fprintf(&sb, "(%s)", strings.Join(ph, ", "))
		args = append(args, n.GraphID, n.Kind, n.ID, propsJSON, n.Version, nullableTime(n.ValidFrom), nullableTime(n.ValidTo), n.CreatedAt, n.UpdatedAt, nullableTime(n.DeletedAt))
	}
	return b.exec(ctx, sb.String(), args)
}

func (b *SQLBackend) scanNode(scan func(dest ...any) error) (Node, error) {
	var n Node
	var propsRaw, validFromRaw, validToRaw, deletedAtRaw any
	if err := scan(&n.GraphID, &n.Kind, &n.ID, &propsRaw, &n.Version, &validFromRaw, &validToRaw, &n.CreatedAt, &n.UpdatedAt, &deletedAtRaw); err != nil {
		return Node{}, err
	}
	props, err := unmarshalProps(propsRaw)
	if err != nil {
		return Node{}, err
	}
	n.Props = props
	if n.ValidFrom, err = scanNullTime(validFromRaw); err != nil {
		return Node{}, err
	}
	if n.ValidTo, err = scanNullTime(validToRaw); err != nil {
		return Node{}, err
	}
	if n.DeletedAt, err = scanNullTime(deletedAtRaw); err != nil {
		return Node{}, err
	}
	return n, nil
}

const nodeColumns = "graph_id, kind, id, props, version, valid_from, valid_to, created_at, updated_at, deleted_at"

// GetNode implements Backend.
func (b *SQLBackend) GetNode(ctx context.Context, graphID, kind, id string, f Filter) (*Node, error) {
	args := []any{graphID, kind, id}
	temporal := b.temporalPredicate(f, "", 4, &args)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE graph_id = %s AND kind = %s AND id = %s AND %s`,
		nodeColumns, b.tables.Nodes, b.ph(1), b.ph(2), b.ph(3), temporal)
	var out *Node
	err := b.queryRows(ctx, query, args, func(scan func(dest ...any) error) error {
		n, err := b.scanNode(scan)
		if err != nil {
			return err
		}
		out = &n
		return nil
	})
	return out, err
}

// GetNodes implements Backend.
func (b *SQLBackend) GetNodes(ctx context.Context, graphID string, refs []NodeRef, f Filter) ([]Node, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	args := []any{graphID}
	var conds []string
	idx := 2
	for _, r := range refs {
		conds = append(conds, fmt.Sprintf("(kind = %s AND id = %s)", b.ph(idx), b.ph(idx+1)))
		args = append(args, r.Kind, r.ID)
		idx += 2
	}
	temporal := b.temporalPredicate(f, "", idx, &args)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE graph_id = %s AND (%s) AND %s`,
		nodeColumns, b.tables.Nodes, b.ph(1), strings.Join(conds, " OR "), temporal)
	var out []Node
	err := b.queryRows(ctx, query, args, func(scan func(dest ...any) error) error {
		n, err := b.scanNode(scan)
		if err != nil {
			return err
		}
		out = append(out, n)
		return nil
	})
	return out, err
}

// UpdateNode implements Backend. The caller is responsible for bumping
// n.Version before calling (spec §4.2.2). deleted_at is written from
// n.DeletedAt, so a nil DeletedAt clears a tombstone.
func (b *SQLBackend) UpdateNode(ctx context.Context, n Node) error {
	propsJSON, err := marshalProps(n.Props)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`UPDATE %s SET props = %s, version = %s, valid_from = %s, valid_to = %s, updated_at = %s, deleted_at = %s WHERE graph_id = %s AND kind = %s AND id = %s`,
		b.tables.Nodes, b.ph(1), b.ph(2), b.ph(3), b.ph(4), b.ph(5), b.ph(6), b.ph(7), b.ph(8), b.ph(9),
	)
	args := []any{propsJSON, n.Version, nullableTime(n.ValidFrom), nullableTime(n.ValidTo), n.UpdatedAt, nullableTime(n.DeletedAt), n.GraphID, n.Kind, n.ID}
	return b.exec(ctx, query, args)
}

// DeleteNode implements Backend (soft delete).
func (b *SQLBackend) DeleteNode(ctx context.Context, graphID, kind, id string, deletedAt time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET deleted_at = %s, updated_at = %s WHERE graph_id = %s AND kind = %s AND id = %s`,
		b.tables.Nodes, b.ph(1), b.ph(2), b.ph(3), b.ph(4), b.ph(5))
	return b.exec(ctx, query, []any{deletedAt, deletedAt, graphID, kind, id})
}

// HardDeleteNode implements Backend. Callers must have already removed
// dependent embeddings, uniques, and incident edges (spec §4.2.4).
func (b *SQLBackend) HardDeleteNode(ctx context.Context, graphID, kind, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE graph_id = %s AND kind = %s AND id = %s`,
		b.tables.Nodes, b.ph(1), b.ph(2), b.ph(3))
	return b.exec(ctx, query, []any{graphID, kind, id})
}

// FindNodesByKind implements Backend.
func (b *SQLBackend) FindNodesByKind(ctx context.Context, graphID string, kinds []string, f Filter) ([]Node, error) {
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
		nodeColumns, b.tables.Nodes, b.ph(1), strings.Join(kindPh, ", "), temporal)
	var out []Node
	err := b.queryRows(ctx, query, args, func(scan func(dest ...any) error) error {
		n, err := b.scanNode(scan)
		if err != nil {
			return err
		}
		out = append(out, n)
		return nil
	})
	return out, err
}

// CountNodesByKind implements Backend.
func (b *SQLBackend) CountNodesByKind(ctx context.Context, graphID string, kinds []string, f Filter) (int64, error) {
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
		b.tables.Nodes, b.ph(1), strings.Join(kindPh, ", "), temporal)
	var count int64
	err := b.queryRows(ctx, query, args, func(scan func(dest ...any) error) error {
		return scan(&count)
	})
	return count, err
}
