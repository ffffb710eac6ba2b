package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// InsertUnique implements Backend's claim-or-resurrect uniqueness upsert
// (spec §4.3):
//
//	INSERT INTO uniques (...) VALUES (...)
//	ON CONFLICT (graph_id, node_kind, constraint_name, key) DO UPDATE SET
//	  node_id = excluded.node_id, concrete_kind = excluded.concrete_kind,
//	  deleted_at = NULL
//	WHERE uniques.node_id = excluded.node_id
//	   OR uniques.deleted_at IS NOT NULL
//	RETURNING node_id
//
// The WHERE clause is what makes the upsert atomic: a live row owned by a
// different node is left untouched and its original node_id comes back in
// RETURNING, letting the caller detect the collision without a second
// round trip.
func (b *SQLBackend) InsertUnique(ctx context.Context, graphID, nodeKind, constraintName, key, nodeID, concreteKind string) (string, error) {
	query := fmt.Sprintf(`
INSERT INTO %s (graph_id, node_kind, constraint_name, key, node_id, concrete_kind, deleted_at)
VALUES (%s, %s, %s, %s, %s, %s, NULL)
ON CONFLICT (graph_id, node_kind, constraint_name, key) DO UPDATE SET
  node_id = excluded.node_id, concrete_kind = excluded.concrete_kind, deleted_at = NULL
WHERE %s.node_id = excluded.node_id OR %s.deleted_at IS NOT NULL
RETURNING node_id`,
		b.tables.Uniques, b.ph(1), b.ph(2), b.ph(3), b.ph(4), b.ph(5), b.ph(6), b.tables.Uniques, b.tables.Uniques)
	args := []any{graphID, nodeKind, constraintName, key, nodeID, concreteKind}

	var owner string
	err := b.queryRows(ctx, query, args, func(scan func(dest ...any) error) error {
		return scan(&owner)
	})
	if err != nil {
		return "", err
	}
	if owner == "" {
		// RETURNING produced no row: the WHERE guard rejected the update,
		// meaning a different live node already holds the key. Look it up
		// to report who.
		existingOwner, found, cerr := b.CheckUnique(ctx, graphID, nodeKind, constraintName, key)
		if cerr != nil {
			return "", cerr
		}
		if found {
			return existingOwner, nil
		}
		return "", fmt.Errorf("storage: unique upsert returned no row and no existing owner")
	}
	return owner, nil
}

// CheckUnique implements Backend.
func (b *SQLBackend) CheckUnique(ctx context.Context, graphID, nodeKind, constraintName, key string) (string, bool, error) {
	query := fmt.Sprintf(`SELECT node_id FROM %s WHERE graph_id = %s AND node_kind = %s AND constraint_name = %s AND key = %s AND deleted_at IS NULL`,
		b.tables.Uniques, b.ph(1), b.ph(2), b.ph(3), b.ph(4))
	var owner string
	found := false
	err := b.queryRows(ctx, query, []any{graphID, nodeKind, constraintName, key}, func(scan func(dest ...any) error) error {
		found = true
		return scan(&owner)
	})
	return owner, found, err
}

// CheckUniqueIncludingTombstones implements Backend.
func (b *SQLBackend) CheckUniqueIncludingTombstones(ctx context.Context, graphID, nodeKind, constraintName, key string) (string, bool, *time.Time, error) {
	query := fmt.Sprintf(`SELECT node_id, deleted_at FROM %s WHERE graph_id = %s AND node_kind = %s AND constraint_name = %s AND key = %s`,
		b.tables.Uniques, b.ph(1), b.ph(2), b.ph(3), b.ph(4))
	var owner string
	var deletedAtRaw any
	found := false
	err := b.queryRows(ctx, query, []any{graphID, nodeKind, constraintName, key}, func(scan func(dest ...any) error) error {
		found = true
		return scan(&owner, &deletedAtRaw)
	})
	if err != nil {
		return "", false, nil, err
	}
	deletedAt, err := scanNullTime(deletedAtRaw)
	if err != nil {
		return "", false, nil, err
	}
	return owner, found, deletedAt, nil
}

// CheckUniqueBatch implements Backend.
func (b *SQLBackend) CheckUniqueBatch(ctx context.Context, graphID, nodeKind, constraintName string, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	args := []any{graphID, nodeKind, constraintName}
	keyPh := make([]string, len(keys))
	idx := 4
	for i, k := range keys {
		keyPh[i] = b.ph(idx)
		args = append(args, k)
		idx++
	}
	query := fmt.Sprintf(`SELECT key, node_id FROM %s WHERE graph_id = %s AND node_kind = %s AND constraint_name = %s AND key IN (%s) AND deleted_at IS NULL`,
		b.tables.Uniques, b.ph(1), b.ph(2), b.ph(3), strings.Join(keyPh, ", "))
	err := b.queryRows(ctx, query, args, func(scan func(dest ...any) error) error {
		var k, owner string
		if err := scan(&k, &owner); err != nil {
			return err
		}
		out[k] = owner
		return nil
	})
	return out, err
}

// DeleteUnique implements Backend (soft delete: the key is freed for reuse
// but the row survives for resurrection, spec §4.3).
func (b *SQLBackend) DeleteUnique(ctx context.Context, graphID, nodeKind, constraintName, key string, deletedAt time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET deleted_at = %s WHERE graph_id = %s AND node_kind = %s AND constraint_name = %s AND key = %s`,
		b.tables.Uniques, b.ph(1), b.ph(2), b.ph(3), b.ph(4), b.ph(5))
	return b.exec(ctx, query, []any{deletedAt, graphID, nodeKind, constraintName, key})
}
