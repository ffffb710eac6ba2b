package storage

import (
	"context"
	"fmt"

	"github.com/nicia-ai/typegraph"
	"github.com/nicia-ai/typegraph/internal/sqlbuilder"
)

// InsertSchema implements Backend.
func (b *SQLBackend) InsertSchema(ctx context.Context, v SchemaVersion) error {
	query := fmt.Sprintf(`INSERT INTO %s (graph_id, version, schema_hash, schema_doc, created_at, is_active) VALUES (%s)`,
		b.tables.SchemaVersions, b.placeholders(6))
	args := []any{v.GraphID, v.Version, v.SchemaHash, v.SchemaDoc, v.CreatedAt, v.IsActive}
	return b.exec(ctx, query, args)
}

func (b *SQLBackend) scanSchemaVersion(scan func(dest ...any) error) (SchemaVersion, error) {
	var v SchemaVersion
	if err := scan(&v.GraphID, &v.Version, &v.SchemaHash, &v.SchemaDoc, &v.CreatedAt, &v.IsActive); err != nil {
		return SchemaVersion{}, err
	}
	return v, nil
}

const schemaColumns = "graph_id, version, schema_hash, schema_doc, created_at, is_active"

// GetActiveSchema implements Backend.
func (b *SQLBackend) GetActiveSchema(ctx context.Context, graphID string) (*SchemaVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE graph_id = %s AND is_active = %s`,
		schemaColumns, b.tables.SchemaVersions, b.ph(1), b.strategy.BoolLiteral(true))
	var out *SchemaVersion
	err := b.queryRows(ctx, query, []any{graphID}, func(scan func(dest ...any) error) error {
		v, err := b.scanSchemaVersion(scan)
		if err != nil {
			return err
		}
		out = &v
		return nil
	})
	return out, err
}

// GetSchemaVersion implements Backend.
func (b *SQLBackend) GetSchemaVersion(ctx context.Context, graphID string, version int) (*SchemaVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE graph_id = %s AND version = %s`,
		schemaColumns, b.tables.SchemaVersions, b.ph(1), b.ph(2))
	var out *SchemaVersion
	err := b.queryRows(ctx, query, []any{graphID, version}, func(scan func(dest ...any) error) error {
		v, err := b.scanSchemaVersion(scan)
		if err != nil {
			return err
		}
		out = &v
		return nil
	})
	return out, err
}

// SetActiveSchema implements Backend: deactivates every other version for
// graphID, then activates version. Callers run this inside Transaction.
func (b *SQLBackend) SetActiveSchema(ctx context.Context, graphID string, version int) error {
	deactivate := fmt.Sprintf(`UPDATE %s SET is_active = %s WHERE graph_id = %s`,
		b.tables.SchemaVersions, b.strategy.BoolLiteral(false), b.ph(1))
	if err := b.exec(ctx, deactivate, []any{graphID}); err != nil {
		return err
	}
	activate := fmt.Sprintf(`UPDATE %s SET is_active = %s WHERE graph_id = %s AND version = %s`,
		b.tables.SchemaVersions, b.strategy.BoolLiteral(true), b.ph(1), b.ph(2))
	return b.exec(ctx, activate, []any{graphID, version})
}

// ClearGraph implements Backend: deletes every row scoped to graphID in
// dependency order (embeddings, uniques, edges, nodes, schemaVersions,
// spec §4.2.7).
func (b *SQLBackend) ClearGraph(ctx context.Context, graphID string) error {
	tables := []string{b.tables.Embeddings, b.tables.Uniques, b.tables.Edges, b.tables.Nodes, b.tables.SchemaVersions}
	for _, t := range tables {
		query := fmt.Sprintf(`DELETE FROM %s WHERE graph_id = %s`, t, b.ph(1))
		if err := b.exec(ctx, query, []any{graphID}); err != nil {
			return err
		}
	}
	return nil
}

// Execute implements Backend: runs compiled query-package SQL and decodes
// every row into a column-name-keyed map.
func (b *SQLBackend) Execute(ctx context.Context, sqlText string, args []any) ([]map[string]any, error) {
	var out []map[string]any
	err := b.run(ctx, func() error {
		var rows sqlbuilder.Rows
		if err := b.conn.Query(ctx, sqlText, args, &rows); err != nil {
			return typegraph.NewDatabaseOperationError(sqlText, err)
		}
		defer rows.Close()
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}
			row := make(map[string]any, len(cols))
			for i, c := range cols {
				row[c] = vals[i]
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	return out, err
}
