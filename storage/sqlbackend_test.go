package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nicia-ai/typegraph/dialect/sqlitedialect"
	"github.com/nicia-ai/typegraph/internal/sqlbuilder"
	"github.com/nicia-ai/typegraph/storage"
)

// schemaDDL creates the five tables directly; the engine itself never runs
// migrations (spec §1 non-goals), this is test scaffolding only.
const schemaDDL = `
CREATE TABLE nodes (
  graph_id TEXT NOT NULL, kind TEXT NOT NULL, id TEXT NOT NULL,
  props TEXT NOT NULL, version INTEGER NOT NULL,
  valid_from TIMESTAMP, valid_to TIMESTAMP,
  created_at TIMESTAMP NOT NULL, updated_at TIMESTAMP NOT NULL, deleted_at TIMESTAMP,
  PRIMARY KEY (graph_id, kind, id)
);
CREATE TABLE edges (
  graph_id TEXT NOT NULL, id TEXT NOT NULL, kind TEXT NOT NULL,
  from_kind TEXT NOT NULL, from_id TEXT NOT NULL, to_kind TEXT NOT NULL, to_id TEXT NOT NULL,
  props TEXT NOT NULL, valid_from TIMESTAMP, valid_to TIMESTAMP,
  created_at TIMESTAMP NOT NULL, updated_at TIMESTAMP NOT NULL, deleted_at TIMESTAMP,
  PRIMARY KEY (graph_id, id)
);
CREATE TABLE uniques (
  graph_id TEXT NOT NULL, node_kind TEXT NOT NULL, constraint_name TEXT NOT NULL, key TEXT NOT NULL,
  node_id TEXT NOT NULL, concrete_kind TEXT NOT NULL, deleted_at TIMESTAMP,
  PRIMARY KEY (graph_id, node_kind, constraint_name, key)
);
CREATE TABLE schema_versions (
  graph_id TEXT NOT NULL, version INTEGER NOT NULL, schema_hash TEXT NOT NULL,
  schema_doc TEXT NOT NULL, created_at TIMESTAMP NOT NULL, is_active BOOLEAN NOT NULL,
  PRIMARY KEY (graph_id, version)
);
CREATE TABLE embeddings (
  graph_id TEXT NOT NULL, node_kind TEXT NOT NULL, node_id TEXT NOT NULL,
  vector BLOB NOT NULL, dims INTEGER NOT NULL, deleted_at TIMESTAMP,
  PRIMARY KEY (graph_id, node_kind, node_id)
);
`

func newTestBackend(t *testing.T) *storage.SQLBackend {
	t.Helper()
	drv, err := sqlbuilder.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })

	ctx := context.Background()
	for _, stmt := range splitStatements(schemaDDL) {
		err := drv.Exec(ctx, stmt, []any{}, nil)
		require.NoError(t, err)
	}

	b, err := storage.NewSQLBackend(drv, sqlitedialect.New(), storage.DefaultTableNames(), nil)
	require.NoError(t, err)
	return b
}

func splitStatements(schema string) []string {
	var out []string
	start := 0
	for i, c := range schema {
		if c == ';' {
			if stmt := schema[start:i]; len(stmt) > 0 {
				out = append(out, stmt)
			}
			start = i + 1
		}
	}
	return out
}

func TestInsertAndGetNode(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	n := storage.Node{
		GraphID: "g1", Kind: "Person", ID: "p1",
		Props: map[string]any{"name": "Ada"}, Version: 1,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, b.InsertNode(ctx, n))

	got, err := b.GetNode(ctx, "g1", "Person", "p1", storage.CurrentFilter())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Ada", got.Props["name"])
	require.Equal(t, 1, got.Version)
}

func TestDeleteNodeExcludedFromCurrentFilter(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	n := storage.Node{GraphID: "g1", Kind: "Person", ID: "p1", Props: map[string]any{}, Version: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, b.InsertNode(ctx, n))
	require.NoError(t, b.DeleteNode(ctx, "g1", "Person", "p1", now))

	got, err := b.GetNode(ctx, "g1", "Person", "p1", storage.CurrentFilter())
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = b.GetNode(ctx, "g1", "Person", "p1", storage.Filter{Mode: storage.IncludeTombstones})
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestUniqueClaimAndResurrect(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	owner, err := b.InsertUnique(ctx, "g1", "User", "email_unique", "ada@example.com", "u1", "User")
	require.NoError(t, err)
	require.Equal(t, "u1", owner)

	// A different node claiming the same live key is rejected: the row
	// comes back owned by u1.
	owner, err = b.InsertUnique(ctx, "g1", "User", "email_unique", "ada@example.com", "u2", "User")
	require.NoError(t, err)
	require.Equal(t, "u1", owner)

	// Soft-delete the key, then resurrect it under a new owner.
	require.NoError(t, b.DeleteUnique(ctx, "g1", "User", "email_unique", "ada@example.com", now))
	owner, err = b.InsertUnique(ctx, "g1", "User", "email_unique", "ada@example.com", "u2", "User")
	require.NoError(t, err)
	require.Equal(t, "u2", owner)

	_, found, err := b.CheckUnique(ctx, "g1", "User", "email_unique", "ada@example.com")
	require.NoError(t, err)
	require.True(t, found)
}

func TestClearGraphScopedToGraphID(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, b.InsertNode(ctx, storage.Node{GraphID: "g1", Kind: "Person", ID: "p1", Props: map[string]any{}, Version: 1, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, b.InsertNode(ctx, storage.Node{GraphID: "g2", Kind: "Person", ID: "p2", Props: map[string]any{}, Version: 1, CreatedAt: now, UpdatedAt: now}))

	require.NoError(t, b.ClearGraph(ctx, "g1"))

	got, err := b.GetNode(ctx, "g1", "Person", "p1", storage.CurrentFilter())
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = b.GetNode(ctx, "g2", "Person", "p2", storage.CurrentFilter())
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	err := b.Transaction(ctx, func(ctx context.Context, tx storage.Backend) error {
		n := storage.Node{GraphID: "g1", Kind: "Person", ID: "p1", Props: map[string]any{}, Version: 1, CreatedAt: now, UpdatedAt: now}
		if err := tx.InsertNode(ctx, n); err != nil {
			return err
		}
		return errors.New("forced rollback")
	})
	require.Error(t, err)

	got, gerr := b.GetNode(ctx, "g1", "Person", "p1", storage.CurrentFilter())
	require.NoError(t, gerr)
	require.Nil(t, got)
}
