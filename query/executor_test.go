package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicia-ai/typegraph/dialect/sqlitedialect"
	"github.com/nicia-ai/typegraph/graphdef"
	"github.com/nicia-ai/typegraph/internal/sqlbuilder"
	"github.com/nicia-ai/typegraph/query"
	"github.com/nicia-ai/typegraph/registry"
	"github.com/nicia-ai/typegraph/storage"
)

const testSchemaDDL = `
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

func splitStatements(schema string) []string {
	var out []string
	var cur string
	for _, r := range schema {
		cur += string(r)
		if r == ';' {
			out = append(out, cur)
			cur = ""
		}
	}
	return out
}

func newTestSetup(t *testing.T) (*storage.Engine, *storage.SQLBackend, *registry.Registry) {
	t.Helper()
	drv, err := sqlbuilder.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })

	ctx := context.Background()
	for _, stmt := range splitStatements(testSchemaDDL) {
		require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil))
	}

	backend, err := storage.NewSQLBackend(drv, sqlitedialect.New(), storage.DefaultTableNames(), nil)
	require.NoError(t, err)

	def := graphdef.New()
	def.RegisterNode(graphdef.NodeRegistration{Type: graphdef.NodeType{Kind: "Person"}})
	def.RegisterNode(graphdef.NodeRegistration{Type: graphdef.NodeType{Kind: "Company"}})
	def.RegisterEdge(graphdef.EdgeRegistration{
		Type:        graphdef.EdgeType{Kind: "worksAt"},
		Cardinality: graphdef.Many,
		FromKinds:   []string{"Person"},
		ToKinds:     []string{"Company"},
	})
	reg, err := registry.New(def)
	require.NoError(t, err)

	eng := storage.NewEngine(backend, reg, "g1", nil)
	return eng, backend, reg
}

func TestExecutorSelectivePredicateAndOrder(t *testing.T) {
	eng, backend, reg := newTestSetup(t)
	ctx := context.Background()

	alice, err := eng.CreateNode(ctx, storage.CreateNodeInput{Kind: "Person", Props: map[string]any{"name": "Alice", "age": float64(30)}})
	require.NoError(t, err)
	_, err = eng.CreateNode(ctx, storage.CreateNodeInput{Kind: "Person", Props: map[string]any{"name": "Bob", "age": float64(25)}})
	require.NoError(t, err)

	acme, err := eng.CreateNode(ctx, storage.CreateNodeInput{Kind: "Company", Props: map[string]any{"name": "Acme"}})
	require.NoError(t, err)

	_, err = eng.CreateEdge(ctx, storage.CreateEdgeInput{
		Kind: "worksAt", FromKind: "Person", FromID: alice.ID, ToKind: "Company", ToID: acme.ID,
	})
	require.NoError(t, err)

	ex := query.NewExecutor(backend, reg, sqlitedialect.New(), storage.DefaultTableNames(), 0)

	q := query.From("g1", "p", "Person").
		Where(query.Predicate{Op: query.OpGe, Operands: []query.Operand{query.FieldOperand("p", "age"), query.Lit(float64(26))}}).
		Select(query.Binding{Name: "name", Field: &query.FieldRef{Alias: "p", Path: "name"}}).
		OrderBy("p", "name", false).
		Build()

	res, err := ex.Run(ctx, q)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "Alice", res.Rows[0]["name"])
}

func TestExecutorTraversalJoin(t *testing.T) {
	eng, backend, reg := newTestSetup(t)
	ctx := context.Background()

	alice, err := eng.CreateNode(ctx, storage.CreateNodeInput{Kind: "Person", Props: map[string]any{"name": "Alice"}})
	require.NoError(t, err)
	acme, err := eng.CreateNode(ctx, storage.CreateNodeInput{Kind: "Company", Props: map[string]any{"name": "Acme"}})
	require.NoError(t, err)
	_, err = eng.CreateEdge(ctx, storage.CreateEdgeInput{
		Kind: "worksAt", FromKind: "Person", FromID: alice.ID, ToKind: "Company", ToID: acme.ID,
	})
	require.NoError(t, err)

	ex := query.NewExecutor(backend, reg, sqlitedialect.New(), storage.DefaultTableNames(), 8)

	q := query.From("g1", "p", "Person").
		Traverse(query.Traversal{
			EdgeAlias: "e", EdgeKinds: []string{"worksAt"}, Direction: query.Out,
			JoinFromAlias: "p", ToAlias: "c", ToKinds: []string{"Company"},
		}).
		Select(
			query.Binding{Name: "personName", Field: &query.FieldRef{Alias: "p", Path: "name"}},
			query.Binding{Name: "companyName", Field: &query.FieldRef{Alias: "c", Path: "name"}},
		).
		Build()

	res, err := ex.Run(ctx, q)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "Alice", res.Rows[0]["personName"])
	require.Equal(t, "Acme", res.Rows[0]["companyName"])

	// running the identical query again should hit the statement cache
	res2, err := ex.Run(ctx, q)
	require.NoError(t, err)
	require.Len(t, res2.Rows, 1)
}

func TestExecutorPagination(t *testing.T) {
	eng, backend, reg := newTestSetup(t)
	ctx := context.Background()

	names := []string{"Ann", "Ben", "Cal", "Deb"}
	for _, n := range names {
		_, err := eng.CreateNode(ctx, storage.CreateNodeInput{Kind: "Person", Props: map[string]any{"name": n}})
		require.NoError(t, err)
	}

	ex := query.NewExecutor(backend, reg, sqlitedialect.New(), storage.DefaultTableNames(), 0)
	q := query.From("g1", "p", "Person").
		Select(query.Binding{Name: "name", Field: &query.FieldRef{Alias: "p", Path: "name"}}).
		OrderBy("p", "name", false).
		Build()

	page1, err := ex.Page(ctx, q, "", 2)
	require.NoError(t, err)
	require.Len(t, page1.Rows, 2)
	require.True(t, page1.HasNextPage)
	require.Equal(t, "Ann", page1.Rows[0]["name"])
	require.Equal(t, "Ben", page1.Rows[1]["name"])

	page2, err := ex.Page(ctx, q, page1.EndCursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Rows, 2)
	require.False(t, page2.HasNextPage)
	require.Equal(t, "Cal", page2.Rows[0]["name"])
	require.Equal(t, "Deb", page2.Rows[1]["name"])
}
