package client_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicia-ai/typegraph/client"
	"github.com/nicia-ai/typegraph/dialect/sqlitedialect"
	"github.com/nicia-ai/typegraph/graphdef"
	"github.com/nicia-ai/typegraph/internal/sqlbuilder"
	"github.com/nicia-ai/typegraph/storage"
)

const clientTestDDL = `
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

func splitDDL(schema string) []string {
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

func newTestDriver(t *testing.T) *sqlbuilder.Driver {
	t.Helper()
	drv, err := sqlbuilder.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	ctx := context.Background()
	for _, stmt := range splitDDL(clientTestDDL) {
		require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil))
	}
	return drv
}

func openTestClient(t *testing.T, def *graphdef.GraphDef) *client.Client {
	t.Helper()
	drv := newTestDriver(t)
	backend, err := storage.NewSQLBackend(drv, sqlitedialect.New(), storage.DefaultTableNames(), nil)
	require.NoError(t, err)

	c, err := client.Open(context.Background(), backend, sqlitedialect.New(), def, "g1", client.Options{})
	require.NoError(t, err)
	return c
}

func personDef() *graphdef.GraphDef {
	def := graphdef.New()
	def.RegisterNode(graphdef.NodeRegistration{Type: graphdef.NodeType{Kind: "Person"}})
	return def
}

func TestOpenRecordsActiveSchemaVersion(t *testing.T) {
	c := openTestClient(t, personDef())
	ctx := context.Background()

	active, err := c.Backend.GetActiveSchema(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, 1, active.Version)
	require.True(t, active.IsActive)

	hash, err := graphdef.SchemaHash(personDef())
	require.NoError(t, err)
	require.Equal(t, hash, active.SchemaHash)
}

func TestOpenIsIdempotentWhenDefinitionUnchanged(t *testing.T) {
	drv := newTestDriver(t)
	backend, err := storage.NewSQLBackend(drv, sqlitedialect.New(), storage.DefaultTableNames(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Open(ctx, backend, sqlitedialect.New(), personDef(), "g1", client.Options{})
	require.NoError(t, err)
	_, err = client.Open(ctx, backend, sqlitedialect.New(), personDef(), "g1", client.Options{})
	require.NoError(t, err)

	active, err := backend.GetActiveSchema(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, 1, active.Version)
}

func TestOpenBumpsVersionOnDefinitionDrift(t *testing.T) {
	drv := newTestDriver(t)
	backend, err := storage.NewSQLBackend(drv, sqlitedialect.New(), storage.DefaultTableNames(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Open(ctx, backend, sqlitedialect.New(), personDef(), "g1", client.Options{})
	require.NoError(t, err)

	changed := graphdef.New()
	changed.RegisterNode(graphdef.NodeRegistration{Type: graphdef.NodeType{Kind: "Person"}})
	changed.RegisterNode(graphdef.NodeRegistration{Type: graphdef.NodeType{Kind: "Company"}})
	_, err = client.Open(ctx, backend, sqlitedialect.New(), changed, "g1", client.Options{})
	require.NoError(t, err)

	active, err := backend.GetActiveSchema(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, 2, active.Version)
}

func TestClientCreateNodeAndQuery(t *testing.T) {
	c := openTestClient(t, personDef())
	ctx := context.Background()

	_, err := c.Engine.CreateNode(ctx, storage.CreateNodeInput{Kind: "Person", Props: map[string]any{"name": "Alice"}})
	require.NoError(t, err)

	q := c.Query("p", "Person").Build()
	res, err := c.Executor.Run(ctx, q)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
}

func TestClientTransactionRollsBackOnError(t *testing.T) {
	c := openTestClient(t, personDef())
	ctx := context.Background()

	err := c.Transaction(ctx, func(ctx context.Context, tx *client.Client) error {
		_, err := tx.Engine.CreateNode(ctx, storage.CreateNodeInput{Kind: "Person", Props: map[string]any{"name": "Bob"}})
		if err != nil {
			return err
		}
		return context.DeadlineExceeded
	})
	require.Error(t, err)

	n, err := c.Backend.CountNodesByKind(ctx, "g1", []string{"Person"}, storage.CurrentFilter())
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestSchemaDriftReportsFalseWhenUnchanged(t *testing.T) {
	c := openTestClient(t, personDef())
	ctx := context.Background()

	drift, err := client.SchemaDrift(ctx, c.Backend, personDef(), "g1")
	require.NoError(t, err)
	require.False(t, drift)
}
