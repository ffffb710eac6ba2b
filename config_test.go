package typegraph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicia-ai/typegraph"
)

func TestLoadConfigFromReaderDefaults(t *testing.T) {
	cfg, err := typegraph.LoadConfigFromReader(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, "nodes", cfg.TableNames().Nodes)
	require.Equal(t, 256, cfg.StatementCache)
}

func TestLoadConfigFromReaderOverridesTableNames(t *testing.T) {
	yamlText := `
tables:
  nodes: kg_nodes
  embeddings: kg_embeddings
statementCache: 64
`
	cfg, err := typegraph.LoadConfigFromReader(strings.NewReader(yamlText))
	require.NoError(t, err)

	names := cfg.TableNames()
	require.Equal(t, "kg_nodes", names.Nodes)
	require.Equal(t, "kg_embeddings", names.Embeddings)
	require.Equal(t, "edges", names.Edges) // unset field falls back to default
	require.Equal(t, 64, cfg.StatementCache)
}

func TestLoadConfigFromReaderRejectsInvalidTableName(t *testing.T) {
	yamlText := `
tables:
  nodes: "bad name with spaces"
`
	_, err := typegraph.LoadConfigFromReader(strings.NewReader(yamlText))
	require.Error(t, err)
}

func TestLoadConfigFromReaderRejectsUnknownField(t *testing.T) {
	yamlText := `
notAField: true
`
	_, err := typegraph.LoadConfigFromReader(strings.NewReader(yamlText))
	require.Error(t, err)
}

func TestLoadConfigFromReaderRejectsNegativeStatementCache(t *testing.T) {
	yamlText := `
statementCache: -1
`
	_, err := typegraph.LoadConfigFromReader(strings.NewReader(yamlText))
	require.Error(t, err)
}
