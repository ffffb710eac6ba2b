package graphdef_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicia-ai/typegraph/graphdef"
	"github.com/nicia-ai/typegraph/ontology"
)

func TestOnDeleteString(t *testing.T) {
	tests := []struct {
		d    graphdef.OnDelete
		want string
	}{
		{graphdef.Restrict, "restrict"},
		{graphdef.Cascade, "cascade"},
		{graphdef.Disconnect, "disconnect"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.d.String())
	}
}

func TestGraphDefRegistration(t *testing.T) {
	g := graphdef.New()
	g.RegisterNode(graphdef.NodeRegistration{
		Type:     graphdef.NodeType{Kind: "Person"},
		OnDelete: graphdef.Cascade,
		Unique: []graphdef.UniqueConstraint{
			{Name: "email_unique", Fields: []string{"email"}, Collation: graphdef.CaseInsensitive},
		},
	})
	g.RegisterEdge(graphdef.EdgeRegistration{
		Type:        graphdef.EdgeType{Kind: "worksAt"},
		FromKinds:   []string{"Person"},
		ToKinds:     []string{"Company"},
		Cardinality: graphdef.Many,
	})
	g.AddRelation(ontology.InverseOf{Forward: "worksAt", Backward: "employs"})

	require.Contains(t, g.Nodes, "Person")
	require.Contains(t, g.Edges, "worksAt")
	assert.Equal(t, graphdef.Cascade, g.Nodes["Person"].OnDelete)
	assert.Len(t, g.Ontology, 1)
}
