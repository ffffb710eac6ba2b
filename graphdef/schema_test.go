package graphdef_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicia-ai/typegraph/graphdef"
	"github.com/nicia-ai/typegraph/ontology"
)

func sampleGraphDef() *graphdef.GraphDef {
	g := graphdef.New()
	g.RegisterNode(graphdef.NodeRegistration{
		Type:     graphdef.NodeType{Kind: "Person"},
		OnDelete: graphdef.Cascade,
		Unique: []graphdef.UniqueConstraint{
			{Name: "email_unique", Fields: []string{"email"}, Collation: graphdef.CaseInsensitive},
		},
	})
	g.RegisterNode(graphdef.NodeRegistration{Type: graphdef.NodeType{Kind: "Company"}})
	g.RegisterEdge(graphdef.EdgeRegistration{
		Type:        graphdef.EdgeType{Kind: "worksAt"},
		FromKinds:   []string{"Person"},
		ToKinds:     []string{"Company"},
		Cardinality: graphdef.Many,
	})
	g.AddRelation(ontology.InverseOf{Forward: "worksAt", Backward: "employs"})
	return g
}

func TestSchemaHashStableAcrossRegistrationOrder(t *testing.T) {
	a := sampleGraphDef()

	b := graphdef.New()
	b.RegisterEdge(graphdef.EdgeRegistration{
		Type:        graphdef.EdgeType{Kind: "worksAt"},
		FromKinds:   []string{"Person"},
		ToKinds:     []string{"Company"},
		Cardinality: graphdef.Many,
	})
	b.RegisterNode(graphdef.NodeRegistration{Type: graphdef.NodeType{Kind: "Company"}})
	b.RegisterNode(graphdef.NodeRegistration{
		Type:     graphdef.NodeType{Kind: "Person"},
		OnDelete: graphdef.Cascade,
		Unique: []graphdef.UniqueConstraint{
			{Name: "email_unique", Fields: []string{"email"}, Collation: graphdef.CaseInsensitive},
		},
	})
	b.AddRelation(ontology.InverseOf{Forward: "worksAt", Backward: "employs"})

	hashA, err := graphdef.SchemaHash(a)
	require.NoError(t, err)
	hashB, err := graphdef.SchemaHash(b)
	require.NoError(t, err)
	require.Equal(t, hashA, hashB)
	require.Len(t, hashA, 64) // hex-encoded SHA-256
}

func TestSchemaHashChangesWithDefinition(t *testing.T) {
	a := sampleGraphDef()
	hashA, err := graphdef.SchemaHash(a)
	require.NoError(t, err)

	b := sampleGraphDef()
	b.RegisterNode(graphdef.NodeRegistration{Type: graphdef.NodeType{Kind: "Passport"}})
	hashB, err := graphdef.SchemaHash(b)
	require.NoError(t, err)

	require.NotEqual(t, hashA, hashB)
}

func TestSchemaDocIsValidJSON(t *testing.T) {
	doc, err := graphdef.SchemaDoc(sampleGraphDef())
	require.NoError(t, err)
	require.True(t, json.Valid([]byte(doc)))
	require.Contains(t, string(doc), "\"worksAt\"")
	require.Contains(t, string(doc), "\"inverseOf\"")
}
