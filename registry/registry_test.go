package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicia-ai/typegraph"
	"github.com/nicia-ai/typegraph/graphdef"
	"github.com/nicia-ai/typegraph/ontology"
	"github.com/nicia-ai/typegraph/registry"
)

func newTestDef() *graphdef.GraphDef {
	def := graphdef.New()
	def.RegisterNode(graphdef.NodeRegistration{Type: graphdef.NodeType{Kind: "Animal"}})
	def.RegisterNode(graphdef.NodeRegistration{Type: graphdef.NodeType{Kind: "Dog"}})
	def.RegisterNode(graphdef.NodeRegistration{Type: graphdef.NodeType{Kind: "Puppy"}})
	def.RegisterNode(graphdef.NodeRegistration{Type: graphdef.NodeType{Kind: "Cat"}})
	def.RegisterNode(graphdef.NodeRegistration{
		Type: graphdef.NodeType{Kind: "User"},
		Unique: []graphdef.UniqueConstraint{
			{Name: "email_unique", Fields: []string{"email"}, Collation: graphdef.CaseInsensitive},
		},
	})
	def.RegisterEdge(graphdef.EdgeRegistration{Type: graphdef.EdgeType{Kind: "employs"}, Cardinality: graphdef.Many})
	def.RegisterEdge(graphdef.EdgeRegistration{Type: graphdef.EdgeType{Kind: "employedBy"}, Cardinality: graphdef.Many})
	def.RegisterEdge(graphdef.EdgeRegistration{Type: graphdef.EdgeType{Kind: "affiliatedWith"}, Cardinality: graphdef.Many})

	def.AddRelation(
		ontology.SubClassOf{Child: "Dog", Parent: "Animal"},
		ontology.SubClassOf{Child: "Puppy", Parent: "Dog"},
		ontology.DisjointWith{A: "Cat", B: "Dog"},
		ontology.InverseOf{Forward: "employs", Backward: "employedBy"},
		ontology.Implies{From: "employs", To: "affiliatedWith"},
	)
	return def
}

func TestExpandSubClasses(t *testing.T) {
	reg, err := registry.New(newTestDef())
	require.NoError(t, err)

	t.Run("reflexive and transitive", func(t *testing.T) {
		kinds := reg.ExpandSubClasses("Animal")
		assert.ElementsMatch(t, []string{"Animal", "Dog", "Puppy"}, kinds)
	})

	t.Run("leaf kind is just itself", func(t *testing.T) {
		kinds := reg.ExpandSubClasses("Puppy")
		assert.ElementsMatch(t, []string{"Puppy"}, kinds)
	})

	t.Run("unrelated kind is unaffected", func(t *testing.T) {
		kinds := reg.ExpandSubClasses("Cat")
		assert.ElementsMatch(t, []string{"Cat"}, kinds)
	})
}

func TestGetDisjointWith(t *testing.T) {
	reg, err := registry.New(newTestDef())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Dog"}, reg.GetDisjointWith("Cat"))
	assert.ElementsMatch(t, []string{"Cat"}, reg.GetDisjointWith("Dog"))
	assert.Empty(t, reg.GetDisjointWith("Animal"))
}

func TestGetInverseEdge(t *testing.T) {
	reg, err := registry.New(newTestDef())
	require.NoError(t, err)

	inv, ok := reg.GetInverseEdge("employs")
	require.True(t, ok)
	assert.Equal(t, "employedBy", inv)

	inv, ok = reg.GetInverseEdge("employedBy")
	require.True(t, ok)
	assert.Equal(t, "employs", inv)

	_, ok = reg.GetInverseEdge("affiliatedWith")
	assert.False(t, ok)
}

func TestImpliedAndImplyingEdgesAreMutualInverses(t *testing.T) {
	reg, err := registry.New(newTestDef())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"affiliatedWith"}, reg.GetImpliedEdges("employs"))
	assert.ElementsMatch(t, []string{"employs"}, reg.GetImplyingEdges("affiliatedWith"))

	assert.ElementsMatch(t, []string{"affiliatedWith", "employs"}, reg.ExpandImplyingEdges("affiliatedWith"))
}

func TestCyclicImplicationRejected(t *testing.T) {
	def := graphdef.New()
	def.RegisterEdge(graphdef.EdgeRegistration{Type: graphdef.EdgeType{Kind: "a"}})
	def.RegisterEdge(graphdef.EdgeRegistration{Type: graphdef.EdgeType{Kind: "b"}})
	def.AddRelation(
		ontology.Implies{From: "a", To: "b"},
		ontology.Implies{From: "b", To: "a"},
	)

	_, err := registry.New(def)
	require.Error(t, err)
	assert.True(t, typegraph.IsConfigurationError(err))
}

func TestResolveUniqueKey(t *testing.T) {
	reg, err := registry.New(newTestDef())
	require.NoError(t, err)

	c, err := reg.GetUniqueConstraint("User", "email_unique")
	require.NoError(t, err)

	k1, err := reg.ResolveUniqueKey(c, map[string]any{"email": "Alice@Example.com"})
	require.NoError(t, err)
	k2, err := reg.ResolveUniqueKey(c, map[string]any{"email": "alice@example.com"})
	require.NoError(t, err)

	assert.Equal(t, k1, k2, "caseInsensitive constraints must collide regardless of case (B5)")
}

func TestResolveUniqueKeyMissingField(t *testing.T) {
	reg, err := registry.New(newTestDef())
	require.NoError(t, err)

	c, err := reg.GetUniqueConstraint("User", "email_unique")
	require.NoError(t, err)

	_, err = reg.ResolveUniqueKey(c, map[string]any{})
	require.Error(t, err)
	assert.True(t, typegraph.IsValidationError(err))
}

func TestGetUniqueConstraintNotFound(t *testing.T) {
	reg, err := registry.New(newTestDef())
	require.NoError(t, err)

	_, err = reg.GetUniqueConstraint("User", "nonexistent")
	require.Error(t, err)
	assert.True(t, typegraph.IsConstraintNotFound(err))
}

func TestGetNodeRegistrationNotFound(t *testing.T) {
	reg, err := registry.New(newTestDef())
	require.NoError(t, err)

	_, err = reg.GetNodeRegistration("Widget")
	require.Error(t, err)
	assert.True(t, typegraph.IsKindNotFound(err))
}
