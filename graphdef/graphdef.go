// Package graphdef declares the schema vocabulary TypeGraph compiles into
// a registry: node and edge type descriptions, their per-graph
// registrations (delete behavior, cardinality, uniqueness), and the
// GraphDef that binds them together with an ontology. Everything here is
// pure data; no I/O and no validation logic beyond shape checks performed
// at registry-build time (see the registry package).
package graphdef

import "github.com/nicia-ai/typegraph/ontology"

// PropValidator validates and normalizes a node or edge's prop payload.
// Implementations typically wrap an external shape-validation library
// (out of scope for this module; see spec §1); the engine only requires
// that Validate return the normalized value or an error.
type PropValidator interface {
	Validate(props map[string]any) (map[string]any, error)
}

// NodeType is a declared node kind: a name plus its prop validator.
type NodeType struct {
	Kind      string
	Validator PropValidator
}

// EdgeType is a declared edge kind: a name plus an optional prop validator.
type EdgeType struct {
	Kind      string
	Validator PropValidator // nil when the edge carries no props
}

// OnDelete controls what happens to incident edges when a node is deleted.
type OnDelete int

const (
	// Restrict refuses the delete when a live incident edge exists.
	Restrict OnDelete = iota
	// Cascade soft-deletes every live incident edge.
	Cascade
	// Disconnect soft-deletes every live incident edge, identically to
	// Cascade, but additionally emits a disconnect hook event (§9).
	Disconnect
)

// String returns the lowercase name used in schemaDoc and error messages.
func (d OnDelete) String() string {
	switch d {
	case Cascade:
		return "cascade"
	case Disconnect:
		return "disconnect"
	default:
		return "restrict"
	}
}

// UniqueScope controls which rows a UniqueConstraint's key is compared
// against.
type UniqueScope int

const (
	// ScopeKind compares only against rows of the exact same kind.
	ScopeKind UniqueScope = iota
	// ScopeKindWithSubClasses compares against rows of the kind and all
	// of its registry-expanded subclasses.
	ScopeKindWithSubClasses
	// ScopeGraph compares against every node in the graph regardless of
	// kind.
	ScopeGraph
)

// Collation controls how a UniqueConstraint's key is derived from string
// field values.
type Collation int

const (
	// Binary compares field values verbatim.
	Binary Collation = iota
	// CaseInsensitive lowercases string field values before deriving the
	// key, so "Alice@example.com" and "alice@example.com" collide.
	CaseInsensitive
)

// UniqueConstraint names an ordered set of prop field paths that, taken
// together within Scope, must identify at most one live node.
type UniqueConstraint struct {
	Name      string
	Fields    []string // ordered, prop-path list
	Scope     UniqueScope
	Collation Collation
}

// NodeRegistration binds a NodeType into a specific graph: its delete
// behavior and the uniqueness constraints declared on it.
type NodeRegistration struct {
	Type     NodeType
	OnDelete OnDelete // zero value is Restrict
	Unique   []UniqueConstraint
}

// Cardinality bounds how many live edges of a kind may originate at a
// single `from` node.
type Cardinality int

const (
	// Many permits any number of outgoing edges of this kind.
	Many Cardinality = iota
	// One permits at most one live (not soft-deleted) outgoing edge of
	// this kind, whether or not its validTo is set.
	One
	// OneActive permits at most one outgoing edge of this kind with
	// validTo IS NULL; ended edges do not count against the limit.
	OneActive
	// Unique permits at most one live edge of this kind between any
	// specific (from, to) pair, but does not bound fan-out.
	Unique
)

// EdgeRegistration binds an EdgeType into a specific graph: the node kinds
// permitted at each endpoint and the cardinality enforced on creation.
type EdgeRegistration struct {
	Type        EdgeType
	FromKinds   []string // set of NodeType kind names
	ToKinds     []string
	Cardinality Cardinality
}

// GraphDef is the declarative description of one graph: its node and edge
// registrations plus the ontology relations that connect their kinds. The
// registry package compiles a GraphDef once into an immutable, closure-
// bearing Registry.
type GraphDef struct {
	Nodes    map[string]NodeRegistration // keyed by NodeType.Kind
	Edges    map[string]EdgeRegistration // keyed by EdgeType.Kind
	Ontology []ontology.Relation
}

// New returns an empty GraphDef ready for incremental registration.
func New() *GraphDef {
	return &GraphDef{
		Nodes: make(map[string]NodeRegistration),
		Edges: make(map[string]EdgeRegistration),
	}
}

// RegisterNode adds or replaces a node registration.
func (g *GraphDef) RegisterNode(reg NodeRegistration) *GraphDef {
	g.Nodes[reg.Type.Kind] = reg
	return g
}

// RegisterEdge adds or replaces an edge registration.
func (g *GraphDef) RegisterEdge(reg EdgeRegistration) *GraphDef {
	g.Edges[reg.Type.Kind] = reg
	return g
}

// AddRelation appends one or more ontology relations.
func (g *GraphDef) AddRelation(rels ...ontology.Relation) *GraphDef {
	g.Ontology = append(g.Ontology, rels...)
	return g
}
