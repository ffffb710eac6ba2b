// Package ontology declares the meta-relations that connect kinds in a
// GraphDef: subclassing, disjointness, equivalence, identity, inversion,
// implication, partonomy, and thesaurus-style broader/narrower/related
// links. Relations are pure data; the registry package computes closures
// over them.
package ontology

// Relation is a tagged variant carrying one or two kind references. The
// kind strings are validated against a GraphDef's declared node/edge kinds
// when the registry is built, not here.
type Relation interface {
	relation()
}

// SubClassOf declares that Child is a subclass of Parent: every node kind
// asserted as Child is also, reflexively and transitively, a Parent.
type SubClassOf struct {
	Child  string
	Parent string
}

func (SubClassOf) relation() {}

// DisjointWith declares that no live node id may simultaneously belong to
// both A and B (or their subclasses). Symmetric: the registry stores it
// both ways.
type DisjointWith struct {
	A string
	B string
}

func (DisjointWith) relation() {}

// EquivalentTo declares that two kinds denote the same set of instances.
type EquivalentTo struct {
	A string
	B string
}

func (EquivalentTo) relation() {}

// SameAs declares that two node ids denote the same real-world entity.
// Unlike the other relations, Kind here names a node kind and A/B are ids,
// not kinds — SameAs operates at the instance level.
type SameAs struct {
	Kind string
	A    string
	B    string
}

func (SameAs) relation() {}

// DifferentFrom is the negation of SameAs: an explicit assertion that two
// ids of the same kind are distinct entities.
type DifferentFrom struct {
	Kind string
	A    string
	B    string
}

func (DifferentFrom) relation() {}

// InverseOf declares that Forward and Backward are inverse edge kinds:
// an edge `Forward(a, b)` implies the queryable existence of
// `Backward(b, a)`. Symmetric: the registry stores it both ways.
type InverseOf struct {
	Forward  string
	Backward string
}

func (InverseOf) relation() {}

// Implies declares that the existence of an edge of kind From entails the
// existence of an edge of kind To between the same endpoints. Transitive;
// the registry computes the forward and inverse closures.
type Implies struct {
	From string
	To   string
}

func (Implies) relation() {}

// PartOf declares that Part is a part of Whole (mereological containment).
// HasPart is its registry-derived inverse; callers declare PartOf only.
type PartOf struct {
	Part  string
	Whole string
}

func (PartOf) relation() {}

// Broader declares a thesaurus-style generalization: Narrow is a narrower
// (more specific) kind than Broad. Unlike SubClassOf this carries no
// instance-membership guarantee — it is documentation-only metadata
// surfaced through the schema doc.
type Broader struct {
	Narrow string
	Broad  string
}

func (Broader) relation() {}

// RelatedTo declares a loose, symmetric association between two kinds with
// no further entailment.
type RelatedTo struct {
	A string
	B string
}

func (RelatedTo) relation() {}
