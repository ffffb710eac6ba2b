// Package registry compiles a graphdef.GraphDef into an immutable,
// read-only index: the transitive closures over subclassing, disjointness,
// inversion, and implication that the storage engine and query compiler
// consult on every operation. A Registry is built once per GraphDef and
// shared by every store and query derived from it.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nicia-ai/typegraph"
	"github.com/nicia-ai/typegraph/graphdef"
	"github.com/nicia-ai/typegraph/ontology"
)

// Registry is the precomputed, immutable view over a GraphDef. Every
// closure is computed once at construction time; readers never mutate it.
type Registry struct {
	def *graphdef.GraphDef

	// subClassChildren maps a parent kind to its directly declared children.
	subClassChildren map[string][]string
	// subClassDescendants caches the reflexive-transitive closure per kind.
	subClassDescendants map[string][]string

	// disjoint is symmetric: disjoint[a][b] and disjoint[b][a] both hold.
	disjoint map[string]map[string]struct{}

	// inverseEdge is symmetric: inverseEdge[f] == b implies inverseEdge[b] == f.
	inverseEdge map[string]string

	// impliesDirect holds the declared (non-transitive) Implies edges.
	impliesDirect map[string][]string
	// impliedEdges is the transitive forward closure of impliesDirect.
	impliedEdges map[string][]string
	// implyingEdges is the transitive inverse closure of impliesDirect.
	implyingEdges map[string][]string
}

// New compiles a GraphDef into a Registry. It returns a
// *typegraph.ConfigurationError if the implication graph contains a cycle;
// every cycle is rejected, none is exempt (see detectImplicationCycle).
func New(def *graphdef.GraphDef) (*Registry, error) {
	r := &Registry{
		def:                 def,
		subClassChildren:    make(map[string][]string),
		subClassDescendants: make(map[string][]string),
		disjoint:            make(map[string]map[string]struct{}),
		inverseEdge:         make(map[string]string),
		impliesDirect:       make(map[string][]string),
	}

	for _, rel := range def.Ontology {
		switch rel := rel.(type) {
		case ontology.SubClassOf:
			r.subClassChildren[rel.Parent] = append(r.subClassChildren[rel.Parent], rel.Child)
		case ontology.DisjointWith:
			r.addDisjoint(rel.A, rel.B)
		case ontology.InverseOf:
			r.addInverse(rel.Forward, rel.Backward)
		case ontology.Implies:
			r.impliesDirect[rel.From] = append(r.impliesDirect[rel.From], rel.To)
		}
	}

	if err := detectImplicationCycle(r.impliesDirect); err != nil {
		return nil, err
	}

	r.impliedEdges = closeForward(r.impliesDirect)
	r.implyingEdges = closeInverse(r.impliesDirect)

	for kind := range def.Nodes {
		r.subClassDescendants[kind] = r.expandSubClassesUncached(kind)
	}

	return r, nil
}

func (r *Registry) addDisjoint(a, b string) {
	if r.disjoint[a] == nil {
		r.disjoint[a] = make(map[string]struct{})
	}
	if r.disjoint[b] == nil {
		r.disjoint[b] = make(map[string]struct{})
	}
	r.disjoint[a][b] = struct{}{}
	r.disjoint[b][a] = struct{}{}
}

func (r *Registry) addInverse(forward, backward string) {
	r.inverseEdge[forward] = backward
	r.inverseEdge[backward] = forward
}

// NodeKinds returns every registered node kind.
func (r *Registry) NodeKinds() []string {
	out := make([]string, 0, len(r.def.Nodes))
	for k := range r.def.Nodes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// EdgeKinds returns every registered edge kind.
func (r *Registry) EdgeKinds() []string {
	out := make([]string, 0, len(r.def.Edges))
	for k := range r.def.Edges {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetNodeRegistration returns the registration for kind, or an error if
// kind was never registered.
func (r *Registry) GetNodeRegistration(kind string) (graphdef.NodeRegistration, error) {
	reg, ok := r.def.Nodes[kind]
	if !ok {
		return graphdef.NodeRegistration{}, typegraph.NewKindNotFoundError(kind)
	}
	return reg, nil
}

// GetEdgeRegistration returns the registration for kind, or an error if
// kind was never registered.
func (r *Registry) GetEdgeRegistration(kind string) (graphdef.EdgeRegistration, error) {
	reg, ok := r.def.Edges[kind]
	if !ok {
		return graphdef.EdgeRegistration{}, typegraph.NewKindNotFoundError(kind)
	}
	return reg, nil
}

// ExpandSubClasses returns the reflexive-transitive set of descendant
// kinds of kind, including kind itself (P7).
func (r *Registry) ExpandSubClasses(kind string) []string {
	if cached, ok := r.subClassDescendants[kind]; ok {
		return cached
	}
	return r.expandSubClassesUncached(kind)
}

func (r *Registry) expandSubClassesUncached(kind string) []string {
	seen := map[string]struct{}{kind: {}}
	queue := []string{kind}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range r.subClassChildren[cur] {
			if _, ok := seen[child]; !ok {
				seen[child] = struct{}{}
				queue = append(queue, child)
			}
		}
	}
	return sortedKeys(seen)
}

// GetDisjointWith returns every kind declared disjoint with kind.
func (r *Registry) GetDisjointWith(kind string) []string {
	set := r.disjoint[kind]
	if len(set) == 0 {
		return nil
	}
	return sortedKeys(set)
}

// GetInverseEdge returns the inverse edge kind of edgeKind, and whether one
// is declared.
func (r *Registry) GetInverseEdge(edgeKind string) (string, bool) {
	inv, ok := r.inverseEdge[edgeKind]
	return inv, ok
}

// GetImpliedEdges returns the transitive forward closure of edges implied
// by edgeKind (not including edgeKind itself).
func (r *Registry) GetImpliedEdges(edgeKind string) []string {
	return append([]string(nil), r.impliedEdges[edgeKind]...)
}

// GetImplyingEdges returns the transitive inverse closure of edges that
// imply edgeKind (not including edgeKind itself).
func (r *Registry) GetImplyingEdges(edgeKind string) []string {
	return append([]string(nil), r.implyingEdges[edgeKind]...)
}

// ExpandImplyingEdges returns the reflexive-transitive inverse closure:
// edgeKind plus everything that implies it. Used to expand an edge-kind
// set for `expand: "implying"` traversals (spec §4.5, §9).
func (r *Registry) ExpandImplyingEdges(edgeKind string) []string {
	seen := map[string]struct{}{edgeKind: {}}
	for _, k := range r.implyingEdges[edgeKind] {
		seen[k] = struct{}{}
	}
	return sortedKeys(seen)
}

// GetUniqueConstraint returns the named uniqueness constraint declared on
// kind, or an error if it is not declared there.
func (r *Registry) GetUniqueConstraint(kind, name string) (graphdef.UniqueConstraint, error) {
	reg, err := r.GetNodeRegistration(kind)
	if err != nil {
		return graphdef.UniqueConstraint{}, err
	}
	for _, c := range reg.Unique {
		if c.Name == name {
			return c, nil
		}
	}
	return graphdef.UniqueConstraint{}, typegraph.NewConstraintNotFoundError(kind, name)
}

// keySeparator joins a UniqueConstraint's field values into one key.
// \x01 (SOH) is vanishingly unlikely to appear in textual prop values.
const keySeparator = "\x01"

// ResolveUniqueKey canonicalizes props into the constraint's key string
// (spec §6.2): field values in declared order, joined by keySeparator,
// lowercased when Collation is CaseInsensitive.
func (r *Registry) ResolveUniqueKey(c graphdef.UniqueConstraint, props map[string]any) (string, error) {
	parts := make([]string, len(c.Fields))
	for i, field := range c.Fields {
		v, ok := props[field]
		if !ok {
			return "", typegraph.NewValidationError(field, fmt.Errorf("missing field for unique constraint %q", c.Name))
		}
		s, err := canonicalizeKeyValue(v)
		if err != nil {
			return "", typegraph.NewValidationError(field, err)
		}
		if c.Collation == graphdef.CaseInsensitive {
			s = strings.ToLower(s)
		}
		parts[i] = s
	}
	return strings.Join(parts, keySeparator), nil
}

// canonicalizeKeyValue renders a prop value as a string suitable for
// uniqueness-key derivation: strings pass through verbatim, everything
// else is canonical JSON.
func canonicalizeKeyValue(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
