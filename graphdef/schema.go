package graphdef

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/nicia-ai/typegraph/ontology"
)

// schemaDocNode/schemaDocEdge/schemaDocRelation are the JSON-serializable
// projection of a GraphDef spec §6.2 describes: enough to detect drift
// between the registered Go definition and whatever a store last recorded,
// without attempting to re-instantiate prop validators (those live outside
// this module entirely — spec §1).
type schemaDocNode struct {
	Kind     string            `json:"kind"`
	OnDelete string            `json:"onDelete"`
	Unique   []schemaDocUnique `json:"unique,omitempty"`
}

type schemaDocUnique struct {
	Name      string   `json:"name"`
	Fields    []string `json:"fields"`
	Scope     string   `json:"scope"`
	Collation string   `json:"collation"`
}

type schemaDocEdge struct {
	Kind        string   `json:"kind"`
	FromKinds   []string `json:"fromKinds"`
	ToKinds     []string `json:"toKinds"`
	Cardinality string   `json:"cardinality"`
}

type schemaDocRelation struct {
	Type string   `json:"type"`
	Args []string `json:"args"`
}

type schemaDoc struct {
	Nodes    []schemaDocNode     `json:"nodes"`
	Edges    []schemaDocEdge     `json:"edges"`
	Ontology []schemaDocRelation `json:"ontology"`
}

func (s UniqueScope) String() string {
	switch s {
	case ScopeKindWithSubClasses:
		return "kindWithSubClasses"
	case ScopeGraph:
		return "graph"
	default:
		return "kind"
	}
}

func (c Collation) String() string {
	if c == CaseInsensitive {
		return "caseInsensitive"
	}
	return "binary"
}

func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case OneActive:
		return "oneActive"
	case Unique:
		return "unique"
	default:
		return "many"
	}
}

func relationDoc(r ontology.Relation) schemaDocRelation {
	switch v := r.(type) {
	case ontology.SubClassOf:
		return schemaDocRelation{Type: "subClassOf", Args: []string{v.Child, v.Parent}}
	case ontology.DisjointWith:
		return schemaDocRelation{Type: "disjointWith", Args: []string{v.A, v.B}}
	case ontology.EquivalentTo:
		return schemaDocRelation{Type: "equivalentTo", Args: []string{v.A, v.B}}
	case ontology.SameAs:
		return schemaDocRelation{Type: "sameAs", Args: []string{v.Kind, v.A, v.B}}
	case ontology.DifferentFrom:
		return schemaDocRelation{Type: "differentFrom", Args: []string{v.Kind, v.A, v.B}}
	case ontology.InverseOf:
		return schemaDocRelation{Type: "inverseOf", Args: []string{v.Forward, v.Backward}}
	case ontology.Implies:
		return schemaDocRelation{Type: "implies", Args: []string{v.From, v.To}}
	case ontology.PartOf:
		return schemaDocRelation{Type: "partOf", Args: []string{v.Part, v.Whole}}
	case ontology.Broader:
		return schemaDocRelation{Type: "broader", Args: []string{v.Narrow, v.Broad}}
	case ontology.RelatedTo:
		return schemaDocRelation{Type: "relatedTo", Args: []string{v.A, v.B}}
	default:
		return schemaDocRelation{Type: "unknown"}
	}
}

// SchemaDoc serializes def to the canonical JSON blob persisted in the
// schemaVersions table (spec §6.2). Node and edge kinds are emitted in
// sorted order so two calls on an equivalent GraphDef, built by
// registering kinds in a different order, produce byte-identical output.
func SchemaDoc(def *GraphDef) ([]byte, error) {
	doc := schemaDoc{}

	nodeKinds := make([]string, 0, len(def.Nodes))
	for k := range def.Nodes {
		nodeKinds = append(nodeKinds, k)
	}
	sort.Strings(nodeKinds)
	for _, k := range nodeKinds {
		nr := def.Nodes[k]
		uniques := make([]schemaDocUnique, 0, len(nr.Unique))
		for _, u := range nr.Unique {
			uniques = append(uniques, schemaDocUnique{
				Name: u.Name, Fields: u.Fields, Scope: u.Scope.String(), Collation: u.Collation.String(),
			})
		}
		doc.Nodes = append(doc.Nodes, schemaDocNode{Kind: k, OnDelete: nr.OnDelete.String(), Unique: uniques})
	}

	edgeKinds := make([]string, 0, len(def.Edges))
	for k := range def.Edges {
		edgeKinds = append(edgeKinds, k)
	}
	sort.Strings(edgeKinds)
	for _, k := range edgeKinds {
		er := def.Edges[k]
		from := append([]string(nil), er.FromKinds...)
		to := append([]string(nil), er.ToKinds...)
		sort.Strings(from)
		sort.Strings(to)
		doc.Edges = append(doc.Edges, schemaDocEdge{
			Kind: k, FromKinds: from, ToKinds: to, Cardinality: er.Cardinality.String(),
		})
	}

	for _, r := range def.Ontology {
		doc.Ontology = append(doc.Ontology, relationDoc(r))
	}
	sort.Slice(doc.Ontology, func(i, j int) bool {
		if doc.Ontology[i].Type != doc.Ontology[j].Type {
			return doc.Ontology[i].Type < doc.Ontology[j].Type
		}
		for k := 0; k < len(doc.Ontology[i].Args) && k < len(doc.Ontology[j].Args); k++ {
			if doc.Ontology[i].Args[k] != doc.Ontology[j].Args[k] {
				return doc.Ontology[i].Args[k] < doc.Ontology[j].Args[k]
			}
		}
		return len(doc.Ontology[i].Args) < len(doc.Ontology[j].Args)
	})

	return json.Marshal(doc)
}

// SchemaHash returns the hex-encoded SHA-256 of def's canonical schemaDoc
// (spec §6.2). Callers compare this across store opens to detect drift
// between the registered GraphDef and whatever schema version a graph
// last recorded.
func SchemaHash(def *GraphDef) (string, error) {
	doc, err := SchemaDoc(def)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:]), nil
}
