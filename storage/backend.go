// Package storage implements the backend trait (the fixed operation set
// the engine requires of a SQL store, spec §6.1) and the storage engine
// that enforces disjointness, uniqueness, cardinality, and delete-behavior
// constraints on top of it (spec §4.2).
package storage

import (
	"context"
	"time"

	"github.com/nicia-ai/typegraph/dialect"
)

// NodeRef identifies a single node for batch lookups.
type NodeRef struct {
	Kind string
	ID   string
}

// EdgeFromSpec identifies the live outgoing edges of a kind from one node,
// used by cardinality counting (spec §4.2.5).
type EdgeFromSpec struct {
	EdgeKind   string
	FromKind   string
	FromID     string
	ActiveOnly bool
}

// Backend is the fixed operation set a SQL store must expose (spec §6.1).
// Every method is dialect-agnostic; dialect-specific behavior is confined
// to the Strategy supplied at construction.
type Backend interface {
	// Dialect returns one of the dialect.Dialect name constants.
	Dialect() string
	// Capabilities reports this backend's feature set.
	Capabilities() dialect.Capabilities
	// TableNames returns the table names this backend was configured with.
	TableNames() TableNames
	// Close releases the underlying connection.
	Close() error
	// Transaction runs fn with a transaction-scoped Backend, committing on
	// success and rolling back on any error fn returns. Nested calls are
	// not supported (spec §5).
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Backend) error) error

	// Node CRUD.
	InsertNode(ctx context.Context, n Node) error
	InsertNodesBatch(ctx context.Context, ns []Node) error
	GetNode(ctx context.Context, graphID, kind, id string, f Filter) (*Node, error)
	GetNodes(ctx context.Context, graphID string, refs []NodeRef, f Filter) ([]Node, error)
	UpdateNode(ctx context.Context, n Node) error
	DeleteNode(ctx context.Context, graphID, kind, id string, deletedAt time.Time) error
	HardDeleteNode(ctx context.Context, graphID, kind, id string) error
	FindNodesByKind(ctx context.Context, graphID string, kinds []string, f Filter) ([]Node, error)
	CountNodesByKind(ctx context.Context, graphID string, kinds []string, f Filter) (int64, error)

	// Edge CRUD.
	InsertEdge(ctx context.Context, e Edge) error
	GetEdge(ctx context.Context, graphID, id string, f Filter) (*Edge, error)
	UpdateEdge(ctx context.Context, e Edge) error
	DeleteEdge(ctx context.Context, graphID, id string, deletedAt time.Time) error
	HardDeleteEdge(ctx context.Context, graphID, id string) error
	CountEdgesFrom(ctx context.Context, graphID string, spec EdgeFromSpec, includeTombstones bool) (int64, error)
	EdgeExistsBetween(ctx context.Context, graphID, edgeKind, fromKind, fromID, toKind, toID string, f Filter) (bool, error)
	FindEdgesConnectedTo(ctx context.Context, graphID, kind, id string, f Filter) ([]Edge, error)
	FindEdgesByKind(ctx context.Context, graphID string, kinds []string, f Filter) ([]Edge, error)
	CountEdgesByKind(ctx context.Context, graphID string, kinds []string, f Filter) (int64, error)

	// Uniques: InsertUnique atomically "claims or resurrects" the row
	// (spec §4.3) and returns the key's final owning node id.
	InsertUnique(ctx context.Context, graphID, nodeKind, constraintName, key, nodeID, concreteKind string) (ownerID string, err error)
	CheckUnique(ctx context.Context, graphID, nodeKind, constraintName, key string) (ownerID string, found bool, err error)
	// CheckUniqueIncludingTombstones is CheckUnique without the live-only
	// filter: it also reports a soft-deleted owner, so findOrCreate (spec
	// §4.2.6) can tell "no match ever existed" apart from "the match is a
	// tombstone" and resurrect the latter instead of minting a new node.
	CheckUniqueIncludingTombstones(ctx context.Context, graphID, nodeKind, constraintName, key string) (ownerID string, found bool, deletedAt *time.Time, err error)
	CheckUniqueBatch(ctx context.Context, graphID, nodeKind, constraintName string, keys []string) (map[string]string, error)
	DeleteUnique(ctx context.Context, graphID, nodeKind, constraintName, key string, deletedAt time.Time) error

	// Schema versions.
	InsertSchema(ctx context.Context, v SchemaVersion) error
	GetActiveSchema(ctx context.Context, graphID string) (*SchemaVersion, error)
	GetSchemaVersion(ctx context.Context, graphID string, version int) (*SchemaVersion, error)
	SetActiveSchema(ctx context.Context, graphID string, version int) error

	// ClearGraph issues DELETEs in dependency order: embeddings, uniques,
	// edges, nodes, schemaVersions (spec §4.2.7).
	ClearGraph(ctx context.Context, graphID string) error

	// Execute runs compiled SQL produced by the query compiler and
	// returns each row as a column-name-keyed map.
	Execute(ctx context.Context, sqlText string, args []any) ([]map[string]any, error)
}
