// Package embedding implements the embeddings table (spec §3, "orthogonal,
// out of scope for correctness proofs") as a real, dialect-aware component:
// on PostgreSQL the vector is a native pgvector column, on SQLite it is a
// msgpack-encoded blob, behind one Store interface shared by both.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/nicia-ai/typegraph"
)

// Record is a row of the embeddings table.
type Record struct {
	GraphID   string
	NodeKind  string
	NodeID    string
	Vector    []float32
	DeletedAt *time.Time
}

// Dims reports the vector's dimensionality.
func (r Record) Dims() int { return len(r.Vector) }

// Match is one result of a Nearest search: the stored record plus its
// distance from the query vector (cosine distance, lower is closer).
type Match struct {
	Record   Record
	Distance float64
}

// Store is the operation set the engine's HardDeleteNode and any
// embedding-backed query surface depend on. SQLStore is the only
// implementation; callers otherwise interact with it through this
// interface so a future backend (or a test double) can stand in.
type Store interface {
	// Upsert inserts or replaces the embedding for (graphID, nodeKind,
	// nodeID), resurrecting a previously soft-deleted row in place.
	Upsert(ctx context.Context, r Record) error
	// Get returns the live embedding for a node, or nil if none exists.
	Get(ctx context.Context, graphID, nodeKind, nodeID string) (*Record, error)
	// Delete soft-deletes the embedding for a node. HardDeleteNode calls
	// this before removing the node itself (spec §4.2.4).
	Delete(ctx context.Context, graphID, nodeKind, nodeID string, deletedAt time.Time) error
	// Nearest returns the limit closest live embeddings of nodeKind to
	// query, ordered by ascending distance.
	Nearest(ctx context.Context, graphID, nodeKind string, query []float32, limit int) ([]Match, error)
}

func errDimMismatch(have, want int) error {
	return typegraph.NewValidationError("vector", dimMismatchError{have: have, want: want})
}

type dimMismatchError struct{ have, want int }

func (e dimMismatchError) Error() string {
	return fmt.Sprintf("embedding: vector has %d dimensions, existing embeddings for this kind have %d", e.have, e.want)
}
