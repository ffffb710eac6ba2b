// Package client is the application-facing facade spec §3.2 describes as
// "Store": it compiles a graphdef.GraphDef into a registry.Registry,
// reconciles the graph's recorded schema version against the
// definition's current hash (spec §6.2), and wires the resulting
// registry together with a storage.Engine and a query.Executor sharing
// one storage.Backend. It cannot live in the root typegraph package: that
// package is a leaf every other package here imports for its error
// types, so a facade over storage/query/registry has to sit one level
// above them instead — the same role the teacher's generated client.go
// plays over its own ent-style packages.
package client

import (
	"context"
	"time"

	"github.com/nicia-ai/typegraph"
	"github.com/nicia-ai/typegraph/dialect"
	"github.com/nicia-ai/typegraph/graphdef"
	"github.com/nicia-ai/typegraph/query"
	"github.com/nicia-ai/typegraph/registry"
	"github.com/nicia-ai/typegraph/storage"
)

// Client owns a shared Registry and a shared storage.Backend, and
// composes the constraint-enforcing Engine with the query Executor so a
// caller never has to wire either by hand (spec §3.2 ownership model).
// Every field is safe to read concurrently; Client itself holds no
// mutable state beyond what Engine/Executor already guard (spec §5).
type Client struct {
	GraphID  string
	Registry *registry.Registry
	Backend  storage.Backend
	Engine   *storage.Engine
	Executor *query.Executor
}

// Options configures Open. The zero value is valid: Now defaults to
// time.Now and StatementCacheSize defaults to no caching.
type Options struct {
	// Now overrides the engine's clock; tests pass a fixed function for
	// deterministic timestamps.
	Now func() time.Time
	// StatementCacheSize bounds the query Executor's compiled-SQL cache
	// (spec §4.8). Zero disables caching.
	StatementCacheSize int
}

// Open compiles def into a Registry, reconciles the graph's recorded
// schemaVersions row against def's current SchemaHash (spec §6.2), and
// returns a Client wiring an Engine and query Executor over backend.
// strategy must be the same dialect.Strategy the backend itself was built
// with (sqlitedialect.New() / pgdialect.New()); Open does not infer it
// from backend.Dialect() so dialect-specific behavior stays confined to
// the dialect package, per that package's own design contract.
func Open(ctx context.Context, backend storage.Backend, strategy dialect.Strategy, def *graphdef.GraphDef, graphID string, opts Options) (*Client, error) {
	reg, err := registry.New(def)
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := reconcileSchema(ctx, backend, def, graphID, opts.Now()); err != nil {
		return nil, err
	}

	eng := storage.NewEngine(backend, reg, graphID, opts.Now)
	exec := query.NewExecutor(backend, reg, strategy, backend.TableNames(), opts.StatementCacheSize)

	return &Client{
		GraphID:  graphID,
		Registry: reg,
		Backend:  backend,
		Engine:   eng,
		Executor: exec,
	}, nil
}

// reconcileSchema compares def's current SchemaHash against the graph's
// active schemaVersions row (if any), inserting and activating a new,
// incremented version when none exists yet or the hash has drifted. It
// never mutates an existing version's row; schemaDoc/schemaHash are
// immutable once recorded (spec §3.1 invariant I5 — exactly one active
// row per graphId).
func reconcileSchema(ctx context.Context, backend storage.Backend, def *graphdef.GraphDef, graphID string, now time.Time) error {
	hash, err := graphdef.SchemaHash(def)
	if err != nil {
		return typegraph.NewConfigurationError("computing schema hash", err)
	}
	doc, err := graphdef.SchemaDoc(def)
	if err != nil {
		return typegraph.NewConfigurationError("computing schema doc", err)
	}

	active, err := backend.GetActiveSchema(ctx, graphID)
	if err != nil {
		return err
	}
	if active != nil && active.SchemaHash == hash {
		return nil
	}

	next := 1
	if active != nil {
		next = active.Version + 1
	}
	if err := backend.InsertSchema(ctx, storage.SchemaVersion{
		GraphID: graphID, Version: next, SchemaHash: hash, SchemaDoc: doc,
		CreatedAt: now, IsActive: true,
	}); err != nil {
		return err
	}
	return backend.SetActiveSchema(ctx, graphID, next)
}

// SchemaDrift reports whether def's current SchemaHash differs from the
// graph's recorded active schema version. A caller might use this to
// decide whether to run an external migration before calling Open (spec
// §1's "the engine produces and consumes a schemaDoc JSON blob... but
// does not run DDL migrations").
func SchemaDrift(ctx context.Context, backend storage.Backend, def *graphdef.GraphDef, graphID string) (bool, error) {
	hash, err := graphdef.SchemaHash(def)
	if err != nil {
		return false, err
	}
	active, err := backend.GetActiveSchema(ctx, graphID)
	if err != nil {
		return false, err
	}
	if active == nil {
		return true, nil
	}
	return active.SchemaHash != hash, nil
}

// Close releases the underlying backend connection.
func (c *Client) Close() error {
	return c.Backend.Close()
}

// Query starts a query builder rooted at the given alias and kinds, bound
// to this Client's graph (spec §4.6's `From`).
func (c *Client) Query(alias string, kinds ...string) query.Builder {
	return query.From(c.GraphID, alias, kinds...)
}

// Transaction runs fn with a transaction-scoped Client whose Engine and
// Executor are both bound to the transaction's Backend (spec §5). Commits
// on success, rolls back and rethrows on any error fn returns.
func (c *Client) Transaction(ctx context.Context, fn func(ctx context.Context, tx *Client) error) error {
	return c.Backend.Transaction(ctx, func(ctx context.Context, tx storage.Backend) error {
		txEngine := storage.NewEngine(tx, c.Registry, c.GraphID, c.Engine.Now())
		txExecutor := c.Executor.WithBackend(tx)
		txClient := &Client{
			GraphID:  c.GraphID,
			Registry: c.Registry,
			Backend:  tx,
			Engine:   txEngine,
			Executor: txExecutor,
		}
		return fn(ctx, txClient)
	})
}
