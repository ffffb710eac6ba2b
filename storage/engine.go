package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nicia-ai/typegraph"
	"github.com/nicia-ai/typegraph/graphdef"
	"github.com/nicia-ai/typegraph/registry"
)

// Engine applies the constraints documented in spec §3/§4.2 on top of a
// Backend: disjointness, uniqueness, cardinality, delete behavior, and
// bitemporal bookkeeping. Every mutating operation an application
// performs goes through exactly one Engine method; nothing below this
// layer understands kinds, constraints, or cardinality.
type Engine struct {
	backend    Backend
	reg        *registry.Registry
	graphID    string
	now        func() time.Time
	embeddings EmbeddingDeleter
	hooks      chan<- HookEvent
}

// HookEvent is emitted on Engine's optional hook channel for an
// engine-level side effect an application wants to observe without
// polling the backend. Currently only onDelete: disconnect emits one,
// distinguishing it from cascade even though both soft-delete incident
// edges identically (spec §9 open question).
type HookEvent struct {
	Kind     string // "disconnect"
	NodeKind string
	NodeID   string
}

// SetHookChannel wires ch to receive HookEvents. Sends are non-blocking:
// a full or nil channel simply drops the event rather than stalling the
// delete that produced it.
func (e *Engine) SetHookChannel(ch chan<- HookEvent) {
	e.hooks = ch
}

func (e *Engine) emitHook(ev HookEvent) {
	if e.hooks == nil {
		return
	}
	select {
	case e.hooks <- ev:
	default:
	}
}

// EmbeddingDeleter is the one operation HardDeleteNode needs from a
// storage/embedding.Store: soft-deleting the node's embedding ahead of
// the node itself (spec §4.2.4's fixed order). Declared here rather than
// depending on the embedding package directly, since that package already
// depends on this one for TableNames. Left unset, HardDeleteNode simply
// skips this step — a caller that never wired an embedding store had
// nothing in the embeddings table to clean up anyway.
type EmbeddingDeleter interface {
	Delete(ctx context.Context, graphID, nodeKind, nodeID string, deletedAt time.Time) error
}

// NewEngine builds an Engine bound to one graph. now defaults to
// time.Now when nil; tests may override it for deterministic timestamps.
func NewEngine(backend Backend, reg *registry.Registry, graphID string, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{backend: backend, reg: reg, graphID: graphID, now: now}
}

// SetEmbeddingStore wires a storage/embedding.Store (or any matching
// EmbeddingDeleter) into HardDeleteNode's delete order. Optional: a graph
// never storing embeddings can leave this unset.
func (e *Engine) SetEmbeddingStore(d EmbeddingDeleter) {
	e.embeddings = d
}

// Now returns the clock this Engine was constructed with, so a caller
// deriving a transaction-scoped Engine (see client.Client.Transaction)
// can reuse the same clock rather than silently reverting to time.Now.
func (e *Engine) Now() func() time.Time {
	return e.now
}

func newNodeID() string { return uuid.NewString() }
func newEdgeID() string { return uuid.NewString() }

// CreateNodeInput carries the arguments of a node create (spec §4.2.1).
type CreateNodeInput struct {
	Kind      string
	Props     map[string]any
	ID        string // optional; generated when empty
	ValidFrom *time.Time
	ValidTo   *time.Time
}

// CreateNode implements spec §4.2.1.
func (e *Engine) CreateNode(ctx context.Context, in CreateNodeInput) (*Node, error) {
	reg, err := e.reg.GetNodeRegistration(in.Kind)
	if err != nil {
		return nil, err
	}
	props, err := e.validateProps(reg.Type.Validator, in.Props)
	if err != nil {
		return nil, err
	}
	id := in.ID
	if id == "" {
		id = newNodeID()
	}

	if err := e.checkDisjointness(ctx, in.Kind, id); err != nil {
		return nil, err
	}

	now := e.now()
	n := Node{
		GraphID: e.graphID, Kind: in.Kind, ID: id, Props: props, Version: 1,
		ValidFrom: in.ValidFrom, ValidTo: in.ValidTo, CreatedAt: now, UpdatedAt: now,
	}

	if err := e.claimUniqueConstraints(ctx, in.Kind, id, props); err != nil {
		return nil, err
	}
	if err := e.backend.InsertNode(ctx, n); err != nil {
		if IsConstraintError(err) {
			return nil, typegraph.NewDatabaseOperationError("create node", err)
		}
		return nil, err
	}
	return &n, nil
}

// checkDisjointness implements spec §4.2.1 step 3: no live node sharing id
// may exist under any kind disjoint with this one.
func (e *Engine) checkDisjointness(ctx context.Context, kind, id string) error {
	disjoint := e.reg.GetDisjointWith(kind)
	for _, other := range disjoint {
		n, err := e.backend.GetNode(ctx, e.graphID, other, id, CurrentFilter())
		if err != nil {
			return err
		}
		if n != nil {
			return typegraph.NewDisjointError(kind, other, id)
		}
	}
	return nil
}

// uniqueTarget is one constraint this node kind must satisfy, along with
// the storage bucket (node_kind column value) it shares with other kinds
// under ScopeKindWithSubClasses/ScopeGraph (spec §4.2.1 step 4, §6.2).
type uniqueTarget struct {
	constraint graphdef.UniqueConstraint
	bucket     string
}

// applicableConstraints collects every UniqueConstraint that binds a node
// of kind, including ones declared on an ancestor kind with
// ScopeKindWithSubClasses or ScopeGraph.
func (e *Engine) applicableConstraints(kind string) []uniqueTarget {
	var out []uniqueTarget
	for _, k := range e.reg.NodeKinds() {
		nr, err := e.reg.GetNodeRegistration(k)
		if err != nil {
			continue
		}
		isSelf := k == kind
		isDescendant := false
		if !isSelf {
			for _, d := range e.reg.ExpandSubClasses(k) {
				if d == kind {
					isDescendant = true
					break
				}
			}
		}
		for _, c := range nr.Unique {
			switch {
			case isSelf:
				bucket := k
				if c.Scope == graphdef.ScopeGraph {
					bucket = ""
				}
				out = append(out, uniqueTarget{constraint: c, bucket: bucket})
			case isDescendant && c.Scope == graphdef.ScopeKindWithSubClasses:
				out = append(out, uniqueTarget{constraint: c, bucket: k})
			case isDescendant && c.Scope == graphdef.ScopeGraph:
				out = append(out, uniqueTarget{constraint: c, bucket: ""})
			}
		}
	}
	return out
}

// claimUniqueConstraints implements spec §4.2.1 step 4 / §4.3 for every
// constraint that binds kind.
func (e *Engine) claimUniqueConstraints(ctx context.Context, kind, id string, props map[string]any) error {
	for _, t := range e.applicableConstraints(kind) {
		key, err := e.reg.ResolveUniqueKey(t.constraint, props)
		if err != nil {
			return err
		}
		owner, err := e.backend.InsertUnique(ctx, e.graphID, t.bucket, t.constraint.Name, key, id, kind)
		if err != nil {
			return err
		}
		if owner != id {
			return typegraph.NewUniquenessError(kind, t.constraint.Name, key, owner)
		}
	}
	return nil
}

// releaseUniqueConstraints soft-deletes every uniques row this node owns,
// freeing the keys for reuse (spec §4.2.3).
func (e *Engine) releaseUniqueConstraints(ctx context.Context, kind string, props map[string]any, deletedAt time.Time) error {
	for _, t := range e.applicableConstraints(kind) {
		key, err := e.reg.ResolveUniqueKey(t.constraint, props)
		if err != nil {
			return err
		}
		if err := e.backend.DeleteUnique(ctx, e.graphID, t.bucket, t.constraint.Name, key, deletedAt); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) validateProps(v graphdef.PropValidator, props map[string]any) (map[string]any, error) {
	if v == nil {
		if props == nil {
			return map[string]any{}, nil
		}
		return props, nil
	}
	return v.Validate(props)
}

// UpdateNodeInput carries a partial update (spec §4.2.2).
type UpdateNodeInput struct {
	Kind             string
	ID               string
	Props            map[string]any // merged over the existing props
	ValidFrom        *time.Time
	ValidTo          *time.Time
	IncrementVersion bool
}

// UpdateNode implements spec §4.2.2.
func (e *Engine) UpdateNode(ctx context.Context, in UpdateNodeInput) (*Node, error) {
	reg, err := e.reg.GetNodeRegistration(in.Kind)
	if err != nil {
		return nil, err
	}
	existing, err := e.backend.GetNode(ctx, e.graphID, in.Kind, in.ID, CurrentFilter())
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, typegraph.NewNodeNotFoundError(in.Kind, in.ID)
	}

	merged := make(map[string]any, len(existing.Props)+len(in.Props))
	for k, v := range existing.Props {
		merged[k] = v
	}
	for k, v := range in.Props {
		merged[k] = v
	}
	props, err := e.validateProps(reg.Type.Validator, merged)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if err := e.rotateChangedUniqueKeys(ctx, in.Kind, in.ID, existing.Props, props, now); err != nil {
		return nil, err
	}

	updated := *existing
	updated.Props = props
	updated.UpdatedAt = now
	if in.ValidFrom != nil {
		updated.ValidFrom = in.ValidFrom
	}
	if in.ValidTo != nil {
		updated.ValidTo = in.ValidTo
	}
	if in.IncrementVersion {
		updated.Version++
	}
	if err := e.backend.UpdateNode(ctx, updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// rotateChangedUniqueKeys implements spec §4.2.2's unique-field-change
// handling: insert the new key first (the constraint rejects a conflict),
// then soft-delete the stale row.
func (e *Engine) rotateChangedUniqueKeys(ctx context.Context, kind, id string, oldProps, newProps map[string]any, now time.Time) error {
	for _, t := range e.applicableConstraints(kind) {
		oldKey, err := e.reg.ResolveUniqueKey(t.constraint, oldProps)
		if err != nil {
			return err
		}
		newKey, err := e.reg.ResolveUniqueKey(t.constraint, newProps)
		if err != nil {
			return err
		}
		if oldKey == newKey {
			continue
		}
		owner, err := e.backend.InsertUnique(ctx, e.graphID, t.bucket, t.constraint.Name, newKey, id, kind)
		if err != nil {
			return err
		}
		if owner != id {
			return typegraph.NewUniquenessError(kind, t.constraint.Name, newKey, owner)
		}
		if err := e.backend.DeleteUnique(ctx, e.graphID, t.bucket, t.constraint.Name, oldKey, now); err != nil {
			return err
		}
	}
	return nil
}

// DeleteNode implements spec §4.2.3 (soft delete).
func (e *Engine) DeleteNode(ctx context.Context, kind, id string) error {
	existing, err := e.backend.GetNode(ctx, e.graphID, kind, id, CurrentFilter())
	if err != nil {
		return err
	}
	if existing == nil {
		return typegraph.NewNodeNotFoundError(kind, id)
	}
	nr, err := e.reg.GetNodeRegistration(kind)
	if err != nil {
		return err
	}

	incident, err := e.backend.FindEdgesConnectedTo(ctx, e.graphID, kind, id, CurrentFilter())
	if err != nil {
		return err
	}

	now := e.now()
	switch nr.OnDelete {
	case graphdef.Restrict:
		if len(incident) > 0 {
			return typegraph.NewRestrictedDeleteError(kind, id, incident[0].Kind)
		}
	case graphdef.Disconnect:
		e.emitHook(HookEvent{Kind: "disconnect", NodeKind: kind, NodeID: id})
		for _, edge := range incident {
			if err := e.backend.DeleteEdge(ctx, e.graphID, edge.ID, now); err != nil {
				return err
			}
		}
	case graphdef.Cascade:
		for _, edge := range incident {
			if err := e.backend.DeleteEdge(ctx, e.graphID, edge.ID, now); err != nil {
				return err
			}
		}
	}

	if err := e.backend.DeleteNode(ctx, e.graphID, kind, id, now); err != nil {
		return err
	}
	return e.releaseUniqueConstraints(ctx, kind, existing.Props, now)
}

// HardDeleteNode implements spec §4.2.4: embeddings → uniques → incident
// edges → node, inside a transaction.
func (e *Engine) HardDeleteNode(ctx context.Context, kind, id string) error {
	return e.backend.Transaction(ctx, func(ctx context.Context, tx Backend) error {
		existing, err := tx.GetNode(ctx, e.graphID, kind, id, Filter{Mode: IncludeTombstones})
		if err != nil {
			return err
		}
		if existing == nil {
			return typegraph.NewNodeNotFoundError(kind, id)
		}

		if e.embeddings != nil {
			if err := e.embeddings.Delete(ctx, e.graphID, kind, id, e.now()); err != nil {
				return err
			}
		}

		for _, t := range e.applicableConstraints(kind) {
			key, err := e.reg.ResolveUniqueKey(t.constraint, existing.Props)
			if err != nil {
				return err
			}
			if err := tx.DeleteUnique(ctx, e.graphID, t.bucket, t.constraint.Name, key, e.now()); err != nil {
				return err
			}
		}

		incident, err := tx.FindEdgesConnectedTo(ctx, e.graphID, kind, id, Filter{Mode: IncludeTombstones})
		if err != nil {
			return err
		}
		for _, edge := range incident {
			if err := tx.HardDeleteEdge(ctx, e.graphID, edge.ID); err != nil {
				return err
			}
		}
		return tx.HardDeleteNode(ctx, e.graphID, kind, id)
	})
}

// CreateEdgeInput carries the arguments of an edge create (spec §4.2.5).
type CreateEdgeInput struct {
	Kind                           string
	FromKind, FromID, ToKind, ToID string
	Props                          map[string]any
	ValidFrom, ValidTo             *time.Time
}

// CreateEdge implements spec §4.2.5.
func (e *Engine) CreateEdge(ctx context.Context, in CreateEdgeInput) (*Edge, error) {
	er, err := e.reg.GetEdgeRegistration(in.Kind)
	if err != nil {
		return nil, err
	}
	props, err := e.validateProps(er.Type.Validator, in.Props)
	if err != nil {
		return nil, err
	}
	if err := e.checkEndpointKind(er.FromKinds, in.FromKind, in.Kind, "from"); err != nil {
		return nil, err
	}
	if err := e.checkEndpointKind(er.ToKinds, in.ToKind, in.Kind, "to"); err != nil {
		return nil, err
	}
	if err := e.enforceCardinality(ctx, er.Cardinality, in); err != nil {
		return nil, err
	}

	now := e.now()
	edge := Edge{
		GraphID: e.graphID, ID: newEdgeID(), Kind: in.Kind,
		FromKind: in.FromKind, FromID: in.FromID, ToKind: in.ToKind, ToID: in.ToID,
		Props: props, ValidFrom: in.ValidFrom, ValidTo: in.ValidTo,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := e.backend.InsertEdge(ctx, edge); err != nil {
		return nil, err
	}
	return &edge, nil
}

// DeleteEdge soft-deletes a single edge directly (as opposed to the
// incidental soft-deletes DeleteNode performs for cascade/disconnect).
// Freeing an edge this way is what lets a cardinality: one create
// succeed again at the same `from` node (spec §8 scenario 1).
func (e *Engine) DeleteEdge(ctx context.Context, kind, id string) error {
	existing, err := e.backend.GetEdge(ctx, e.graphID, id, CurrentFilter())
	if err != nil {
		return err
	}
	if existing == nil || existing.Kind != kind {
		return typegraph.NewEdgeNotFoundError(kind, "", "")
	}
	return e.backend.DeleteEdge(ctx, e.graphID, id, e.now())
}

// HardDeleteEdge permanently removes a single edge row.
func (e *Engine) HardDeleteEdge(ctx context.Context, kind, id string) error {
	existing, err := e.backend.GetEdge(ctx, e.graphID, id, Filter{Mode: IncludeTombstones})
	if err != nil {
		return err
	}
	if existing == nil || existing.Kind != kind {
		return typegraph.NewEdgeNotFoundError(kind, "", "")
	}
	return e.backend.HardDeleteEdge(ctx, e.graphID, id)
}

func (e *Engine) checkEndpointKind(allowed []string, actual, edgeKind, side string) error {
	for _, k := range allowed {
		if k == actual {
			return nil
		}
		for _, d := range e.reg.ExpandSubClasses(k) {
			if d == actual {
				return nil
			}
		}
	}
	return typegraph.NewEndpointError(edgeKind, side, actual)
}

func (e *Engine) enforceCardinality(ctx context.Context, card graphdef.Cardinality, in CreateEdgeInput) error {
	switch card {
	case graphdef.Many:
		return nil
	case graphdef.One, graphdef.OneActive:
		n, err := e.backend.CountEdgesFrom(ctx, e.graphID, EdgeFromSpec{
			EdgeKind: in.Kind, FromKind: in.FromKind, FromID: in.FromID,
			ActiveOnly: card == graphdef.OneActive,
		}, false)
		if err != nil {
			return err
		}
		if n > 0 {
			return typegraph.NewCardinalityError(in.Kind, "one", "from already has a live edge of this kind")
		}
	case graphdef.Unique:
		exists, err := e.backend.EdgeExistsBetween(ctx, e.graphID, in.Kind, in.FromKind, in.FromID, in.ToKind, in.ToID, CurrentFilter())
		if err != nil {
			return err
		}
		if exists {
			return typegraph.NewCardinalityError(in.Kind, "unique", "edge between these endpoints already exists")
		}
	}
	return nil
}

// ClearGraph implements spec §4.2.7.
func (e *Engine) ClearGraph(ctx context.Context) error {
	return e.backend.ClearGraph(ctx, e.graphID)
}
