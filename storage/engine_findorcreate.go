package storage

import (
	"context"

	"github.com/nicia-ai/typegraph"
	"github.com/nicia-ai/typegraph/graphdef"
)

// OnConflict controls what findOrCreate does when it locates an existing
// live match (spec §4.2.6).
type OnConflict int

const (
	// OnConflictKeep leaves an existing live match's props untouched.
	OnConflictKeep OnConflict = iota
	// OnConflictUpdate applies the caller's props over an existing live
	// match before returning it.
	OnConflictUpdate
)

// FindOrCreateNodeInput carries the arguments of a single findOrCreate
// call (spec §4.2.6). MatchOn names a uniqueness constraint already
// registered on Kind; the constraint's key, resolved from Props, is the
// match key.
type FindOrCreateNodeInput struct {
	Kind       string
	MatchOn    string
	Props      map[string]any
	OnConflict OnConflict
}

// FindOrCreateResult reports whether the returned node was newly created.
type FindOrCreateResult struct {
	Node    Node
	Created bool
}

// FindOrCreateNode implements spec §4.2.6 for a single node.
func (e *Engine) FindOrCreateNode(ctx context.Context, in FindOrCreateNodeInput) (*FindOrCreateResult, error) {
	nr, err := e.reg.GetNodeRegistration(in.Kind)
	if err != nil {
		return nil, err
	}
	constraint, err := e.reg.GetUniqueConstraint(in.Kind, in.MatchOn)
	if err != nil {
		return nil, err
	}
	props, err := e.validateProps(nr.Type.Validator, in.Props)
	if err != nil {
		return nil, err
	}
	key, err := e.reg.ResolveUniqueKey(constraint, props)
	if err != nil {
		return nil, err
	}

	bucket := in.Kind
	if constraint.Scope == graphdef.ScopeGraph {
		bucket = ""
	}

	owner, found, deletedAt, err := e.backend.CheckUniqueIncludingTombstones(ctx, e.graphID, bucket, in.MatchOn, key)
	if err != nil {
		return nil, err
	}
	if found && deletedAt == nil {
		existing, err := e.backend.GetNode(ctx, e.graphID, in.Kind, owner, CurrentFilter())
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if in.OnConflict == OnConflictUpdate {
				updated, err := e.UpdateNode(ctx, UpdateNodeInput{Kind: in.Kind, ID: owner, Props: props, IncrementVersion: true})
				if err != nil {
					return nil, err
				}
				return &FindOrCreateResult{Node: *updated, Created: false}, nil
			}
			return &FindOrCreateResult{Node: *existing, Created: false}, nil
		}
	}

	// The only match is a tombstone: resurrect it in place rather than
	// mint a new node (spec §4.2.6 second bullet).
	if found && deletedAt != nil {
		tombstoned, err := e.backend.GetNode(ctx, e.graphID, in.Kind, owner, Filter{Mode: IncludeTombstones})
		if err != nil {
			return nil, err
		}
		if tombstoned != nil {
			now := e.now()
			tombstoned.Props = props
			tombstoned.DeletedAt = nil
			tombstoned.UpdatedAt = now
			tombstoned.Version++
			if err := e.claimUniqueConstraints(ctx, in.Kind, tombstoned.ID, props); err != nil {
				return nil, err
			}
			if err := e.backend.UpdateNode(ctx, *tombstoned); err != nil {
				return nil, err
			}
			return &FindOrCreateResult{Node: *tombstoned, Created: false}, nil
		}
	}

	created, err := e.CreateNode(ctx, CreateNodeInput{Kind: in.Kind, Props: props})
	if err != nil {
		return nil, err
	}
	return &FindOrCreateResult{Node: *created, Created: true}, nil
}

// bulkValidated holds the per-item validation outcome of a findOrCreate
// batch entry, computed before any backend write is attempted.
type bulkValidated struct {
	props     map[string]any
	dedupeKey string
}

// BulkFindOrCreateNode implements spec §4.2.6's batch semantics: input
// order is preserved, and within-batch duplicates (same match key) all
// resolve to the row created by their first occurrence.
//
// Validation runs as a first pass over the whole batch before any backend
// write: if more than one item fails, their errors are collected into a
// typegraph.AggregateError instead of reporting only the first one, so a
// caller can see every bad item in one round trip (spec §7).
func (e *Engine) BulkFindOrCreateNode(ctx context.Context, ins []FindOrCreateNodeInput) ([]FindOrCreateResult, error) {
	validated := make([]bulkValidated, len(ins))
	var failures []error
	for i, in := range ins {
		nr, err := e.reg.GetNodeRegistration(in.Kind)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		props, err := e.validateProps(nr.Type.Validator, in.Props)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		constraint, err := e.reg.GetUniqueConstraint(in.Kind, in.MatchOn)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		key, err := e.reg.ResolveUniqueKey(constraint, props)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		validated[i] = bulkValidated{props: props, dedupeKey: in.Kind + "\x00" + in.MatchOn + "\x00" + key}
	}
	if len(failures) > 0 {
		return nil, typegraph.NewAggregateError(failures...)
	}

	out := make([]FindOrCreateResult, len(ins))
	seen := make(map[string]int) // dedupeKey -> index into out of first occurrence
	for i, in := range ins {
		v := validated[i]
		if first, ok := seen[v.dedupeKey]; ok {
			prior := out[first].Node
			if in.OnConflict == OnConflictUpdate {
				updated, err := e.UpdateNode(ctx, UpdateNodeInput{Kind: in.Kind, ID: prior.ID, Props: v.props, IncrementVersion: true})
				if err != nil {
					return nil, err
				}
				out[first].Node = *updated
			}
			out[i] = FindOrCreateResult{Node: out[first].Node, Created: false}
			continue
		}

		res, err := e.FindOrCreateNode(ctx, in)
		if err != nil {
			return nil, err
		}
		out[i] = *res
		seen[v.dedupeKey] = i
	}
	return out, nil
}
