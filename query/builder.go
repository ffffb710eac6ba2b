package query

import "time"

// Builder constructs an immutable Query via chained, value-returning
// calls: every method returns a new Builder, the receiver is never
// mutated (spec §2 "fluent, immutable constructor").
type Builder struct {
	q Query
}

// From starts a query rooted at every live node of kinds, bound to alias.
func From(graphID, alias string, kinds ...string) Builder {
	return Builder{q: Query{GraphID: graphID, Source: Source{Alias: alias, Kinds: kinds}}}
}

func (b Builder) clone() Builder {
	nb := b
	nb.q.Traversals = append([]Traversal(nil), b.q.Traversals...)
	nb.q.OrderBy = append([]OrderKey(nil), b.q.OrderBy...)
	return nb
}

// IncludeSubClasses expands the source kinds to their registry-closed
// descendants.
func (b Builder) IncludeSubClasses() Builder {
	nb := b.clone()
	nb.q.Source.IncludeSubClasses = true
	return nb
}

// Traverse appends one hop.
func (b Builder) Traverse(t Traversal) Builder {
	nb := b.clone()
	nb.q.Traversals = append(nb.q.Traversals, t)
	return nb
}

// Where sets (replacing any prior) the query's filter predicate.
func (b Builder) Where(p Predicate) Builder {
	nb := b.clone()
	nb.q.Where = &p
	return nb
}

// Select sets a row projection.
func (b Builder) Select(bindings ...Binding) Builder {
	nb := b.clone()
	nb.q.Projection = Projection{Kind: ProjRow, Bindings: bindings}
	return nb
}

// Aggregate sets an aggregation projection.
func (b Builder) Aggregate(groupBy []FieldRef, having *Predicate, bindings ...Binding) Builder {
	nb := b.clone()
	nb.q.Projection = Projection{Kind: ProjAggregate, Bindings: bindings, GroupBy: groupBy, Having: having}
	return nb
}

// OrderBy appends one ordering key.
func (b Builder) OrderBy(alias, fieldPath string, desc bool) Builder {
	nb := b.clone()
	nb.q.OrderBy = append(nb.q.OrderBy, OrderKey{Alias: alias, FieldPath: fieldPath, Desc: desc})
	return nb
}

// OrderBySystem appends one ordering key over a system column.
func (b Builder) OrderBySystem(alias, system string, desc bool) Builder {
	nb := b.clone()
	nb.q.OrderBy = append(nb.q.OrderBy, OrderKey{Alias: alias, System: system, Desc: desc})
	return nb
}

// Limit sets a row cap. On a query built by Union, this bounds the
// combined set result (spec §4.4) rather than either side individually.
func (b Builder) Limit(n int) Builder {
	nb := b.clone()
	if nb.q.Set != nil {
		sc := *nb.q.Set
		sc.Limit = &n
		nb.q.Set = &sc
	} else {
		nb.q.Limit = &n
	}
	return nb
}

// Offset sets a row skip count, with the same Union behavior as Limit.
func (b Builder) Offset(n int) Builder {
	nb := b.clone()
	if nb.q.Set != nil {
		sc := *nb.q.Set
		sc.Offset = &n
		nb.q.Set = &sc
	} else {
		nb.q.Offset = &n
	}
	return nb
}

// WithTemporal overrides the default Current temporal mode.
func (b Builder) WithTemporal(t Temporal) Builder {
	nb := b.clone()
	nb.q.Temporal = t
	return nb
}

// AsOf scopes the query to rows live at instant t.
func (b Builder) AsOf(t time.Time) Builder {
	return b.WithTemporal(Temporal{Mode: TemporalAsOf, At: t})
}

// Union combines this query with other via a set operation.
func (b Builder) Union(op SetOp, other Builder) Builder {
	nb := b.clone()
	left := nb.q
	nb.q = Query{Set: &SetClause{Op: op, Left: &left, Right: &other.q}}
	return nb
}

// Build finalizes the AST.
func (b Builder) Build() Query { return b.q }
