// Package query implements the AST, fluent builder, CTE-based compiler,
// and executor that turn typed graph queries into SQL against the
// five-table schema (spec §4.4-§4.9).
package query

import "time"

// Direction is the traversal direction of an edge relative to the alias
// it joins from.
type Direction int

const (
	// Out follows edges where joinFromAlias is the "from" endpoint.
	Out Direction = iota
	// In follows edges where joinFromAlias is the "to" endpoint.
	In
)

// Expansion widens the edge-kind set a traversal step matches against,
// using registry-computed closures.
type Expansion int

const (
	// ExpandNone matches only the given edge kind(s).
	ExpandNone Expansion = iota
	// ExpandInverse additionally matches each edge kind's registered
	// inverse.
	ExpandInverse
	// ExpandImplying additionally matches the reflexive-transitive
	// inverse closure of `implies`.
	ExpandImplying
)

// Recursion turns a traversal step into a variable-length path.
//
// MinHops and MaxHops are literal hop counts, not sentinels: MinHops = 0
// includes the starting node itself in the result (spec B4), and MaxHops
// is only a bound when Unbounded is false — MaxHops = 0 with Unbounded
// false means "stop before the first hop" (B4), not "no bound". Callers
// that want the conventional "at least one hop away" traversal (the
// common case) must set MinHops: 1 explicitly.
type Recursion struct {
	MinHops    int
	MaxHops    int
	Unbounded  bool
	DepthAlias string
	PathAlias  string
}

// Source is the starting point of a query: every live node of the given
// kinds (optionally expanded to subclasses), bound to alias.
type Source struct {
	Alias             string
	Kinds             []string
	IncludeSubClasses bool
}

// Traversal is one hop from an already-bound alias to a new one, through
// an edge kind set.
type Traversal struct {
	EdgeAlias           string
	EdgeKinds           []string
	Direction           Direction
	Optional            bool
	JoinFromAlias       string
	Expansion           Expansion
	Recursion           *Recursion // nil for a single hop
	ToAlias             string
	ToKinds             []string
	ToIncludeSubClasses bool
}

// Op is a predicate operator (spec §4.4).
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpBetween
	OpIn
	OpContains
	OpStartsWith
	OpEndsWith
	OpLike
	OpIsNull
	OpIsNotNull
	OpAnd
	OpOr
	OpNot
	// OpExists and OpNotExists test a Predicate.Subquery for row
	// existence; they carry no Operands.
	OpExists
	OpNotExists
	// OpInSubquery and OpNotInSubquery test Operands[0] against the
	// result set of Predicate.Subquery.
	OpInSubquery
	OpNotInSubquery
)

// FieldRef addresses a single value: either a prop-path field on an
// alias's JSON payload, or one of the fixed system columns.
type FieldRef struct {
	Alias  string
	Path   string // dot-separated prop path; empty when System is set
	System string // "id","kind","createdAt","updatedAt","deletedAt","validFrom","validTo","version"
}

// IsSystem reports whether this ref addresses a system column rather than
// a prop field.
func (f FieldRef) IsSystem() bool { return f.System != "" }

// ParamType is the nominal type a parameter placeholder is declared with
// (spec §4.4 "parameter placeholders carry a nominal type"), checked by
// the executor against the bound value at Execute time (spec §4.8).
type ParamType int

const (
	ParamString ParamType = iota
	ParamNumber
	ParamBoolean
)

// Operand is one argument to a predicate: exactly one of Field, Literal,
// or Param is set.
type Operand struct {
	Field     *FieldRef
	Literal   any
	Param     string // name of a bound parameter, resolved at execute time
	ParamType ParamType
}

// FieldOperand is a convenience constructor for a field-ref operand.
func FieldOperand(alias, path string) Operand { return Operand{Field: &FieldRef{Alias: alias, Path: path}} }

// SystemOperand is a convenience constructor for a system-column operand.
func SystemOperand(alias, system string) Operand {
	return Operand{Field: &FieldRef{Alias: alias, System: system}}
}

// Lit is a convenience constructor for a literal operand.
func Lit(v any) Operand { return Operand{Literal: v} }

// Param is a convenience constructor for a named-parameter operand,
// declared with its nominal binding type (spec §4.4, §4.8).
func Param(name string, t ParamType) Operand { return Operand{Param: name, ParamType: t} }

// Predicate is a tagged boolean expression node. And/Or/Not carry their
// operands in Sub; every other op carries them in Operands. OpExists,
// OpNotExists, OpInSubquery, and OpNotInSubquery carry their nested
// query in Subquery instead (spec §4.4 "subquery" operand kind).
type Predicate struct {
	Op       Op
	Operands []Operand
	Sub      []Predicate
	Subquery *Query
}

// Exists builds an `exists(subquery)` predicate (spec §4.4).
func Exists(sub Query) Predicate { return Predicate{Op: OpExists, Subquery: &sub} }

// NotExists builds a `notExists(subquery)` predicate.
func NotExists(sub Query) Predicate { return Predicate{Op: OpNotExists, Subquery: &sub} }

// InSubquery builds an `inSubquery(fieldRef, subquery)` predicate: field
// tests membership in the single-column result set of sub.
func InSubquery(field Operand, sub Query) Predicate {
	return Predicate{Op: OpInSubquery, Operands: []Operand{field}, Subquery: &sub}
}

// NotInSubquery builds a `notInSubquery(fieldRef, subquery)` predicate.
func NotInSubquery(field Operand, sub Query) Predicate {
	return Predicate{Op: OpNotInSubquery, Operands: []Operand{field}, Subquery: &sub}
}

// touchedAliases returns every alias this predicate (recursively)
// references, used by the compiler's pushdown pass.
func (p Predicate) touchedAliases() map[string]struct{} {
	out := map[string]struct{}{}
	p.collectAliases(out)
	return out
}

func (p Predicate) collectAliases(out map[string]struct{}) {
	for _, o := range p.Operands {
		if o.Field != nil {
			out[o.Field.Alias] = struct{}{}
		}
	}
	for _, s := range p.Sub {
		s.collectAliases(out)
	}
}

// AggFunc names an aggregate function (spec §4.4).
type AggFunc string

const (
	AggCount         AggFunc = "count"
	AggCountDistinct AggFunc = "countDistinct"
	AggSum           AggFunc = "sum"
	AggAvg           AggFunc = "avg"
	AggMin           AggFunc = "min"
	AggMax           AggFunc = "max"
)

// Binding is one output column of a projection.
type Binding struct {
	Name string
	// Exactly one of Field, WholeAlias, or Agg is set.
	Field      *FieldRef
	WholeAlias string  // bind the entire row of this alias (disables selectivity for it)
	Agg        AggFunc // aggregate function; AggField is its argument (nil means COUNT(*))
	AggField   *FieldRef
}

// ProjectionKind distinguishes a row shape from an aggregation.
type ProjectionKind int

const (
	ProjRow ProjectionKind = iota
	ProjAggregate
)

// Projection is the query's output shape.
type Projection struct {
	Kind     ProjectionKind
	Bindings []Binding
	GroupBy  []FieldRef
	Having   *Predicate
}

// OrderKey is one ORDER BY term.
type OrderKey struct {
	Alias     string
	FieldPath string
	System    string
	Desc      bool
}

// TemporalMode selects which rows are visible (spec §4.4, mirrors
// storage.TemporalMode).
type TemporalMode int

const (
	TemporalCurrent TemporalMode = iota
	TemporalIncludeEnded
	TemporalIncludeTombstones
	TemporalAsOf
)

// Temporal scopes a query by temporal mode.
type Temporal struct {
	Mode TemporalMode
	At   time.Time
}

// SetOp combines two queries (spec §4.4).
type SetOp int

const (
	SetUnion SetOp = iota
	SetUnionAll
	SetIntersect
	SetExcept
)

// SetClause combines Left and Right's results; both sides must share
// projection arity (checked at compile time). Limit/Offset apply to the
// combined result, after Op (spec §4.4, §4.5 step 9).
type SetClause struct {
	Op     SetOp
	Left   *Query
	Right  *Query
	Limit  *int
	Offset *int
}

// Query is the closed AST produced by the builder and consumed by the
// compiler.
type Query struct {
	GraphID    string
	Source     Source
	Traversals []Traversal
	Where      *Predicate
	Projection Projection
	OrderBy    []OrderKey
	Limit      *int
	Offset     *int
	Temporal   Temporal
	Set        *SetClause
}
