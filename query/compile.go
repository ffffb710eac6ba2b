package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/nicia-ai/typegraph"
	"github.com/nicia-ai/typegraph/dialect"
	"github.com/nicia-ai/typegraph/registry"
	"github.com/nicia-ai/typegraph/storage"
)

// Plan is the decode recipe produced alongside the compiled SQL: how to
// turn each output column back into the shape the caller's projection
// asked for (spec §4.6).
type Plan struct {
	Columns   []ColumnPlan
	OrderKeys []OrderKey // in ORDER BY order, for cursor decoding
	Recursive bool
}

// ColumnPlan describes one output column.
type ColumnPlan struct {
	OutputName string
	Kind       string // "field", "whole", "agg"
	Alias      string
	System     string
	Path       string
}

const systemNodeColumns = "kind, id, props, version, valid_from, valid_to, created_at, updated_at, deleted_at"
const systemEdgeColumns = "id, kind, from_kind, from_id, to_kind, to_id, props, valid_from, valid_to, created_at, updated_at, deleted_at"

func systemColumn(name string) string {
	switch name {
	case "id":
		return "id"
	case "kind":
		return "kind"
	case "createdAt":
		return "created_at"
	case "updatedAt":
		return "updated_at"
	case "deletedAt":
		return "deleted_at"
	case "validFrom":
		return "valid_from"
	case "validTo":
		return "valid_to"
	case "version":
		return "version"
	default:
		return name
	}
}

// Compiler turns a Query into SQL text, bind args, and a decode Plan. One
// Compiler is built per compile call; it is not reused across queries.
type Compiler struct {
	reg      *registry.Registry
	strategy dialect.Strategy
	tables   storage.TableNames
	graphID  string
	args     []any

	aliasToCTE map[string]string // AST alias -> cte name (s0, e1, t1, r1, ...)
	aliasKind  map[string]string // AST alias -> "node" or "edge"
	ctes       []string          // rendered "name AS (body)" in dependency order
	recursive  bool

	prefix        string // CTE name namespace for a nested subquery compile (empty at top level)
	subqueryDepth int    // nesting depth, used to derive prefix for a deeper subquery
}

// Compile compiles q against reg using strategy, returning SQL text ready
// to bind args positionally in order.
func Compile(q Query, reg *registry.Registry, strategy dialect.Strategy, tables storage.TableNames) (string, []any, *Plan, error) {
	if q.Set != nil {
		return compileSet(q, reg, strategy, tables)
	}
	c := &Compiler{reg: reg, strategy: strategy, tables: tables, graphID: q.GraphID, aliasToCTE: map[string]string{}, aliasKind: map[string]string{}}
	return c.compile(q)
}

func (c *Compiler) bind(v any) string {
	c.args = append(c.args, v)
	return c.strategy.Placeholder(len(c.args))
}

func (c *Compiler) compile(q Query) (string, []any, *Plan, error) {
	// Partition the top-level predicate into per-alias pushdowns and a
	// terminal (mixed-alias) remainder (spec §4.5 step 6).
	pushdown, terminal := partitionPredicate(q.Where)

	expandedSourceKinds := c.expandNodeKinds(q.Source.Kinds, q.Source.IncludeSubClasses)
	sourceCTE := c.prefix + "s0"
	c.aliasToCTE[q.Source.Alias] = sourceCTE
	c.aliasKind[q.Source.Alias] = "node"
	if err := c.emitNodeCTE(sourceCTE, expandedSourceKinds, q.Temporal, pushdown[q.Source.Alias]); err != nil {
		return "", nil, nil, err
	}

	type joinStep struct {
		cte       string
		from      string // cte this joins against
		direction Direction
		optional  bool
		isEdge    bool
	}
	var joins []joinStep

	for i, tr := range q.Traversals {
		n := i + 1
		fromCTE, ok := c.aliasToCTE[tr.JoinFromAlias]
		if !ok {
			return "", nil, nil, typegraph.NewCompilerInvariantError("unknown alias " + tr.JoinFromAlias)
		}
		edgeKinds := c.expandEdgeKinds(tr.EdgeKinds, tr.Expansion)
		toKinds := c.expandNodeKinds(tr.ToKinds, tr.ToIncludeSubClasses)

		if tr.Recursion != nil {
			c.recursive = true
			rCTE := c.prefix + fmt.Sprintf("r%d", n)
			if err := c.emitRecursiveCTE(rCTE, fromCTE, edgeKinds, tr.Direction, tr.Recursion, q.Temporal); err != nil {
				return "", nil, nil, err
			}
			tCTE := c.prefix + fmt.Sprintf("t%d", n)
			c.aliasToCTE[tr.ToAlias] = tCTE
			c.aliasKind[tr.ToAlias] = "node"
			if err := c.emitRecursiveTargetCTE(tCTE, rCTE, toKinds, tr.Recursion, q.Temporal, pushdown[tr.ToAlias]); err != nil {
				return "", nil, nil, err
			}
			// rCTE already holds the start node in from_* and the reached
			// node in to_* for either direction, so both joins read it as Out.
			joins = append(joins, joinStep{cte: rCTE, from: fromCTE, direction: Out, optional: tr.Optional, isEdge: true})
			joins = append(joins, joinStep{cte: tCTE, from: rCTE, direction: Out, optional: tr.Optional, isEdge: false})
			continue
		}

		eCTE := c.prefix + fmt.Sprintf("e%d", n)
		c.aliasToCTE[tr.EdgeAlias] = eCTE
		c.aliasKind[tr.EdgeAlias] = "edge"
		if err := c.emitEdgeCTE(eCTE, edgeKinds, q.Temporal, pushdown[tr.EdgeAlias]); err != nil {
			return "", nil, nil, err
		}
		tCTE := c.prefix + fmt.Sprintf("t%d", n)
		c.aliasToCTE[tr.ToAlias] = tCTE
		c.aliasKind[tr.ToAlias] = "node"
		if err := c.emitNodeCTE(tCTE, toKinds, q.Temporal, pushdown[tr.ToAlias]); err != nil {
			return "", nil, nil, err
		}
		joins = append(joins, joinStep{cte: eCTE, from: fromCTE, direction: tr.Direction, optional: tr.Optional, isEdge: true})
		joins = append(joins, joinStep{cte: tCTE, from: eCTE, direction: tr.Direction, optional: tr.Optional, isEdge: false})
	}

	var fromClause strings.Builder
	fmt.Fprintf(&fromClause, "FROM %s", sourceCTE)
	for _, j := range joins {
		kw := "INNER JOIN"
		if j.optional {
			kw = "LEFT JOIN"
		}
		var cond string
		if j.isEdge {
			if j.direction == Out {
				cond = fmt.Sprintf("%s.from_kind = %s.kind AND %s.from_id = %s.id", j.cte, j.from, j.cte, j.from)
			} else {
				cond = fmt.Sprintf("%s.to_kind = %s.kind AND %s.to_id = %s.id", j.cte, j.from, j.cte, j.from)
			}
		} else {
			if j.direction == Out {
				cond = fmt.Sprintf("%s.kind = %s.to_kind AND %s.id = %s.to_id", j.cte, j.from, j.cte, j.from)
			} else {
				cond = fmt.Sprintf("%s.kind = %s.from_kind AND %s.id = %s.from_id", j.cte, j.from, j.cte, j.from)
			}
		}
		fmt.Fprintf(&fromClause, " %s %s ON %s", kw, j.cte, cond)
	}

	var whereParts []string
	if terminal != nil {
		frag, err := c.renderPredicate(*terminal, c.finalRefResolver())
		if err != nil {
			return "", nil, nil, err
		}
		whereParts = append(whereParts, frag)
	}

	plan := &Plan{Recursive: c.recursive, OrderKeys: q.OrderBy}
	selectCols, err := c.buildProjection(q, plan)
	if err != nil {
		return "", nil, nil, err
	}

	var sb strings.Builder
	kw := "WITH"
	if c.recursive {
		kw = "WITH RECURSIVE"
	}
	fmt.Fprintf(&sb, "%s %s\n", kw, strings.Join(c.ctes, ",\n"))
	if q.Projection.Kind == ProjAggregate {
		fmt.Fprintf(&sb, "SELECT %s\n%s", selectCols, fromClause.String())
		if len(whereParts) > 0 {
			fmt.Fprintf(&sb, "\nWHERE %s", strings.Join(whereParts, " AND "))
		}
		if len(q.Projection.GroupBy) > 0 {
			groupCols := make([]string, len(q.Projection.GroupBy))
			for i, f := range q.Projection.GroupBy {
				groupCols[i] = c.refField(c.finalRefResolver(), f)
			}
			fmt.Fprintf(&sb, "\nGROUP BY %s", strings.Join(groupCols, ", "))
		}
		if q.Projection.Having != nil {
			frag, err := c.renderPredicate(*q.Projection.Having, c.finalRefResolver())
			if err != nil {
				return "", nil, nil, err
			}
			fmt.Fprintf(&sb, "\nHAVING %s", frag)
		}
	} else {
		fmt.Fprintf(&sb, "SELECT %s\n%s", selectCols, fromClause.String())
		if len(whereParts) > 0 {
			fmt.Fprintf(&sb, "\nWHERE %s", strings.Join(whereParts, " AND "))
		}
	}

	if len(q.OrderBy) > 0 {
		parts := make([]string, len(q.OrderBy))
		for i, ok := range q.OrderBy {
			dir := "ASC"
			if ok.Desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s %s", c.refOrderKey(ok), dir)
		}
		fmt.Fprintf(&sb, "\nORDER BY %s", strings.Join(parts, ", "))
	}
	if q.Limit != nil {
		fmt.Fprintf(&sb, "\nLIMIT %s", c.bind(*q.Limit))
	}
	if q.Offset != nil {
		fmt.Fprintf(&sb, "\nOFFSET %s", c.bind(*q.Offset))
	}

	return sb.String(), c.args, plan, nil
}

func (c *Compiler) finalRefResolver() func(alias string) string {
	return func(alias string) string { return c.aliasToCTE[alias] }
}

func (c *Compiler) refOrderKey(ok OrderKey) string {
	cte := c.aliasToCTE[ok.Alias]
	if ok.System != "" {
		return fmt.Sprintf("%s.%s", cte, systemColumn(ok.System))
	}
	return c.strategy.JSONExtract(cte+".props", ok.FieldPath)
}

func (c *Compiler) refField(resolve func(string) string, f FieldRef) string {
	cte := resolve(f.Alias)
	if f.IsSystem() {
		return fmt.Sprintf("%s.%s", cte, systemColumn(f.System))
	}
	return c.strategy.JSONExtract(cte+".props", f.Path)
}

// expandNodeKinds widens a kind list to its reflexive-transitive subclass
// descendants when requested.
func (c *Compiler) expandNodeKinds(kinds []string, includeSub bool) []string {
	if !includeSub {
		return kinds
	}
	seen := map[string]struct{}{}
	var out []string
	for _, k := range kinds {
		for _, d := range c.reg.ExpandSubClasses(k) {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				out = append(out, d)
			}
		}
	}
	return out
}

// expandEdgeKinds widens an edge-kind list per the traversal's Expansion
// (spec §4.5 step 7).
func (c *Compiler) expandEdgeKinds(kinds []string, exp Expansion) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(k string) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	for _, k := range kinds {
		add(k)
		switch exp {
		case ExpandInverse:
			if inv, ok := c.reg.GetInverseEdge(k); ok {
				add(inv)
			}
		case ExpandImplying:
			for _, e := range c.reg.ExpandImplyingEdges(k) {
				add(e)
			}
		}
	}
	return out
}

func (c *Compiler) temporalClause(baseCol string, t Temporal) (string, []any) {
	var args []any
	switch t.Mode {
	case TemporalIncludeTombstones:
		return "1=1", nil
	case TemporalIncludeEnded:
		return fmt.Sprintf("%s.deleted_at IS NULL", baseCol), nil
	case TemporalAsOf:
		args = append(args, t.At, t.At)
		return fmt.Sprintf(
			"%s.deleted_at IS NULL AND (%s.valid_from IS NULL OR %s.valid_from <= %s) AND (%s.valid_to IS NULL OR %s.valid_to >= %s)",
			baseCol, baseCol, baseCol, c.strategy.Placeholder(len(c.args)+1), baseCol, baseCol, c.strategy.Placeholder(len(c.args)+2),
		), args
	default: // Current
		now := time.Now()
		args = append(args, now)
		return fmt.Sprintf("%s.deleted_at IS NULL AND (%s.valid_to IS NULL OR %s.valid_to >= %s)",
			baseCol, baseCol, baseCol, c.strategy.Placeholder(len(c.args)+1)), args
	}
}

func (c *Compiler) emitNodeCTE(name string, kinds []string, t Temporal, pushdown *Predicate) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s AS (\n  SELECT %s FROM %s n WHERE n.graph_id = %s", name, systemNodeColumns, c.tables.Nodes, c.bind(c.graphID))
	if len(kinds) > 0 {
		ph := make([]string, len(kinds))
		for i, k := range kinds {
			ph[i] = c.bind(k)
		}
		fmt.Fprintf(&sb, " AND n.kind IN (%s)", strings.Join(ph, ", "))
	}
	temporal, targs := c.temporalClause("n", t)
	c.args = append(c.args, targs...)
	fmt.Fprintf(&sb, " AND %s", temporal)
	if pushdown != nil {
		frag, err := c.renderPredicate(*pushdown, func(string) string { return "n" })
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, " AND %s", frag)
	}
	sb.WriteString("\n)")
	c.ctes = append(c.ctes, sb.String())
	return nil
}

func (c *Compiler) emitEdgeCTE(name string, kinds []string, t Temporal, pushdown *Predicate) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s AS (\n  SELECT %s FROM %s ed WHERE ed.graph_id = %s", name, systemEdgeColumns, c.tables.Edges, c.bind(c.graphID))
	if len(kinds) > 0 {
		ph := make([]string, len(kinds))
		for i, k := range kinds {
			ph[i] = c.bind(k)
		}
		fmt.Fprintf(&sb, " AND ed.kind IN (%s)", strings.Join(ph, ", "))
	}
	temporal, targs := c.temporalClause("ed", t)
	c.args = append(c.args, targs...)
	fmt.Fprintf(&sb, " AND %s", temporal)
	if pushdown != nil {
		frag, err := c.renderPredicate(*pushdown, func(string) string { return "ed" })
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, " AND %s", frag)
	}
	sb.WriteString("\n)")
	c.ctes = append(c.ctes, sb.String())
	return nil
}

// emitRecursiveCTE builds the variable-length path closure from fromCTE
// through edges of kinds, in direction dir (spec §4.5 step 4). Cycle
// detection uses a delimited path string column checked with NOT LIKE.
//
// The closure is a UNION ALL of three branches: a depth-0 anchor (the
// starting node as its own endpoint, needed so MinHops = 0 can return it
// per B4), the depth-1 base case (only emitted when the walk allows at
// least one hop), and the recursive step extending depth >= 1 rows.
func (c *Compiler) emitRecursiveCTE(name, fromCTE string, kinds []string, dir Direction, rec *Recursion, t Temporal) error {
	startKindCol, startIDCol, endKindCol, endIDCol := "from_kind", "from_id", "to_kind", "to_id"
	if dir == In {
		startKindCol, startIDCol, endKindCol, endIDCol = "to_kind", "to_id", "from_kind", "from_id"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s AS (\n", name)
	fmt.Fprintf(&sb, "  SELECT s.kind AS from_kind, s.id AS from_id, s.kind AS to_kind, s.id AS to_id, 0 AS depth,\n")
	fmt.Fprintf(&sb, "    (s.kind || ':' || s.id) AS path\n")
	fmt.Fprintf(&sb, "  FROM %s s\n", fromCTE)

	allowHops := rec.Unbounded || rec.MaxHops >= 1
	if allowHops {
		sb.WriteString("  UNION ALL\n")
		fmt.Fprintf(&sb, "  SELECT e.%s AS from_kind, e.%s AS from_id, e.%s AS to_kind, e.%s AS to_id, 1 AS depth,\n",
			startKindCol, startIDCol, endKindCol, endIDCol)
		fmt.Fprintf(&sb, "    (e.%s || ':' || e.%s || '>' || e.%s || ':' || e.%s) AS path\n", startKindCol, startIDCol, endKindCol, endIDCol)
		fmt.Fprintf(&sb, "  FROM %s e JOIN %s ON %s.kind = e.%s AND %s.id = e.%s\n", c.tables.Edges, fromCTE, fromCTE, startKindCol, fromCTE, startIDCol)
		fmt.Fprintf(&sb, "  WHERE e.graph_id = %s", c.bind(c.graphID))
		if len(kinds) > 0 {
			ph := make([]string, len(kinds))
			for i, k := range kinds {
				ph[i] = c.bind(k)
			}
			fmt.Fprintf(&sb, " AND e.kind IN (%s)", strings.Join(ph, ", "))
		}
		temporal, targs := c.temporalClause("e", t)
		c.args = append(c.args, targs...)
		fmt.Fprintf(&sb, " AND %s\n", temporal)

		sb.WriteString("  UNION ALL\n")
		fmt.Fprintf(&sb, "  SELECT w.from_kind, w.from_id, e.%s AS to_kind, e.%s AS to_id, w.depth + 1,\n", endKindCol, endIDCol)
		fmt.Fprintf(&sb, "    w.path || '>' || e.%s || ':' || e.%s\n", endKindCol, endIDCol)
		fmt.Fprintf(&sb, "  FROM %s w JOIN %s e ON e.%s = w.to_kind AND e.%s = w.to_id\n", name, c.tables.Edges, startKindCol, startIDCol)
		fmt.Fprintf(&sb, "  WHERE w.depth >= 1 AND e.graph_id = %s", c.bind(c.graphID))
		if len(kinds) > 0 {
			ph := make([]string, len(kinds))
			for i, k := range kinds {
				ph[i] = c.bind(k)
			}
			fmt.Fprintf(&sb, " AND e.kind IN (%s)", strings.Join(ph, ", "))
		}
		temporal2, targs2 := c.temporalClause("e", t)
		c.args = append(c.args, targs2...)
		fmt.Fprintf(&sb, " AND %s", temporal2)
		if !rec.Unbounded {
			fmt.Fprintf(&sb, " AND w.depth < %s", c.bind(rec.MaxHops))
		}
		fmt.Fprintf(&sb, " AND w.path NOT LIKE '%%' || e.%s || ':' || e.%s || '%%'\n", endKindCol, endIDCol)
	}
	sb.WriteString(")")
	c.ctes = append(c.ctes, sb.String())
	return nil
}

func (c *Compiler) emitRecursiveTargetCTE(name, rCTE string, toKinds []string, rec *Recursion, t Temporal, pushdown *Predicate) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s AS (\n  SELECT n.kind AS kind, n.id AS id, n.props AS props, n.version AS version, n.valid_from AS valid_from, n.valid_to AS valid_to, n.created_at AS created_at, n.updated_at AS updated_at, n.deleted_at AS deleted_at, r.depth AS __depth\n", name)
	fmt.Fprintf(&sb, "  FROM %s n JOIN %s r ON n.kind = r.to_kind AND n.id = r.to_id\n", c.tables.Nodes, rCTE)
	// MinHops is a literal bound (spec B4): 0 includes the starting node
	// via the depth-0 anchor row emitted by emitRecursiveCTE.
	fmt.Fprintf(&sb, "  WHERE r.depth >= %s", c.bind(rec.MinHops))
	if len(toKinds) > 0 {
		ph := make([]string, len(toKinds))
		for i, k := range toKinds {
			ph[i] = c.bind(k)
		}
		fmt.Fprintf(&sb, " AND n.kind IN (%s)", strings.Join(ph, ", "))
	}
	temporal, targs := c.temporalClause("n", t)
	c.args = append(c.args, targs...)
	fmt.Fprintf(&sb, " AND %s", temporal)
	if pushdown != nil {
		frag, err := c.renderPredicate(*pushdown, func(string) string { return "n" })
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, " AND %s", frag)
	}
	sb.WriteString("\n)")
	c.ctes = append(c.ctes, sb.String())
	return nil
}

// buildProjection renders the SELECT list and populates plan.Columns
// (spec §4.6: selective projection when every binding is a scalar field
// ref, full-row fallback per alias otherwise).
func (c *Compiler) buildProjection(q Query, plan *Plan) (string, error) {
	var cols []string
	resolve := c.finalRefResolver()

	if q.Projection.Kind == ProjAggregate {
		for _, b := range q.Projection.Bindings {
			var expr string
			if b.Agg == AggCount && b.AggField == nil {
				expr = "COUNT(*)"
			} else if b.AggField != nil {
				inner := c.refField(resolve, *b.AggField)
				switch b.Agg {
				case AggCountDistinct:
					expr = fmt.Sprintf("COUNT(DISTINCT %s)", inner)
				default:
					expr = fmt.Sprintf("%s(%s)", strings.ToUpper(string(b.Agg)), inner)
				}
			} else {
				return "", typegraph.NewCompilerInvariantError("aggregate binding missing field")
			}
			cols = append(cols, fmt.Sprintf("%s AS %s", expr, b.Name))
			plan.Columns = append(plan.Columns, ColumnPlan{OutputName: b.Name, Kind: "agg"})
		}
		for _, g := range q.Projection.GroupBy {
			name := "group_" + g.Alias + "_" + g.Path + g.System
			cols = append(cols, fmt.Sprintf("%s AS %s", c.refField(resolve, g), name))
			plan.Columns = append(plan.Columns, ColumnPlan{OutputName: name, Kind: "field", Alias: g.Alias, Path: g.Path, System: g.System})
		}
		return strings.Join(cols, ", "), nil
	}

	for _, b := range q.Projection.Bindings {
		switch {
		case b.WholeAlias != "":
			cte := resolve(b.WholeAlias)
			isEdge := c.aliasKind[b.WholeAlias] == "edge"
			prefix := b.Name
			if isEdge {
				for _, col := range strings.Split(systemEdgeColumns, ", ") {
					out := prefix + "__" + col
					cols = append(cols, fmt.Sprintf("%s.%s AS %s", cte, col, out))
				}
			} else {
				for _, col := range strings.Split(systemNodeColumns, ", ") {
					out := prefix + "__" + col
					cols = append(cols, fmt.Sprintf("%s.%s AS %s", cte, col, out))
				}
			}
			plan.Columns = append(plan.Columns, ColumnPlan{OutputName: prefix, Kind: "whole", Alias: b.WholeAlias})
		case b.Field != nil:
			expr := c.refField(resolve, *b.Field)
			cols = append(cols, fmt.Sprintf("%s AS %s", expr, b.Name))
			plan.Columns = append(plan.Columns, ColumnPlan{OutputName: b.Name, Kind: "field", Alias: b.Field.Alias, Path: b.Field.Path, System: b.Field.System})
		}
	}

	// ORDER BY keys are always projected even when not selected, so
	// cursor pagination can read them back (spec §4.5 step 5).
	selected := map[string]struct{}{}
	for _, cp := range plan.Columns {
		selected[cp.Alias+"|"+cp.Path+"|"+cp.System] = struct{}{}
	}
	for i, ok := range q.OrderBy {
		key := ok.Alias + "|" + ok.FieldPath + "|" + ok.System
		if _, done := selected[key]; done {
			continue
		}
		name := fmt.Sprintf("__order_%d", i)
		expr := c.refOrderKey(ok)
		cols = append(cols, fmt.Sprintf("%s AS %s", expr, name))
		plan.Columns = append(plan.Columns, ColumnPlan{OutputName: name, Kind: "field", Alias: ok.Alias, Path: ok.FieldPath, System: ok.System})
		selected[key] = struct{}{}
	}

	if len(cols) == 0 {
		return "", typegraph.NewCompilerInvariantError("empty projection")
	}
	return strings.Join(cols, ", "), nil
}

func compileSet(q Query, reg *registry.Registry, strategy dialect.Strategy, tables storage.TableNames) (string, []any, *Plan, error) {
	leftSQL, leftArgs, leftPlan, err := Compile(*q.Set.Left, reg, strategy, tables)
	if err != nil {
		return "", nil, nil, err
	}
	rightSQL, rightArgs, rightPlan, err := Compile(*q.Set.Right, reg, strategy, tables)
	if err != nil {
		return "", nil, nil, err
	}
	// Spec §4.4: "both sides must produce the same projection arity
	// (checked at compile time)".
	if len(leftPlan.Columns) != len(rightPlan.Columns) {
		return "", nil, nil, typegraph.NewValidationError("set", fmt.Errorf(
			"set operation arity mismatch: left has %d columns, right has %d", len(leftPlan.Columns), len(rightPlan.Columns)))
	}
	var op string
	switch q.Set.Op {
	case SetUnion:
		op = "UNION"
	case SetUnionAll:
		op = "UNION ALL"
	case SetIntersect:
		op = "INTERSECT"
	case SetExcept:
		op = "EXCEPT"
	}
	args := append(append([]any{}, leftArgs...), rightArgs...)
	sqlText := fmt.Sprintf("%s\n%s\n%s", leftSQL, op, rightSQL)

	// Spec §4.5 step 9: "an outer SELECT applies the combined LIMIT/OFFSET".
	if q.Set.Limit != nil || q.Set.Offset != nil {
		sqlText = fmt.Sprintf("SELECT * FROM (\n%s\n) AS set_result", sqlText)
		if q.Set.Limit != nil {
			args = append(args, *q.Set.Limit)
			sqlText += fmt.Sprintf("\nLIMIT %s", strategy.Placeholder(len(args)))
		}
		if q.Set.Offset != nil {
			args = append(args, *q.Set.Offset)
			sqlText += fmt.Sprintf("\nOFFSET %s", strategy.Placeholder(len(args)))
		}
	}
	return sqlText, args, leftPlan, nil
}
