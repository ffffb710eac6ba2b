package query

import (
	"fmt"
	"strings"

	"github.com/nicia-ai/typegraph"
)

// partitionPredicate splits a top-level WHERE predicate into per-alias
// pushdowns (each conjunct that touches exactly one alias) and a terminal
// remainder evaluated in the outer SELECT once every alias is joined
// (spec §4.5 step 6). Only a top-level AND is split; any other predicate
// shape is pushed down whole when it touches one alias, else kept whole
// as the terminal predicate.
func partitionPredicate(where *Predicate) (map[string]*Predicate, *Predicate) {
	pushdown := map[string]*Predicate{}
	if where == nil {
		return pushdown, nil
	}

	var conjuncts []Predicate
	var flatten func(p Predicate)
	flatten = func(p Predicate) {
		if p.Op == OpAnd {
			for _, s := range p.Sub {
				flatten(s)
			}
			return
		}
		conjuncts = append(conjuncts, p)
	}
	flatten(*where)

	var terminalParts []Predicate
	for _, c := range conjuncts {
		aliases := c.touchedAliases()
		if len(aliases) == 1 {
			var only string
			for a := range aliases {
				only = a
			}
			if existing, ok := pushdown[only]; ok {
				merged := Predicate{Op: OpAnd, Sub: []Predicate{*existing, c}}
				pushdown[only] = &merged
			} else {
				cc := c
				pushdown[only] = &cc
			}
			continue
		}
		terminalParts = append(terminalParts, c)
	}

	if len(terminalParts) == 0 {
		return pushdown, nil
	}
	if len(terminalParts) == 1 {
		return pushdown, &terminalParts[0]
	}
	merged := Predicate{Op: OpAnd, Sub: terminalParts}
	return pushdown, &merged
}

// renderPredicate renders p to a SQL boolean expression, appending bind
// args to c.args as it goes. resolve maps an AST alias to the table/CTE
// reference to prefix its columns with (a fixed internal alias like "n"
// when rendering inside that alias's own CTE body, or the CTE's own name
// when rendering in the terminal/outer WHERE).
func (c *Compiler) renderPredicate(p Predicate, resolve func(string) string) (string, error) {
	switch p.Op {
	case OpAnd, OpOr:
		if len(p.Sub) == 0 {
			return "", typegraph.NewCompilerInvariantError("and/or predicate with no operands")
		}
		parts := make([]string, len(p.Sub))
		for i, s := range p.Sub {
			frag, err := c.renderPredicate(s, resolve)
			if err != nil {
				return "", err
			}
			parts[i] = "(" + frag + ")"
		}
		sep := " AND "
		if p.Op == OpOr {
			sep = " OR "
		}
		return strings.Join(parts, sep), nil
	case OpNot:
		if len(p.Sub) != 1 {
			return "", typegraph.NewCompilerInvariantError("not predicate requires exactly one operand")
		}
		frag, err := c.renderPredicate(p.Sub[0], resolve)
		if err != nil {
			return "", err
		}
		return "NOT (" + frag + ")", nil
	case OpExists, OpNotExists, OpInSubquery, OpNotInSubquery:
		return c.renderSubqueryPredicate(p, resolve)
	}

	if len(p.Operands) == 0 {
		return "", typegraph.NewCompilerInvariantError("predicate with no operands")
	}
	lhs, err := c.renderOperand(p.Operands[0], resolve)
	if err != nil {
		return "", err
	}

	switch p.Op {
	case OpIsNull:
		return lhs + " IS NULL", nil
	case OpIsNotNull:
		return lhs + " IS NOT NULL", nil
	case OpBetween:
		if len(p.Operands) != 3 {
			return "", typegraph.NewCompilerInvariantError("between requires field, low, high")
		}
		lo, err := c.renderOperand(p.Operands[1], resolve)
		if err != nil {
			return "", err
		}
		hi, err := c.renderOperand(p.Operands[2], resolve)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", lhs, lo, hi), nil
	case OpIn:
		if len(p.Operands) < 2 {
			return "", typegraph.NewCompilerInvariantError("in requires at least one value")
		}
		vals := make([]string, 0, len(p.Operands)-1)
		for _, o := range p.Operands[1:] {
			v, err := c.renderOperand(o, resolve)
			if err != nil {
				return "", err
			}
			vals = append(vals, v)
		}
		return fmt.Sprintf("%s IN (%s)", lhs, strings.Join(vals, ", ")), nil
	case OpContains, OpStartsWith, OpEndsWith, OpLike:
		if len(p.Operands) != 2 {
			return "", typegraph.NewCompilerInvariantError("string-match op requires exactly two operands")
		}
		rhs := p.Operands[1]
		var pattern string
		if rhs.Literal != nil {
			s, _ := rhs.Literal.(string)
			switch p.Op {
			case OpContains:
				pattern = "%" + escapeLike(s) + "%"
			case OpStartsWith:
				pattern = escapeLike(s) + "%"
			case OpEndsWith:
				pattern = "%" + escapeLike(s)
			case OpLike:
				pattern = s
			}
			return fmt.Sprintf("%s LIKE %s ESCAPE '\\'", lhs, c.bind(pattern)), nil
		}
		rv, err := c.renderOperand(rhs, resolve)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s LIKE %s ESCAPE '\\'", lhs, rv), nil
	default:
		if len(p.Operands) != 2 {
			return "", typegraph.NewCompilerInvariantError("comparison requires exactly two operands")
		}
		rhs, err := c.renderOperand(p.Operands[1], resolve)
		if err != nil {
			return "", err
		}
		op, ok := comparisonOps[p.Op]
		if !ok {
			return "", typegraph.NewCompilerInvariantError("unsupported operator")
		}
		return fmt.Sprintf("%s %s %s", lhs, op, rhs), nil
	}
}

var comparisonOps = map[Op]string{
	OpEq: "=",
	OpNe: "<>",
	OpLt: "<",
	OpLe: "<=",
	OpGt: ">",
	OpGe: ">=",
}

func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}

func (c *Compiler) renderOperand(o Operand, resolve func(string) string) (string, error) {
	switch {
	case o.Field != nil:
		return c.refField(resolve, *o.Field), nil
	case o.Param != "":
		return "", typegraph.NewCompilerInvariantError("unresolved parameter :" + o.Param)
	default:
		return c.bind(o.Literal), nil
	}
}

// renderSubqueryPredicate renders exists/notExists/inSubquery/notInSubquery
// (spec §4.4, §1 "EXISTS, subqueries"). The nested query is compiled by a
// child Compiler namespaced under a "subN_" CTE prefix so its CTE names
// never collide with the outer query's, and seeded with the outer
// compiler's current alias bindings so the nested query's own predicates
// may correlate against already-joined outer aliases.
func (c *Compiler) renderSubqueryPredicate(p Predicate, resolve func(string) string) (string, error) {
	if p.Subquery == nil {
		return "", typegraph.NewCompilerInvariantError("subquery predicate missing Subquery")
	}
	sql, err := c.compileSubquery(*p.Subquery)
	if err != nil {
		return "", err
	}
	switch p.Op {
	case OpExists:
		return "EXISTS (" + sql + ")", nil
	case OpNotExists:
		return "NOT EXISTS (" + sql + ")", nil
	case OpInSubquery, OpNotInSubquery:
		if len(p.Operands) != 1 {
			return "", typegraph.NewCompilerInvariantError("inSubquery requires exactly one field operand")
		}
		lhs, err := c.renderOperand(p.Operands[0], resolve)
		if err != nil {
			return "", err
		}
		kw := "IN"
		if p.Op == OpNotInSubquery {
			kw = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", lhs, kw, sql), nil
	default:
		return "", typegraph.NewCompilerInvariantError("unsupported subquery operator")
	}
}

// compileSubquery compiles sub with a child Compiler nested under c,
// inheriting c's graph ID when sub didn't set its own, and c's bind args
// so the nested query's placeholders thread into the same positional
// argument list as the outer query.
func (c *Compiler) compileSubquery(sub Query) (string, error) {
	graphID := sub.GraphID
	if graphID == "" {
		graphID = c.graphID
	}
	nc := &Compiler{
		reg:           c.reg,
		strategy:      c.strategy,
		tables:        c.tables,
		graphID:       graphID,
		args:          c.args,
		aliasToCTE:    map[string]string{},
		aliasKind:     map[string]string{},
		prefix:        fmt.Sprintf("sub%d_", c.subqueryDepth+1),
		subqueryDepth: c.subqueryDepth + 1,
	}
	for alias, cte := range c.aliasToCTE {
		nc.aliasToCTE[alias] = cte
		nc.aliasKind[alias] = c.aliasKind[alias]
	}
	sqlText, args, _, err := nc.compile(sub)
	if err != nil {
		return "", err
	}
	c.args = args
	if nc.recursive {
		c.recursive = true
	}
	return sqlText, nil
}
