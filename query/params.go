package query

import (
	"errors"
	"fmt"
)

var errNoOrderForPagination = errors.New("query: Page requires at least one OrderBy key")

func missingParamError(name string) error {
	return errors.New("query: missing binding for parameter :" + name)
}

func extraParamError(name string) error {
	return errors.New("query: binding for parameter :" + name + " does not match any parameter in the prepared query")
}

func nullParamError(name string) error {
	return errors.New("query: binding for parameter :" + name + " is null; use isNull/isNotNull instead of binding a null parameter")
}

// collectParams gathers every named Param operand a predicate tree
// references, along with its declared ParamType, for PreparedQuery
// validation (spec §4.8). A Subquery is walked too, since its own
// predicates may reference outer parameters.
func collectParams(p *Predicate, out map[string]ParamType) {
	if p == nil {
		return
	}
	for _, o := range p.Operands {
		if o.Param != "" {
			out[o.Param] = o.ParamType
		}
	}
	for _, s := range p.Sub {
		collectParams(&s, out)
	}
	if p.Subquery != nil {
		collectQueryParams(*p.Subquery, out)
	}
}

// collectQueryParams walks every predicate position a Query can carry a
// Param in: Where, Projection.Having, and (recursively) a Set's branches.
func collectQueryParams(q Query, out map[string]ParamType) {
	collectParams(q.Where, out)
	collectParams(q.Projection.Having, out)
	if q.Set != nil {
		if q.Set.Left != nil {
			collectQueryParams(*q.Set.Left, out)
		}
		if q.Set.Right != nil {
			collectQueryParams(*q.Set.Right, out)
		}
	}
}

// checkParamType reports whether v is an acceptable Go value for t (spec
// §4.8: bindings are type-checked against the operand's nominal type).
func checkParamType(name string, t ParamType, v any) error {
	switch t {
	case ParamString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("query: binding for parameter :%s must be a string, got %T", name, v)
		}
	case ParamBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("query: binding for parameter :%s must be a boolean, got %T", name, v)
		}
	case ParamNumber:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		default:
			return fmt.Errorf("query: binding for parameter :%s must be a number, got %T", name, v)
		}
	}
	return nil
}

// substituteParams returns a copy of q with every named Param operand,
// anywhere in its Where/Having/Set branches, replaced by the literal
// bindings supplies.
func substituteParams(q Query, bindings map[string]any) Query {
	nq := q
	nq.Where = substitutePredicate(q.Where, bindings)
	nq.Projection.Having = substitutePredicate(q.Projection.Having, bindings)
	if q.Set != nil {
		ns := *q.Set
		if ns.Left != nil {
			l := substituteParams(*ns.Left, bindings)
			ns.Left = &l
		}
		if ns.Right != nil {
			r := substituteParams(*ns.Right, bindings)
			ns.Right = &r
		}
		nq.Set = &ns
	}
	return nq
}

func substitutePredicate(p *Predicate, bindings map[string]any) *Predicate {
	if p == nil {
		return nil
	}
	np := Predicate{Op: p.Op}
	for _, o := range p.Operands {
		if o.Param != "" {
			np.Operands = append(np.Operands, Lit(bindings[o.Param]))
			continue
		}
		np.Operands = append(np.Operands, o)
	}
	for _, s := range p.Sub {
		np.Sub = append(np.Sub, *substitutePredicate(&s, bindings))
	}
	if p.Subquery != nil {
		sub := substituteParams(*p.Subquery, bindings)
		np.Subquery = &sub
	}
	return &np
}
