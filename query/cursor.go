package query

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/nicia-ai/typegraph"
)

// cursorPayload is the canonical, order-key-tagged value tuple a cursor
// encodes (spec §4.7): the ORDER BY key values of the row it points at,
// so a seek predicate can be rebuilt without re-deriving the sort.
type cursorPayload struct {
	Keys   []string `json:"k"` // alias+"|"+path/system, for a cheap shape check
	Values []any    `json:"v"`
}

func encodeCursor(order []OrderKey, row Row, plan *Plan) (string, error) {
	payload := cursorPayload{}
	for i, ok := range order {
		var name string
		if len(plan.Columns) > 0 {
			name = orderColumnName(plan, i, ok)
		}
		payload.Keys = append(payload.Keys, orderKeyTag(ok))
		payload.Values = append(payload.Values, row[name])
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeCursor(cursor string) (cursorPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return cursorPayload{}, typegraph.NewValidationError("cursor", err)
	}
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return cursorPayload{}, typegraph.NewValidationError("cursor", err)
	}
	return p, nil
}

func orderKeyTag(ok OrderKey) string {
	if ok.System != "" {
		return ok.Alias + "|sys:" + ok.System
	}
	return ok.Alias + "|" + ok.FieldPath
}

// orderColumnName finds the output column an OrderKey landed in: either a
// selected binding that happens to match it, or the synthetic __order_N
// column the compiler adds for unselected keys.
func orderColumnName(plan *Plan, idx int, ok OrderKey) string {
	for _, cp := range plan.Columns {
		if cp.Kind != "field" {
			continue
		}
		if cp.Alias == ok.Alias && cp.System == ok.System && cp.Path == ok.FieldPath {
			return cp.OutputName
		}
	}
	return fmt.Sprintf("__order_%d", idx)
}

// buildSeekPredicate renders the cursor's lexicographic seek condition as a
// Predicate over the same order keys, so it composes with the rest of the
// compiler's ordinary predicate pushdown (spec §4.7). backward flips every
// comparison to build the "strictly before" condition a `last`/`before`
// page seeks with instead of the "strictly after" a `first`/`after` page
// uses.
func buildSeekPredicate(order []OrderKey, cursor cursorPayload, backward bool) (Predicate, error) {
	if len(order) != len(cursor.Values) {
		return Predicate{}, typegraph.NewValidationError("cursor", fmt.Errorf("cursor has %d keys, query orders by %d", len(cursor.Values), len(order)))
	}
	for i := range order {
		if i >= len(cursor.Keys) || cursor.Keys[i] != orderKeyTag(order[i]) {
			return Predicate{}, typegraph.NewValidationError("cursor", fmt.Errorf("cursor key %d does not match the query's ORDER BY", i))
		}
	}

	var or []Predicate
	for i := range order {
		var and []Predicate
		for j := 0; j < i; j++ {
			and = append(and, Predicate{Op: OpEq, Operands: []Operand{fieldOperandFor(order[j]), Lit(cursor.Values[j])}})
		}
		desc := order[i].Desc
		if backward {
			desc = !desc
		}
		op := OpGt
		if desc {
			op = OpLt
		}
		and = append(and, Predicate{Op: op, Operands: []Operand{fieldOperandFor(order[i]), Lit(cursor.Values[i])}})
		if len(and) == 1 {
			or = append(or, and[0])
		} else {
			or = append(or, Predicate{Op: OpAnd, Sub: and})
		}
	}
	if len(or) == 1 {
		return or[0], nil
	}
	return Predicate{Op: OpOr, Sub: or}, nil
}

func fieldOperandFor(ok OrderKey) Operand {
	if ok.System != "" {
		return SystemOperand(ok.Alias, ok.System)
	}
	return FieldOperand(ok.Alias, ok.FieldPath)
}

// reversedOrder flips every key's sort direction, used to fetch a
// backward page in the scan order that puts its rows closest to before
// first (so LIMIT takes the right set), before the caller reverses the
// result back to forward presentation order.
func reversedOrder(order []OrderKey) []OrderKey {
	out := make([]OrderKey, len(order))
	for i, ok := range order {
		ok.Desc = !ok.Desc
		out[i] = ok
	}
	return out
}

func andPredicate(a, b *Predicate) *Predicate {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return &Predicate{Op: OpAnd, Sub: []Predicate{*a, *b}}
	}
}
