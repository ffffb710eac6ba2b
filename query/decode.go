package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Row is one decoded output row, keyed by binding name.
type Row map[string]any

// decodeRow turns one raw backend.Execute row (column name -> driver value)
// into a Row keyed by binding name, reassembling "whole alias" bindings
// from their exploded prefix__column columns (spec §4.6).
func decodeRow(raw map[string]any, plan *Plan) (Row, error) {
	out := Row{}
	wholeCols := map[string]map[string]any{} // binding name -> column -> value

	for name, val := range raw {
		matched := false
		for _, cp := range plan.Columns {
			if cp.Kind != "whole" {
				continue
			}
			prefix := cp.OutputName + "__"
			if strings.HasPrefix(name, prefix) {
				col := strings.TrimPrefix(name, prefix)
				if wholeCols[cp.OutputName] == nil {
					wholeCols[cp.OutputName] = map[string]any{}
				}
				wholeCols[cp.OutputName][col] = val
				matched = true
				break
			}
		}
		if !matched {
			out[name] = val
		}
	}

	for name, cols := range wholeCols {
		if raw, ok := cols["props"]; ok {
			props, err := unmarshalJSONValue(raw)
			if err != nil {
				return nil, fmt.Errorf("query: decode %s.props: %w", name, err)
			}
			cols["props"] = props
		}
		out[name] = cols
	}

	return out, nil
}

func unmarshalJSONValue(v any) (map[string]any, error) {
	var text string
	switch t := v.(type) {
	case nil:
		return map[string]any{}, nil
	case string:
		text = t
	case []byte:
		text = string(t)
	default:
		return nil, fmt.Errorf("unexpected props value type %T", v)
	}
	if text == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, err
	}
	return m, nil
}
