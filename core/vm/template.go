package vm

import "strings"

// resolvePath looks up a dot-separated path (e.g. "input.x") inside
// bindings, descending through nested maps.
func resolvePath(bindings map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = bindings
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// resolveTemplate walks tmpl, replacing any string value beginning with "$"
// with the bindings value at the dotted path that follows the "$", and
// recursing into maps and slices. Non-"$" values pass through unchanged.
func resolveTemplate(tmpl any, bindings map[string]any) any {
	switch v := tmpl.(type) {
	case string:
		if strings.HasPrefix(v, "$") {
			val, ok := resolvePath(bindings, v[1:])
			if !ok {
				return nil
			}
			return val
		}
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = resolveTemplate(val, bindings)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = resolveTemplate(val, bindings)
		}
		return out
	default:
		return v
	}
}

func resolveTemplateMap(tmpl map[string]any, bindings map[string]any) map[string]any {
	if tmpl == nil {
		return map[string]any{}
	}
	out := resolveTemplate(tmpl, bindings)
	m, _ := out.(map[string]any)
	return m
}
