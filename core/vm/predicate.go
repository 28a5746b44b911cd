package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// evalPredicate evaluates a tiny, pure comparison expression of the shape
// "<path> <op> <literal>" (e.g. "input.x > 0", "input.status == \"done\"")
// against bindings, returning its boolean/string result as a label. A bare
// path with no operator returns its truthiness as "true"/"false".
//
// This is intentionally minimal: protocols express conditions the way the
// teacher's opcode dispatcher exposes deterministic, auditable behavior —
// no arbitrary code execution inside a predicate.
func evalPredicate(expr string, bindings map[string]any) (string, error) {
	expr = strings.TrimSpace(expr)
	for _, op := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if idx := strings.Index(expr, op); idx >= 0 {
			left := strings.TrimSpace(expr[:idx])
			right := strings.TrimSpace(expr[idx+len(op):])
			return evalComparison(left, op, right, bindings)
		}
	}
	// bare path: truthiness
	val, ok := resolvePath(bindings, expr)
	if !ok {
		return "false", nil
	}
	return fmt.Sprintf("%v", toBool(val)), nil
}

func evalComparison(leftPath, op, rightLit string, bindings map[string]any) (string, error) {
	leftVal, ok := resolvePath(bindings, leftPath)
	if !ok {
		return "", fmt.Errorf("unresolved binding path %q", leftPath)
	}
	rightVal := literalValue(rightLit, bindings)

	result, err := compareValues(leftVal, op, rightVal)
	if err != nil {
		return "", err
	}
	return strconv.FormatBool(result), nil
}

func literalValue(lit string, bindings map[string]any) any {
	lit = strings.TrimSpace(lit)
	if strings.HasPrefix(lit, `"`) && strings.HasSuffix(lit, `"`) && len(lit) >= 2 {
		return strings.Trim(lit, `"`)
	}
	if lit == "true" {
		return true
	}
	if lit == "false" {
		return false
	}
	if n, err := strconv.ParseFloat(lit, 64); err == nil {
		return n
	}
	if v, ok := resolvePath(bindings, lit); ok {
		return v
	}
	return lit
}

func compareValues(a any, op string, b any) (bool, error) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch op {
		case ">":
			return af > bf, nil
		case "<":
			return af < bf, nil
		case ">=":
			return af >= bf, nil
		case "<=":
			return af <= bf, nil
		case "==":
			return af == bf, nil
		case "!=":
			return af != bf, nil
		}
	}
	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	switch op {
	case "==":
		return as == bs, nil
	case "!=":
		return as != bs, nil
	default:
		return false, fmt.Errorf("operator %q requires numeric operands", op)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}
