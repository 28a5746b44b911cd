package primitive

import (
	"fmt"

	"chora/core/errkind"
)

// RegisterLogic wires the logic-domain primitives: small pure helpers
// protocols lean on from CALL nodes instead of duplicating comparison code
// in every BRANCH predicate.
func RegisterLogic(r *Registry) {
	r.Register(Descriptor{
		ID: "primitive-compare", Alias: "compare", Domain: "logic",
		Description: "compare two values with an operator (eq, ne, gt, lt, ge, le); non-numeric operands support only eq and ne",
		Inputs:      Schema{Required: []string{"a", "op", "b"}},
		Handler:     compare,
	})
	r.Register(Descriptor{
		ID: "primitive-assert", Alias: "assert", Domain: "logic",
		Description: "fail with execution_error if condition is false",
		Inputs:      Schema{Required: []string{"condition"}, Optional: []string{"message"}},
		Handler:     assertHandler,
	})
}

func compare(inputs map[string]any, ctx *Ctx) Response {
	a, okA := toFloat(inputs["a"])
	b, okB := toFloat(inputs["b"])
	op, _ := inputs["op"].(string)
	if op == "" {
		return Err(string(errkind.InvalidInputs), "op is required")
	}
	var result bool
	if okA && okB {
		switch op {
		case "eq":
			result = a == b
		case "ne":
			result = a != b
		case "gt":
			result = a > b
		case "lt":
			result = a < b
		case "ge":
			result = a >= b
		case "le":
			result = a <= b
		default:
			return Err(string(errkind.InvalidInputs), "unknown operator "+op)
		}
	} else {
		sa := fmt.Sprintf("%v", inputs["a"])
		sb := fmt.Sprintf("%v", inputs["b"])
		switch op {
		case "eq":
			result = sa == sb
		case "ne":
			result = sa != sb
		default:
			return Err(string(errkind.InvalidInputs), "operator "+op+" requires numeric operands")
		}
	}
	return Ok(map[string]any{"result": result})
}

func assertHandler(inputs map[string]any, ctx *Ctx) Response {
	cond, _ := inputs["condition"].(bool)
	if !cond {
		msg, _ := inputs["message"].(string)
		if msg == "" {
			msg = "assertion failed"
		}
		return Err(string(errkind.ExecutionError), msg)
	}
	return Ok(nil)
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
