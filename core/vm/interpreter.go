package vm

import (
	"fmt"

	"chora/core/errkind"
	"chora/core/primitive"
)

// DefaultStepBudget bounds total node executions per run, preventing a
// malformed protocol from looping forever.
const DefaultStepBudget = 10_000

// Run executes g starting from its unique START node, with inputs bound
// under the "input" key, until it reaches a RETURN node, exhausts its step
// budget, or fails. Every protocol side effect flows through a primitive
// call.
func Run(g Graph, protocolID string, inputs map[string]any, registry *primitive.Registry, ctx *primitive.Ctx, stepBudget int) *State {
	if stepBudget <= 0 {
		stepBudget = DefaultStepBudget
	}
	start, ok := g.start()
	if !ok {
		return failState(protocolID, "execution_error", "protocol has no START node")
	}

	st := &State{
		ProtocolID: protocolID,
		Bindings:   map[string]any{"input": inputs},
		Status:     StatusRunning,
	}

	visited := map[string]map[string]bool{} // nodeID -> arms already seen
	arm := "root"
	current := start
	budget := stepBudget

	for {
		if budget <= 0 {
			return fail(st, errkind.ExecutionError, "step_budget_exhausted")
		}
		budget--

		if visited[current.ID] == nil {
			visited[current.ID] = map[string]bool{}
		}
		if visited[current.ID][arm] {
			return fail(st, errkind.ExecutionError, "cycle_detected")
		}
		visited[current.ID][arm] = true

		st.CurrentNode = current.ID
		st.Trace = append(st.Trace, current.ID)

		switch current.Kind {
		case NodeStart:
			next, err := singleNext(g, current.ID)
			if err != nil {
				return fail(st, errkind.ExecutionError, err.Error())
			}
			current = next

		case NodeSet:
			var val any
			if current.Expr != "" {
				val, _ = resolvePath(st.Bindings, trimDollar(current.Expr))
			} else {
				val = current.Value
			}
			if current.Binding != "" {
				st.Bindings[current.Binding] = val
			}
			next, err := singleNext(g, current.ID)
			if err != nil {
				return fail(st, errkind.ExecutionError, err.Error())
			}
			current = next

		case NodeMerge:
			next, err := singleNext(g, current.ID)
			if err != nil {
				return fail(st, errkind.ExecutionError, err.Error())
			}
			current = next

		case NodeCall:
			args := resolveTemplateMap(current.ArgTemplate, st.Bindings)
			resp := registry.Invoke(current.Primitive, args, ctx)
			if current.Binding != "" {
				st.Bindings[current.Binding] = map[string]any{
					"status": string(resp.Status), "data": resp.Data,
					"error_kind": resp.ErrorKind, "error_message": resp.ErrorMessage,
				}
			}
			if resp.Status == primitive.StatusError {
				kind := resp.ErrorKind
				if kind == "" {
					kind = string(errkind.ExecutionError)
				}
				return fail(st, errkind.Kind(kind), resp.ErrorMessage)
			}
			next, err := singleNext(g, current.ID)
			if err != nil {
				return fail(st, errkind.ExecutionError, err.Error())
			}
			current = next

		case NodeBranch:
			label, err := evalPredicate(current.Predicate, st.Bindings)
			if err != nil {
				return fail(st, errkind.ExecutionError, err.Error())
			}
			edges := g.edgesFrom(current.ID)
			var matched *Edge
			var defaultEdge *Edge
			for i := range edges {
				if edges[i].Label == label {
					matched = &edges[i]
				}
				if edges[i].Label == "default" {
					defaultEdge = &edges[i]
				}
			}
			if matched == nil {
				matched = defaultEdge
			}
			if matched == nil {
				return fail(st, errkind.ExecutionError, "no_branch")
			}
			nextNode, ok := g.nodeByID(matched.To)
			if !ok {
				return fail(st, errkind.ExecutionError, "dangling edge to "+matched.To)
			}
			arm = current.ID + "/" + matched.Label
			current = nextNode

		case NodeReturn:
			st.Status = StatusFulfilled
			st.ExitNode = current.ID
			st.Output = resolveTemplateMap(current.OutputTemplate, st.Bindings)
			return st

		default:
			return fail(st, errkind.ExecutionError, "unknown node kind "+string(current.Kind))
		}
	}
}

func singleNext(g Graph, from string) (Node, error) {
	edges := g.edgesFrom(from)
	if len(edges) != 1 {
		return Node{}, fmt.Errorf("node %s must have exactly one outgoing edge, has %d", from, len(edges))
	}
	n, ok := g.nodeByID(edges[0].To)
	if !ok {
		return Node{}, fmt.Errorf("dangling edge to %s", edges[0].To)
	}
	return n, nil
}

func fail(st *State, kind errkind.Kind, message string) *State {
	st.Status = StatusFailed
	st.ErrorKind = string(kind)
	st.ErrorMessage = message
	return st
}

func failState(protocolID, kind, message string) *State {
	return &State{ProtocolID: protocolID, Status: StatusFailed, ErrorKind: kind, ErrorMessage: message}
}

func trimDollar(s string) string {
	if len(s) > 0 && s[0] == '$' {
		return s[1:]
	}
	return s
}
