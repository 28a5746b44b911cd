package engine

import (
	"fmt"

	"chora/core/graph"
	"chora/core/vm"
)

// decodeGraph reads a protocol entity's body out of its Data field. The
// shape mirrors the VM's own node/edge vocabulary exactly:
//
//	{
//	  "nodes": [{"id", "kind", "primitive"?, "arg_template"?, "binding"?,
//	             "predicate"?, "value"?, "expr"?, "output_template"?}, ...],
//	  "edges": [{"from", "to", "label"?}, ...]
//	}
func decodeGraph(ent graph.Entity) (vm.Graph, error) {
	rawNodes, _ := ent.Data["nodes"].([]any)
	rawEdges, _ := ent.Data["edges"].([]any)
	if len(rawNodes) == 0 {
		return vm.Graph{}, fmt.Errorf("protocol %q has no nodes", ent.ID)
	}

	g := vm.Graph{
		Nodes: make([]vm.Node, 0, len(rawNodes)),
		Edges: make([]vm.Edge, 0, len(rawEdges)),
	}
	for _, rn := range rawNodes {
		m, ok := rn.(map[string]any)
		if !ok {
			return vm.Graph{}, fmt.Errorf("protocol %q: malformed node", ent.ID)
		}
		n := vm.Node{
			ID:        str(m["id"]),
			Kind:      vm.NodeKind(str(m["kind"])),
			Primitive: str(m["primitive"]),
			Binding:   str(m["binding"]),
			Predicate: str(m["predicate"]),
			Expr:      str(m["expr"]),
			Value:     m["value"],
		}
		if at, ok := m["arg_template"].(map[string]any); ok {
			n.ArgTemplate = at
		}
		if ot, ok := m["output_template"].(map[string]any); ok {
			n.OutputTemplate = ot
		}
		g.Nodes = append(g.Nodes, n)
	}
	for _, re := range rawEdges {
		m, ok := re.(map[string]any)
		if !ok {
			return vm.Graph{}, fmt.Errorf("protocol %q: malformed edge", ent.ID)
		}
		g.Edges = append(g.Edges, vm.Edge{
			From:  str(m["from"]),
			To:    str(m["to"]),
			Label: str(m["label"]),
		})
	}
	return g, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
