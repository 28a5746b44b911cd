package engine

import (
	"context"
	"testing"

	"chora/core/graph"
	"chora/core/primitive"
	"chora/core/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	reg := primitive.NewStandardRegistry()
	return New(s, reg), s
}

func saveBranchProtocol(t *testing.T, s *store.Store, id string) {
	t.Helper()
	_, err := s.SaveEntity(graph.Entity{
		ID:   id,
		Type: graph.TypeProtocol,
		Data: map[string]any{
			"description": "branches on input.x",
			"nodes": []any{
				map[string]any{"id": "start", "kind": "START"},
				map[string]any{"id": "branch", "kind": "BRANCH", "predicate": "input.x > 0"},
				map[string]any{"id": "return-a", "kind": "RETURN", "output_template": map[string]any{"which": "a"}},
				map[string]any{"id": "return-b", "kind": "RETURN", "output_template": map[string]any{"which": "b"}},
			},
			"edges": []any{
				map[string]any{"from": "start", "to": "branch"},
				map[string]any{"from": "branch", "to": "return-a", "label": "true"},
				map[string]any{"from": "branch", "to": "return-b", "label": "default"},
			},
		},
	})
	if err != nil {
		t.Fatalf("save protocol: %v", err)
	}
}

// Seed scenario 8: "manifest_entity", "primitive-manifest-entity",
// and "manifest-entity" must all route to the same primitive.
func TestIntentNormalization(t *testing.T) {
	e, _ := newTestEngine(t)
	want, _ := e.Registry.Lookup("manifest_entity")

	for _, intent := range []string{"manifest_entity", "primitive-manifest-entity", "manifest-entity"} {
		id, kind, err := e.resolveIntent(intent)
		if err != nil {
			t.Fatalf("intent %q: %v", intent, err)
		}
		if kind != "primitive" {
			t.Fatalf("intent %q resolved to kind %q, want primitive", intent, kind)
		}
		got, ok := e.Registry.Lookup(id)
		if !ok || got != want {
			t.Fatalf("intent %q resolved to a different primitive than manifest_entity", intent)
		}
	}
}

func TestResolveIntentProtocolWinsTie(t *testing.T) {
	e, s := newTestEngine(t)
	saveBranchProtocol(t, s, "dual")
	// Force a primitive with the same bare name to exist too.
	e.Registry.Register(primitive.Descriptor{
		ID: "dual", Domain: "sys",
		Handler: func(map[string]any, *primitive.Ctx) primitive.Response { return primitive.Ok(nil) },
	})

	id, kind, err := e.resolveIntent("dual")
	if err != nil {
		t.Fatalf("resolveIntent: %v", err)
	}
	if kind != "protocol" || id != "dual" {
		t.Fatalf("got (%q, %q), want protocol to win the tie", id, kind)
	}
}

func TestDispatchPrimitive(t *testing.T) {
	e, _ := newTestEngine(t)
	res := e.Dispatch(context.Background(), "manifest_entity",
		map[string]any{"type": "tool", "data": map[string]any{"title": "x"}}, nil, "", 0)
	if !res.OK {
		t.Fatalf("dispatch failed: %s %s", res.ErrorKind, res.ErrorMessage)
	}
	if _, ok := res.Data["id"]; !ok {
		t.Fatalf("expected id in response data, got %+v", res.Data)
	}
}

func TestDispatchProtocolExitNode(t *testing.T) {
	e, s := newTestEngine(t)
	saveBranchProtocol(t, s, "protocol-branch")

	res := e.Dispatch(context.Background(), "branch", map[string]any{"x": -1.0}, nil, "", 0)
	if !res.OK {
		t.Fatalf("dispatch failed: %s %s", res.ErrorKind, res.ErrorMessage)
	}
	if res.ExitNode != "return-b" {
		t.Fatalf("exit_node = %q, want return-b", res.ExitNode)
	}
}

func TestDispatchUnknownIntent(t *testing.T) {
	e, _ := newTestEngine(t)
	res := e.Dispatch(context.Background(), "does-not-exist", nil, nil, "", 0)
	if res.OK || res.ErrorKind != "intent_not_found" {
		t.Fatalf("expected intent_not_found, got %+v", res)
	}
}

func TestCapabilitiesListsBoth(t *testing.T) {
	e, s := newTestEngine(t)
	saveBranchProtocol(t, s, "protocol-branch")

	caps, err := e.Capabilities()
	if err != nil {
		t.Fatalf("capabilities: %v", err)
	}
	var sawProtocol, sawPrimitive bool
	for _, c := range caps {
		if c.Kind == "protocol" && c.ID == "protocol-branch" {
			sawProtocol = true
		}
		if c.Kind == "primitive" && c.ID == "manifest_entity" {
			sawPrimitive = true
		}
	}
	if !sawProtocol || !sawPrimitive {
		t.Fatalf("capabilities missing entries: %+v", caps)
	}
}
