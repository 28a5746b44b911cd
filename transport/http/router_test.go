package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"chora/core/engine"
	"chora/core/graph"
	"chora/core/primitive"
	"chora/core/store"
)

func newTestRouter(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	eng := engine.New(s, primitive.NewStandardRegistry())
	ctrl := NewController(eng, nil)
	log := logrus.New()
	log.SetOutput(bytesDiscard{})
	return NewRouter(ctrl, log), s
}

type bytesDiscard struct{}

func (bytesDiscard) Write(p []byte) (int, error) { return len(p), nil }

func TestDispatchEndpointPrimitiveSuccess(t *testing.T) {
	router, _ := newTestRouter(t)
	body, _ := json.Marshal(map[string]any{
		"intent": "manifest_entity",
		"inputs": map[string]any{"type": "tool", "id": "tool-http-1"},
	})
	req := httptest.NewRequest(http.MethodPost, "/dispatch", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res engine.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !res.OK || res.Data["id"] != "tool-http-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDispatchEndpointUnknownIntent(t *testing.T) {
	router, _ := newTestRouter(t)
	body, _ := json.Marshal(map[string]any{"intent": "nonexistent-thing"})
	req := httptest.NewRequest(http.MethodPost, "/dispatch", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestCapabilitiesEndpointListsPrimitives(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/capabilities", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var res map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	caps, _ := res["capabilities"].([]any)
	if len(caps) == 0 {
		t.Fatal("expected at least one capability listed")
	}
}

func TestPulseStatusEndpointDisabledWithoutPulse(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/pulse/status", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var res map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res["enabled"] != false {
		t.Fatalf("expected disabled pulse status, got %+v", res)
	}
}

func TestDispatchEndpointProtocolExitNode(t *testing.T) {
	router, s := newTestRouter(t)
	if _, err := s.SaveEntity(graph.Entity{
		ID: "protocol-http-ping", Type: graph.TypeProtocol,
		Data: map[string]any{
			"nodes": []any{
				map[string]any{"id": "start", "kind": "START"},
				map[string]any{"id": "ret", "kind": "RETURN"},
			},
			"edges": []any{map[string]any{"from": "start", "to": "ret"}},
		},
	}); err != nil {
		t.Fatalf("save protocol: %v", err)
	}

	body, _ := json.Marshal(map[string]any{"intent": "protocol-http-ping"})
	req := httptest.NewRequest(http.MethodPost, "/dispatch", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res engine.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !res.OK || res.ExitNode != "ret" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
