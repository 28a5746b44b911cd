package pulse

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"chora/core/engine"
	"chora/core/graph"
	"chora/core/primitive"
	"chora/core/store"
)

func newTestPulse(t *testing.T) (*Pulse, *store.Store, *clock.Mock) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	eng := engine.New(s, primitive.NewStandardRegistry())
	mock := clock.NewMock()
	mock.Set(time.Now()) // store timestamps use the real clock; keep pulse's mock in sync
	p := New(s, eng, Config{Enabled: true, IntervalSeconds: 1}, mock, nil)
	return p, s, mock
}

func saveEntity(t *testing.T, s *store.Store, e graph.Entity) graph.Entity {
	t.Helper()
	got, err := s.SaveEntity(e)
	if err != nil {
		t.Fatalf("save entity %s: %v", e.ID, err)
	}
	return got
}

// Seed scenario 4: a ping protocol entity, a signal bonded to it via
// `triggers`; a pulse tick resolves the signal.
func TestTickDispatchesTriggeredSignal(t *testing.T) {
	p, s, _ := newTestPulse(t)

	saveEntity(t, s, graph.Entity{
		ID: "protocol-ping", Type: graph.TypeProtocol,
		Data: map[string]any{
			"nodes": []any{
				map[string]any{"id": "start", "kind": "START"},
				map[string]any{"id": "call", "kind": "CALL", "primitive": "ping", "binding": "result"},
				map[string]any{"id": "ret", "kind": "RETURN"},
			},
			"edges": []any{
				map[string]any{"from": "start", "to": "call"},
				map[string]any{"from": "call", "to": "ret"},
			},
		},
	})
	saveEntity(t, s, graph.Entity{ID: "signal-1", Type: graph.TypeSignal, Status: graph.StatusActive, Data: map[string]any{"title": "ping me"}})
	if _, err := s.ManageBond("triggers", "signal-1", "protocol-ping", nil, nil); err != nil {
		t.Fatalf("manage bond: %v", err)
	}

	sum := p.Tick(context.Background(), false)
	if sum.SignalsProcessed != 1 || sum.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	got, err := s.GetEntity("signal-1")
	if err != nil {
		t.Fatalf("get signal: %v", err)
	}
	if got.Status != graph.StatusResolved {
		t.Fatalf("signal status = %s, want resolved", got.Status)
	}
	if _, ok := got.Data["outcome_data"]; !ok {
		t.Fatalf("expected outcome_data on resolved signal")
	}
}

func TestTickSkipsWhenAlreadyRunning(t *testing.T) {
	p, _, _ := newTestPulse(t)
	p.running.Store(true)

	sum := p.Tick(context.Background(), false)
	if sum.SignalsProcessed != 0 {
		t.Fatalf("expected skipped tick to process nothing, got %+v", sum)
	}
}

func TestPreviewModePerformsNoWrites(t *testing.T) {
	p, s, _ := newTestPulse(t)
	saveEntity(t, s, graph.Entity{
		ID: "protocol-ping", Type: graph.TypeProtocol,
		Data: map[string]any{
			"nodes": []any{
				map[string]any{"id": "start", "kind": "START"},
				map[string]any{"id": "ret", "kind": "RETURN"},
			},
			"edges": []any{map[string]any{"from": "start", "to": "ret"}},
		},
	})
	saveEntity(t, s, graph.Entity{ID: "signal-1", Type: graph.TypeSignal, Status: graph.StatusActive, Data: map[string]any{}})
	if _, err := s.ManageBond("triggers", "signal-1", "protocol-ping", nil, nil); err != nil {
		t.Fatalf("manage bond: %v", err)
	}

	sum := p.Tick(context.Background(), true)
	if sum.SignalsProcessed != 1 {
		t.Fatalf("expected 1 candidate counted in preview, got %+v", sum)
	}
	got, _ := s.GetEntity("signal-1")
	if got.Status != graph.StatusActive {
		t.Fatalf("preview must not mutate signal status, got %s", got.Status)
	}
}

func TestStagnationSweepEmitsEscalation(t *testing.T) {
	p, s, mock := newTestPulse(t)
	saveEntity(t, s, graph.Entity{ID: "inquiry-1", Type: graph.TypeInquiry, Status: graph.StatusActive, Data: map[string]any{"title": "old question"}})

	mock.Add(31*24*time.Hour + time.Minute)

	if err := p.stagnationSweep(); err != nil {
		t.Fatalf("stagnation sweep: %v", err)
	}
	found, err := s.QueryEntities(store.Filter{Type: graph.TypeSignal, DataEquals: map[string]any{"source_id": "inquiry-1", "category": "stagnation"}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected one stagnation signal, got %d", len(found))
	}

	// A second sweep must not duplicate the escalation.
	if err := p.stagnationSweep(); err != nil {
		t.Fatalf("second stagnation sweep: %v", err)
	}
	found, _ = s.QueryEntities(store.Filter{Type: graph.TypeSignal, DataEquals: map[string]any{"source_id": "inquiry-1", "category": "stagnation"}})
	if len(found) != 1 {
		t.Fatalf("expected stagnation signal not duplicated, got %d", len(found))
	}
}

func TestAutoResolutionSweepClearsOnVoidCleared(t *testing.T) {
	p, s, _ := newTestPulse(t)
	saveEntity(t, s, graph.Entity{ID: "focus-1", Type: graph.TypeFocus, Data: map[string]any{"void": ""}})
	saveEntity(t, s, graph.Entity{
		ID: "signal-track", Type: graph.TypeSignal, Status: graph.StatusActive,
		Data: map[string]any{"tracks": "focus-1", "resolves-when": "void-cleared"},
	})

	if err := p.autoResolutionSweep(); err != nil {
		t.Fatalf("auto-resolution sweep: %v", err)
	}
	got, err := s.GetEntity("signal-track")
	if err != nil {
		t.Fatalf("get signal: %v", err)
	}
	if got.Status != graph.StatusResolved {
		t.Fatalf("status = %s, want resolved", got.Status)
	}
	if got.Data["auto-resolved"] != "void-cleared" {
		t.Fatalf("auto-resolved cause = %v", got.Data["auto-resolved"])
	}
}

func TestTickPersistsSignalOutcome(t *testing.T) {
	p, s, _ := newTestPulse(t)
	saveEntity(t, s, graph.Entity{
		ID: "protocol-ping", Type: graph.TypeProtocol,
		Data: map[string]any{
			"nodes": []any{
				map[string]any{"id": "start", "kind": "START"},
				map[string]any{"id": "call", "kind": "CALL", "primitive": "ping", "binding": "result"},
				map[string]any{"id": "ret", "kind": "RETURN"},
			},
			"edges": []any{
				map[string]any{"from": "start", "to": "call"},
				map[string]any{"from": "call", "to": "ret"},
			},
		},
	})
	saveEntity(t, s, graph.Entity{ID: "signal-1", Type: graph.TypeSignal, Status: graph.StatusActive, Data: map[string]any{}})
	if _, err := s.ManageBond("triggers", "signal-1", "protocol-ping", nil, nil); err != nil {
		t.Fatalf("manage bond: %v", err)
	}

	p.Tick(context.Background(), false)

	outcomes, err := s.ListSignalOutcomes("signal-1")
	if err != nil {
		t.Fatalf("list outcomes: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 signal_outcomes row, got %d", len(outcomes))
	}
	if outcomes[0].Status != "resolved" || outcomes[0].ProtocolID != "protocol-ping" {
		t.Fatalf("unexpected outcome row: %+v", outcomes[0])
	}
}

func TestNewPreloadsHistoryFromStore(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		sum := store.PulseSummary{Ts: base.Add(time.Duration(i) * time.Second), SignalsProcessed: i + 1}
		if err := s.SavePulseSummary(sum, 0); err != nil {
			t.Fatalf("save summary %d: %v", i, err)
		}
	}

	eng := engine.New(s, primitive.NewStandardRegistry())
	p := New(s, eng, Config{Enabled: true, IntervalSeconds: 1}, clock.NewMock(), nil)

	h := p.History(0)
	if len(h) != 3 {
		t.Fatalf("expected history preloaded with 3 entries, got %d", len(h))
	}
	if h[0].SignalsProcessed != 1 || h[2].SignalsProcessed != 3 {
		t.Fatalf("unexpected preloaded history order: %+v", h)
	}
}

func TestHistoryRetainsRecentSummaries(t *testing.T) {
	p, _, _ := newTestPulse(t)
	for i := 0; i < 5; i++ {
		p.recordSummary(Summary{SignalsProcessed: i})
	}
	h := p.History(3)
	if len(h) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(h))
	}
	if h[2].SignalsProcessed != 4 {
		t.Fatalf("expected most recent last, got %+v", h)
	}
}
