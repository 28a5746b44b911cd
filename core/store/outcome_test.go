package store

import (
	"testing"
	"time"
)

func TestSignalOutcomeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	mustSave(t, s, "signal-1", "signal", map[string]any{})

	start := time.Now().UTC()
	o := SignalOutcome{
		SignalID:   "signal-1",
		ProtocolID: "protocol-1",
		StartedAt:  start,
		EndedAt:    start.Add(50 * time.Millisecond),
		DurationMs: 50,
		Status:     "resolved",
	}
	if err := s.SaveSignalOutcome(o); err != nil {
		t.Fatalf("save outcome: %v", err)
	}

	got, err := s.ListSignalOutcomes("signal-1")
	if err != nil {
		t.Fatalf("list outcomes: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(got))
	}
	if got[0].Status != "resolved" || got[0].ProtocolID != "protocol-1" {
		t.Fatalf("unexpected outcome: %+v", got[0])
	}
	if got[0].DurationMs != 50 {
		t.Fatalf("expected duration 50ms, got %d", got[0].DurationMs)
	}
}

func TestSignalOutcomeAccumulatesPerAttempt(t *testing.T) {
	s := newTestStore(t)
	mustSave(t, s, "signal-2", "signal", map[string]any{})

	for i := 0; i < 3; i++ {
		o := SignalOutcome{
			SignalID:   "signal-2",
			ProtocolID: "protocol-1",
			StartedAt:  time.Now().UTC(),
			EndedAt:    time.Now().UTC(),
			Status:     "failed",
			Error:      "boom",
		}
		if err := s.SaveSignalOutcome(o); err != nil {
			t.Fatalf("save outcome %d: %v", i, err)
		}
	}

	got, err := s.ListSignalOutcomes("signal-2")
	if err != nil {
		t.Fatalf("list outcomes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 accumulated outcomes, got %d", len(got))
	}
	for _, o := range got {
		if o.Status != "failed" || o.Error != "boom" {
			t.Fatalf("unexpected outcome: %+v", o)
		}
	}
}
