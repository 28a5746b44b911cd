package store

import "time"

// SignalOutcome is one persisted record of a signal's triggered-protocol
// dispatch, recorded regardless of success so every triggers-bonded signal
// leaves an auditable trail after a pulse.
type SignalOutcome struct {
	SignalID   string
	ProtocolID string
	StartedAt  time.Time
	EndedAt    time.Time
	DurationMs int64
	Status     string // "resolved" | "failed"
	Error      string
}

// SaveSignalOutcome appends o to the signal_outcomes log. Outcomes are
// append-only: a signal dispatched by repeated pulses accumulates one row
// per attempt.
func (s *Store) SaveSignalOutcome(o SignalOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO signal_outcomes (signal_id, protocol_id, started_at, ended_at, duration_ms, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.SignalID, o.ProtocolID, o.StartedAt.UTC().Format(time.RFC3339Nano), o.EndedAt.UTC().Format(time.RFC3339Nano), o.DurationMs, o.Status, o.Error)
	return err
}

// ListSignalOutcomes returns every recorded outcome for signalID, oldest
// first.
func (s *Store) ListSignalOutcomes(signalID string) ([]SignalOutcome, error) {
	s.mu.Lock()
	rows, err := s.db.Query(`
		SELECT signal_id, protocol_id, started_at, ended_at, duration_ms, status, error
		FROM signal_outcomes WHERE signal_id = ? ORDER BY started_at ASC`, signalID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	var out []SignalOutcome
	for rows.Next() {
		var o SignalOutcome
		var started, ended string
		if err := rows.Scan(&o.SignalID, &o.ProtocolID, &started, &ended, &o.DurationMs, &o.Status, &o.Error); err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, err
		}
		o.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		o.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
		out = append(out, o)
	}
	rows.Close()
	s.mu.Unlock()
	return out, rows.Err()
}
