package store

import "time"

// PulseSummary is one persisted pulse outcome record, the durable half of
// the pulse package's in-memory ring buffer: it survives a chorad restart,
// the in-memory copy does not.
type PulseSummary struct {
	Ts               time.Time
	SignalsProcessed int
	Errors           int
	DurationMs       int64
}

// SavePulseSummary inserts sum and, if capN > 0, trims pulse_history down
// to its capN most recent rows — the table is a bounded ring buffer, not
// an unbounded log.
func (s *Store) SavePulseSummary(sum PulseSummary, capN int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := sum.Ts.UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec(`
		INSERT INTO pulse_history (ts, signals_processed, errors, duration_ms)
		VALUES (?, ?, ?, ?)
	`, ts, sum.SignalsProcessed, sum.Errors, sum.DurationMs); err != nil {
		return err
	}
	if capN > 0 {
		if _, err := s.db.Exec(`
			DELETE FROM pulse_history WHERE ts NOT IN (
				SELECT ts FROM pulse_history ORDER BY ts DESC LIMIT ?
			)`, capN); err != nil {
			return err
		}
	}
	return nil
}

// ListPulseHistory returns up to the last n persisted pulse summaries,
// oldest first. n <= 0 returns every row.
func (s *Store) ListPulseHistory(n int) ([]PulseSummary, error) {
	s.mu.Lock()
	rows, err := s.db.Query(`SELECT ts, signals_processed, errors, duration_ms FROM pulse_history ORDER BY ts ASC`)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	var out []PulseSummary
	for rows.Next() {
		var ts string
		var sum PulseSummary
		if err := rows.Scan(&ts, &sum.SignalsProcessed, &sum.Errors, &sum.DurationMs); err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, err
		}
		sum.Ts, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, sum)
	}
	rows.Close()
	s.mu.Unlock()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if n > 0 && n < len(out) {
		out = out[len(out)-n:]
	}
	return out, nil
}
