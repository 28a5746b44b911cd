package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"chora/core/errkind"
	"chora/core/graph"
)

// ManageBond creates or updates a bond between from and to with the given
// verb, after checking it against the closed physics table. confidence may
// be nil to default to 1.0 on create, or to leave confidence unchanged on
// update. A tentative or downward-confidence write emits an epistemic
// signal entity.B.
func (s *Store) ManageBond(verb, fromID, toID string, confidence *float64, metadata map[string]any) (graph.Bond, error) {
	s.mu.Lock()

	fromE, err := s.getEntityLocked(fromID)
	if errors.Is(err, sql.ErrNoRows) {
		s.mu.Unlock()
		return graph.Bond{}, errkind.New(errkind.NotFound, "from entity "+fromID+" not found")
	} else if err != nil {
		s.mu.Unlock()
		return graph.Bond{}, err
	}
	toE, err := s.getEntityLocked(toID)
	if errors.Is(err, sql.ErrNoRows) {
		s.mu.Unlock()
		return graph.Bond{}, errkind.New(errkind.NotFound, "to entity "+toID+" not found")
	} else if err != nil {
		s.mu.Unlock()
		return graph.Bond{}, err
	}

	if !graph.Allowed(verb, fromE.Type, toE.Type) {
		s.mu.Unlock()
		return graph.Bond{}, errkind.New(errkind.PhysicsViolation,
			fmt.Sprintf("verb %q does not allow %s -> %s", verb, fromE.Type, toE.Type))
	}

	existing, err := s.findBondLocked(verb, fromID, toID)
	if err != nil {
		s.mu.Unlock()
		return graph.Bond{}, err
	}

	if metadata == nil {
		metadata = map[string]any{}
	}

	var result graph.Bond
	var signalKind string // "" | "tentative" | "dropped"
	var delta float64

	if existing == nil {
		c := 1.0
		if confidence != nil {
			c = *confidence
		}
		c = graph.Clamp(c)
		result = graph.Bond{
			ID: "bond-" + uuid.NewString(), Verb: verb, FromID: fromID, ToID: toID,
			Confidence: c, Status: graph.BondForming, Metadata: metadata,
		}
		if c >= 1.0 {
			result.Status = graph.BondActive
		}
		if err := s.insertBondLocked(result); err != nil {
			s.mu.Unlock()
			return graph.Bond{}, err
		}
		if c < 1.0 {
			signalKind = "tentative"
		}
	} else {
		result = *existing
		if confidence != nil {
			newC := graph.Clamp(*confidence)
			delta = result.Confidence - newC
			result.Confidence = newC
			if newC >= 1.0 {
				result.Status = graph.BondActive
			}
		}
		for k, v := range metadata {
			result.Metadata[k] = v
		}
		if err := s.updateBondLocked(result); err != nil {
			s.mu.Unlock()
			return graph.Bond{}, err
		}
		if delta > 0 {
			signalKind = "dropped"
		}
	}
	s.mu.Unlock()

	if signalKind != "" {
		s.emitConfidenceSignal(signalKind, result, delta)
	}
	return result, nil
}

func (s *Store) emitConfidenceSignal(kind string, b graph.Bond, delta float64) {
	urgency := "normal"
	title := "Tentative bond created"
	if kind == "dropped" {
		title = "Bond confidence dropped"
		if delta >= 0.5 {
			urgency = "high"
		}
	}
	data := map[string]any{
		"title":      title,
		"source_id":  b.ID,
		"category":   "epistemic",
		"urgency":    urgency,
		"verb":       b.Verb,
		"from_id":    b.FromID,
		"to_id":      b.ToID,
		"confidence": b.Confidence,
	}
	if kind == "dropped" {
		data["delta"] = delta
	}
	id := "signal-" + uuid.NewString()
	if _, err := s.SaveEntity(graph.Entity{ID: id, Type: graph.TypeSignal, Data: data, Status: graph.StatusActive}); err != nil {
		s.log.WithError(err).Warn("failed to emit confidence signal")
	}
}

func (s *Store) findBondLocked(verb, fromID, toID string) (*graph.Bond, error) {
	row := s.db.QueryRow(`SELECT id, verb, from_id, to_id, confidence, status, metadata FROM bonds
		WHERE verb = ? AND from_id = ? AND to_id = ? AND status != 'dissolved'`, verb, fromID, toID)
	b, err := scanBond(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBond(row scanner) (graph.Bond, error) {
	var b graph.Bond
	var status, metadata string
	if err := row.Scan(&b.ID, &b.Verb, &b.FromID, &b.ToID, &b.Confidence, &status, &metadata); err != nil {
		return graph.Bond{}, err
	}
	b.Status = graph.BondStatus(status)
	if err := json.Unmarshal([]byte(metadata), &b.Metadata); err != nil {
		return graph.Bond{}, fmt.Errorf("decode bond metadata: %w", err)
	}
	if b.Metadata == nil {
		b.Metadata = map[string]any{}
	}
	return b, nil
}

func (s *Store) insertBondLocked(b graph.Bond) error {
	raw, err := json.Marshal(b.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO bonds (id, verb, from_id, to_id, confidence, status, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Verb, b.FromID, b.ToID, b.Confidence, string(b.Status), string(raw))
	return err
}

func (s *Store) updateBondLocked(b graph.Bond) error {
	raw, err := json.Marshal(b.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE bonds SET confidence = ?, status = ?, metadata = ? WHERE id = ?`,
		b.Confidence, string(b.Status), string(raw), b.ID)
	return err
}

func (s *Store) bondsTouchingLocked(id string) ([]graph.Bond, error) {
	rows, err := s.db.Query(`SELECT id, verb, from_id, to_id, confidence, status, metadata FROM bonds WHERE from_id = ? OR to_id = ?`, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []graph.Bond
	for rows.Next() {
		b, err := scanBond(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) archiveBondLocked(b graph.Bond, ts string) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO archive (id, kind, payload, archived_at) VALUES (?, 'bond', ?, ?)`, b.ID, string(payload), ts); err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE bonds SET status = 'dissolved' WHERE id = ?`, b.ID)
	return err
}

// QueryBondsByVerb returns every non-dissolved bond with the given verb,
// used by the pulse loop to find signal->protocol `triggers` edges without
// walking from a specific entity.
func (s *Store) QueryBondsByVerb(verb string) ([]graph.Bond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT id, verb, from_id, to_id, confidence, status, metadata FROM bonds
		WHERE verb = ? AND status != 'dissolved'`, verb)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []graph.Bond
	for rows.Next() {
		b, err := scanBond(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ConstellationEntry pairs a bond with a one-line summary of its
// counterpart entity, grouped by verb in GetConstellation's result.
type ConstellationEntry struct {
	Bond        graph.Bond
	Counterpart graph.Entity
	Outbound    bool // true if focal entity is the From side
}

// GetConstellation returns the 1-hop bond neighborhood around id, grouped
// by verb.
func (s *Store) GetConstellation(id string) (map[string][]ConstellationEntry, error) {
	s.mu.Lock()
	bonds, err := s.bondsTouchingLocked(id)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := map[string][]ConstellationEntry{}
	for _, b := range bonds {
		if b.Status == graph.BondDissolved {
			continue
		}
		outbound := b.FromID == id
		counterpartID := b.ToID
		if !outbound {
			counterpartID = b.FromID
		}
		cp, err := s.GetEntity(counterpartID)
		if err != nil {
			continue
		}
		out[b.Verb] = append(out[b.Verb], ConstellationEntry{Bond: b, Counterpart: cp, Outbound: outbound})
	}
	return out, nil
}
