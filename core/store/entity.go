package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chora/core/errkind"
	"chora/core/graph"
)

// SaveEntity upserts e: if e.ID is new, created_at is set to now; updated_at
// is always bumped to now. Data-field changes invalidate (delete) any
// embedding row for the entity. Hooks fire
// after the commit.
func (s *Store) SaveEntity(e graph.Entity) (graph.Entity, error) {
	if e.ID == "" || e.Type == "" {
		return graph.Entity{}, errkind.New(errkind.InvalidData, "entity id and type are required")
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}

	s.mu.Lock()
	now := time.Now().UTC()
	existing, err := s.getEntityLocked(e.ID)
	dataChanged := true
	switch {
	case err == nil:
		e.CreatedAt = existing.CreatedAt
		dataChanged = !jsonEqual(existing.Data, e.Data)
	case errors.Is(err, sql.ErrNoRows):
		e.CreatedAt = now
	default:
		s.mu.Unlock()
		return graph.Entity{}, fmt.Errorf("save entity: %w", err)
	}
	e.UpdatedAt = now
	if e.Status == "" {
		if err == nil {
			e.Status = existing.Status
		} else {
			e.Status = graph.StatusActive
		}
	}

	raw, jerr := json.Marshal(e.Data)
	if jerr != nil {
		s.mu.Unlock()
		return graph.Entity{}, errkind.New(errkind.InvalidData, jerr.Error())
	}

	_, err = s.db.Exec(`
		INSERT INTO entities (id, type, data, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type=excluded.type, data=excluded.data, status=excluded.status, updated_at=excluded.updated_at
	`, e.ID, string(e.Type), string(raw), string(e.Status), e.CreatedAt.Format(time.RFC3339Nano), e.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		s.mu.Unlock()
		return graph.Entity{}, fmt.Errorf("save entity: %w", err)
	}

	if dataChanged {
		if _, derr := s.db.Exec(`DELETE FROM embeddings WHERE entity_id = ?`, e.ID); derr != nil {
			s.mu.Unlock()
			return graph.Entity{}, fmt.Errorf("invalidate embedding: %w", derr)
		}
	}
	s.mu.Unlock()

	s.fireHooks(e.ID, e.Type, e.Data)
	return e, nil
}

// SaveGeneric is a convenience wrapper around SaveEntity for callers that
// only have id/type/data in hand (e.g. primitives).
func (s *Store) SaveGeneric(id string, typ graph.EntityType, data map[string]any) (graph.Entity, error) {
	return s.SaveEntity(graph.Entity{ID: id, Type: typ, Data: data})
}

// GetEntity returns the live entity with the given id, or a not_found error.
func (s *Store) GetEntity(id string) (graph.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.getEntityLocked(id)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.Entity{}, errkind.New(errkind.NotFound, "entity "+id+" not found")
	}
	return e, err
}

func (s *Store) getEntityLocked(id string) (graph.Entity, error) {
	row := s.db.QueryRow(`SELECT id, type, data, status, created_at, updated_at FROM entities WHERE id = ?`, id)
	return scanEntity(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (graph.Entity, error) {
	var e graph.Entity
	var data, created, updated string
	var typ, status string
	if err := row.Scan(&e.ID, &typ, &data, &status, &created, &updated); err != nil {
		return graph.Entity{}, err
	}
	e.Type = graph.EntityType(typ)
	e.Status = graph.Status(status)
	if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
		return graph.Entity{}, fmt.Errorf("decode entity data: %w", err)
	}
	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return graph.Entity{}, err
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return graph.Entity{}, err
	}
	return e, nil
}

// Filter selects entities for QueryEntities. Zero-value fields are ignored.
type Filter struct {
	Type       graph.EntityType
	Status     graph.Status
	Since      time.Time
	DataEquals map[string]any // all keys must match exactly (string/number/bool compare)
	Limit      int
}

// QueryEntities returns live entities matching filter.
func (s *Store) QueryEntities(f Filter) ([]graph.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var clauses []string
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "updated_at >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}
	q := "SELECT id, type, data, status, created_at, updated_at FROM entities"
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY updated_at DESC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var out []graph.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		if !matchesData(e.Data, f.DataEquals) {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func matchesData(data, want map[string]any) bool {
	for k, v := range want {
		got, ok := data[k]
		if !ok || !jsonValueEqual(got, v) {
			return false
		}
	}
	return true
}

func jsonValueEqual(a, b any) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}

func jsonEqual(a, b map[string]any) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}

// ArchiveEntity moves id from the live entities relation into the archive
// relation. It refuses if active bonds reference the entity unless force
// is set, in which case dangling bonds are archived first.
func (s *Store) ArchiveEntity(id string, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.getEntityLocked(id)
	if errors.Is(err, sql.ErrNoRows) {
		return errkind.New(errkind.NotFound, "entity "+id+" not found")
	}
	if err != nil {
		return err
	}

	bonds, err := s.bondsTouchingLocked(id)
	if err != nil {
		return err
	}
	active := make([]graph.Bond, 0, len(bonds))
	for _, b := range bonds {
		if b.Status != graph.BondDissolved {
			active = append(active, b)
		}
	}
	if len(active) > 0 && !force {
		return errkind.New(errkind.ArchiveHasBonds, fmt.Sprintf("entity %s has %d active bonds", id, len(active)))
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, b := range active {
		if err := s.archiveBondLocked(b, now); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO archive (id, kind, payload, archived_at) VALUES (?, 'entity', ?, ?)`, id, string(payload), now); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`DELETE FROM entities WHERE id = ?`, id); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`DELETE FROM embeddings WHERE entity_id = ?`, id); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`DELETE FROM fts_entities WHERE id = ?`, id); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
