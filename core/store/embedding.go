package store

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"chora/core/errkind"
)

// Embedding is a persisted per-entity unit vector.
type Embedding struct {
	EntityID  string
	Model     string
	Vector    []float64
	Dimension int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveEmbedding persists (or replaces) the embedding for entityID.
// Embeddings are immutable once written — an update is delete-then-insert
// under the writer lock.
func (s *Store) SaveEmbedding(entityID, model string, vector []float64) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vector); err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	created := now
	var existingCreated string
	if err := s.db.QueryRow(`SELECT created_at FROM embeddings WHERE entity_id = ?`, entityID).Scan(&existingCreated); err == nil {
		created = existingCreated
	}
	if _, err := s.db.Exec(`DELETE FROM embeddings WHERE entity_id = ?`, entityID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO embeddings (entity_id, model_name, vector, dimension, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entityID, model, buf.Bytes(), len(vector), created, now)
	return err
}

// GetEmbedding returns the stored embedding for entityID, or a not_found
// error if none exists (e.g. never computed, or invalidated by an update).
func (s *Store) GetEmbedding(entityID string) (Embedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`SELECT entity_id, model_name, vector, dimension, created_at, updated_at FROM embeddings WHERE entity_id = ?`, entityID)
	var e Embedding
	var raw []byte
	var created, updated string
	if err := row.Scan(&e.EntityID, &e.Model, &raw, &e.Dimension, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Embedding{}, errkind.New(errkind.NotFound, "no embedding for "+entityID)
		}
		return Embedding{}, err
	}
	e.Vector = make([]float64, e.Dimension)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &e.Vector); err != nil {
		return Embedding{}, fmt.Errorf("decode vector: %w", err)
	}
	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Embedding{}, err
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Embedding{}, err
	}
	return e, nil
}

// ListEmbeddings returns all stored embeddings whose entity is of type typ
// (or every embedding if typ is empty), for use by clustering/search.
func (s *Store) ListEmbeddings(typ string) ([]Embedding, error) {
	s.mu.Lock()
	q := `SELECT em.entity_id, em.model_name, em.vector, em.dimension, em.created_at, em.updated_at
	      FROM embeddings em JOIN entities e ON e.id = em.entity_id`
	var args []any
	if typ != "" {
		q += ` WHERE e.type = ?`
		args = append(args, typ)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	var out []Embedding
	for rows.Next() {
		var e Embedding
		var raw []byte
		var created, updated string
		if err := rows.Scan(&e.EntityID, &e.Model, &raw, &e.Dimension, &created, &updated); err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, err
		}
		e.Vector = make([]float64, e.Dimension)
		_ = binary.Read(bytes.NewReader(raw), binary.LittleEndian, &e.Vector)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, e)
	}
	rows.Close()
	s.mu.Unlock()
	return out, rows.Err()
}
