package store

import (
	"fmt"
	"strings"

	"chora/core/graph"
)

// salientFields are the data keys composed into the FTS document body,
// alongside any "title" field, when present.
var salientFields = []string{"title", "name", "summary", "description", "text", "body"}

// FTSIndexEntity (re)indexes id's composed title + salient data fields into
// the full-text index.
func (s *Store) FTSIndexEntity(id string) error {
	e, err := s.GetEntity(id)
	if err != nil {
		return err
	}
	return s.ftsIndex(e)
}

func (s *Store) ftsIndex(e graph.Entity) error {
	var parts []string
	for _, f := range salientFields {
		if v, ok := e.Data[f]; ok {
			if str, ok := v.(string); ok && str != "" {
				parts = append(parts, str)
			}
		}
	}
	body := strings.Join(parts, " ")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM fts_entities WHERE id = ?`, e.ID); err != nil {
		return err
	}
	if body == "" {
		return nil
	}
	_, err := s.db.Exec(`INSERT INTO fts_entities (id, body) VALUES (?, ?)`, e.ID, body)
	return err
}

// FTSSearch runs a full-text query, optionally restricted to typ, returning
// at most limit matching live entities ranked by relevance. The type
// restriction is applied in SQL, before limit, so a narrow type doesn't
// silently under-return relative to the requested limit.
func (s *Store) FTSSearch(query string, typ graph.EntityType, limit int) ([]graph.Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
		SELECT e.id, e.type, e.data, e.status, e.created_at, e.updated_at
		FROM fts_entities f
		JOIN entities e ON e.id = f.id
		WHERE fts_entities MATCH ?`
	args := []any{query}
	if typ != "" {
		q += ` AND e.type = ?`
		args = append(args, string(typ))
	}
	q += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	s.mu.Lock()
	rows, err := s.db.Query(q, args...)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("fts search: %w", err)
	}
	var out []graph.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, err
		}
		out = append(out, e)
	}
	rows.Close()
	s.mu.Unlock()
	return out, nil
}
