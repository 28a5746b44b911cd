package semantic

import (
	"fmt"
	"sort"
	"strings"

	"chora/core/graph"
	"chora/core/store"
)

// EmbedResult is embed_entity's response envelope.
type EmbedResult struct {
	Method   string
	EntityID string
	Dim      int
	Error    string
}

// EmbedEntity computes and persists id's embedding. A missing entity is a
// genuine error; an absent Vectorizer degrades to a fallback envelope
// rather than failing.
func (s *Semantic) EmbedEntity(id string) (EmbedResult, error) {
	ent, err := s.Store.GetEntity(id)
	if err != nil {
		return EmbedResult{}, err
	}
	if s.Vectorizer == nil {
		return EmbedResult{Method: "fallback", EntityID: id, Error: "no vectorizer configured"}, nil
	}
	vec, err := s.Vectorizer.Vectorize(composeText(ent))
	if err != nil {
		return EmbedResult{Method: "fallback", EntityID: id, Error: err.Error()}, nil
	}
	vec = normalize(vec)
	if err := s.Store.SaveEmbedding(id, s.Vectorizer.ModelName(), vec); err != nil {
		return EmbedResult{}, err
	}
	return EmbedResult{Method: "semantic", EntityID: id, Dim: len(vec)}, nil
}

// EmbedTextResult is embed_text's response envelope.
type EmbedTextResult struct {
	Method string
	Vector []float64
	Dim    int
}

// EmbedText computes an in-memory vector for text with no persistence.
func (s *Semantic) EmbedText(text string) (EmbedTextResult, error) {
	if s.Vectorizer == nil {
		return EmbedTextResult{Method: "fallback"}, nil
	}
	vec, err := s.Vectorizer.Vectorize(text)
	if err != nil {
		return EmbedTextResult{Method: "fallback"}, nil
	}
	vec = normalize(vec)
	return EmbedTextResult{Method: "semantic", Vector: vec, Dim: len(vec)}, nil
}

// SimilarityResult is semantic_similarity's response envelope.
type SimilarityResult struct {
	Method     string
	Similarity float64
}

// Similarity computes the cosine similarity of a and b's stored unit
// vectors. An identical entity always returns 1.0; a missing vector on
// either side degrades to 0.0 with method "fallback".
func (s *Semantic) Similarity(a, b string) (SimilarityResult, error) {
	if a == b {
		return SimilarityResult{Method: "semantic", Similarity: 1.0}, nil
	}
	va, errA := s.Store.GetEmbedding(a)
	vb, errB := s.Store.GetEmbedding(b)
	if errA != nil || errB != nil {
		return SimilarityResult{Method: "fallback", Similarity: 0.0}, nil
	}
	return SimilarityResult{Method: "semantic", Similarity: cosine(va.Vector, vb.Vector)}, nil
}

// SearchHit is one semantic_search/FTS result.
type SearchHit struct {
	ID    string
	Type  string
	Score float64
}

// SearchResult is semantic_search's response envelope.
type SearchResult struct {
	Method string
	Hits   []SearchHit
}

// Search ranks entities of typ (or any type, if empty) against query. When
// no vectorizer is configured, or no embeddings exist to rank against, it
// falls back to the full-text index.
func (s *Semantic) Search(query, typ string, limit int) (SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.Vectorizer != nil {
		if hits, ok := s.semanticSearch(query, typ, limit); ok {
			return SearchResult{Method: "semantic", Hits: hits}, nil
		}
	}
	entities, err := s.Store.FTSSearch(query, graph.EntityType(typ), limit)
	if err != nil {
		return SearchResult{}, err
	}
	hits := make([]SearchHit, 0, len(entities))
	for _, e := range entities {
		hits = append(hits, SearchHit{ID: e.ID, Type: string(e.Type)})
	}
	return SearchResult{Method: "fts5", Hits: hits}, nil
}

func (s *Semantic) semanticSearch(query, typ string, limit int) ([]SearchHit, bool) {
	embeddings, err := s.Store.ListEmbeddings(typ)
	if err != nil || len(embeddings) == 0 {
		return nil, false
	}
	qv, err := s.Vectorizer.Vectorize(query)
	if err != nil {
		return nil, false
	}
	qv = normalize(qv)

	hits := make([]SearchHit, 0, len(embeddings))
	for _, e := range embeddings {
		ent, err := s.Store.GetEntity(e.EntityID)
		if err != nil {
			continue
		}
		hits = append(hits, SearchHit{ID: e.EntityID, Type: string(ent.Type), Score: cosine(qv, e.Vector)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, true
}

// BondSuggestion is one suggest_bonds candidate.
type BondSuggestion struct {
	Verb          string
	CandidateID   string
	CandidateType string
	Score         float64
}

// SuggestBondsResult is suggest_bonds' response envelope.
type SuggestBondsResult struct {
	Method      string
	Suggestions []BondSuggestion
}

const suggestBondsCandidateLimit = 50
const suggestBondsResultLimit = 10

// SuggestBonds enumerates outbound bonds id's type may form per the
// physics table, ranked by embedding similarity when one exists for id,
// else a flat type-compatibility listing. Already-bonded
// counterparts are excluded.
func (s *Semantic) SuggestBonds(id string) (SuggestBondsResult, error) {
	ent, err := s.Store.GetEntity(id)
	if err != nil {
		return SuggestBondsResult{}, err
	}
	bonded, err := s.bondedCounterparts(id)
	if err != nil {
		return SuggestBondsResult{}, err
	}

	method := "type-based"
	var srcVec []float64
	if s.Vectorizer != nil {
		if emb, err := s.Store.GetEmbedding(id); err == nil {
			srcVec = emb.Vector
			method = "semantic"
		}
	}

	var suggestions []BondSuggestion
	for _, verb := range graph.KnownVerbs() {
		for _, toType := range graph.ToTypesFor(verb, ent.Type) {
			f := store.Filter{Limit: suggestBondsCandidateLimit}
			if toType != graph.Wildcard {
				f.Type = toType
			}
			cands, err := s.Store.QueryEntities(f)
			if err != nil {
				return SuggestBondsResult{}, err
			}
			for _, c := range cands {
				if c.ID == id || bonded[c.ID] {
					continue
				}
				var score float64
				if srcVec != nil {
					if emb, err := s.Store.GetEmbedding(c.ID); err == nil {
						score = cosine(srcVec, emb.Vector)
					}
				}
				suggestions = append(suggestions, BondSuggestion{
					Verb: verb, CandidateID: c.ID, CandidateType: string(c.Type), Score: score,
				})
			}
		}
	}
	sort.Slice(suggestions, func(i, j int) bool { return suggestions[i].Score > suggestions[j].Score })
	if len(suggestions) > suggestBondsResultLimit {
		suggestions = suggestions[:suggestBondsResultLimit]
	}
	return SuggestBondsResult{Method: method, Suggestions: suggestions}, nil
}

func (s *Semantic) bondedCounterparts(id string) (map[string]bool, error) {
	cons, err := s.Store.GetConstellation(id)
	if err != nil {
		return nil, err
	}
	out := map[string]bool{}
	for _, entries := range cons {
		for _, e := range entries {
			out[e.Counterpart.ID] = true
		}
	}
	return out, nil
}

// Cluster is one detect_clusters group.
type Cluster struct {
	Label   string
	Members []string
}

// ClusterResult is detect_clusters' response envelope.
type ClusterResult struct {
	Method   string
	Clusters []Cluster
}

// DetectClusters groups entities of typ by embedding similarity (a small
// k-means pass), falling back to a keyword grouping over salient text
// fields when fewer than two embeddings exist.
func (s *Semantic) DetectClusters(typ string) (ClusterResult, error) {
	embeddings, err := s.Store.ListEmbeddings(typ)
	if err != nil {
		return ClusterResult{}, err
	}
	if len(embeddings) >= 2 {
		return ClusterResult{Method: "semantic", Clusters: kmeans(embeddings, clusterCount(len(embeddings)))}, nil
	}

	entities, err := s.Store.QueryEntities(store.Filter{Type: graph.EntityType(typ)})
	if err != nil {
		return ClusterResult{}, err
	}
	groups := map[string][]string{}
	var order []string
	for _, e := range entities {
		kw := topKeyword(e)
		if _, seen := groups[kw]; !seen {
			order = append(order, kw)
		}
		groups[kw] = append(groups[kw], e.ID)
	}
	clusters := make([]Cluster, 0, len(groups))
	for _, kw := range order {
		clusters = append(clusters, Cluster{Label: kw, Members: groups[kw]})
	}
	return ClusterResult{Method: "keyword", Clusters: clusters}, nil
}

var salientFields = []string{"title", "name", "summary", "description"}

func composeText(e graph.Entity) string {
	var parts []string
	for _, f := range salientFields {
		if v, ok := e.Data[f].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func topKeyword(e graph.Entity) string {
	for _, f := range salientFields {
		if v, ok := e.Data[f].(string); ok && v != "" {
			fields := strings.Fields(strings.ToLower(v))
			if len(fields) > 0 {
				return fields[0]
			}
		}
	}
	return "unlabeled"
}

func clusterCount(n int) int {
	k := 1
	for k*k < n {
		k++
	}
	if k > n {
		k = n
	}
	return k
}

func kmeans(embeddings []store.Embedding, k int) []Cluster {
	if k <= 0 || len(embeddings) == 0 {
		return nil
	}
	dim := len(embeddings[0].Vector)
	centroids := make([][]float64, k)
	for i := range centroids {
		centroids[i] = append([]float64(nil), embeddings[i%len(embeddings)].Vector...)
	}

	assignments := make([]int, len(embeddings))
	for iter := 0; iter < 10; iter++ {
		changed := false
		for i, e := range embeddings {
			best, bestScore := 0, -2.0
			for c, centroid := range centroids {
				if score := cosine(e.Vector, centroid); score > bestScore {
					bestScore, best = score, c
				}
			}
			if assignments[i] != best {
				changed = true
			}
			assignments[i] = best
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, e := range embeddings {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dim && d < len(e.Vector); d++ {
				sums[c][d] += e.Vector[d]
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
		if !changed {
			break
		}
	}

	byCluster := map[int][]string{}
	for i, e := range embeddings {
		byCluster[assignments[i]] = append(byCluster[assignments[i]], e.EntityID)
	}
	clusters := make([]Cluster, 0, len(byCluster))
	for c := 0; c < k; c++ {
		if members, ok := byCluster[c]; ok {
			clusters = append(clusters, Cluster{Label: fmt.Sprintf("cluster-%d", c), Members: members})
		}
	}
	return clusters
}
