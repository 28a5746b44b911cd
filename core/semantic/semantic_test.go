package semantic

import (
	"testing"

	"chora/core/graph"
	"chora/core/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveEntity(t *testing.T, s *store.Store, e graph.Entity) graph.Entity {
	t.Helper()
	got, err := s.SaveEntity(e)
	if err != nil {
		t.Fatalf("save entity %s: %v", e.ID, err)
	}
	return got
}

func TestEmbedEntityWithoutVectorizerFallsBack(t *testing.T) {
	s := newTestStore(t)
	saveEntity(t, s, graph.Entity{ID: "tool-1", Type: graph.TypeTool, Data: map[string]any{"title": "a gadget"}})

	sem := New(s, nil)
	res, err := sem.EmbedEntity("tool-1")
	if err != nil {
		t.Fatalf("EmbedEntity: %v", err)
	}
	if res.Method != "fallback" {
		t.Fatalf("expected fallback method, got %q", res.Method)
	}
	if _, err := s.GetEmbedding("tool-1"); err == nil {
		t.Fatal("expected no embedding to be persisted without a vectorizer")
	}
}

func TestEmbedEntityPersistsUnitVector(t *testing.T) {
	s := newTestStore(t)
	saveEntity(t, s, graph.Entity{ID: "tool-1", Type: graph.TypeTool, Data: map[string]any{"title": "a sharp axe"}})

	sem := New(s, NewHashVectorizer(32))
	res, err := sem.EmbedEntity("tool-1")
	if err != nil {
		t.Fatalf("EmbedEntity: %v", err)
	}
	if res.Method != "semantic" || res.Dim != 32 {
		t.Fatalf("unexpected result: %+v", res)
	}
	emb, err := s.GetEmbedding("tool-1")
	if err != nil {
		t.Fatalf("GetEmbedding: %v", err)
	}
	var norm float64
	for _, x := range emb.Vector {
		norm += x * x
	}
	if norm < 0.99 || norm > 1.01 {
		t.Fatalf("expected unit vector, got squared norm %v", norm)
	}
}

func TestSimilaritySelfIdentity(t *testing.T) {
	s := newTestStore(t)
	sem := New(s, NewHashVectorizer(32))
	res, err := sem.Similarity("same-entity", "same-entity")
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if res.Similarity != 1.0 || res.Method != "semantic" {
		t.Fatalf("expected self-similarity 1.0, got %+v", res)
	}
}

func TestSimilarityFallsBackWithoutEmbeddings(t *testing.T) {
	s := newTestStore(t)
	sem := New(s, NewHashVectorizer(32))
	res, err := sem.Similarity("a", "b")
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if res.Method != "fallback" || res.Similarity != 0 {
		t.Fatalf("expected fallback 0 similarity, got %+v", res)
	}
}

func TestSimilarityRanksIdenticalTextHigherThanUnrelated(t *testing.T) {
	s := newTestStore(t)
	sem := New(s, NewHashVectorizer(32))
	saveEntity(t, s, graph.Entity{ID: "a", Type: graph.TypeTool, Data: map[string]any{"title": "sharpen the axe blade"}})
	saveEntity(t, s, graph.Entity{ID: "b", Type: graph.TypeTool, Data: map[string]any{"title": "sharpen the axe blade"}})
	saveEntity(t, s, graph.Entity{ID: "c", Type: graph.TypeTool, Data: map[string]any{"title": "bake sourdough bread"}})
	for _, id := range []string{"a", "b", "c"} {
		if _, err := sem.EmbedEntity(id); err != nil {
			t.Fatalf("EmbedEntity(%s): %v", id, err)
		}
	}

	ab, err := sem.Similarity("a", "b")
	if err != nil {
		t.Fatalf("Similarity(a,b): %v", err)
	}
	ac, err := sem.Similarity("a", "c")
	if err != nil {
		t.Fatalf("Similarity(a,c): %v", err)
	}
	if ab.Similarity <= ac.Similarity {
		t.Fatalf("expected identical text to score higher: ab=%v ac=%v", ab.Similarity, ac.Similarity)
	}
}

func TestSearchFallsBackToFTSWithoutVectorizer(t *testing.T) {
	s := newTestStore(t)
	saveEntity(t, s, graph.Entity{ID: "story-1", Type: graph.TypeStory, Data: map[string]any{"title": "the quiet harbor"}})

	sem := New(s, nil)
	res, err := sem.Search("harbor", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Method != "fts5" {
		t.Fatalf("expected fts5 fallback, got %q", res.Method)
	}
	if len(res.Hits) != 1 || res.Hits[0].ID != "story-1" {
		t.Fatalf("unexpected hits: %+v", res.Hits)
	}
}

func TestSearchFallsBackToFTSWhenNoEmbeddingsExist(t *testing.T) {
	s := newTestStore(t)
	saveEntity(t, s, graph.Entity{ID: "story-1", Type: graph.TypeStory, Data: map[string]any{"title": "the quiet harbor"}})

	sem := New(s, NewHashVectorizer(32))
	res, err := sem.Search("harbor", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Method != "fts5" {
		t.Fatalf("expected fts5 fallback when no embeddings are stored, got %q", res.Method)
	}
}

func TestSearchRanksByEmbeddingWhenAvailable(t *testing.T) {
	s := newTestStore(t)
	sem := New(s, NewHashVectorizer(32))
	saveEntity(t, s, graph.Entity{ID: "story-1", Type: graph.TypeStory, Data: map[string]any{"title": "a quiet harbor at dawn"}})
	saveEntity(t, s, graph.Entity{ID: "story-2", Type: graph.TypeStory, Data: map[string]any{"title": "a fiery dragon battle"}})
	for _, id := range []string{"story-1", "story-2"} {
		if _, err := sem.EmbedEntity(id); err != nil {
			t.Fatalf("EmbedEntity(%s): %v", id, err)
		}
	}

	res, err := sem.Search("quiet harbor at dawn", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Method != "semantic" {
		t.Fatalf("expected semantic ranking, got %q", res.Method)
	}
	if len(res.Hits) == 0 || res.Hits[0].ID != "story-1" {
		t.Fatalf("expected story-1 ranked first, got %+v", res.Hits)
	}
}

func TestSuggestBondsFallsBackToTypeBasedWithoutEmbedding(t *testing.T) {
	s := newTestStore(t)
	saveEntity(t, s, graph.Entity{ID: "pattern-1", Type: graph.TypePattern, Data: nil})
	saveEntity(t, s, graph.Entity{ID: "story-1", Type: graph.TypeStory, Data: nil})
	saveEntity(t, s, graph.Entity{ID: "behavior-1", Type: graph.TypeBehavior, Data: nil})

	sem := New(s, nil)
	res, err := sem.SuggestBonds("pattern-1")
	if err != nil {
		t.Fatalf("SuggestBonds: %v", err)
	}
	if res.Method != "type-based" {
		t.Fatalf("expected type-based fallback, got %q", res.Method)
	}
	found := map[string]bool{}
	for _, sg := range res.Suggestions {
		found[sg.CandidateID] = true
	}
	if !found["story-1"] || !found["behavior-1"] {
		t.Fatalf("expected story-1 and behavior-1 among suggestions, got %+v", res.Suggestions)
	}
}

func TestSuggestBondsExcludesAlreadyBonded(t *testing.T) {
	s := newTestStore(t)
	saveEntity(t, s, graph.Entity{ID: "pattern-1", Type: graph.TypePattern, Data: nil})
	saveEntity(t, s, graph.Entity{ID: "story-1", Type: graph.TypeStory, Data: nil})
	if _, err := s.ManageBond("structures", "pattern-1", "story-1", nil, nil); err != nil {
		t.Fatalf("ManageBond: %v", err)
	}

	sem := New(s, nil)
	res, err := sem.SuggestBonds("pattern-1")
	if err != nil {
		t.Fatalf("SuggestBonds: %v", err)
	}
	for _, sg := range res.Suggestions {
		if sg.CandidateID == "story-1" {
			t.Fatalf("expected already-bonded story-1 to be excluded, got %+v", res.Suggestions)
		}
	}
}

func TestDetectClustersFallsBackToKeywordWithFewerThanTwoEmbeddings(t *testing.T) {
	s := newTestStore(t)
	saveEntity(t, s, graph.Entity{ID: "tool-1", Type: graph.TypeTool, Data: map[string]any{"title": "axe for chopping"}})
	saveEntity(t, s, graph.Entity{ID: "tool-2", Type: graph.TypeTool, Data: map[string]any{"title": "axe for splitting"}})
	saveEntity(t, s, graph.Entity{ID: "tool-3", Type: graph.TypeTool, Data: map[string]any{"title": "saw for cutting"}})

	sem := New(s, nil)
	res, err := sem.DetectClusters(string(graph.TypeTool))
	if err != nil {
		t.Fatalf("DetectClusters: %v", err)
	}
	if res.Method != "keyword" {
		t.Fatalf("expected keyword fallback, got %q", res.Method)
	}
	byLabel := map[string][]string{}
	for _, c := range res.Clusters {
		byLabel[c.Label] = c.Members
	}
	if len(byLabel["axe"]) != 2 {
		t.Fatalf("expected 2 members under 'axe', got %+v", byLabel)
	}
}

func TestDetectClustersGroupsByEmbeddingWhenAvailable(t *testing.T) {
	s := newTestStore(t)
	sem := New(s, NewHashVectorizer(32))
	saveEntity(t, s, graph.Entity{ID: "tool-1", Type: graph.TypeTool, Data: map[string]any{"title": "a sharp metal axe"}})
	saveEntity(t, s, graph.Entity{ID: "tool-2", Type: graph.TypeTool, Data: map[string]any{"title": "a sharp metal axe"}})
	saveEntity(t, s, graph.Entity{ID: "tool-3", Type: graph.TypeTool, Data: map[string]any{"title": "a soft wool blanket"}})
	saveEntity(t, s, graph.Entity{ID: "tool-4", Type: graph.TypeTool, Data: map[string]any{"title": "a soft wool blanket"}})
	for _, id := range []string{"tool-1", "tool-2", "tool-3", "tool-4"} {
		if _, err := sem.EmbedEntity(id); err != nil {
			t.Fatalf("EmbedEntity(%s): %v", id, err)
		}
	}

	res, err := sem.DetectClusters(string(graph.TypeTool))
	if err != nil {
		t.Fatalf("DetectClusters: %v", err)
	}
	if res.Method != "semantic" {
		t.Fatalf("expected semantic clustering, got %q", res.Method)
	}
	total := 0
	for _, c := range res.Clusters {
		total += len(c.Members)
	}
	if total != 4 {
		t.Fatalf("expected all 4 entities clustered, got %d", total)
	}
}
