package primitive

import (
	"chora/core/errkind"
	"chora/core/semantic"
)

// RegisterCognition wires the semantic-layer primitives into r, closing
// over sem. It is registered separately from NewStandardRegistry because
// it depends on a pluggable Vectorizer the other groups don't know about
// (see registry_std.go).
func RegisterCognition(r *Registry, sem *semantic.Semantic) {
	r.Register(Descriptor{
		ID: "primitive-embed-entity", Alias: "embed_entity", Domain: "cognition",
		Description: "compute and persist an entity's embedding",
		Inputs:      Schema{Required: []string{"id"}},
		Handler:     embedEntityHandler(sem),
	})
	r.Register(Descriptor{
		ID: "primitive-embed-text", Alias: "embed_text", Domain: "cognition",
		Description: "compute an embedding for arbitrary text with no persistence",
		Inputs:      Schema{Required: []string{"text"}},
		Handler:     embedTextHandler(sem),
	})
	r.Register(Descriptor{
		ID: "primitive-semantic-similarity", Alias: "semantic_similarity", Domain: "cognition",
		Description: "cosine similarity between two entities' stored embeddings",
		Inputs:      Schema{Required: []string{"a", "b"}},
		Handler:     semanticSimilarityHandler(sem),
	})
	r.Register(Descriptor{
		ID: "primitive-semantic-search", Alias: "semantic_search", Domain: "cognition",
		Description: "rank entities against a query, falling back to full-text search",
		Inputs:      Schema{Required: []string{"query"}, Optional: []string{"type", "limit"}},
		Handler:     semanticSearchHandler(sem),
	})
	r.Register(Descriptor{
		ID: "primitive-suggest-bonds", Alias: "suggest_bonds", Domain: "cognition",
		Description: "suggest bond candidates for an entity per the physics table",
		Inputs:      Schema{Required: []string{"id"}},
		Handler:     suggestBondsHandler(sem),
	})
	r.Register(Descriptor{
		ID: "primitive-detect-clusters", Alias: "detect_clusters", Domain: "cognition",
		Description: "group entities of a type by embedding similarity",
		Inputs:      Schema{Optional: []string{"type"}},
		Handler:     detectClustersHandler(sem),
	})
}

func embedEntityHandler(sem *semantic.Semantic) Handler {
	return func(inputs map[string]any, ctx *Ctx) Response {
		id, _ := inputs["id"].(string)
		if id == "" {
			return Err(string(errkind.InvalidInputs), "id is required")
		}
		res, err := sem.EmbedEntity(id)
		if err != nil {
			return Err(string(errkind.KindOf(err)), err.Error())
		}
		return Ok(map[string]any{"method": res.Method, "id": res.EntityID, "dim": res.Dim, "error": res.Error})
	}
}

func embedTextHandler(sem *semantic.Semantic) Handler {
	return func(inputs map[string]any, ctx *Ctx) Response {
		text, _ := inputs["text"].(string)
		if text == "" {
			return Err(string(errkind.InvalidInputs), "text is required")
		}
		res, err := sem.EmbedText(text)
		if err != nil {
			return Err(string(errkind.ExecutionError), err.Error())
		}
		return Ok(map[string]any{"method": res.Method, "vector": res.Vector, "dim": res.Dim})
	}
}

func semanticSimilarityHandler(sem *semantic.Semantic) Handler {
	return func(inputs map[string]any, ctx *Ctx) Response {
		a, _ := inputs["a"].(string)
		b, _ := inputs["b"].(string)
		if a == "" || b == "" {
			return Err(string(errkind.InvalidInputs), "a and b are required")
		}
		res, err := sem.Similarity(a, b)
		if err != nil {
			return Err(string(errkind.ExecutionError), err.Error())
		}
		return Ok(map[string]any{"method": res.Method, "similarity": res.Similarity})
	}
}

func semanticSearchHandler(sem *semantic.Semantic) Handler {
	return func(inputs map[string]any, ctx *Ctx) Response {
		query, _ := inputs["query"].(string)
		if query == "" {
			return Err(string(errkind.InvalidInputs), "query is required")
		}
		typ, _ := inputs["type"].(string)
		limit := 0
		if l, ok := inputs["limit"].(int); ok {
			limit = l
		} else if l, ok := inputs["limit"].(float64); ok {
			limit = int(l)
		}
		res, err := sem.Search(query, typ, limit)
		if err != nil {
			return Err(string(errkind.ExecutionError), err.Error())
		}
		hits := make([]map[string]any, 0, len(res.Hits))
		for _, h := range res.Hits {
			hits = append(hits, map[string]any{"id": h.ID, "type": h.Type, "score": h.Score})
		}
		return Ok(map[string]any{"method": res.Method, "hits": hits})
	}
}

func suggestBondsHandler(sem *semantic.Semantic) Handler {
	return func(inputs map[string]any, ctx *Ctx) Response {
		id, _ := inputs["id"].(string)
		if id == "" {
			return Err(string(errkind.InvalidInputs), "id is required")
		}
		res, err := sem.SuggestBonds(id)
		if err != nil {
			return Err(string(errkind.KindOf(err)), err.Error())
		}
		suggestions := make([]map[string]any, 0, len(res.Suggestions))
		for _, sg := range res.Suggestions {
			suggestions = append(suggestions, map[string]any{
				"verb": sg.Verb, "candidate_id": sg.CandidateID,
				"candidate_type": sg.CandidateType, "score": sg.Score,
			})
		}
		return Ok(map[string]any{"method": res.Method, "suggestions": suggestions})
	}
}

func detectClustersHandler(sem *semantic.Semantic) Handler {
	return func(inputs map[string]any, ctx *Ctx) Response {
		typ, _ := inputs["type"].(string)
		res, err := sem.DetectClusters(typ)
		if err != nil {
			return Err(string(errkind.ExecutionError), err.Error())
		}
		clusters := make([]map[string]any, 0, len(res.Clusters))
		for _, c := range res.Clusters {
			clusters = append(clusters, map[string]any{"label": c.Label, "members": c.Members})
		}
		return Ok(map[string]any{"method": res.Method, "clusters": clusters})
	}
}
