// Package semantic implements the semantic layer: a pluggable Vectorizer
// wired to embedding persistence, similarity, search, bond suggestion, and
// clustering, degrading gracefully whenever no vectorizer is configured.
package semantic

import (
	"math"

	"chora/core/store"
)

// Vectorizer converts text into a fixed-dimension embedding. Real
// implementations (an external model client, a local ONNX runtime, etc.)
// are injected; none is required for the system to function.
type Vectorizer interface {
	Vectorize(text string) ([]float64, error)
	ModelName() string
}

// Semantic is the injectable collaborator wiring a Vectorizer to the store.
type Semantic struct {
	Store      *store.Store
	Vectorizer Vectorizer
}

// New constructs a Semantic layer. vec may be nil, in which case every
// primitive degrades to its documented fallback method.
func New(s *store.Store, vec Vectorizer) *Semantic {
	return &Semantic{Store: s, Vectorizer: vec}
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalize(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
