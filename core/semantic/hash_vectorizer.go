package semantic

import (
	"hash/fnv"
	"strings"
)

// HashVectorizer is a deterministic, dependency-free default Vectorizer: it
// hashes overlapping character trigrams into a fixed-width vector. It
// exists so the semantic layer has a working default without a real
// embedding backend; any real Vectorizer (an external model client, say)
// plugs in through the same interface.
type HashVectorizer struct {
	Dim int
}

// NewHashVectorizer returns a HashVectorizer with the given dimension,
// defaulting to 64.
func NewHashVectorizer(dim int) *HashVectorizer {
	if dim <= 0 {
		dim = 64
	}
	return &HashVectorizer{Dim: dim}
}

func (h *HashVectorizer) ModelName() string { return "hash-trigram" }

func (h *HashVectorizer) Vectorize(text string) ([]float64, error) {
	vec := make([]float64, h.Dim)
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return vec, nil
	}
	runes := []rune(text)
	n := 3
	if len(runes) < n {
		n = len(runes)
	}
	for i := 0; i+n <= len(runes); i++ {
		shingle := string(runes[i : i+n])
		hasher := fnv.New32a()
		hasher.Write([]byte(shingle))
		idx := int(hasher.Sum32() % uint32(len(vec)))
		vec[idx]++
	}
	return normalize(vec), nil
}
