package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector size of the hashing embedder
const DefaultHashDimension = 256

// Hash is a deterministic feature-hashing embedder. Unigrams and bigrams of
// the lowercased text are hashed into a fixed number of signed buckets and
// the result is L2-normalized. The same text always yields the same vector,
// in every process.
type Hash struct {
	dim int
}

// NewHash creates a hashing embedder. Non-positive dimensions use
// DefaultHashDimension.
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &Hash{dim: dim}
}

// Dimension returns the vector size
func (h *Hash) Dimension() int {
	return h.dim
}

// Embed returns the hashed vector of text. Text without any word yields the
// zero vector.
func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, h.dim)

	tokens := tokenize(text)
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, h.dim)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *Hash) add(vec []float64, feature string, weight float64) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	idx := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
