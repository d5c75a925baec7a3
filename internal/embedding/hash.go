package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultDimensions for the hashing embedder. Small enough for exact scans
// over policy corpora, large enough to keep term collisions rare.
const DefaultDimensions = 256

// HashEmbedder is a local, fully deterministic embedder: terms and term
// bigrams are feature-hashed into a fixed-width vector with term-frequency
// weights, then L2-normalized so dot products are cosine similarities.
// It needs no model server, which keeps index builds and tests reproducible.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hashing embedder. Non-positive dims selects
// DefaultDimensions.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Dimensions() int { return e.dims }

func (e *HashEmbedder) ModelName() string { return "feature-hash-v1" }

// Embed hashes the text's terms into a normalized vector. Empty or
// all-punctuation text embeds to the zero vector, which matches nothing.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	terms := tokenize(text)

	for i, term := range terms {
		vec[e.slot(term)]++
		if i > 0 {
			// Bigrams capture adjacent-term phrasing like "data privacy".
			vec[e.slot(terms[i-1]+" "+term)]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *HashEmbedder) slot(term string) int {
	h := fnv.New32a()
	h.Write([]byte(term))
	return int(h.Sum32() % uint32(e.dims))
}

// tokenize lowercases and keeps alphanumeric runs, preserving intra-token
// hyphens so terms like "pci-dss" survive as a unit.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
		return !alnum
	})
	terms := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}
