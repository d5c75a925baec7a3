// Package retrieval turns a raw user query into ranked policy chunks. It
// expands the query into variants, searches the vector index once per
// variant, merges the result sets by maximum score per chunk and optionally
// blends in keyword relevance from a bleve index.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/policyrag/mcp-server/internal/embedding"
	"github.com/policyrag/mcp-server/internal/query"
	"github.com/policyrag/mcp-server/internal/vectorindex"
)

const (
	// DefaultK is the result count when the caller does not ask for one.
	DefaultK = 5
	// DefaultMaxResults caps how many results a single request may ask for.
	DefaultMaxResults = 50
	// DefaultVectorWeight and DefaultKeywordWeight set the hybrid blend.
	DefaultVectorWeight  = 0.7
	DefaultKeywordWeight = 0.3

	// Each variant fetches more candidates than requested so the merged
	// ranking is not starved by per-variant truncation.
	fetchMultiplier = 3
)

// Config controls ranking behavior.
type Config struct {
	// MaxResults is the ceiling on per-request result counts.
	MaxResults int `yaml:"max_results"`
	// VectorWeight and KeywordWeight blend cosine similarity with
	// normalized keyword scores. Ignored when the keyword boost is off,
	// in which case results carry the raw cosine similarity.
	VectorWeight  float64 `yaml:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
	// DisableKeywordBoost skips the keyword index even when one is wired.
	DisableKeywordBoost bool `yaml:"disable_keyword_boost"`
}

func (c Config) withDefaults() Config {
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.VectorWeight == 0 && c.KeywordWeight == 0 {
		c.VectorWeight = DefaultVectorWeight
		c.KeywordWeight = DefaultKeywordWeight
	}
	return c
}

// Request is one retrieval call.
type Request struct {
	// Text is the raw user query.
	Text string
	// K is the number of results wanted. Zero means DefaultK; values above
	// the configured ceiling are clamped.
	K int
	// Filter restricts candidates by metadata before ranking.
	Filter vectorindex.Filter
}

// Result is a ranked answer. An empty Hits slice is a valid outcome and
// distinct from an error.
type Result struct {
	// Variants are the search strings actually used, normalized original
	// first.
	Variants []string
	// Hits are ranked by descending score, ties broken by ascending
	// chunk ID.
	Hits []vectorindex.Hit
}

// Retriever runs the query pipeline against a vector index and an optional
// keyword index. Safe for concurrent use; it only reads the indexes.
type Retriever struct {
	processor *query.Processor
	embedder  embedding.Embedder
	vectors   *vectorindex.Index
	keywords  *KeywordIndex
	cfg       Config
}

// New wires a Retriever. keywords may be nil to run pure vector retrieval.
func New(processor *query.Processor, embedder embedding.Embedder, vectors *vectorindex.Index, keywords *KeywordIndex, cfg Config) *Retriever {
	return &Retriever{
		processor: processor,
		embedder:  embedder,
		vectors:   vectors,
		keywords:  keywords,
		cfg:       cfg.withDefaults(),
	}
}

// Retrieve expands, searches and merges. Results are deterministic for a
// fixed index state and query.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*Result, error) {
	k := req.K
	if k <= 0 {
		k = DefaultK
	}
	if k > r.cfg.MaxResults {
		k = r.cfg.MaxResults
	}

	variants, err := r.processor.Process(req.Text)
	if err != nil {
		return nil, err
	}

	fetch := k * fetchMultiplier
	perVariant := make([][]vectorindex.Hit, len(variants))
	errs := make([]error, len(variants))

	var wg sync.WaitGroup
	for i, variant := range variants {
		wg.Add(1)
		go func(i int, variant string) {
			defer wg.Done()
			vec, err := r.embedder.Embed(ctx, variant)
			if err != nil {
				errs[i] = fmt.Errorf("embed variant %q: %w", variant, err)
				return
			}
			hits, err := r.vectors.Search(vec, fetch, req.Filter)
			if err != nil {
				errs[i] = fmt.Errorf("search variant %q: %w", variant, err)
				return
			}
			perVariant[i] = hits
		}(i, variant)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	// Max-score merge: a chunk found by several variants keeps its best
	// similarity, never a sum, so variant count cannot inflate scores.
	best := make(map[string]vectorindex.Hit)
	for _, hits := range perVariant {
		for _, h := range hits {
			cur, ok := best[h.Chunk.ID]
			if !ok || h.Score > cur.Score {
				best[h.Chunk.ID] = h
			}
		}
	}

	if r.keywords != nil && !r.cfg.DisableKeywordBoost {
		if err := r.blendKeywordScores(ctx, variants, req.Filter, fetch, best); err != nil {
			return nil, err
		}
	}

	merged := make([]vectorindex.Hit, 0, len(best))
	for _, h := range best {
		merged = append(merged, h)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Chunk.ID < merged[j].Chunk.ID
	})
	if len(merged) > k {
		merged = merged[:k]
	}

	return &Result{Variants: variants, Hits: merged}, nil
}

// blendKeywordScores rewrites the candidate scores in place as a weighted
// sum of cosine similarity and the per-request-normalized best keyword
// score. Chunks found only by keyword search join the candidate set with a
// zero vector score, subject to the same metadata filter.
func (r *Retriever) blendKeywordScores(ctx context.Context, variants []string, filter vectorindex.Filter, fetch int, best map[string]vectorindex.Hit) error {
	kwBest := make(map[string]float64)
	var kwMax float64
	for _, variant := range variants {
		hits, err := r.keywords.Search(ctx, variant, fetch)
		if err != nil {
			return err
		}
		for _, h := range hits {
			if h.Score > kwBest[h.ChunkID] {
				kwBest[h.ChunkID] = h.Score
			}
			if h.Score > kwMax {
				kwMax = h.Score
			}
		}
	}

	for id := range kwBest {
		if _, ok := best[id]; ok {
			continue
		}
		rec, ok := r.vectors.Get(id)
		if !ok {
			// Keyword index lags the vector index; skip the orphan.
			continue
		}
		if !filter.IsZero() && !filter.Matches(rec.Meta) {
			continue
		}
		best[id] = vectorindex.Hit{Chunk: rec.Chunk, Meta: rec.Meta, Score: 0}
	}

	for id, h := range best {
		var kw float64
		if kwMax > 0 {
			kw = kwBest[id] / kwMax
		}
		h.Score = r.cfg.VectorWeight*h.Score + r.cfg.KeywordWeight*kw
		best[id] = h
	}
	return nil
}
