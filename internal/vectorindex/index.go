// Package vectorindex stores chunk vectors with their metadata and serves
// exact nearest-neighbour searches with optional metadata filtering.
package vectorindex

import (
	"fmt"
	"sort"
	"sync"

	"github.com/policyrag/mcp-server/internal/chunking"
	"github.com/policyrag/mcp-server/internal/metadata"
)

// Record ties a chunk to its embedding vector. The index owns records
// exclusively: re-adding a chunk ID replaces the whole record atomically.
type Record struct {
	Chunk  chunking.Chunk    `json:"chunk"`
	Meta   metadata.Metadata `json:"metadata"`
	Vector []float32         `json:"vector"`
}

// Hit is one search result.
type Hit struct {
	Chunk chunking.Chunk
	Meta  metadata.Metadata
	Score float64
}

// InconsistencyError reports a structurally broken index entry, e.g. a chunk
// whose stored vector is missing or has the wrong width. It is fatal for the
// index instance: it can only come from a bug, not from input data.
type InconsistencyError struct {
	ChunkID string
	Detail  string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("index inconsistency at chunk %s: %s", e.ChunkID, e.Detail)
}

// Filter restricts search candidates by metadata before ranking. The zero
// value matches everything. All set conditions must hold.
type Filter struct {
	// PolicyID must equal the chunk's policy identifier exactly.
	PolicyID string
	// Standards must each be tagged on the chunk (case/separator-insensitive).
	Standards []string
	// SectionTitle must equal the chunk's section title exactly.
	SectionTitle string
}

// IsZero reports whether the filter imposes no conditions.
func (f Filter) IsZero() bool {
	return f.PolicyID == "" && len(f.Standards) == 0 && f.SectionTitle == ""
}

// Matches applies the filter to chunk metadata.
func (f Filter) Matches(m metadata.Metadata) bool {
	if f.PolicyID != "" && m.PolicyID != f.PolicyID {
		return false
	}
	if f.SectionTitle != "" && m.SectionTitle != f.SectionTitle {
		return false
	}
	for _, std := range f.Standards {
		if !m.HasStandard(std) {
			return false
		}
	}
	return true
}

// Index is an in-memory exact-scan similarity index. Vectors are expected to
// be L2-normalized by the embedder, so the inner product is the cosine
// similarity. Safe for concurrent Add/Remove/Search: writers take the write
// lock, searches scan under the read lock and therefore see each record
// either before or after any single replacement, never torn.
type Index struct {
	mu   sync.RWMutex
	dims int
	recs map[string]Record
}

// New creates an empty index for vectors of the given width.
func New(dims int) *Index {
	return &Index{
		dims: dims,
		recs: make(map[string]Record),
	}
}

// Dimensions returns the vector width the index accepts.
func (ix *Index) Dimensions() int { return ix.dims }

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.recs)
}

// Add inserts or replaces the record for the chunk. Replacement is atomic:
// no duplicate entries, and concurrent searches see the old or the new
// record in full.
func (ix *Index) Add(chunk chunking.Chunk, meta metadata.Metadata, vector []float32) error {
	if chunk.ID == "" {
		return fmt.Errorf("add: chunk has empty ID")
	}
	if len(vector) != ix.dims {
		return fmt.Errorf("add %s: vector has %d dimensions, index expects %d", chunk.ID, len(vector), ix.dims)
	}
	// Copy so later caller mutations cannot tear an indexed record.
	vec := make([]float32, len(vector))
	copy(vec, vector)

	ix.mu.Lock()
	ix.recs[chunk.ID] = Record{Chunk: chunk, Meta: meta, Vector: vec}
	ix.mu.Unlock()
	return nil
}

// Get returns the record for a chunk ID, if present.
func (ix *Index) Get(chunkID string) (Record, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	rec, ok := ix.recs[chunkID]
	return rec, ok
}

// Remove deletes a chunk's record. Removing an absent ID is a no-op.
func (ix *Index) Remove(chunkID string) {
	ix.mu.Lock()
	delete(ix.recs, chunkID)
	ix.mu.Unlock()
}

// Search returns the k most similar chunks among those matching the filter,
// sorted by descending score with ties broken by ascending chunk ID. It
// always returns min(k, matching candidates) results.
func (ix *Index) Search(query []float32, k int, filter Filter) ([]Hit, error) {
	if len(query) != ix.dims {
		return nil, fmt.Errorf("search: query has %d dimensions, index expects %d", len(query), ix.dims)
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]Hit, 0, len(ix.recs))
	for id, rec := range ix.recs {
		if len(rec.Vector) != ix.dims {
			return nil, &InconsistencyError{ChunkID: id, Detail: fmt.Sprintf("stored vector has %d dimensions, want %d", len(rec.Vector), ix.dims)}
		}
		if !filter.IsZero() && !filter.Matches(rec.Meta) {
			continue
		}
		var score float64
		for i, v := range rec.Vector {
			score += float64(v) * float64(query[i])
		}
		hits = append(hits, Hit{Chunk: rec.Chunk, Meta: rec.Meta, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
