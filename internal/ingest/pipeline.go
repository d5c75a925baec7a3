// Package ingest builds the search indexes from a policy corpus: documents
// are chunked, tagged with metadata, embedded and written to the vector and
// keyword indexes.
package ingest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/policyrag/mcp-server/internal/chunking"
	"github.com/policyrag/mcp-server/internal/corpus"
	"github.com/policyrag/mcp-server/internal/embedding"
	"github.com/policyrag/mcp-server/internal/metadata"
	"github.com/policyrag/mcp-server/internal/retrieval"
	"github.com/policyrag/mcp-server/internal/vectorindex"
)

// DefaultWorkers bounds how many documents are processed concurrently.
const DefaultWorkers = 4

// Config controls the pipeline.
type Config struct {
	Workers int `yaml:"workers"`
}

// Stats summarizes one index build.
type Stats struct {
	Documents       int           `json:"documents"`
	FailedDocuments int           `json:"failed_documents"`
	Chunks          int           `json:"chunks"`
	OversizedChunks int           `json:"oversized_chunks"`
	AvgChunkChars   int           `json:"avg_chunk_chars"`
	Model           string        `json:"model"`
	Dimensions      int           `json:"dimensions"`
	Elapsed         time.Duration `json:"elapsed"`
}

// DocumentError records a document that could not be indexed. One bad
// document never aborts the build.
type DocumentError struct {
	DocumentID string
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("index document %s: %v", e.DocumentID, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// Pipeline runs document indexing over a bounded worker pool. Documents are
// independent, so they are processed concurrently; within one document the
// chunk, extract, embed, index steps run in order.
type Pipeline struct {
	chunker   *chunking.Chunker
	extractor *metadata.Extractor
	embedder  embedding.Embedder
	vectors   *vectorindex.Index
	keywords  *retrieval.KeywordIndex
	workers   int
}

// New wires a Pipeline. keywords may be nil to build a vector-only index.
func New(chunker *chunking.Chunker, extractor *metadata.Extractor, embedder embedding.Embedder, vectors *vectorindex.Index, keywords *retrieval.KeywordIndex, cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{
		chunker:   chunker,
		extractor: extractor,
		embedder:  embedder,
		vectors:   vectors,
		keywords:  keywords,
		workers:   workers,
	}
}

// Run indexes all documents and reports build stats plus per-document
// failures, sorted by document ID. The returned error is non-nil only when
// the context is cancelled; partial progress stays in the indexes.
func (p *Pipeline) Run(ctx context.Context, docs []corpus.Document) (*Stats, []*DocumentError, error) {
	start := time.Now()

	jobs := make(chan corpus.Document)
	var (
		mu         sync.Mutex
		docErrs    []*DocumentError
		chunkCount int
		oversized  int
		totalChars int
		indexed    int
	)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				if ctx.Err() != nil {
					return
				}
				chunks, err := p.indexDocument(ctx, doc)
				mu.Lock()
				if err != nil {
					docErrs = append(docErrs, &DocumentError{DocumentID: doc.ID, Err: err})
				} else {
					indexed++
					chunkCount += len(chunks)
					for _, c := range chunks {
						totalChars += len(c.Text)
						if c.Oversized {
							oversized++
						}
					}
				}
				mu.Unlock()
			}
		}()
	}

	for _, doc := range docs {
		select {
		case jobs <- doc:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(docErrs, func(i, j int) bool { return docErrs[i].DocumentID < docErrs[j].DocumentID })
	for _, de := range docErrs {
		log.Printf("Warning: %v", de)
	}

	stats := &Stats{
		Documents:       indexed,
		FailedDocuments: len(docErrs),
		Chunks:          chunkCount,
		OversizedChunks: oversized,
		Model:           p.embedder.ModelName(),
		Dimensions:      p.embedder.Dimensions(),
		Elapsed:         time.Since(start),
	}
	if chunkCount > 0 {
		stats.AvgChunkChars = totalChars / chunkCount
	}
	log.Printf("✓ Indexed %d documents (%d chunks, %d failed) in %s", stats.Documents, stats.Chunks, stats.FailedDocuments, stats.Elapsed.Round(time.Millisecond))
	return stats, docErrs, nil
}

func (p *Pipeline) indexDocument(ctx context.Context, doc corpus.Document) ([]chunking.Chunk, error) {
	chunks := p.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	metas := make([]metadata.Metadata, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
		metas[i] = p.extractor.Extract(chunk, doc)
	}

	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embed: got %d vectors for %d chunks", len(vecs), len(chunks))
	}

	for i, chunk := range chunks {
		if err := p.vectors.Add(chunk, metas[i], vecs[i]); err != nil {
			return nil, err
		}
	}
	if p.keywords != nil {
		if err := p.keywords.AddBatch(chunks, metas); err != nil {
			return nil, err
		}
	}
	return chunks, nil
}
