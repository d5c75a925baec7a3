package retrieval

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"

	"github.com/policyrag/mcp-server/internal/chunking"
	"github.com/policyrag/mcp-server/internal/metadata"
)

// keywordDoc is the shape indexed into bleve for keyword scoring.
type keywordDoc struct {
	Text         string   `json:"text"`
	SectionTitle string   `json:"section_title"`
	PolicyID     string   `json:"policy_id"`
	Standards    []string `json:"standards"`
	Keywords     []string `json:"keywords"`
}

// KeywordHit is one keyword-search result.
type KeywordHit struct {
	ChunkID string
	Score   float64
}

// KeywordIndex wraps an in-memory bleve index used to blend exact-term
// relevance into retrieval scores. Purely additive: retrieval works without
// it, but corpus terms like policy IDs rank better with it.
type KeywordIndex struct {
	index bleve.Index
}

// NewKeywordIndex creates an empty in-memory keyword index.
func NewKeywordIndex() (*KeywordIndex, error) {
	mapping := bleve.NewIndexMapping()
	index, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &KeywordIndex{index: index}, nil
}

// Add indexes or reindexes one chunk.
func (ki *KeywordIndex) Add(chunk chunking.Chunk, meta metadata.Metadata) error {
	doc := keywordDoc{
		Text:         chunk.Text,
		SectionTitle: meta.SectionTitle,
		PolicyID:     meta.PolicyID,
		Standards:    meta.Standards,
		Keywords:     meta.Keywords,
	}
	if err := ki.index.Index(chunk.ID, doc); err != nil {
		return fmt.Errorf("keyword index %s: %w", chunk.ID, err)
	}
	return nil
}

// AddBatch indexes chunks in batches, the way large corpora should be loaded.
func (ki *KeywordIndex) AddBatch(chunks []chunking.Chunk, metas []metadata.Metadata) error {
	if len(chunks) != len(metas) {
		return fmt.Errorf("keyword batch: %d chunks but %d metadata records", len(chunks), len(metas))
	}
	batch := ki.index.NewBatch()
	for i, chunk := range chunks {
		doc := keywordDoc{
			Text:         chunk.Text,
			SectionTitle: metas[i].SectionTitle,
			PolicyID:     metas[i].PolicyID,
			Standards:    metas[i].Standards,
			Keywords:     metas[i].Keywords,
		}
		if err := batch.Index(chunk.ID, doc); err != nil {
			return fmt.Errorf("keyword batch %s: %w", chunk.ID, err)
		}
		if batch.Size() >= 100 {
			if err := ki.index.Batch(batch); err != nil {
				return fmt.Errorf("keyword batch submit: %w", err)
			}
			batch = ki.index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := ki.index.Batch(batch); err != nil {
			return fmt.Errorf("keyword batch submit: %w", err)
		}
	}
	return nil
}

// Remove deletes a chunk from the keyword index.
func (ki *KeywordIndex) Remove(chunkID string) error {
	return ki.index.Delete(chunkID)
}

// Search runs a term-match query and returns scored chunk IDs.
func (ki *KeywordIndex) Search(ctx context.Context, queryText string, limit int) ([]KeywordHit, error) {
	q := bleve.NewMatchQuery(queryText)
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	res, err := ki.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]KeywordHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, KeywordHit{ChunkID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// DocCount returns the number of indexed chunks.
func (ki *KeywordIndex) DocCount() (uint64, error) {
	return ki.index.DocCount()
}

// Close releases index resources.
func (ki *KeywordIndex) Close() error {
	return ki.index.Close()
}
