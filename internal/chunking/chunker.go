// Package chunking splits documents into sentence-aligned, overlapping chunks
// sized for embedding and retrieval.
package chunking

import (
	"fmt"
	"strings"

	"github.com/policyrag/mcp-server/internal/corpus"
)

// Chunking defaults. Budgets are in characters; token-based sizing is not
// worth a tokenizer dependency at this granularity.
const (
	// DefaultBudgetChars is the soft target size of a chunk.
	DefaultBudgetChars = 800

	// DefaultMaxChars is the hard cap before a chunk is flagged oversized.
	DefaultMaxChars = 1600

	// DefaultOverlapFraction of the budget is repeated from the tail of the
	// previous chunk, in whole sentences.
	DefaultOverlapFraction = 0.15
)

// Chunk is a contiguous span of one document's text. Text always equals
// document text at [StartOffset, EndOffset); the first OverlapLen bytes repeat
// the tail of the previous chunk.
type Chunk struct {
	ID            string `json:"id"`
	DocumentID    string `json:"document_id"`
	Text          string `json:"text"`
	StartOffset   int    `json:"start_offset"`
	EndOffset     int    `json:"end_offset"`
	SequenceIndex int    `json:"sequence_index"`
	OverlapLen    int    `json:"overlap_len,omitempty"`
	// Oversized marks a chunk whose single sentence or unbroken token
	// exceeded the hard cap. The content is kept whole, never cut.
	Oversized bool `json:"oversized,omitempty"`
}

// Config controls chunk sizing. The zero value selects the defaults.
type Config struct {
	BudgetChars     int     `yaml:"budget_chars"`
	MaxChars        int     `yaml:"max_chars"`
	OverlapFraction float64 `yaml:"overlap_fraction"`
}

func (c Config) withDefaults() Config {
	if c.BudgetChars <= 0 {
		c.BudgetChars = DefaultBudgetChars
	}
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultMaxChars
	}
	if c.MaxChars < c.BudgetChars {
		c.MaxChars = c.BudgetChars
	}
	if c.OverlapFraction < 0 || c.OverlapFraction >= 1 {
		c.OverlapFraction = DefaultOverlapFraction
	}
	return c
}

// Chunker splits documents according to a fixed configuration.
type Chunker struct {
	cfg Config
}

// New creates a Chunker, filling unset config fields with defaults.
func New(cfg Config) *Chunker {
	return &Chunker{cfg: cfg.withDefaults()}
}

// ChunkID builds the deterministic chunk identifier for a document position.
// The zero-padded sequence keeps lexical order equal to document order.
func ChunkID(documentID string, seq int) string {
	return fmt.Sprintf("%s#%04d", documentID, seq)
}

// Chunk splits the document at sentence boundaries. Sentences are packed up
// to the budget; a sentence that alone exceeds the hard cap becomes its own
// chunk, kept whole and flagged Oversized. Consecutive chunks overlap by
// whole trailing sentences of the previous chunk, up to
// OverlapFraction*BudgetChars bytes. An empty or whitespace-only document
// yields no chunks.
func (c *Chunker) Chunk(doc corpus.Document) []Chunk {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}

	sentences := SplitSentences(doc.Text)
	if len(sentences) == 0 {
		return nil
	}

	budget := c.cfg.BudgetChars
	overlapChars := int(float64(budget) * c.cfg.OverlapFraction)

	var chunks []Chunk
	// Indexes into sentences for the chunk being accumulated.
	first := 0
	next := 0

	flush := func(last int) {
		if first >= last {
			return
		}
		start := sentences[first].Start
		end := sentences[last-1].End

		// Extend backwards over whole sentences of the previous chunk.
		overlapLen := 0
		if len(chunks) > 0 && overlapChars > 0 {
			prevEnd := start
			s := first - 1
			for s >= 0 && prevEnd-sentences[s].Start <= overlapChars {
				s--
			}
			start = sentences[s+1].Start
			overlapLen = prevEnd - start
		}

		seq := len(chunks)
		chunks = append(chunks, Chunk{
			ID:            ChunkID(doc.ID, seq),
			DocumentID:    doc.ID,
			Text:          doc.Text[start:end],
			StartOffset:   start,
			EndOffset:     end,
			SequenceIndex: seq,
			OverlapLen:    overlapLen,
			Oversized:     end-start > c.cfg.MaxChars,
		})
	}

	for next < len(sentences) {
		s := sentences[next]
		sentLen := s.End - s.Start
		accumulated := s.End - sentences[first].Start

		if sentLen > c.cfg.MaxChars {
			// Oversized sentence: close the running chunk, then emit the
			// sentence whole as its own chunk.
			flush(next)
			first = next
			next++
			flush(next)
			first = next
			continue
		}

		if accumulated > budget && next > first {
			flush(next)
			first = next
			continue
		}
		next++
	}
	flush(next)

	return chunks
}
