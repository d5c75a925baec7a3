package tools

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/policyrag/mcp-server/internal/chunking"
	"github.com/policyrag/mcp-server/internal/config"
	"github.com/policyrag/mcp-server/internal/corpus"
	"github.com/policyrag/mcp-server/internal/ingest"
	"github.com/policyrag/mcp-server/internal/metadata"
	"github.com/policyrag/mcp-server/internal/query"
	"github.com/policyrag/mcp-server/internal/retrieval"
	"github.com/policyrag/mcp-server/internal/vectorindex"
)

// SearchEngine is the retrieval surface the MCP tools talk to.
// This abstraction allows for easier testing with mocks.
type SearchEngine interface {
	// Retrieve runs one search request against the engine's indexes.
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)

	// Stats reports how the engine's indexes were built.
	Stats() ingest.Stats

	// FailedDocuments lists document IDs that could not be indexed.
	FailedDocuments() []string

	// Close releases index resources.
	Close() error
}

// policyEngine bundles the indexes built from one corpus snapshot. An engine
// is immutable after build; reindexing builds a new engine and swaps it in.
type policyEngine struct {
	retriever *retrieval.Retriever
	keywords  *retrieval.KeywordIndex
	stats     ingest.Stats
	failed    []string
}

func (e *policyEngine) Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error) {
	return e.retriever.Retrieve(ctx, req)
}

func (e *policyEngine) Stats() ingest.Stats { return e.stats }

func (e *policyEngine) FailedDocuments() []string { return e.failed }

func (e *policyEngine) Close() error {
	if e.keywords != nil {
		return e.keywords.Close()
	}
	return nil
}

// buildEngine indexes the documents and wires a retriever over the result.
func buildEngine(ctx context.Context, cfg *config.Config, docs []corpus.Document) (*policyEngine, error) {
	embedder, err := cfg.NewEmbedder()
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	extractor, err := metadata.New(cfg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("create metadata extractor: %w", err)
	}
	keywords, err := retrieval.NewKeywordIndex()
	if err != nil {
		return nil, err
	}

	vectors := vectorindex.New(embedder.Dimensions())
	pipeline := ingest.New(chunking.New(cfg.Chunking), extractor, embedder, vectors, keywords, cfg.Ingest)

	stats, docErrs, err := pipeline.Run(ctx, docs)
	if err != nil {
		keywords.Close()
		return nil, err
	}

	failed := make([]string, 0, len(docErrs))
	for _, de := range docErrs {
		failed = append(failed, de.DocumentID)
	}

	return &policyEngine{
		retriever: retrieval.New(query.New(cfg.Query), embedder, vectors, keywords, cfg.Retrieval),
		keywords:  keywords,
		stats:     *stats,
		failed:    failed,
	}, nil
}

// loadCorpus reads policy documents from the configured directory, falling
// back to the corpus embedded in the binary so the server works standalone.
func loadCorpus(cfg *config.Config) ([]corpus.Document, error) {
	if cfg.CorpusDir != "" {
		if info, err := os.Stat(cfg.CorpusDir); err == nil && info.IsDir() {
			res, err := corpus.LoadDir(cfg.CorpusDir)
			if err != nil {
				return nil, err
			}
			log.Printf("✓ Corpus loaded from %s (%d documents, %d unreadable)", cfg.CorpusDir, len(res.Documents), len(res.Failed))
			return res.Documents, nil
		}
		log.Printf("Corpus directory %s not found, using embedded corpus", cfg.CorpusDir)
	}
	return loadEmbeddedCorpus()
}

const embeddedCorpusDir = "data/docs"

func loadEmbeddedCorpus() ([]corpus.Document, error) {
	entries, err := defaultDataProvider.ReadDir(embeddedCorpusDir)
	if err != nil {
		return nil, fmt.Errorf("read embedded corpus: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".txt") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	docs := make([]corpus.Document, 0, len(names))
	for _, name := range names {
		data, err := defaultDataProvider.ReadFile(embeddedCorpusDir + "/" + name)
		if err != nil {
			return nil, fmt.Errorf("read embedded document %s: %w", name, err)
		}
		doc, err := corpus.NewDocument(name, string(data), "embedded:"+embeddedCorpusDir+"/"+name)
		if err != nil {
			log.Printf("Warning: skipping embedded document %s: %v", name, err)
			continue
		}
		docs = append(docs, doc)
	}
	log.Printf("✓ Embedded corpus loaded (%d documents)", len(docs))
	return docs, nil
}
