package tools

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/policyrag/mcp-server/internal/config"
	"github.com/policyrag/mcp-server/internal/ingest"
	"github.com/policyrag/mcp-server/internal/retrieval"
	"github.com/policyrag/mcp-server/internal/vectorindex"
)

// engineHolder manages concurrent access to the search engine
type engineHolder struct {
	// current holds the active engine pointer (atomic access for lock-free reads)
	current atomic.Pointer[SearchEngine]

	// refreshMu prevents concurrent reindex operations
	// NOT used for searches - they are lock-free via atomic pointer
	refreshMu sync.Mutex

	// wg tracks in-flight searches for graceful cleanup of old engines
	wg sync.WaitGroup
}

var (
	engineMgr = &engineHolder{}
	activeCfg atomic.Pointer[config.Config]
)

// InitializePolicySearch builds the search engine from the configured corpus
// (or the embedded one) and installs it for the tools to use.
func InitializePolicySearch(cfg *config.Config) error {
	startTime := time.Now()
	log.Printf("Initializing policy search...")

	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	activeCfg.Store(cfg)

	docs, err := loadCorpus(cfg)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	eng, err := buildEngine(context.Background(), cfg, docs)
	if err != nil {
		return fmt.Errorf("build search engine: %w", err)
	}
	swapEngine(eng)

	stats := eng.Stats()
	log.Printf("✓ Policy search initialized (%d documents, %d chunks, model %s) in %v",
		stats.Documents, stats.Chunks, stats.Model, time.Since(startTime).Round(time.Millisecond))
	return nil
}

// swapEngine atomically replaces the active engine. The old engine is closed
// in the background once in-flight searches drain.
func swapEngine(eng SearchEngine) {
	oldPtr := engineMgr.current.Swap(&eng)
	if oldPtr == nil {
		return
	}
	go func(oldPtr *SearchEngine) {
		engineMgr.wg.Wait()
		if err := (*oldPtr).Close(); err != nil {
			log.Printf("Warning: Error closing old engine: %v", err)
		}
	}(oldPtr)
}

// currentEngine returns the active engine, initializing lazily if the server
// started without one.
func currentEngine() (SearchEngine, error) {
	ptr := engineMgr.current.Load()
	if ptr == nil {
		log.Printf("Search engine not initialized, initializing now...")
		if err := InitializePolicySearch(activeCfg.Load()); err != nil {
			return nil, fmt.Errorf("initialize policy search: %w", err)
		}
		ptr = engineMgr.current.Load()
		if ptr == nil {
			return nil, fmt.Errorf("engine still nil after initialization")
		}
	}
	return *ptr, nil
}

// PolicyResult is one ranked chunk in tool output.
type PolicyResult struct {
	ChunkID      string   `json:"chunk_id"`
	DocumentID   string   `json:"document_id"`
	Text         string   `json:"text"`
	SectionTitle string   `json:"section_title,omitempty"`
	PolicyID     string   `json:"policy_id,omitempty"`
	Standards    []string `json:"standards,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Score        float64  `json:"score"`
}

// SearchCompliancePoliciesInput defines input for search_compliance_policies tool
type SearchCompliancePoliciesInput struct {
	Query        string   `json:"query" jsonschema:"Natural-language question about compliance policies"`
	MaxResults   int      `json:"max_results,omitempty" jsonschema:"Maximum number of results (optional, defaults to 5)"`
	PolicyID     string   `json:"policy_id,omitempty" jsonschema:"Only return chunks tagged with this policy identifier"`
	Standards    []string `json:"standards,omitempty" jsonschema:"Only return chunks tagged with all of these compliance standards"`
	SectionTitle string   `json:"section_title,omitempty" jsonschema:"Only return chunks from this document section"`
}

// SearchCompliancePoliciesOutput defines output for search_compliance_policies tool
type SearchCompliancePoliciesOutput struct {
	Results   []PolicyResult `json:"results"`
	Query     string         `json:"query"`
	Variants  []string       `json:"variants"`
	TotalHits int            `json:"total_hits"`
}

// SearchCompliancePolicies searches the indexed policy corpus.
func SearchCompliancePolicies(ctx context.Context, req *mcp.CallToolRequest, input SearchCompliancePoliciesInput) (*mcp.CallToolResult, SearchCompliancePoliciesOutput, error) {
	// Track in-flight searches for graceful cleanup (MUST be before Load)
	engineMgr.wg.Add(1)
	defer engineMgr.wg.Done()

	eng, err := currentEngine()
	if err != nil {
		return nil, SearchCompliancePoliciesOutput{}, err
	}

	res, err := eng.Retrieve(ctx, retrieval.Request{
		Text: input.Query,
		K:    input.MaxResults,
		Filter: vectorindex.Filter{
			PolicyID:     input.PolicyID,
			Standards:    input.Standards,
			SectionTitle: input.SectionTitle,
		},
	})
	if err != nil {
		return nil, SearchCompliancePoliciesOutput{}, fmt.Errorf("search failed: %w", err)
	}

	results := make([]PolicyResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, PolicyResult{
			ChunkID:      hit.Chunk.ID,
			DocumentID:   hit.Chunk.DocumentID,
			Text:         hit.Chunk.Text,
			SectionTitle: hit.Meta.SectionTitle,
			PolicyID:     hit.Meta.PolicyID,
			Standards:    hit.Meta.Standards,
			Keywords:     hit.Meta.Keywords,
			Score:        hit.Score,
		})
	}

	output := SearchCompliancePoliciesOutput{
		Results:   results,
		Query:     input.Query,
		Variants:  res.Variants,
		TotalHits: len(results),
	}
	return nil, output, nil
}

// ReindexCorpusInput defines input for reindex_corpus tool
type ReindexCorpusInput struct {
	CorpusDir string `json:"corpus_dir,omitempty" jsonschema:"Directory of .md/.txt policy documents to index (optional, defaults to the configured corpus)"`
}

// ReindexCorpusOutput defines output for reindex_corpus tool
type ReindexCorpusOutput struct {
	Updated         bool   `json:"updated"`
	Documents       int    `json:"documents"`
	Chunks          int    `json:"chunks"`
	FailedDocuments int    `json:"failed_documents"`
	Message         string `json:"message"`
}

// ReindexCorpus rebuilds the search engine from the corpus. Searches keep
// running against the old engine until the new one swaps in.
func ReindexCorpus(ctx context.Context, req *mcp.CallToolRequest, input ReindexCorpusInput) (*mcp.CallToolResult, ReindexCorpusOutput, error) {
	// Serialize reindex operations (prevent concurrent rebuilds)
	engineMgr.refreshMu.Lock()
	defer engineMgr.refreshMu.Unlock()

	startTime := time.Now()
	log.Printf("Starting corpus reindex...")

	cfg := activeCfg.Load()
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	if input.CorpusDir != "" {
		// An explicitly requested directory must exist. Silently falling back
		// to the embedded corpus would also pin the bad path in the active
		// config for every later reindex.
		if info, err := os.Stat(input.CorpusDir); err != nil || !info.IsDir() {
			return nil, ReindexCorpusOutput{}, fmt.Errorf("corpus directory %s does not exist", input.CorpusDir)
		}
		updated := *cfg
		updated.CorpusDir = input.CorpusDir
		cfg = &updated
	}
	activeCfg.Store(cfg)

	docs, err := loadCorpus(cfg)
	if err != nil {
		return nil, ReindexCorpusOutput{}, fmt.Errorf("load corpus: %w", err)
	}

	eng, err := buildEngine(ctx, cfg, docs)
	if err != nil {
		return nil, ReindexCorpusOutput{}, fmt.Errorf("rebuild failed: %w", err)
	}
	swapEngine(eng)

	stats := eng.Stats()
	elapsed := time.Since(startTime).Round(time.Millisecond)
	log.Printf("✓ Corpus reindex completed in %v", elapsed)

	output := ReindexCorpusOutput{
		Updated:         true,
		Documents:       stats.Documents,
		Chunks:          stats.Chunks,
		FailedDocuments: stats.FailedDocuments,
		Message:         fmt.Sprintf("Corpus reindexed: %d documents, %d chunks in %v", stats.Documents, stats.Chunks, elapsed),
	}
	return nil, output, nil
}

// CorpusStatsInput defines input for corpus_stats tool
type CorpusStatsInput struct {
	// No input needed - reports on the active engine
}

// CorpusStatsOutput defines output for corpus_stats tool
type CorpusStatsOutput struct {
	ingest.Stats
	FailedDocumentIDs []string `json:"failed_document_ids,omitempty"`
}

// CorpusStats reports how the active search engine was built.
func CorpusStats(ctx context.Context, req *mcp.CallToolRequest, input CorpusStatsInput) (*mcp.CallToolResult, CorpusStatsOutput, error) {
	engineMgr.wg.Add(1)
	defer engineMgr.wg.Done()

	eng, err := currentEngine()
	if err != nil {
		return nil, CorpusStatsOutput{}, err
	}

	output := CorpusStatsOutput{
		Stats:             eng.Stats(),
		FailedDocumentIDs: eng.FailedDocuments(),
	}
	return nil, output, nil
}

// RegisterPolicySearchTools registers corpus search tools
func RegisterPolicySearchTools(server *mcp.Server, cfg *config.Config) error {
	// Build the engine synchronously so the first search is fast
	if err := InitializePolicySearch(cfg); err != nil {
		log.Printf("Warning: Policy search initialization failed: %v", err)
		log.Printf("Policy search will attempt to initialize on first use")
	}

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "search_compliance_policies",
			Description: "Search indexed compliance policy documents using semantic retrieval with query expansion (acronyms and synonyms) and keyword scoring. Supports filtering by policy ID, compliance standards, and section title. Returns ranked chunks with extracted metadata.",
		},
		SearchCompliancePolicies,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "reindex_corpus",
			Description: "Rebuild the policy search index from a corpus directory of .md/.txt documents. Searches continue against the previous index until the rebuild completes.",
		},
		ReindexCorpus,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "corpus_stats",
			Description: "Report statistics of the active policy index: documents, chunks, oversized chunks, average chunk size, embedding model, and any documents that failed to index.",
		},
		CorpusStats,
	)

	return nil
}

// ClosePolicySearch closes the active engine after in-flight searches drain.
func ClosePolicySearch() error {
	ptr := engineMgr.current.Swap(nil)
	if ptr == nil {
		return nil
	}
	engineMgr.wg.Wait()
	if err := (*ptr).Close(); err != nil {
		return err
	}
	log.Printf("✓ Search engine closed")
	return nil
}
