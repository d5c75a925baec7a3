// Command indexer builds a vector index snapshot from a corpus directory, so
// servers can load a pre-built index instead of embedding at startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/policyrag/mcp-server/internal/chunking"
	"github.com/policyrag/mcp-server/internal/config"
	"github.com/policyrag/mcp-server/internal/corpus"
	"github.com/policyrag/mcp-server/internal/ingest"
	"github.com/policyrag/mcp-server/internal/metadata"
	"github.com/policyrag/mcp-server/internal/vectorindex"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-config file] <corpus-dir> <snapshot-file>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s data/docs search/index.json\n", os.Args[0])
		os.Exit(1)
	}
	corpusDir := flag.Arg(0)
	snapshotFile := flag.Arg(1)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = *loaded
	}

	log.Printf("Policy Corpus Indexer")
	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	log.Printf("Loading corpus: %s", corpusDir)
	loaded, err := corpus.LoadDir(corpusDir)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}
	log.Printf("✓ Loaded %d documents (%d unreadable)", len(loaded.Documents), len(loaded.Failed))

	embedder, err := cfg.NewEmbedder()
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	extractor, err := metadata.New(cfg.Metadata)
	if err != nil {
		log.Fatalf("Failed to create metadata extractor: %v", err)
	}

	index := vectorindex.New(embedder.Dimensions())
	pipeline := ingest.New(chunking.New(cfg.Chunking), extractor, embedder, index, nil, cfg.Ingest)

	stats, docErrs, err := pipeline.Run(context.Background(), loaded.Documents)
	if err != nil {
		log.Fatalf("Indexing failed: %v", err)
	}
	for _, de := range docErrs {
		log.Printf("Warning: %v", de)
	}

	if dir := filepath.Dir(snapshotFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create snapshot directory: %v", err)
		}
	}
	f, err := os.Create(snapshotFile)
	if err != nil {
		log.Fatalf("Failed to create snapshot file: %v", err)
	}
	if err := index.WriteTo(f); err != nil {
		f.Close()
		log.Fatalf("Failed to write snapshot: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("Failed to close snapshot: %v", err)
	}

	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("✓ Indexing complete!")
	log.Printf("")
	log.Printf("Index details:")
	log.Printf("  Snapshot:        %s", snapshotFile)
	log.Printf("  Documents:       %d (%d failed)", stats.Documents, stats.FailedDocuments)
	log.Printf("  Chunks:          %d (%d oversized)", stats.Chunks, stats.OversizedChunks)
	log.Printf("  Avg chunk size:  %d chars", stats.AvgChunkChars)
	log.Printf("  Embedding model: %s (%d dimensions)", stats.Model, stats.Dimensions)
	log.Printf("  Build time:      %s", stats.Elapsed.Round(time.Millisecond))
}
