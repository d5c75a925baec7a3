package vectorindex_test

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/policyrag/mcp-server/internal/chunking"
	"github.com/policyrag/mcp-server/internal/metadata"
	"github.com/policyrag/mcp-server/internal/vectorindex"
)

func addChunk(t *testing.T, ix *vectorindex.Index, id string, vec []float32, meta metadata.Metadata) {
	t.Helper()
	chunk := chunking.Chunk{ID: id, DocumentID: "doc", Text: "text for " + id}
	if err := ix.Add(chunk, meta, vec); err != nil {
		t.Fatalf("Add(%s) error = %v", id, err)
	}
}

func TestSearchRanking(t *testing.T) {
	ix := vectorindex.New(2)
	addChunk(t, ix, "a", []float32{1, 0}, metadata.Metadata{})
	addChunk(t, ix, "b", []float32{0.6, 0.8}, metadata.Metadata{})
	addChunk(t, ix, "c", []float32{0, 1}, metadata.Metadata{})

	hits, err := ix.Search([]float32{1, 0}, 3, vectorindex.Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	wantOrder := []string{"a", "b", "c"}
	for i, want := range wantOrder {
		if hits[i].Chunk.ID != want {
			t.Errorf("hit %d = %s, want %s", i, hits[i].Chunk.ID, want)
		}
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("scores not non-increasing at %d", i)
		}
	}
}

func TestSearchHonorsK(t *testing.T) {
	ix := vectorindex.New(2)
	for i := 0; i < 10; i++ {
		addChunk(t, ix, fmt.Sprintf("chunk-%02d", i), []float32{1, 0}, metadata.Metadata{})
	}

	tests := []struct {
		k    int
		want int
	}{
		{k: 3, want: 3},
		{k: 10, want: 10},
		{k: 25, want: 10},
		{k: 0, want: 0},
	}
	for _, tt := range tests {
		hits, err := ix.Search([]float32{1, 0}, tt.k, vectorindex.Filter{})
		if err != nil {
			t.Fatalf("Search(k=%d) error = %v", tt.k, err)
		}
		if len(hits) != tt.want {
			t.Errorf("Search(k=%d) returned %d hits, want %d", tt.k, len(hits), tt.want)
		}
	}
}

func TestSearchTieBreakByChunkID(t *testing.T) {
	ix := vectorindex.New(2)
	// Identical vectors: scores tie exactly.
	for _, id := range []string{"delta", "alpha", "charlie", "bravo"} {
		addChunk(t, ix, id, []float32{1, 0}, metadata.Metadata{})
	}

	hits, err := ix.Search([]float32{1, 0}, 4, vectorindex.Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []string{"alpha", "bravo", "charlie", "delta"}
	for i := range want {
		if hits[i].Chunk.ID != want[i] {
			t.Errorf("hit %d = %s, want %s (ascending ID on tie)", i, hits[i].Chunk.ID, want[i])
		}
	}
}

func TestSearchFilter(t *testing.T) {
	ix := vectorindex.New(2)
	pci := metadata.Metadata{Standards: []string{"PCI-DSS"}, PolicyID: "AWS-POL-S3-001"}
	hipaa := metadata.Metadata{Standards: []string{"HIPAA"}}

	// The HIPAA chunk scores higher but must not appear under a PCI filter.
	addChunk(t, ix, "hipaa-chunk", []float32{1, 0}, hipaa)
	addChunk(t, ix, "pci-chunk", []float32{0.5, float32(0.8660254)}, pci)

	hits, err := ix.Search([]float32{1, 0}, 5, vectorindex.Filter{Standards: []string{"PCI-DSS"}})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Chunk.ID != "pci-chunk" {
		t.Errorf("hit = %s, want pci-chunk", hits[0].Chunk.ID)
	}

	t.Run("policy id filter", func(t *testing.T) {
		hits, err := ix.Search([]float32{1, 0}, 5, vectorindex.Filter{PolicyID: "AWS-POL-S3-001"})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(hits) != 1 || hits[0].Chunk.ID != "pci-chunk" {
			t.Errorf("policy filter returned %v", hits)
		}
	})

	t.Run("unmatched filter yields empty result", func(t *testing.T) {
		hits, err := ix.Search([]float32{1, 0}, 5, vectorindex.Filter{Standards: []string{"GDPR"}})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(hits) != 0 {
			t.Errorf("got %d hits, want 0", len(hits))
		}
	})
}

func TestAddReplaces(t *testing.T) {
	ix := vectorindex.New(2)
	addChunk(t, ix, "a", []float32{1, 0}, metadata.Metadata{PolicyID: "AWS-POL-OLD"})
	addChunk(t, ix, "a", []float32{0, 1}, metadata.Metadata{PolicyID: "AWS-POL-NEW"})

	if ix.Len() != 1 {
		t.Fatalf("index has %d records, want 1 after replacement", ix.Len())
	}

	hits, err := ix.Search([]float32{0, 1}, 1, vectorindex.Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if hits[0].Score < 0.99 {
		t.Errorf("score = %f, replacement vector not in effect", hits[0].Score)
	}
	if hits[0].Meta.PolicyID != "AWS-POL-NEW" {
		t.Errorf("metadata = %q, replacement metadata not in effect", hits[0].Meta.PolicyID)
	}
}

func TestAddValidates(t *testing.T) {
	ix := vectorindex.New(4)
	chunk := chunking.Chunk{ID: "a"}
	if err := ix.Add(chunk, metadata.Metadata{}, []float32{1, 0}); err == nil {
		t.Error("Add() should reject wrong vector width")
	}
	if err := ix.Add(chunking.Chunk{}, metadata.Metadata{}, []float32{1, 0, 0, 0}); err == nil {
		t.Error("Add() should reject empty chunk ID")
	}
	if _, err := ix.Search([]float32{1}, 3, vectorindex.Filter{}); err == nil {
		t.Error("Search() should reject wrong query width")
	}
}

func TestRemove(t *testing.T) {
	ix := vectorindex.New(2)
	addChunk(t, ix, "a", []float32{1, 0}, metadata.Metadata{})
	ix.Remove("a")
	ix.Remove("missing") // no-op

	if ix.Len() != 0 {
		t.Errorf("index has %d records after removal, want 0", ix.Len())
	}
}

func TestConcurrentAddAndSearch(t *testing.T) {
	ix := vectorindex.New(2)
	addChunk(t, ix, "seed", []float32{1, 0}, metadata.Metadata{})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				chunk := chunking.Chunk{ID: fmt.Sprintf("w%d-%d", w, i)}
				if err := ix.Add(chunk, metadata.Metadata{}, []float32{0, 1}); err != nil {
					t.Errorf("Add() error = %v", err)
					return
				}
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := ix.Search([]float32{1, 0}, 5, vectorindex.Filter{}); err != nil {
					t.Errorf("Search() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if ix.Len() != 401 {
		t.Errorf("index has %d records, want 401", ix.Len())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ix := vectorindex.New(3)
	meta := metadata.Metadata{
		SectionTitle: "Encryption at Rest",
		PolicyID:     "AWS-POL-EBS-002",
		Standards:    []string{"PCI-DSS", "SOC2"},
		Keywords:     []string{"encryption", "kms"},
	}
	chunk := chunking.Chunk{
		ID:            "doc#0001",
		DocumentID:    "doc",
		Text:          "All EBS volumes must implement encryption.",
		StartOffset:   10,
		EndOffset:     52,
		SequenceIndex: 1,
		OverlapLen:    4,
	}
	if err := ix.Add(chunk, meta, []float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	addChunk(t, ix, "doc#0000", []float32{1, 0, 0}, metadata.Metadata{})

	var buf bytes.Buffer
	if err := ix.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	restored, err := vectorindex.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	if restored.Len() != ix.Len() {
		t.Fatalf("restored %d records, want %d", restored.Len(), ix.Len())
	}

	var buf2 bytes.Buffer
	if err := restored.WriteTo(&buf2); err != nil {
		t.Fatalf("WriteTo() after restore error = %v", err)
	}
	if !bytes.Equal(buf.Bytes(), buf2.Bytes()) {
		t.Error("snapshot round trip is not byte-identical")
	}

	hits, err := restored.Search([]float32{0.1, 0.2, 0.3}, 1, vectorindex.Filter{Standards: []string{"SOC2"}})
	if err != nil {
		t.Fatalf("Search() on restored index error = %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk != chunk {
		t.Errorf("restored record differs: %+v", hits)
	}
}
