package tools

import (
	"context"
	"sync/atomic"

	"github.com/policyrag/mcp-server/internal/ingest"
	"github.com/policyrag/mcp-server/internal/retrieval"
)

// mockEngine is a simple in-memory mock of the SearchEngine interface for
// exercising the engine holder lifecycle.
type mockEngine struct {
	id       int
	result   *retrieval.Result
	stats    ingest.Stats
	closed   atomic.Bool
	closedCh chan struct{}
}

// newMockEngine creates a new mock engine with the given ID
func newMockEngine(id int) *mockEngine {
	return &mockEngine{
		id:       id,
		result:   &retrieval.Result{},
		closedCh: make(chan struct{}),
	}
}

func (m *mockEngine) Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error) {
	return m.result, nil
}

func (m *mockEngine) Stats() ingest.Stats { return m.stats }

func (m *mockEngine) FailedDocuments() []string { return nil }

func (m *mockEngine) Close() error {
	if m.closed.CompareAndSwap(false, true) {
		close(m.closedCh)
	}
	return nil
}
