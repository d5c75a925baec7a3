// Package corpus defines the document model and the ingestion boundary for
// the compliance policy corpus.
package corpus

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Document is an immutable input to the indexing pipeline.
type Document struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	SourceFile string `json:"source_file"`
}

// IngestionError reports a document that could not be ingested. Callers skip
// the document and keep processing the rest of the corpus.
type IngestionError struct {
	SourceFile string
	Reason     string
	Err        error
}

func (e *IngestionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest %s: %s: %v", e.SourceFile, e.Reason, e.Err)
	}
	return fmt.Sprintf("ingest %s: %s", e.SourceFile, e.Reason)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// NewDocument builds a Document from the loader-facing tuple. An empty id is
// replaced with a generated one so external loaders are not forced to invent
// identifiers. Text that is not valid UTF-8 is rejected: a partially decoded
// document would silently lose content during chunking.
func NewDocument(id, text, sourceFile string) (Document, error) {
	if !utf8.ValidString(text) {
		return Document{}, &IngestionError{SourceFile: sourceFile, Reason: "text is not valid UTF-8"}
	}
	if id == "" {
		id = uuid.New().String()
	}
	return Document{ID: id, Text: text, SourceFile: sourceFile}, nil
}
