package corpus

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadResult reports the outcome of a directory load. Failed documents are
// collected, not fatal: one unreadable file never aborts the corpus.
type LoadResult struct {
	Documents []Document
	Failed    []*IngestionError
}

// LoadDir walks a directory tree and loads every .md and .txt file as a
// Document. The document ID is the slash-separated path relative to root, so
// IDs are stable across machines and reloads. Files are returned in sorted
// path order.
func LoadDir(root string) (*LoadResult, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".md" || ext == ".txt" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	result := &LoadResult{}
	for _, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		data, err := os.ReadFile(path)
		if err != nil {
			ingErr := &IngestionError{SourceFile: rel, Reason: "read failed", Err: err}
			log.Printf("Warning: %v, skipping", ingErr)
			result.Failed = append(result.Failed, ingErr)
			continue
		}

		doc, err := NewDocument(rel, string(data), rel)
		if err != nil {
			ingErr, ok := err.(*IngestionError)
			if !ok {
				ingErr = &IngestionError{SourceFile: rel, Reason: err.Error()}
			}
			log.Printf("Warning: %v, skipping", ingErr)
			result.Failed = append(result.Failed, ingErr)
			continue
		}
		result.Documents = append(result.Documents, doc)
	}

	return result, nil
}
