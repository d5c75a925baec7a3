package tools

import (
	"io/fs"
	"path"
	"sort"
	"time"
)

// MockDataProvider is an in-memory DataProvider for tests. The embedded data
// layout is flat (data/docs and data/standards hold files, never subtrees),
// so the mock only supports listing files directly under a directory.
type MockDataProvider struct {
	files map[string][]byte
}

// NewMockDataProvider creates an empty mock provider.
func NewMockDataProvider() *MockDataProvider {
	return &MockDataProvider{
		files: make(map[string][]byte),
	}
}

// AddFile registers a file under its full embedded path, for example
// "data/docs/s3-storage.md" or "data/standards/catalog.json".
func (m *MockDataProvider) AddFile(name string, content []byte) {
	m.files[name] = content
}

// ReadFile returns the registered content for the path.
func (m *MockDataProvider) ReadFile(name string) ([]byte, error) {
	content, exists := m.files[name]
	if !exists {
		return nil, fs.ErrNotExist
	}
	return content, nil
}

// ReadDir lists the files registered directly under the directory, sorted by
// name so corpus loading stays deterministic.
func (m *MockDataProvider) ReadDir(name string) ([]fs.DirEntry, error) {
	var names []string
	for p := range m.files {
		if path.Dir(p) == name {
			names = append(names, path.Base(p))
		}
	}
	if len(names) == 0 {
		return nil, fs.ErrNotExist
	}
	sort.Strings(names)

	entries := make([]fs.DirEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, mockDirEntry{name: n})
	}
	return entries, nil
}

// mockDirEntry is always a regular file; the mock has no directory entries to
// report.
type mockDirEntry struct {
	name string
}

func (e mockDirEntry) Name() string               { return e.name }
func (e mockDirEntry) IsDir() bool                { return false }
func (e mockDirEntry) Type() fs.FileMode          { return 0 }
func (e mockDirEntry) Info() (fs.FileInfo, error) { return mockFileInfo{name: e.name}, nil }

type mockFileInfo struct {
	name string
}

func (i mockFileInfo) Name() string       { return i.name }
func (i mockFileInfo) Size() int64        { return 0 }
func (i mockFileInfo) Mode() fs.FileMode  { return 0 }
func (i mockFileInfo) ModTime() time.Time { return time.Time{} }
func (i mockFileInfo) IsDir() bool        { return false }
func (i mockFileInfo) Sys() any           { return nil }

// SetDefaultDataProvider swaps the package data provider, so tests can serve
// a synthetic corpus and standards catalog.
func SetDefaultDataProvider(provider DataProvider) {
	defaultDataProvider = provider
}

// ResetDefaultDataProvider restores the provider backed by embedded data.
func ResetDefaultDataProvider() {
	defaultDataProvider = NewEmbeddedDataProvider()
}
