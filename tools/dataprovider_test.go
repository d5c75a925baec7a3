package tools

import (
	"io/fs"
	"testing"
)

func TestMockDataProvider_ReadFile(t *testing.T) {
	mock := NewMockDataProvider()
	mock.AddFile("data/docs/policy.md", []byte("# Policy\nContent."))

	content, err := mock.ReadFile("data/docs/policy.md")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(content) != "# Policy\nContent." {
		t.Errorf("ReadFile() = %q", string(content))
	}

	if _, err := mock.ReadFile("data/docs/missing.md"); err != fs.ErrNotExist {
		t.Errorf("ReadFile(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestMockDataProvider_ReadDir(t *testing.T) {
	mock := NewMockDataProvider()
	mock.AddFile("data/docs/two.txt", []byte("two"))
	mock.AddFile("data/docs/one.md", []byte("one"))
	mock.AddFile("data/standards/catalog.json", []byte("{}"))

	entries, err := mock.ReadDir("data/docs")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ReadDir() returned %d entries, want 2", len(entries))
	}
	// Sorted by name, files only.
	if entries[0].Name() != "one.md" || entries[1].Name() != "two.txt" {
		t.Errorf("entries = [%s %s], want sorted order", entries[0].Name(), entries[1].Name())
	}
	for _, e := range entries {
		if e.IsDir() {
			t.Errorf("entry %s reported as a directory", e.Name())
		}
	}

	if _, err := mock.ReadDir("data/missing"); err != fs.ErrNotExist {
		t.Errorf("ReadDir(missing) error = %v, want fs.ErrNotExist", err)
	}
	// Only direct children count; "data" itself holds no files.
	if _, err := mock.ReadDir("data"); err != fs.ErrNotExist {
		t.Errorf("ReadDir(data) error = %v, want fs.ErrNotExist", err)
	}
}

func TestMockDataProvider_SetAndReset(t *testing.T) {
	mock := NewMockDataProvider()
	mock.AddFile("data/standards/catalog.json", []byte(`{"standards":[]}`))

	originalProvider := defaultDataProvider
	defer func() {
		defaultDataProvider = originalProvider
	}()

	SetDefaultDataProvider(mock)

	content, err := defaultDataProvider.ReadFile("data/standards/catalog.json")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(content) != `{"standards":[]}` {
		t.Errorf("ReadFile() = %q", string(content))
	}

	ResetDefaultDataProvider()

	if defaultDataProvider == mock {
		t.Error("ResetDefaultDataProvider() left the mock installed")
	}
}
