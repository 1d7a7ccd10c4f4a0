// Package testutil provides shared test helpers for setting up corpora.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/memolink/internal/corpus"
	"github.com/starford/memolink/internal/storage"
)

// TestCorpus creates a temporary corpus directory holding files (relative
// path to content) and returns its root with a storage provider over it.
func TestCorpus(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		WriteFile(t, store.Root(), name, content)
	}
	return store.Root(), store
}

// WriteFile writes content to root/name, creating parent directories.
func WriteFile(t *testing.T, root, name, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// ReadFile returns the content of root/name.
func ReadFile(t *testing.T, root, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// Config returns the default markdown corpus configuration for root.
func Config(root string) corpus.Config {
	return corpus.Config{Root: root, Extensions: []string{".md"}, Scheme: "memo", SkipHidden: true}
}

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
