// Package storage defines the document store abstraction over the corpus.
package storage

import "time"

// Info is the subset of file metadata the indexes need.
type Info struct {
	LastModified time.Time
	IsDir        bool
}

// Store is the read/write contract the indexing engine consumes.
// Paths are absolute or relative to the store root.
type Store interface {
	// Exists reports whether a file or directory exists at path.
	Exists(path string) bool
	// ReadText returns the content of path; a missing file yields apperr.ErrNotFound.
	ReadText(path string) (string, error)
	// WriteText atomically replaces the content of path.
	WriteText(path, text string) error
	// ListDirectory returns the sorted entry names of the directory at path.
	ListDirectory(path string) ([]string, error)
	// Stat returns metadata for path.
	Stat(path string) (Info, error)
}

// Provider is a Store that can also delete and move documents.
type Provider interface {
	Store
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath, creating parent directories.
	Move(oldPath, newPath string) error
	// Root returns the absolute root directory.
	Root() string
}
