// Package apperr holds the sentinel errors shared across memolink packages.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrRebuildInProgress = errors.New("index rebuild already in progress")
	ErrPathEscape        = errors.New("path escapes corpus root")
)
