// Package tags maintains the in-memory tag index: tag to documents, plus a
// per-document cache of the tags, title and modification time last seen.
package tags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/starford/memolink/internal/apperr"
	"github.com/starford/memolink/internal/buildstate"
	"github.com/starford/memolink/internal/corpus"
	"github.com/starford/memolink/internal/models"
	"github.com/starford/memolink/internal/parser"
	"github.com/starford/memolink/internal/storage"
)

// Mode selects how GetMemosByTags combines several tags.
type Mode string

const (
	ModeAnd Mode = "and"
	ModeOr  Mode = "or"
)

// ParseMode accepts "and" or "or" in any case. Empty means ModeOr.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAnd:
		return ModeAnd, nil
	case ModeOr, "":
		return ModeOr, nil
	default:
		return "", fmt.Errorf("tags: unknown mode %q", s)
	}
}

// Index maps tags to the documents carrying them. Documents without tags
// are not indexed.
type Index struct {
	store    storage.Store
	provider corpus.Provider
	logger   *slog.Logger
	guard    buildstate.Guard

	mu      sync.RWMutex
	scanner *parser.Scanner
	byTag   map[string]map[string]struct{} // tag -> document keys
	docs    map[string]models.Memo         // document key -> cached memo
}

// New creates an empty tag index. Call BuildIndex to populate it.
func New(store storage.Store, provider corpus.Provider, logger *slog.Logger) (*Index, error) {
	cfg, err := provider.Load()
	if err != nil {
		return nil, fmt.Errorf("tags: load corpus config: %w", err)
	}
	return &Index{
		store:    store,
		provider: provider,
		logger:   logger,
		scanner:  cfg.Scanner(),
		byTag:    make(map[string]map[string]struct{}),
		docs:     make(map[string]models.Memo),
	}, nil
}

// Phase reports whether a rebuild is running.
func (ix *Index) Phase() buildstate.Phase {
	return ix.guard.Phase()
}

// BuildIndex clears both maps and repopulates them from the corpus. A call
// made while another build is running returns apperr.ErrRebuildInProgress.
func (ix *Index) BuildIndex(ctx context.Context) error {
	if err := ix.guard.Begin(); err != nil {
		ix.logger.Warn("tags: rebuild rejected", slog.String("error", err.Error()))
		return err
	}
	defer ix.guard.End()

	cfg, err := ix.provider.Load()
	if err != nil {
		return fmt.Errorf("tags: load corpus config: %w", err)
	}
	scanner := cfg.Scanner()

	byTag := make(map[string]map[string]struct{})
	docs := make(map[string]models.Memo)
	err = corpus.Walk(ctx, ix.store, cfg, ix.logger, func(path string, info storage.Info) {
		text, err := ix.store.ReadText(path)
		if err != nil {
			ix.logger.Warn("tags: read failed", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		memo, ok := memoFrom(scanner, path, text, info)
		if !ok {
			return
		}
		insert(byTag, docs, memo)
	})
	if err != nil {
		return fmt.Errorf("tags: build: %w", err)
	}

	ix.mu.Lock()
	ix.scanner = scanner
	ix.byTag = byTag
	ix.docs = docs
	ix.mu.Unlock()

	ix.logger.Info("tags: index built", slog.Int("tags", len(byTag)), slog.Int("documents", len(docs)))
	return nil
}

func memoFrom(scanner *parser.Scanner, path, text string, info storage.Info) (models.Memo, bool) {
	res := scanner.Scan(path, text)
	var tags []string
	for _, t := range res.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return models.Memo{}, false
	}
	return models.Memo{Path: path, Title: res.Title, Tags: tags, LastModified: info.LastModified}, true
}

func insert(byTag map[string]map[string]struct{}, docs map[string]models.Memo, memo models.Memo) {
	key := corpus.Key(memo.Path)
	docs[key] = memo
	for _, t := range memo.Tags {
		set, ok := byTag[t]
		if !ok {
			set = make(map[string]struct{})
			byTag[t] = set
		}
		set[key] = struct{}{}
	}
}

// GetAllTags returns every tag with its document count, by count descending
// then tag ascending.
func (ix *Index) GetAllTags() []models.TagCount {
	ix.mu.RLock()
	out := make([]models.TagCount, 0, len(ix.byTag))
	for tag, set := range ix.byTag {
		out = append(out, models.TagCount{Tag: tag, Count: len(set)})
	}
	ix.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// GetMemosByTag returns documents carrying tag, most recently modified first.
func (ix *Index) GetMemosByTag(tag string) []models.Memo {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.memosLocked(ix.byTag[tag])
}

// GetMemosByTags combines the document sets of tags by intersection (ModeAnd)
// or union (anything else).
func (ix *Index) GetMemosByTags(tags []string, mode Mode) []models.Memo {
	if len(tags) == 0 {
		return []models.Memo{}
	}
	if len(tags) == 1 {
		return ix.GetMemosByTag(tags[0])
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	result := make(map[string]struct{})
	for k := range ix.byTag[tags[0]] {
		result[k] = struct{}{}
	}
	for _, tag := range tags[1:] {
		set := ix.byTag[tag]
		if mode == ModeAnd {
			for k := range result {
				if _, ok := set[k]; !ok {
					delete(result, k)
				}
			}
			continue
		}
		for k := range set {
			result[k] = struct{}{}
		}
	}
	return ix.memosLocked(result)
}

func (ix *Index) memosLocked(keys map[string]struct{}) []models.Memo {
	out := make([]models.Memo, 0, len(keys))
	for k := range keys {
		if m, ok := ix.docs[k]; ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].LastModified.After(out[j].LastModified)
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Memo returns the cached entry for path.
func (ix *Index) Memo(path string) (models.Memo, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	m, ok := ix.docs[corpus.Key(path)]
	return m, ok
}

// UpdateFile drops the prior tag associations of path, then re-scans it and
// re-inserts when it still carries tags. Queued while a rebuild runs.
func (ix *Index) UpdateFile(path string) {
	ix.guard.Do(func() { ix.updateFile(path) })
}

func (ix *Index) updateFile(path string) {
	var (
		memo models.Memo
		ok   bool
	)
	text, err := ix.store.ReadText(path)
	if err == nil {
		var info storage.Info
		info, err = ix.store.Stat(path)
		if err == nil {
			ix.mu.RLock()
			scanner := ix.scanner
			ix.mu.RUnlock()
			memo, ok = memoFrom(scanner, path, text, info)
		}
	}
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		ix.logger.Warn("tags: update read failed", slog.String("path", path), slog.String("error", err.Error()))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(corpus.Key(path))
	if ok {
		insert(ix.byTag, ix.docs, memo)
	}
}

// RemoveFile drops every tag association of path. Queued while a rebuild runs.
func (ix *Index) RemoveFile(path string) {
	ix.guard.Do(func() {
		ix.mu.Lock()
		defer ix.mu.Unlock()
		ix.removeLocked(corpus.Key(path))
	})
}

func (ix *Index) removeLocked(key string) {
	prior, ok := ix.docs[key]
	if !ok {
		return
	}
	for _, t := range prior.Tags {
		set := ix.byTag[t]
		delete(set, key)
		if len(set) == 0 {
			delete(ix.byTag, t)
		}
	}
	delete(ix.docs, key)
}

// Snapshot returns every cached memo ordered by path.
func (ix *Index) Snapshot() []models.Memo {
	ix.mu.RLock()
	out := make([]models.Memo, 0, len(ix.docs))
	for _, m := range ix.docs {
		out = append(out, m)
	}
	ix.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
