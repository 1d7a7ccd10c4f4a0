// Package rewriter propagates a document rename to every link that points
// at the old path.
package rewriter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/starford/memolink/internal/corpus"
	"github.com/starford/memolink/internal/models"
	"github.com/starford/memolink/internal/parser"
	"github.com/starford/memolink/internal/storage"
)

// BacklinkIndex is the part of the backlink index the rewriter consults and
// refreshes.
type BacklinkIndex interface {
	GetBacklinks(target string) []models.Link
	RemoveFileFromIndex(path string)
	UpdateFileBacklinks(path string)
}

// Rewriter rewrites link targets after renames. Renames run one at a time.
type Rewriter struct {
	store    storage.Store
	index    BacklinkIndex
	provider corpus.Provider
	logger   *slog.Logger
	sem      *semaphore.Weighted
}

// New creates a Rewriter.
func New(store storage.Store, index BacklinkIndex, provider corpus.Provider, logger *slog.Logger) *Rewriter {
	return &Rewriter{
		store:    store,
		index:    index,
		provider: provider,
		logger:   logger,
		sem:      semaphore.NewWeighted(1),
	}
}

// FindFilesWithLinksTo returns the documents linking to target. The index is
// asked first; when it knows of none, every corpus document is scanned.
func (r *Rewriter) FindFilesWithLinksTo(ctx context.Context, target string) ([]string, error) {
	cfg, err := r.provider.Load()
	if err != nil {
		return nil, fmt.Errorf("rewriter: load corpus config: %w", err)
	}
	return r.findFiles(ctx, cfg, target)
}

func (r *Rewriter) findFiles(ctx context.Context, cfg corpus.Config, target string) ([]string, error) {
	want := corpus.Key(target)
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		k := corpus.Key(p)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}

	for _, l := range r.index.GetBacklinks(target) {
		add(l.SourceDocument)
	}
	if len(out) > 0 {
		return out, nil
	}

	scanner := cfg.Scanner()
	err := corpus.Walk(ctx, r.store, cfg, r.logger, func(path string, _ storage.Info) {
		text, err := r.store.ReadText(path)
		if err != nil {
			r.logger.Warn("rewriter: scan read failed", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		for _, l := range scanner.Scan(path, text).Links {
			if corpus.Key(l.Target) == want {
				add(path)
				return
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("rewriter: scan corpus: %w", err)
	}
	r.logger.Debug("rewriter: fallback scan", slog.String("target", target), slog.Int("matches", len(out)))
	return out, nil
}

// UpdateLinksAfterRename rewrites every link resolving to oldPath so it
// points at newPath, then refreshes the backlink index. Per-document
// failures are collected in the result; the returned error is set only when
// the rename could not start.
func (r *Rewriter) UpdateLinksAfterRename(ctx context.Context, oldPath, newPath string) (models.RenameResult, error) {
	result := models.RenameResult{Errors: []string{}}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return result, fmt.Errorf("rewriter: acquire: %w", err)
	}
	defer r.sem.Release(1)

	cfg, err := r.provider.Load()
	if err != nil {
		return result, fmt.Errorf("rewriter: load corpus config: %w", err)
	}
	docs, err := r.findFiles(ctx, cfg, oldPath)
	if err != nil {
		return result, err
	}

	rw := renamer{
		scanner: cfg.Scanner(),
		baseDir: cfg.Root,
		oldKey:  corpus.Key(oldPath),
		newPath: newPath,
		oldBase: filepath.Base(oldPath),
		newBase: filepath.Base(newPath),
	}

	var touched []string
	for _, doc := range docs {
		// A document linking to itself has moved along with the rename.
		location := doc
		if corpus.Key(doc) == rw.oldKey {
			location = newPath
		}
		text, err := r.store.ReadText(location)
		if err != nil {
			r.logger.Warn("rewriter: read failed", slog.String("path", location), slog.String("error", err.Error()))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", location, err))
			continue
		}
		updated, n := rw.rewrite(text, doc, location)
		if n == 0 {
			continue
		}
		if err := r.store.WriteText(location, updated); err != nil {
			r.logger.Warn("rewriter: write failed", slog.String("path", location), slog.String("error", err.Error()))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", location, err))
			continue
		}
		result.FilesUpdated++
		result.LinksUpdated += n
		touched = append(touched, location)
	}

	r.index.RemoveFileFromIndex(oldPath)
	for _, p := range touched {
		r.index.UpdateFileBacklinks(p)
	}
	r.index.UpdateFileBacklinks(newPath)

	r.logger.Info("rewriter: links updated",
		slog.String("old_path", oldPath),
		slog.String("new_path", newPath),
		slog.Int("files", result.FilesUpdated),
		slog.Int("links", result.LinksUpdated),
		slog.Int("errors", len(result.Errors)))
	return result, nil
}

type renamer struct {
	scanner *parser.Scanner
	baseDir string
	oldKey  string
	newPath string
	oldBase string
	newBase string
}

type edit struct {
	start, end int
	repl       string
}

// rewrite replaces the targets of links in text that resolve to the old
// path. Links are resolved as written in source and re-encoded from location.
func (rw renamer) rewrite(text, source, location string) (string, int) {
	var edits []edit
	links := 0
	parser.EachLink(text, func(o parser.Occurrence) bool {
		target, abs, ok := rw.scanner.ResolveTarget(source, o.RawTarget)
		if !ok || corpus.Key(abs) != rw.oldKey {
			return true
		}
		if label, ok := rw.relabel(o.Text); ok {
			edits = append(edits, edit{start: o.TextStart, end: o.TextEnd, repl: label})
		}
		raw := target.Resolver.Encode(location, rw.newPath, rw.baseDir, target.Path) + target.Fragment
		edits = append(edits, edit{start: o.TargetStart, end: o.TargetEnd, repl: raw})
		links++
		return true
	})
	if len(edits) == 0 {
		return text, 0
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, e := range edits {
		b.WriteString(text[last:e.start])
		b.WriteString(e.repl)
		last = e.end
	}
	b.WriteString(text[last:])
	return b.String(), links
}

// relabel maps link text equal to the old base name (with or without
// extension) to the new base name in the same form.
func (rw renamer) relabel(label string) (string, bool) {
	if label == rw.oldBase {
		return rw.newBase, true
	}
	oldStem := strings.TrimSuffix(rw.oldBase, filepath.Ext(rw.oldBase))
	if label == oldStem {
		return strings.TrimSuffix(rw.newBase, filepath.Ext(rw.newBase)), true
	}
	return "", false
}
