// Package memoservice ties the store, both indexes, the rewriter and the
// graph projector into one query/command surface and publishes change events.
package memoservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/memolink/internal/backlinks"
	"github.com/starford/memolink/internal/buildstate"
	"github.com/starford/memolink/internal/corpus"
	"github.com/starford/memolink/internal/events"
	"github.com/starford/memolink/internal/graph"
	"github.com/starford/memolink/internal/models"
	"github.com/starford/memolink/internal/rewriter"
	"github.com/starford/memolink/internal/storage"
	"github.com/starford/memolink/internal/tags"
)

// Snapshot is a point-in-time copy of the derived index.
type Snapshot struct {
	Documents []string
	Links     []models.Link
	Memos     []models.Memo
	TakenAt   time.Time
}

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	provider corpus.Provider
	sink     events.Sink
	logger   *slog.Logger

	backlinks *backlinks.Index
	tags      *tags.Index
	rewriter  *rewriter.Rewriter
	graph     *graph.Projector
}

// New wires the engine. The indexes start empty; call Rebuild.
func New(store storage.Provider, provider corpus.Provider, sink events.Sink, logger *slog.Logger) (*Service, error) {
	if sink == nil {
		sink = events.Discard
	}
	bl, err := backlinks.New(store, provider, logger)
	if err != nil {
		return nil, err
	}
	tg, err := tags.New(store, provider, logger)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:     store,
		provider:  provider,
		sink:      sink,
		logger:    logger,
		backlinks: bl,
		tags:      tg,
		rewriter:  rewriter.New(store, bl, provider, logger),
		graph:     graph.New(store, bl, provider, logger),
	}, nil
}

// Abs maps a path relative to the corpus root to an absolute one.
func (s *Service) Abs(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.store.Root(), filepath.FromSlash(path))
}

// Rel maps an absolute corpus path to a slash-separated root-relative one.
func (s *Service) Rel(path string) string {
	rel, err := filepath.Rel(s.store.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// IsDocument reports whether path has a corpus document extension.
func (s *Service) IsDocument(path string) bool {
	return s.backlinks.Config().Scanner().HasExtension(path)
}

// Ready reports whether neither index is in the middle of a rebuild.
func (s *Service) Ready() bool {
	return s.backlinks.Phase() == buildstate.Idle && s.tags.Phase() == buildstate.Idle
}

func (s *Service) publish(kind events.Kind, path, oldPath string) {
	s.sink.Publish(events.Event{Kind: kind, Path: path, OldPath: oldPath, At: time.Now()})
}

// Rebuild rebuilds both indexes one after the other.
func (s *Service) Rebuild(ctx context.Context) error {
	start := time.Now()
	var errs []error
	if err := s.backlinks.BuildIndex(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.tags.BuildIndex(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("memoservice: rebuild: %w", err)
	}
	s.logger.Info("memoservice: rebuild complete", slog.Duration("took", time.Since(start)))
	s.publish(events.IndexRebuilt, "", "")
	return nil
}

// DocumentChanged re-indexes path after a create or edit.
func (s *Service) DocumentChanged(path string, created bool) {
	path = s.Abs(path)
	s.backlinks.UpdateFileBacklinks(path)
	s.tags.UpdateFile(path)
	kind := events.Updated
	if created {
		kind = events.Created
	}
	s.publish(kind, s.Rel(path), "")
}

// DocumentRemoved forgets path in both indexes.
func (s *Service) DocumentRemoved(path string) {
	path = s.Abs(path)
	s.backlinks.RemoveFileFromIndex(path)
	s.tags.RemoveFile(path)
	s.publish(events.Deleted, s.Rel(path), "")
}

// DeleteDocument removes path from the store and both indexes. Links that
// pointed at it are left as they are and become dangling.
func (s *Service) DeleteDocument(path string) error {
	path = s.Abs(path)
	if !s.IsDocument(path) {
		return fmt.Errorf("memoservice: delete: %s is not a document path", s.Rel(path))
	}
	if err := s.store.Delete(path); err != nil {
		return fmt.Errorf("memoservice: delete: %w", err)
	}
	s.DocumentRemoved(path)
	return nil
}

// RenameDocument moves oldPath to newPath in the store, then propagates.
func (s *Service) RenameDocument(ctx context.Context, oldPath, newPath string) (models.RenameResult, error) {
	oldPath, newPath = s.Abs(oldPath), s.Abs(newPath)
	if !s.IsDocument(newPath) {
		return models.RenameResult{Errors: []string{}}, fmt.Errorf("memoservice: rename: %s is not a document path", s.Rel(newPath))
	}
	if err := s.store.Move(oldPath, newPath); err != nil {
		return models.RenameResult{Errors: []string{}}, fmt.Errorf("memoservice: rename: %w", err)
	}
	return s.HandleRename(ctx, oldPath, newPath)
}

// HandleRename propagates a rename that already happened in the store.
func (s *Service) HandleRename(ctx context.Context, oldPath, newPath string) (models.RenameResult, error) {
	oldPath, newPath = s.Abs(oldPath), s.Abs(newPath)
	res, err := s.rewriter.UpdateLinksAfterRename(ctx, oldPath, newPath)
	if err != nil {
		return res, err
	}
	s.tags.RemoveFile(oldPath)
	s.tags.UpdateFile(newPath)
	s.publish(events.Renamed, s.Rel(newPath), s.Rel(oldPath))
	return res, nil
}

// GetBacklinks returns links pointing at target.
func (s *Service) GetBacklinks(target string) []models.Link {
	return s.backlinks.GetBacklinks(s.Abs(target))
}

// GetOutboundLinks returns the links written in source.
func (s *Service) GetOutboundLinks(source string) []models.Link {
	return s.backlinks.GetOutboundLinks(s.Abs(source))
}

// GetOrphanedFiles returns documents with no links in or out.
func (s *Service) GetOrphanedFiles(ctx context.Context) ([]string, error) {
	return s.backlinks.GetOrphanedFiles(ctx)
}

// GetLinkStatistics summarises the backlink index.
func (s *Service) GetLinkStatistics() models.LinkStatistics {
	return s.backlinks.GetLinkStatistics()
}

// GetAllTags lists tags by count.
func (s *Service) GetAllTags() []models.TagCount {
	return s.tags.GetAllTags()
}

// GetMemosByTag lists documents carrying tag.
func (s *Service) GetMemosByTag(tag string) []models.Memo {
	return s.tags.GetMemosByTag(tag)
}

// GetMemosByTags combines several tags.
func (s *Service) GetMemosByTags(list []string, mode tags.Mode) []models.Memo {
	return s.tags.GetMemosByTags(list, mode)
}

// GenerateGraphData projects the index for a graph view.
func (s *Service) GenerateGraphData(ctx context.Context, mode models.GraphMode, active string) (models.GraphData, error) {
	return s.graph.GenerateGraphData(ctx, mode, s.Abs(active))
}

// UpdateLinksAfterRename rewrites links after an external rename without
// touching the tag index.
func (s *Service) UpdateLinksAfterRename(ctx context.Context, oldPath, newPath string) (models.RenameResult, error) {
	return s.rewriter.UpdateLinksAfterRename(ctx, s.Abs(oldPath), s.Abs(newPath))
}

// FindFilesWithLinksTo lists documents linking to target.
func (s *Service) FindFilesWithLinksTo(ctx context.Context, target string) ([]string, error) {
	return s.rewriter.FindFilesWithLinksTo(ctx, s.Abs(target))
}

// Snapshot copies the current index state.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	docs, err := corpus.Documents(ctx, s.store, s.backlinks.Config(), s.logger)
	if err != nil {
		return Snapshot{}, fmt.Errorf("memoservice: snapshot: %w", err)
	}
	return Snapshot{
		Documents: docs,
		Links:     s.backlinks.Snapshot(),
		Memos:     s.tags.Snapshot(),
		TakenAt:   time.Now(),
	}, nil
}
