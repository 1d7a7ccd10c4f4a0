// Package backlinks maintains the in-memory map from target document to the
// links pointing at it.
package backlinks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/starford/memolink/internal/apperr"
	"github.com/starford/memolink/internal/buildstate"
	"github.com/starford/memolink/internal/checksum"
	"github.com/starford/memolink/internal/corpus"
	"github.com/starford/memolink/internal/models"
	"github.com/starford/memolink/internal/parser"
	"github.com/starford/memolink/internal/storage"
)

const (
	// mostLinkedLimit bounds LinkStatistics.MostLinkedFiles.
	mostLinkedLimit = 10
	// outboundMemoSize bounds the number of scan results kept for GetOutboundLinks.
	outboundMemoSize = 512
)

type outboundEntry struct {
	sum   string
	links []models.Link
}

// Index maps normalized target paths to the links that point at them.
// Keys keep first-insertion order; every key has at least one link.
type Index struct {
	store    storage.Store
	provider corpus.Provider
	logger   *slog.Logger
	guard    buildstate.Guard

	mu      sync.RWMutex
	cfg     corpus.Config
	scanner *parser.Scanner
	targets *orderedmap.OrderedMap[string, []models.Link]

	outbound *lru.Cache[string, outboundEntry]
}

// New creates an empty index. Call BuildIndex to populate it.
func New(store storage.Store, provider corpus.Provider, logger *slog.Logger) (*Index, error) {
	cfg, err := provider.Load()
	if err != nil {
		return nil, fmt.Errorf("backlinks: load corpus config: %w", err)
	}
	memo, err := lru.New[string, outboundEntry](outboundMemoSize)
	if err != nil {
		return nil, fmt.Errorf("backlinks: create outbound memo: %w", err)
	}
	return &Index{
		store:    store,
		provider: provider,
		logger:   logger,
		cfg:      cfg,
		scanner:  cfg.Scanner(),
		targets:  orderedmap.New[string, []models.Link](),
		outbound: memo,
	}, nil
}

// Phase reports whether a rebuild is running.
func (ix *Index) Phase() buildstate.Phase {
	return ix.guard.Phase()
}

// Config returns the corpus configuration of the last build.
func (ix *Index) Config() corpus.Config {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.cfg
}

// BuildIndex clears the index and repopulates it by walking the corpus.
// Per-document failures are logged and skipped. A call made while another
// build is running returns apperr.ErrRebuildInProgress and changes nothing.
func (ix *Index) BuildIndex(ctx context.Context) error {
	if err := ix.guard.Begin(); err != nil {
		ix.logger.Warn("backlinks: rebuild rejected", slog.String("error", err.Error()))
		return err
	}
	defer ix.guard.End()

	cfg, err := ix.provider.Load()
	if err != nil {
		return fmt.Errorf("backlinks: load corpus config: %w", err)
	}
	scanner := cfg.Scanner()

	fresh := orderedmap.New[string, []models.Link]()
	docs, links := 0, 0
	err = corpus.Walk(ctx, ix.store, cfg, ix.logger, func(path string, _ storage.Info) {
		text, err := ix.store.ReadText(path)
		if err != nil {
			ix.logger.Warn("backlinks: read failed", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		docs++
		for _, l := range scanner.Scan(path, text).Links {
			appendLink(fresh, l)
			links++
		}
	})
	if err != nil {
		return fmt.Errorf("backlinks: build: %w", err)
	}

	ix.mu.Lock()
	ix.cfg = cfg
	ix.scanner = scanner
	ix.targets = fresh
	ix.mu.Unlock()
	ix.outbound.Purge()

	ix.logger.Info("backlinks: index built",
		slog.Int("documents", docs),
		slog.Int("targets", fresh.Len()),
		slog.Int("links", links))
	return nil
}

func appendLink(m *orderedmap.OrderedMap[string, []models.Link], l models.Link) {
	key := corpus.Key(l.Target)
	existing, _ := m.Get(key)
	m.Set(key, append(existing, l))
}

// GetBacklinks returns the links pointing at target, in scan order.
func (ix *Index) GetBacklinks(target string) []models.Link {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	links, _ := ix.targets.Get(corpus.Key(target))
	return append([]models.Link(nil), links...)
}

// GetOutboundLinks reads and scans source now. A missing document has no links.
func (ix *Index) GetOutboundLinks(source string) []models.Link {
	text, err := ix.store.ReadText(source)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			ix.logger.Warn("backlinks: outbound read failed", slog.String("path", source), slog.String("error", err.Error()))
		}
		return nil
	}

	sum := checksum.SumString(text)
	if entry, ok := ix.outbound.Get(source); ok && entry.sum == sum {
		return append([]models.Link(nil), entry.links...)
	}

	ix.mu.RLock()
	scanner := ix.scanner
	ix.mu.RUnlock()

	links := scanner.Scan(source, text).Links
	ix.outbound.Add(source, outboundEntry{sum: sum, links: links})
	return append([]models.Link(nil), links...)
}

// UpdateFileBacklinks drops every link whose source is path, then re-scans
// path if it still exists. While a rebuild runs the update is queued.
func (ix *Index) UpdateFileBacklinks(path string) {
	ix.guard.Do(func() { ix.updateFile(path) })
}

func (ix *Index) updateFile(path string) {
	text, err := ix.store.ReadText(path)
	exists := err == nil
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		ix.logger.Warn("backlinks: update read failed", slog.String("path", path), slog.String("error", err.Error()))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeSourceLocked(corpus.Key(path))
	if !exists {
		return
	}
	for _, l := range ix.scanner.Scan(path, text).Links {
		appendLink(ix.targets, l)
	}
}

// RemoveFileFromIndex forgets path both as a target and as a source.
func (ix *Index) RemoveFileFromIndex(path string) {
	ix.guard.Do(func() {
		key := corpus.Key(path)
		ix.mu.Lock()
		defer ix.mu.Unlock()
		ix.targets.Delete(key)
		ix.removeSourceLocked(key)
		ix.outbound.Remove(path)
	})
}

// removeSourceLocked strips links whose source has the given key and prunes
// emptied targets. Caller holds ix.mu for write.
func (ix *Index) removeSourceLocked(sourceKey string) {
	var emptied []string
	for pair := ix.targets.Oldest(); pair != nil; pair = pair.Next() {
		kept := pair.Value[:0:0]
		for _, l := range pair.Value {
			if corpus.Key(l.SourceDocument) != sourceKey {
				kept = append(kept, l)
			}
		}
		if len(kept) == len(pair.Value) {
			continue
		}
		if len(kept) == 0 {
			emptied = append(emptied, pair.Key)
			continue
		}
		pair.Value = kept
	}
	for _, k := range emptied {
		ix.targets.Delete(k)
	}
}

// GetOrphanedFiles returns corpus documents that are neither linked to nor
// link to anything, in walk order.
func (ix *Index) GetOrphanedFiles(ctx context.Context) ([]string, error) {
	cfg := ix.Config()
	docs, err := corpus.Documents(ctx, ix.store, cfg, ix.logger)
	if err != nil {
		return nil, fmt.Errorf("backlinks: orphans: %w", err)
	}

	ix.mu.RLock()
	sources := make(map[string]struct{})
	for pair := ix.targets.Oldest(); pair != nil; pair = pair.Next() {
		for _, l := range pair.Value {
			sources[corpus.Key(l.SourceDocument)] = struct{}{}
		}
	}
	var orphans []string
	for _, doc := range docs {
		key := corpus.Key(doc)
		if _, ok := ix.targets.Get(key); ok {
			continue
		}
		if _, ok := sources[key]; ok {
			continue
		}
		orphans = append(orphans, doc)
	}
	ix.mu.RUnlock()
	return orphans, nil
}

// GetLinkStatistics summarises the index. MostLinkedFiles holds the ten
// targets with most links; ties keep first-encountered order.
func (ix *Index) GetLinkStatistics() models.LinkStatistics {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	stats := models.LinkStatistics{MostLinkedFiles: []models.FileLinkCount{}}
	counts := make([]models.FileLinkCount, 0, ix.targets.Len())
	for pair := ix.targets.Oldest(); pair != nil; pair = pair.Next() {
		n := len(pair.Value)
		stats.TotalLinks += n
		counts = append(counts, models.FileLinkCount{Path: pair.Value[0].Target, Count: n})
	}
	stats.TotalFiles = len(counts)
	if stats.TotalFiles > 0 {
		stats.AverageLinksPerFile = float64(stats.TotalLinks) / float64(stats.TotalFiles)
	}

	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	if len(counts) > mostLinkedLimit {
		counts = counts[:mostLinkedLimit]
	}
	stats.MostLinkedFiles = append(stats.MostLinkedFiles, counts...)
	return stats
}

// Snapshot returns every indexed link grouped by target in key order.
func (ix *Index) Snapshot() []models.Link {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []models.Link
	for pair := ix.targets.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value...)
	}
	return out
}
