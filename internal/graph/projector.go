// Package graph projects the link index onto bounded node/edge sets.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/memolink/internal/corpus"
	"github.com/starford/memolink/internal/models"
	"github.com/starford/memolink/internal/storage"
)

const (
	minNodeSize    = 20
	maxNodeSize    = 50
	sizePerLink    = 3
	hubConnections = 5
)

// Node colors.
const (
	ColorActive    = "#e8590c"
	ColorIsolated  = "#adb5bd"
	ColorConnected = "#4dabf7"
	ColorHub       = "#7950f2"
)

// LinkSource answers backlink and outbound link queries.
type LinkSource interface {
	GetBacklinks(target string) []models.Link
	GetOutboundLinks(source string) []models.Link
}

// Projector builds graph views over the corpus.
type Projector struct {
	store    storage.Store
	links    LinkSource
	provider corpus.Provider
	logger   *slog.Logger
}

// New creates a Projector.
func New(store storage.Store, links LinkSource, provider corpus.Provider, logger *slog.Logger) *Projector {
	return &Projector{store: store, links: links, provider: provider, logger: logger}
}

// NodeSize maps a connection count to a node size in [20, 50].
func NodeSize(connections int) int {
	return min(max(minNodeSize+sizePerLink*connections, minNodeSize), maxNodeSize)
}

// NodeColor picks the node color. The active document always gets ColorActive.
func NodeColor(connections int, active bool) string {
	switch {
	case active:
		return ColorActive
	case connections == 0:
		return ColorIsolated
	case connections < hubConnections:
		return ColorConnected
	default:
		return ColorHub
	}
}

// view caches per-document lookups for one projection.
type view struct {
	links    LinkSource
	byKey    map[string]string // key -> corpus path
	outbound map[string][]models.Link
}

func (v *view) member(path string) (string, bool) {
	p, ok := v.byKey[corpus.Key(path)]
	return p, ok
}

func (v *view) outboundOf(doc string) []models.Link {
	k := corpus.Key(doc)
	if out, ok := v.outbound[k]; ok {
		return out
	}
	out := v.links.GetOutboundLinks(doc)
	v.outbound[k] = out
	return out
}

// neighbors returns the corpus documents one hop from doc in either direction.
func (v *view) neighbors(doc string) []string {
	var out []string
	for _, l := range v.links.GetBacklinks(doc) {
		if p, ok := v.member(l.SourceDocument); ok {
			out = append(out, p)
		}
	}
	for _, l := range v.outboundOf(doc) {
		if p, ok := v.member(l.Target); ok {
			out = append(out, p)
		}
	}
	return out
}

func (v *view) connections(doc string) int {
	return len(v.links.GetBacklinks(doc)) + len(v.outboundOf(doc))
}

// GenerateGraphData returns the nodes and edges for mode. FOCUS and CONTEXT
// are empty without an active document; every node is a corpus document.
func (p *Projector) GenerateGraphData(ctx context.Context, mode models.GraphMode, active string) (models.GraphData, error) {
	data := models.GraphData{Nodes: []models.GraphNode{}, Edges: []models.GraphEdge{}}
	if !mode.Valid() {
		return data, fmt.Errorf("graph: unknown mode %q", mode)
	}
	cfg, err := p.provider.Load()
	if err != nil {
		return data, fmt.Errorf("graph: load corpus config: %w", err)
	}
	docs, err := corpus.Documents(ctx, p.store, cfg, p.logger)
	if err != nil {
		return data, fmt.Errorf("graph: list documents: %w", err)
	}

	v := &view{
		links:    p.links,
		byKey:    make(map[string]string, len(docs)),
		outbound: make(map[string][]models.Link),
	}
	for _, d := range docs {
		v.byKey[corpus.Key(d)] = d
	}

	selected := make(map[string]struct{})
	switch mode {
	case models.GraphFull:
		for _, d := range docs {
			selected[corpus.Key(d)] = struct{}{}
		}
	case models.GraphFocus, models.GraphContext:
		center, ok := v.member(active)
		if active == "" || !ok {
			return data, nil
		}
		selected[corpus.Key(center)] = struct{}{}
		ring := v.neighbors(center)
		for _, n := range ring {
			selected[corpus.Key(n)] = struct{}{}
		}
		if mode == models.GraphContext {
			for _, n := range ring {
				if err := ctx.Err(); err != nil {
					return data, err
				}
				for _, nn := range v.neighbors(n) {
					selected[corpus.Key(nn)] = struct{}{}
				}
			}
		}
	}

	activeKey := ""
	if active != "" {
		activeKey = corpus.Key(active)
	}
	seenEdges := make(map[string]struct{})
	for _, d := range docs {
		key := corpus.Key(d)
		if _, ok := selected[key]; !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return data, err
		}
		conns := v.connections(d)
		isActive := key == activeKey
		data.Nodes = append(data.Nodes, models.GraphNode{
			ID:          d,
			Label:       label(d),
			Size:        NodeSize(conns),
			Color:       NodeColor(conns, isActive),
			Connections: conns,
			Active:      isActive,
		})
		for _, l := range v.outboundOf(d) {
			target, ok := v.member(l.Target)
			if !ok {
				continue
			}
			if _, ok := selected[corpus.Key(target)]; !ok {
				continue
			}
			id := d + "->" + target
			if _, dup := seenEdges[id]; dup {
				continue
			}
			seenEdges[id] = struct{}{}
			data.Edges = append(data.Edges, models.GraphEdge{ID: id, Source: d, Target: target})
		}
	}

	p.logger.Debug("graph: generated",
		slog.String("mode", string(mode)),
		slog.Int("nodes", len(data.Nodes)),
		slog.Int("edges", len(data.Edges)))
	return data, nil
}

func label(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
