package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/memolink/internal/backlinks"
	"github.com/starford/memolink/internal/corpus"
	"github.com/starford/memolink/internal/models"
	"github.com/starford/memolink/internal/testutil"
)

// chain: A -> B -> C -> D, E isolated, B -> outside.txt (not a document).
var chain = map[string]string{
	"A.md": "[B](B.md)",
	"B.md": "[C](C.md) [C again](C.md) [pic](outside.txt) [ghost](ghost.md)",
	"C.md": "[D](D.md)",
	"D.md": "",
	"E.md": "",
}

func newProjector(t *testing.T, files map[string]string) (*Projector, string) {
	t.Helper()
	root, store := testutil.TestCorpus(t, files)
	provider := corpus.Static(testutil.Config(root))
	ix, err := backlinks.New(store, provider, testutil.Logger())
	require.NoError(t, err)
	require.NoError(t, ix.BuildIndex(context.Background()))
	return New(store, ix, provider, testutil.Logger()), root
}

func nodeIDs(g models.GraphData) []string {
	out := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, filepath.Base(n.ID))
	}
	return out
}

func TestNodeSize(t *testing.T) {
	assert.Equal(t, 20, NodeSize(0))
	assert.Equal(t, 23, NodeSize(1))
	assert.Equal(t, 50, NodeSize(10))
	assert.Equal(t, 50, NodeSize(100))
}

func TestNodeColor(t *testing.T) {
	assert.Equal(t, ColorActive, NodeColor(0, true))
	assert.Equal(t, ColorIsolated, NodeColor(0, false))
	assert.Equal(t, ColorConnected, NodeColor(4, false))
	assert.Equal(t, ColorHub, NodeColor(5, false))
}

func TestGenerateGraphData_Full(t *testing.T) {
	p, _ := newProjector(t, chain)
	g, err := p.GenerateGraphData(context.Background(), models.GraphFull, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"A.md", "B.md", "C.md", "D.md", "E.md"}, nodeIDs(g))
	// Duplicate B->C suppressed; links to non-documents and missing documents dropped.
	require.Len(t, g.Edges, 3)
	for _, e := range g.Edges {
		assert.Equal(t, e.Source+"->"+e.Target, e.ID)
	}
	for _, n := range g.Nodes {
		assert.False(t, n.Active)
	}
}

func TestGenerateGraphData_Focus(t *testing.T) {
	p, root := newProjector(t, chain)
	g, err := p.GenerateGraphData(context.Background(), models.GraphFocus, filepath.Join(root, "B.md"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A.md", "B.md", "C.md"}, nodeIDs(g))
	assert.Len(t, g.Edges, 2)

	var b models.GraphNode
	for _, n := range g.Nodes {
		if n.Active {
			b = n
		}
	}
	assert.Equal(t, "B", b.Label)
	assert.Equal(t, ColorActive, b.Color)
	// One backlink plus three outbound links, counted before corpus filtering.
	assert.Equal(t, 4, b.Connections)
	assert.Equal(t, 32, b.Size)
}

func TestGenerateGraphData_ContextExpandsTwoHops(t *testing.T) {
	p, root := newProjector(t, chain)
	g, err := p.GenerateGraphData(context.Background(), models.GraphContext, filepath.Join(root, "A.md"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A.md", "B.md", "C.md"}, nodeIDs(g))

	g, err = p.GenerateGraphData(context.Background(), models.GraphContext, filepath.Join(root, "B.md"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A.md", "B.md", "C.md", "D.md"}, nodeIDs(g))
}

func TestGenerateGraphData_NoActive(t *testing.T) {
	p, root := newProjector(t, chain)
	for _, mode := range []models.GraphMode{models.GraphFocus, models.GraphContext} {
		g, err := p.GenerateGraphData(context.Background(), mode, "")
		require.NoError(t, err)
		assert.Empty(t, g.Nodes)
		assert.NotNil(t, g.Edges)

		g, err = p.GenerateGraphData(context.Background(), mode, filepath.Join(root, "nope.md"))
		require.NoError(t, err)
		assert.Empty(t, g.Nodes)
	}
}

func TestGenerateGraphData_Monotonic(t *testing.T) {
	p, root := newProjector(t, chain)
	for _, name := range []string{"A.md", "B.md", "C.md", "D.md", "E.md"} {
		active := filepath.Join(root, name)
		focus, err := p.GenerateGraphData(context.Background(), models.GraphFocus, active)
		require.NoError(t, err)
		ctxGraph, err := p.GenerateGraphData(context.Background(), models.GraphContext, active)
		require.NoError(t, err)
		full, err := p.GenerateGraphData(context.Background(), models.GraphFull, active)
		require.NoError(t, err)

		assert.Subset(t, nodeIDs(ctxGraph), nodeIDs(focus), name)
		assert.Subset(t, nodeIDs(full), nodeIDs(ctxGraph), name)
	}
}

func TestGenerateGraphData_InvalidMode(t *testing.T) {
	p, _ := newProjector(t, chain)
	_, err := p.GenerateGraphData(context.Background(), models.GraphMode("radial"), "")
	assert.Error(t, err)
}
