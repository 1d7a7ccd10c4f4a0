package rewriter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/memolink/internal/backlinks"
	"github.com/starford/memolink/internal/corpus"
	"github.com/starford/memolink/internal/storage"
	"github.com/starford/memolink/internal/testutil"
)

type fixture struct {
	root  string
	index *backlinks.Index
	rw    *Rewriter
}

func setup(t *testing.T, files map[string]string, wrap func(storage.Store) storage.Store) fixture {
	t.Helper()
	root, fs := testutil.TestCorpus(t, files)
	var store storage.Store = fs
	if wrap != nil {
		store = wrap(fs)
	}
	provider := corpus.Static(testutil.Config(root))
	ix, err := backlinks.New(store, provider, testutil.Logger())
	require.NoError(t, err)
	require.NoError(t, ix.BuildIndex(context.Background()))
	return fixture{root: root, index: ix, rw: New(store, ix, provider, testutil.Logger())}
}

func (f fixture) path(name string) string {
	return filepath.Join(f.root, filepath.FromSlash(name))
}

func (f fixture) move(t *testing.T, from, to string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(f.path(to)), 0o755))
	require.NoError(t, os.Rename(f.path(from), f.path(to)))
}

func TestUpdateLinksAfterRename_Basic(t *testing.T) {
	f := setup(t, map[string]string{
		"A.md": "see [B](./B.md) here",
		"B.md": "",
	}, nil)
	f.move(t, "B.md", "B2.md")

	res, err := f.rw.UpdateLinksAfterRename(context.Background(), f.path("B.md"), f.path("B2.md"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesUpdated)
	assert.Equal(t, 1, res.LinksUpdated)
	assert.Empty(t, res.Errors)

	assert.Equal(t, "see [B2](./B2.md) here", testutil.ReadFile(t, f.root, "A.md"))
	back := f.index.GetBacklinks(f.path("B2.md"))
	require.Len(t, back, 1)
	assert.Equal(t, f.path("A.md"), back[0].SourceDocument)
	assert.Empty(t, f.index.GetBacklinks(f.path("B.md")))
}

func TestUpdateLinksAfterRename_OnlyMatchingTargets(t *testing.T) {
	f := setup(t, map[string]string{
		"A.md":        "[note](note.md) [other](note.md.bak.md) [deep](sub/note.md) [n](note.md#sec)",
		"note.md":     "",
		"sub/note.md": "",
	}, nil)
	f.move(t, "note.md", "renamed.md")

	res, err := f.rw.UpdateLinksAfterRename(context.Background(), f.path("note.md"), f.path("renamed.md"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.LinksUpdated)
	assert.Equal(t,
		"[renamed](renamed.md) [other](note.md.bak.md) [deep](sub/note.md) [n](renamed.md#sec)",
		testutil.ReadFile(t, f.root, "A.md"))
}

func TestUpdateLinksAfterRename_AcrossDirectories(t *testing.T) {
	f := setup(t, map[string]string{
		"a/A.md": "[x](../b/B.md) and [memo](memo://b/B.md)",
		"b/B.md": "",
		"c/C.md": "[B.md](../b/B.md)",
	}, nil)
	f.move(t, "b/B.md", "d/e/Moved.md")

	res, err := f.rw.UpdateLinksAfterRename(context.Background(), f.path("b/B.md"), f.path("d/e/Moved.md"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesUpdated)
	assert.Equal(t, 3, res.LinksUpdated)
	assert.Equal(t, "[x](../d/e/Moved.md) and [memo](memo://d/e/Moved.md)", testutil.ReadFile(t, f.root, "a/A.md"))
	assert.Equal(t, "[Moved.md](../d/e/Moved.md)", testutil.ReadFile(t, f.root, "c/C.md"))
	assert.Len(t, f.index.GetBacklinks(f.path("d/e/Moved.md")), 3)
}

func TestUpdateLinksAfterRename_RoundTrip(t *testing.T) {
	original := map[string]string{
		"A.md":     "---\ntags: [x]\n---\nsee [B](./B.md), [B.md](B.md#top) and [label](memo:///B.md)",
		"sub/C.md": "up [B](../B.md)\n```\n[B](../B.md)\n```\n",
		"B.md":     "self [B](B.md)",
	}
	f := setup(t, original, nil)

	f.move(t, "B.md", "Other.md")
	_, err := f.rw.UpdateLinksAfterRename(context.Background(), f.path("B.md"), f.path("Other.md"))
	require.NoError(t, err)
	assert.Equal(t, "self [Other](Other.md)", testutil.ReadFile(t, f.root, "Other.md"))

	f.move(t, "Other.md", "B.md")
	_, err = f.rw.UpdateLinksAfterRename(context.Background(), f.path("Other.md"), f.path("B.md"))
	require.NoError(t, err)

	for name, want := range original {
		assert.Equal(t, want, testutil.ReadFile(t, f.root, name), name)
	}
}

func TestUpdateLinksAfterRename_FallbackScanWhenIndexStale(t *testing.T) {
	f := setup(t, map[string]string{
		"B.md": "",
	}, nil)
	// Written after the build; the index does not know about it.
	testutil.WriteFile(t, f.root, "late.md", "[B](B.md)")
	f.move(t, "B.md", "C.md")

	docs, err := f.rw.FindFilesWithLinksTo(context.Background(), f.path("B.md"))
	require.NoError(t, err)
	assert.Equal(t, []string{f.path("late.md")}, docs)

	res, err := f.rw.UpdateLinksAfterRename(context.Background(), f.path("B.md"), f.path("C.md"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesUpdated)
	assert.Equal(t, "[C](C.md)", testutil.ReadFile(t, f.root, "late.md"))
}

func TestFindFilesWithLinksTo_DeduplicatesSources(t *testing.T) {
	f := setup(t, map[string]string{
		"A.md": "[B](B.md) [B](./B.md)",
		"B.md": "",
	}, nil)
	docs, err := f.rw.FindFilesWithLinksTo(context.Background(), f.path("B.md"))
	require.NoError(t, err)
	assert.Equal(t, []string{f.path("A.md")}, docs)
}

type failingStore struct {
	storage.Store
	failWrite string
}

func (s failingStore) WriteText(path, text string) error {
	if strings.HasSuffix(path, s.failWrite) {
		return errors.New("disk full")
	}
	return s.Store.WriteText(path, text)
}

func TestUpdateLinksAfterRename_PartialFailure(t *testing.T) {
	f := setup(t, map[string]string{
		"A.md": "[B](B.md)",
		"C.md": "[B](B.md)",
		"B.md": "",
	}, func(s storage.Store) storage.Store { return failingStore{Store: s, failWrite: "A.md"} })
	f.move(t, "B.md", "D.md")

	res, err := f.rw.UpdateLinksAfterRename(context.Background(), f.path("B.md"), f.path("D.md"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesUpdated)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "disk full")
	assert.Equal(t, "[B](B.md)", testutil.ReadFile(t, f.root, "A.md"))
	assert.Equal(t, "[D](D.md)", testutil.ReadFile(t, f.root, "C.md"))
}

func TestUpdateLinksAfterRename_NoReferences(t *testing.T) {
	f := setup(t, map[string]string{"B.md": "", "A.md": "nothing"}, nil)
	f.move(t, "B.md", "C.md")
	res, err := f.rw.UpdateLinksAfterRename(context.Background(), f.path("B.md"), f.path("C.md"))
	require.NoError(t, err)
	assert.Zero(t, res.FilesUpdated)
	assert.NotNil(t, res.Errors)
	assert.Equal(t, "nothing", testutil.ReadFile(t, f.root, "A.md"))
}

func TestUpdateLinksAfterRename_CancelledContext(t *testing.T) {
	f := setup(t, map[string]string{"B.md": ""}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.rw.sem.Acquire(context.Background(), 1))
	defer f.rw.sem.Release(1)
	_, err := f.rw.UpdateLinksAfterRename(ctx, f.path("B.md"), f.path("C.md"))
	assert.ErrorIs(t, err, context.Canceled)
}
