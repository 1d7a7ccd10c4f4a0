package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/memolink/internal/corpus"
	"github.com/starford/memolink/internal/memoservice"
	"github.com/starford/memolink/internal/models"
	"github.com/starford/memolink/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	root, store := testutil.TestCorpus(t, map[string]string{
		"a.md":     "---\ntags: [work, alpha]\n---\nlinks to [b](b.md)",
		"b.md":     "---\ntags: work\n---\nplain",
		"lone.md":  "nothing here",
		"pic.png":  "binary",
		"sub/c.md": "see [a](../a.md)",
	})
	svc, err := memoservice.New(store, corpus.Static(testutil.Config(root)), nil, testutil.Logger())
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	return New(svc, "test"), root
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"get_backlinks":      srv.getBacklinks,
		"get_outbound_links": srv.getOutboundLinks,
		"list_orphans":       srv.listOrphans,
		"link_statistics":    srv.linkStatistics,
		"list_tags":          srv.listTags,
		"memos_by_tags":      srv.memosByTags,
		"graph":              srv.graph,
		"rename_memo":        srv.renameMemo,
		"rebuild_index":      srv.rebuildIndex,
		"get_memo_contract":  srv.getMemoContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestGetBacklinks(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "b.md"})
	if text := resultText(r); text != "a.md:4 b.md" {
		t.Errorf("backlinks = %q", text)
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "lone.md"})
	if text := resultText(r); text != "no backlinks found" {
		t.Errorf("backlinks = %q", text)
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing path")
	}
}

func TestGetOutboundLinks(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_outbound_links", map[string]interface{}{"path": "sub/c.md"})
	if text := resultText(r); text != "1 ../a.md -> a.md" {
		t.Errorf("outbound = %q", text)
	}
}

func TestListOrphans(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_orphans", map[string]interface{}{})
	if text := resultText(r); text != "lone.md" {
		t.Errorf("orphans = %q", text)
	}
}

func TestLinkStatistics(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "link_statistics", map[string]interface{}{})
	var stats models.LinkStatistics
	if err := json.Unmarshal([]byte(resultText(r)), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalLinks != 2 || stats.TotalFiles != 2 || stats.AverageLinksPerFile != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestTagTools(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_tags", map[string]interface{}{})
	if text := resultText(r); text != "work (2)\nalpha (1)" {
		t.Errorf("tags = %q", text)
	}

	r = callTool(t, srv, "memos_by_tags", map[string]interface{}{"tags": "work, alpha", "mode": "and"})
	if text := resultText(r); text != "a.md" {
		t.Errorf("and = %q", text)
	}

	r = callTool(t, srv, "memos_by_tags", map[string]interface{}{"tags": "work", "mode": "nand"})
	if !r.IsError {
		t.Error("expected error for bad mode")
	}
}

func TestGraphTool(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "graph", map[string]interface{}{"mode": "focus", "active": "a.md"})
	var data models.GraphData
	if err := json.Unmarshal([]byte(resultText(r)), &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Nodes) != 3 || len(data.Edges) != 2 {
		t.Errorf("focus graph = %+v", data)
	}
	for _, n := range data.Nodes {
		if strings.HasPrefix(n.ID, "/") {
			t.Errorf("node id %q not relative", n.ID)
		}
	}

	r = callTool(t, srv, "graph", map[string]interface{}{"mode": "everything"})
	if !r.IsError {
		t.Error("expected error for bad mode")
	}
}

func TestRenameMemo(t *testing.T) {
	srv, root := testServer(t)

	r := callTool(t, srv, "rename_memo", map[string]interface{}{"from": "b.md", "to": "archive/b.md"})
	if r.IsError {
		t.Fatalf("rename: %s", resultText(r))
	}
	var res models.RenameResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.FilesUpdated != 1 || res.LinksUpdated != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := testutil.ReadFile(t, root, "a.md"); !strings.Contains(got, "[b](archive/b.md)") {
		t.Errorf("a.md = %q", got)
	}

	r = callTool(t, srv, "rename_memo", map[string]interface{}{"from": "missing.md", "to": "x.md"})
	if !r.IsError {
		t.Error("expected error for missing source")
	}
}

func TestRebuildIndex(t *testing.T) {
	srv, root := testServer(t)
	testutil.WriteFile(t, root, "d.md", "[b](b.md)")
	r := callTool(t, srv, "rebuild_index", map[string]interface{}{})
	if text := resultText(r); text != "rebuilt: 3 links to 2 documents" {
		t.Errorf("rebuild = %q", text)
	}
}

func TestMemoContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_memo_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "# memolink Document Format") {
		t.Error("contract missing heading")
	}
	contents, err := srv.readMemoFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
}
