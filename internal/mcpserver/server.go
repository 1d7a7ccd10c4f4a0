// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the memolink index as tools over stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/memolink/internal/memoservice"
	"github.com/starford/memolink/internal/models"
	"github.com/starford/memolink/internal/tags"
)

const formatURI = "memolink://memo-format"

// Server wraps the MCP server with memolink tools.
type Server struct {
	mcp *server.MCPServer
	svc *memoservice.Service
}

// New creates a new MCP server with all memolink tools registered.
func New(svc *memoservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"memolink",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("List every link that points at a document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path relative to the corpus root")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_outbound_links",
		mcp.WithDescription("List the links written in a document, read from its current content."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path relative to the corpus root")),
	), s.getOutboundLinks)

	s.mcp.AddTool(mcp.NewTool("list_orphans",
		mcp.WithDescription("List documents that neither link out nor are linked to."),
	), s.listOrphans)

	s.mcp.AddTool(mcp.NewTool("link_statistics",
		mcp.WithDescription("Total links, linked files, average and the ten most linked documents."),
	), s.linkStatistics)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List all front-matter tags with their document counts."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("memos_by_tags",
		mcp.WithDescription("List documents carrying the given tags, newest first."),
		mcp.WithString("tags", mcp.Required(), mcp.Description("Comma-separated tags")),
		mcp.WithString("mode", mcp.Description("and | or (default or)")),
	), s.memosByTags)

	s.mcp.AddTool(mcp.NewTool("graph",
		mcp.WithDescription("Project the link graph as nodes and edges."),
		mcp.WithString("mode", mcp.Description("focus | context | full (default full)")),
		mcp.WithString("active", mcp.Description("Active document for focus and context")),
	), s.graph)

	s.mcp.AddTool(mcp.NewTool("rename_memo",
		mcp.WithDescription("Move a document and rewrite every link that pointed at it. "+
			"Read the format contract via the get_memo_contract tool or the "+formatURI+" resource first."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Current path relative to the corpus root")),
		mcp.WithString("to", mcp.Required(), mcp.Description("New path relative to the corpus root")),
	), s.renameMemo)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Rebuild the link and tag indexes from disk."),
	), s.rebuildIndex)

	s.mcp.AddTool(mcp.NewTool("get_memo_contract",
		mcp.WithDescription("Returns how links and tags must be written to be indexed."),
	), s.getMemoContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Memo Format Contract",
			mcp.WithResourceDescription("How documents must be written for the link and tag indexes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMemoFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) linkLines(links []models.Link, source bool) string {
	lines := make([]string, 0, len(links))
	for _, l := range links {
		if source {
			lines = append(lines, fmt.Sprintf("%s:%d %s", s.svc.Rel(l.SourceDocument), l.SourceLine, l.RawTarget))
		} else {
			lines = append(lines, fmt.Sprintf("%d %s -> %s", l.SourceLine, l.RawTarget, s.svc.Rel(l.Target)))
		}
	}
	return strings.Join(lines, "\n")
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links := s.svc.GetBacklinks(path)
	if len(links) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(s.linkLines(links, true)), nil
}

func (s *Server) getOutboundLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	links := s.svc.GetOutboundLinks(path)
	if len(links) == 0 {
		return mcp.NewToolResultText("no outbound links found"), nil
	}
	return mcp.NewToolResultText(s.linkLines(links, false)), nil
}

func (s *Server) listOrphans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orphans, err := s.svc.GetOrphanedFiles(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(orphans) == 0 {
		return mcp.NewToolResultText("no orphaned documents"), nil
	}
	rel := make([]string, 0, len(orphans))
	for _, p := range orphans {
		rel = append(rel, s.svc.Rel(p))
	}
	return mcp.NewToolResultText(strings.Join(rel, "\n")), nil
}

func (s *Server) linkStatistics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.svc.GetLinkStatistics()
	for i := range stats.MostLinkedFiles {
		stats.MostLinkedFiles[i].Path = s.svc.Rel(stats.MostLinkedFiles[i].Path)
	}
	return jsonResult(stats)
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all := s.svc.GetAllTags()
	if len(all) == 0 {
		return mcp.NewToolResultText("no tags found"), nil
	}
	lines := make([]string, 0, len(all))
	for _, t := range all {
		lines = append(lines, fmt.Sprintf("%s (%d)", t.Tag, t.Count))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) memosByTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("tags")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := tags.ParseMode(req.GetString("mode", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var list []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			list = append(list, t)
		}
	}
	memos := s.svc.GetMemosByTags(list, mode)
	if len(memos) == 0 {
		return mcp.NewToolResultText("no documents found"), nil
	}
	lines := make([]string, 0, len(memos))
	for _, m := range memos {
		lines = append(lines, s.svc.Rel(m.Path))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) graph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode := models.GraphMode(strings.ToLower(req.GetString("mode", string(models.GraphFull))))
	data, err := s.svc.GenerateGraphData(ctx, mode, req.GetString("active", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	for i := range data.Nodes {
		data.Nodes[i].ID = s.svc.Rel(data.Nodes[i].ID)
	}
	for i := range data.Edges {
		e := &data.Edges[i]
		e.Source, e.Target = s.svc.Rel(e.Source), s.svc.Rel(e.Target)
		e.ID = e.Source + "->" + e.Target
	}
	return jsonResult(data)
}

func (s *Server) renameMemo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.RenameDocument(ctx, from, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) rebuildIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.Rebuild(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stats := s.svc.GetLinkStatistics()
	return mcp.NewToolResultText(fmt.Sprintf("rebuilt: %d links to %d documents", stats.TotalLinks, stats.TotalFiles)), nil
}

func (s *Server) getMemoContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MemoFormatContract), nil
}

func (s *Server) readMemoFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     MemoFormatContract,
		},
	}, nil
}
