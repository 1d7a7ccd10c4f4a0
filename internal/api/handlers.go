package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/starford/memolink/internal/memoservice"
	"github.com/starford/memolink/internal/models"
	"github.com/starford/memolink/internal/tags"
)

// Handler holds API route handlers.
type Handler struct {
	svc *memoservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *memoservice.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) links(path string, links []models.Link) LinksResponse {
	out := LinksResponse{Path: path, Links: make([]LinkDTO, 0, len(links))}
	for _, l := range links {
		out.Links = append(out.Links, LinkDTO{
			Source:    h.svc.Rel(l.SourceDocument),
			Line:      l.SourceLine,
			Text:      l.LinkText,
			RawTarget: l.RawTarget,
			Target:    h.svc.Rel(l.Target),
			Context:   l.Context,
		})
	}
	return out
}

// Backlinks handles GET /api/backlinks.
//
//	@Summary		List links pointing at a document
//	@Tags			links
//	@Produce		json
//	@Param			path	query		string	true	"Document path relative to the corpus root"
//	@Success		200		{object}	LinksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	writeJSON(w, http.StatusOK, h.links(path, h.svc.GetBacklinks(path)))
}

// Outbound handles GET /api/outbound.
//
//	@Summary		List links written in a document
//	@Tags			links
//	@Produce		json
//	@Param			path	query		string	true	"Document path relative to the corpus root"
//	@Success		200		{object}	LinksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outbound [get]
func (h *Handler) Outbound(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	writeJSON(w, http.StatusOK, h.links(path, h.svc.GetOutboundLinks(path)))
}

// Referrers handles GET /api/referrers.
//
//	@Summary		List documents that link to a document
//	@Description	Falls back to scanning the corpus when the index holds no entry.
//	@Tags			links
//	@Produce		json
//	@Param			path	query		string	true	"Document path relative to the corpus root"
//	@Success		200		{object}	ReferrersResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/referrers [get]
func (h *Handler) Referrers(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	files, err := h.svc.FindFilesWithLinksTo(r.Context(), path)
	if err != nil {
		writeError(w, "referrers", err)
		return
	}
	out := ReferrersResponse{Path: path, Referrers: make([]string, 0, len(files))}
	for _, f := range files {
		out.Referrers = append(out.Referrers, h.svc.Rel(f))
	}
	writeJSON(w, http.StatusOK, out)
}

// Orphans handles GET /api/orphans.
//
//	@Summary		List documents with no links in or out
//	@Tags			links
//	@Produce		json
//	@Success		200	{object}	OrphansResponse
//	@Security		BearerAuth
//	@Router			/orphans [get]
func (h *Handler) Orphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := h.svc.GetOrphanedFiles(r.Context())
	if err != nil {
		writeError(w, "orphans", err)
		return
	}
	out := OrphansResponse{Orphans: make([]string, 0, len(orphans))}
	for _, p := range orphans {
		out.Orphans = append(out.Orphans, h.svc.Rel(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// Stats handles GET /api/stats.
//
//	@Summary		Summarise the backlink index
//	@Tags			links
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	stats := h.svc.GetLinkStatistics()
	for i := range stats.MostLinkedFiles {
		stats.MostLinkedFiles[i].Path = h.svc.Rel(stats.MostLinkedFiles[i].Path)
	}
	writeJSON(w, http.StatusOK, stats)
}

// Tags handles GET /api/tags.
//
//	@Summary		List tags by document count
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, TagsResponse{Tags: h.svc.GetAllTags()})
}

// MemosByTags handles GET /api/tags/memos.
//
//	@Summary		List documents carrying one or more tags
//	@Tags			tags
//	@Produce		json
//	@Param			tag		query		[]string	true	"Tag, repeatable or comma separated"
//	@Param			mode	query		string		false	"and | or (default or)"
//	@Success		200		{object}	MemosResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/memos [get]
func (h *Handler) MemosByTags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := tags.ParseMode(q.Get("mode"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var list []string
	for _, v := range q["tag"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				list = append(list, t)
			}
		}
	}
	if len(list) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'tag' is required"))
		return
	}
	memos := h.svc.GetMemosByTags(list, mode)
	out := MemosResponse{Tags: list, Mode: string(mode), Memos: make([]MemoDTO, 0, len(memos))}
	for _, m := range memos {
		out.Memos = append(out.Memos, MemoDTO{
			Path:         h.svc.Rel(m.Path),
			Title:        m.Title,
			Tags:         m.Tags,
			LastModified: m.LastModified,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Graph handles GET /api/graph.
//
//	@Summary		Project the link graph
//	@Tags			graph
//	@Produce		json
//	@Param			mode	query		string	false	"focus | context | full (default full)"
//	@Param			active	query		string	false	"Active document for focus and context modes"
//	@Success		200		{object}	GraphResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	mode := models.GraphMode(strings.ToLower(r.URL.Query().Get("mode")))
	if mode == "" {
		mode = models.GraphFull
	}
	if !mode.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("mode must be one of focus, context, full"))
		return
	}
	data, err := h.svc.GenerateGraphData(r.Context(), mode, r.URL.Query().Get("active"))
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	for i := range data.Nodes {
		data.Nodes[i].ID = h.svc.Rel(data.Nodes[i].ID)
	}
	for i := range data.Edges {
		e := &data.Edges[i]
		e.Source, e.Target = h.svc.Rel(e.Source), h.svc.Rel(e.Target)
		e.ID = e.Source + "->" + e.Target
	}
	writeJSON(w, http.StatusOK, data)
}

// Rename handles POST /api/rename.
//
//	@Summary		Move a document and rewrite links to it
//	@Tags			commands
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenameRequest	true	"Old and new path"
//	@Success		200		{object}	RenameResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rename [post]
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if !h.svc.IsDocument(req.To) {
		writeJSON(w, http.StatusBadRequest, errorBody("'to' must have a document extension"))
		return
	}
	res, err := h.svc.RenameDocument(r.Context(), req.From, req.To)
	if err != nil {
		writeError(w, "rename", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DeleteDocument handles DELETE /api/documents.
//
//	@Summary		Delete a document and drop it from the indexes
//	@Tags			commands
//	@Param			path	query	string	true	"Document path relative to the corpus root"
//	@Success		204		"Document deleted"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" || !h.svc.IsDocument(path) {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' must name a document"))
		return
	}
	if err := h.svc.DeleteDocument(path); err != nil {
		writeError(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rebuild handles POST /api/index/rebuild.
//
//	@Summary		Rebuild both indexes from the corpus
//	@Tags			commands
//	@Produce		json
//	@Success		200	{object}	RebuildResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Rebuild(r.Context()); err != nil {
		writeError(w, "rebuild", err)
		return
	}
	writeJSON(w, http.StatusOK, RebuildResponse{Status: "rebuilt"})
}
