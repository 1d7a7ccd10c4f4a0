package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/memolink/internal/models"
)

// LinkDTO is one link occurrence with paths relative to the corpus root.
type LinkDTO struct {
	Source    string `json:"source" example:"notes/a.md" validate:"required"`
	Line      int    `json:"line" example:"3" validate:"required"`
	Text      string `json:"text" example:"B"`
	RawTarget string `json:"raw_target" example:"./b.md" validate:"required"`
	Target    string `json:"target" example:"notes/b.md" validate:"required"`
	Context   string `json:"context" example:"see [B](./b.md)"`
}

// LinksResponse wraps the links into or out of one document.
type LinksResponse struct {
	Path  string    `json:"path" example:"notes/b.md" validate:"required"`
	Links []LinkDTO `json:"links" validate:"required"`
}

// ReferrersResponse lists the documents linking to one target.
type ReferrersResponse struct {
	Path      string   `json:"path" example:"notes/b.md" validate:"required"`
	Referrers []string `json:"referrers" validate:"required"`
}

// OrphansResponse lists documents with no links in either direction.
type OrphansResponse struct {
	Orphans []string `json:"orphans" validate:"required"`
}

// StatsResponse is the link statistics with relative paths.
type StatsResponse = models.LinkStatistics

// TagsResponse lists every tag with its document count.
type TagsResponse struct {
	Tags []models.TagCount `json:"tags" validate:"required"`
}

// MemoDTO is a tagged document.
type MemoDTO struct {
	Path         string    `json:"path" example:"notes/a.md" validate:"required"`
	Title        string    `json:"title,omitempty" example:"Alpha"`
	Tags         []string  `json:"tags" validate:"required"`
	LastModified time.Time `json:"last_modified" validate:"required"`
}

// MemosResponse wraps a tag query result.
type MemosResponse struct {
	Tags  []string  `json:"tags" validate:"required"`
	Mode  string    `json:"mode" example:"or" validate:"required"`
	Memos []MemoDTO `json:"memos" validate:"required"`
}

// GraphResponse is a projected graph with relative node ids.
type GraphResponse = models.GraphData

// RenameRequest is the request body for renaming a document.
type RenameRequest struct {
	From string `json:"from" example:"notes/a.md" validate:"required"`
	To   string `json:"to" example:"archive/a.md" validate:"required"`
}

// Validate checks that both paths are present and differ.
func (r RenameRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.Required, validation.NotIn(r.From).Error("must differ from 'from'")),
	)
}

// RenameResponse reports how many links were rewritten.
type RenameResponse = models.RenameResult

// RebuildResponse reports a completed rebuild.
type RebuildResponse struct {
	Status string `json:"status" example:"rebuilt" validate:"required"`
}
