// Package models defines the domain types for memolink.
package models

import "time"

// Link is one inline link found in a source document.
type Link struct {
	SourceDocument string `json:"source_document"`
	SourceLine     int    `json:"source_line"` // 1-based
	LinkText       string `json:"link_text"`
	RawTarget      string `json:"raw_target"`
	Target         string `json:"target"` // resolved absolute path
	Context        string `json:"context"`
}

// Memo is the per-document entry cached by the tag index.
type Memo struct {
	Path         string    `json:"path"`
	Title        string    `json:"title,omitempty"`
	Tags         []string  `json:"tags"`
	LastModified time.Time `json:"last_modified"`
}

// TagCount is a tag and the number of documents carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// FileLinkCount is a target document and the number of links pointing at it.
type FileLinkCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// LinkStatistics summarises the backlink index.
type LinkStatistics struct {
	TotalLinks          int             `json:"total_links"`
	TotalFiles          int             `json:"total_files"`
	AverageLinksPerFile float64         `json:"average_links_per_file"`
	MostLinkedFiles     []FileLinkCount `json:"most_linked_files"`
}

// RenameResult reports the outcome of rename link propagation.
type RenameResult struct {
	FilesUpdated int      `json:"files_updated"`
	LinksUpdated int      `json:"links_updated"`
	Errors       []string `json:"errors"`
}
