// Package export writes a point-in-time copy of the link and tag indexes to
// a SQLite file for external tools. The file is never read back.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/memolink/internal/memoservice"
)

const schemaSQL = `
CREATE TABLE documents (
	path          TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	last_modified DATETIME
);

CREATE TABLE links (
	source      TEXT NOT NULL,
	source_line INTEGER NOT NULL,
	link_text   TEXT NOT NULL DEFAULT '',
	raw_target  TEXT NOT NULL,
	target      TEXT NOT NULL,
	context     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE tags (
	path TEXT NOT NULL,
	tag  TEXT NOT NULL,
	UNIQUE(path, tag)
);

CREATE INDEX idx_links_source ON links(source);
CREATE INDEX idx_links_target ON links(target);
CREATE INDEX idx_tags_tag ON tags(tag);
`

// Stats counts the rows written.
type Stats struct {
	Documents int `json:"documents"`
	Links     int `json:"links"`
	Tags      int `json:"tags"`
}

// Write stores snap at dest, replacing any previous export atomically. rel
// maps absolute document paths to the form stored in the file.
func Write(ctx context.Context, dest string, snap memoservice.Snapshot, rel func(string) string, logger *slog.Logger) (Stats, error) {
	if rel == nil {
		rel = func(p string) string { return p }
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Stats{}, fmt.Errorf("export: create dir: %w", err)
	}
	tmp := dest + ".tmp-" + strconv.Itoa(os.Getpid())
	_ = os.Remove(tmp)

	stats, err := writeDB(ctx, tmp, snap, rel)
	if err != nil {
		_ = os.Remove(tmp)
		return Stats{}, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return Stats{}, fmt.Errorf("export: rename: %w", err)
	}
	logger.Info("export: written",
		slog.String("path", dest),
		slog.Int("documents", stats.Documents),
		slog.Int("links", stats.Links),
		slog.Int("tags", stats.Tags))
	return stats, nil
}

func writeDB(ctx context.Context, file string, snap memoservice.Snapshot, rel func(string) string) (Stats, error) {
	var stats Stats
	conn, err := sql.Open("sqlite3", file+"?_busy_timeout=5000")
	if err != nil {
		return stats, fmt.Errorf("export: open db: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		return stats, fmt.Errorf("export: apply schema: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("export: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	titles := make(map[string]memoRow, len(snap.Memos))
	for _, m := range snap.Memos {
		titles[rel(m.Path)] = memoRow{title: m.Title, modified: m.LastModified.UTC().Format("2006-01-02T15:04:05Z")}
	}

	docStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO documents (path, title, last_modified) VALUES (?, ?, ?)`)
	if err != nil {
		return stats, fmt.Errorf("export: prepare documents: %w", err)
	}
	defer docStmt.Close()
	for _, d := range snap.Documents {
		p := rel(d)
		row := titles[p]
		var modified any
		if row.modified != "" {
			modified = row.modified
		}
		if _, err := docStmt.ExecContext(ctx, p, row.title, modified); err != nil {
			return stats, fmt.Errorf("export: insert document: %w", err)
		}
		stats.Documents++
	}

	linkStmt, err := tx.PrepareContext(ctx, `INSERT INTO links (source, source_line, link_text, raw_target, target, context) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return stats, fmt.Errorf("export: prepare links: %w", err)
	}
	defer linkStmt.Close()
	for _, l := range snap.Links {
		if _, err := linkStmt.ExecContext(ctx, rel(l.SourceDocument), l.SourceLine, l.LinkText, l.RawTarget, rel(l.Target), l.Context); err != nil {
			return stats, fmt.Errorf("export: insert link: %w", err)
		}
		stats.Links++
	}

	tagStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO tags (path, tag) VALUES (?, ?)`)
	if err != nil {
		return stats, fmt.Errorf("export: prepare tags: %w", err)
	}
	defer tagStmt.Close()
	for _, m := range snap.Memos {
		for _, t := range m.Tags {
			if _, err := tagStmt.ExecContext(ctx, rel(m.Path), t); err != nil {
				return stats, fmt.Errorf("export: insert tag: %w", err)
			}
			stats.Tags++
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("export: commit: %w", err)
	}
	return stats, nil
}

type memoRow struct {
	title    string
	modified string
}
