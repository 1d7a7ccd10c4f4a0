// Package corpus describes the set of documents the indexes cover and walks it.
package corpus

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/memolink/internal/parser"
	"github.com/starford/memolink/internal/resolver"
	"github.com/starford/memolink/internal/storage"
)

// Config defines the walk root and document filter.
type Config struct {
	Root       string
	Extensions []string
	Scheme     string
	SkipHidden bool
}

// Provider loads the current corpus configuration.
type Provider interface {
	Load() (Config, error)
}

// Static is a Provider returning a fixed Config.
type Static Config

// Load implements Provider.
func (s Static) Load() (Config, error) {
	return Config(s), nil
}

// Scanner returns a link scanner for this corpus.
func (c Config) Scanner() *parser.Scanner {
	return parser.NewScanner(resolver.NewSet(c.Scheme), c.Root, c.Extensions)
}

// Key normalizes path for index lookups: cleaned and lowercased.
//
// Known limitation: on case-sensitive filesystems two documents whose paths
// differ only in case share a key.
func Key(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// Walk visits every document under cfg.Root depth-first, in lexical order.
// Entries that cannot be listed or stat'ed are logged and skipped.
func Walk(ctx context.Context, store storage.Store, cfg Config, logger *slog.Logger, fn func(path string, info storage.Info)) error {
	scanner := cfg.Scanner()
	return walkDir(ctx, store, cfg, scanner, logger, cfg.Root, fn)
}

func walkDir(ctx context.Context, store storage.Store, cfg Config, scanner *parser.Scanner, logger *slog.Logger, dir string, fn func(string, storage.Info)) error {
	names, err := store.ListDirectory(dir)
	if err != nil {
		logger.Warn("corpus: list failed", slog.String("path", dir), slog.String("error", err.Error()))
		return nil
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := filepath.Join(dir, name)
		info, err := store.Stat(p)
		if err != nil {
			logger.Warn("corpus: stat failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		if info.IsDir {
			if cfg.SkipHidden && strings.HasPrefix(name, ".") {
				continue
			}
			if err := walkDir(ctx, store, cfg, scanner, logger, p, fn); err != nil {
				return err
			}
			continue
		}
		if !scanner.HasExtension(name) {
			continue
		}
		fn(p, info)
	}
	return nil
}

// Documents returns every document path in walk order.
func Documents(ctx context.Context, store storage.Store, cfg Config, logger *slog.Logger) ([]string, error) {
	var out []string
	err := Walk(ctx, store, cfg, logger, func(p string, _ storage.Info) {
		out = append(out, p)
	})
	return out, err
}
