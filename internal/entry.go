// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/memolink/internal/api"
	"github.com/starford/memolink/internal/events"
	"github.com/starford/memolink/internal/export"
	"github.com/starford/memolink/internal/mcpserver"
	"github.com/starford/memolink/internal/memoservice"
	"github.com/starford/memolink/internal/sse"
	"github.com/starford/memolink/internal/storage"
	"github.com/starford/memolink/internal/watcher"
)

var errConfigRequired = errors.New("config is required")

// open builds the engine over the configured corpus and runs the first rebuild.
func (a *application) open(ctx context.Context, logger *slog.Logger, sink events.Sink) (*memoservice.Service, *storage.FS, error) {
	cc, err := a.config.Corpus.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cc.Root, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create corpus dir: %w", err)
	}
	store, err := storage.NewFS(cc.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	svc, err := memoservice.New(store, &a.config.Corpus, sink, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init engine: %w", err)
	}
	if err := svc.Rebuild(ctx); err != nil {
		return nil, nil, fmt.Errorf("initial rebuild: %w", err)
	}
	return svc, store, nil
}

func (a *application) watcher(svc *memoservice.Service, store *storage.FS, logger *slog.Logger) (*watcher.Watcher, error) {
	cc, err := a.config.Corpus.Load()
	if err != nil {
		return nil, err
	}
	return watcher.New(svc, store, watcher.Options{
		Corpus:          cc,
		RenameWindow:    a.config.Watch.RenameWindow,
		RewriteOnRename: a.config.Watch.RewriteOnRename,
	}, logger), nil
}

// Open builds an indexed engine for one-shot commands.
func Open(ctx context.Context, opts ...Option) (*memoservice.Service, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	svc, _, err := app.open(ctx, app.logger(), nil)
	return svc, err
}

// Export indexes the corpus and writes a SQLite snapshot to dest, or to the
// configured export path when dest is empty.
func Export(ctx context.Context, dest string, opts ...Option) (export.Stats, error) {
	app, err := newApplication(opts)
	if err != nil {
		return export.Stats{}, err
	}
	if dest == "" {
		dest = app.config.Export.Path
	}
	logger := app.logger()
	svc, _, err := app.open(ctx, logger, nil)
	if err != nil {
		return export.Stats{}, err
	}
	snap, err := svc.Snapshot(ctx)
	if err != nil {
		return export.Stats{}, err
	}
	return export.Write(ctx, dest, snap, svc.Rel, logger)
}

// ServeMCP serves the MCP tools on stdin/stdout until the client disconnects.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()

	svc, store, err := app.open(ctx, logger, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if app.config.Watch.Enabled {
		w, err := app.watcher(svc, store, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("MCP server starting", slog.String("corpus_root", store.Root()))
	return mcpserver.New(svc, app.version).ServeStdio()
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("corpus_root", cfg.Corpus.Root),
		slog.Any("extensions", cfg.Corpus.Extensions),
		slog.Bool("watch", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := sse.NewBroker(cfg.Graph.SSEThrottle)
	defer broker.Close()

	sink := events.Multi{broker, events.SinkFunc(func(e events.Event) {
		logger.Debug("event published",
			slog.String("kind", string(e.Kind)),
			slog.String("path", e.Path),
			slog.String("old_path", e.OldPath))
	})}

	svc, store, err := app.open(ctx, logger, sink)
	if err != nil {
		return err
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !svc.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"rebuilding"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		w, err := app.watcher(svc, store, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return w.Run(gCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
