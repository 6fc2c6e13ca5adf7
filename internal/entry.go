// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/stitchtool/stitch/internal/api"
	"github.com/stitchtool/stitch/internal/engine"
	"github.com/stitchtool/stitch/internal/history"
	"github.com/stitchtool/stitch/internal/mcpserver"
	"github.com/stitchtool/stitch/internal/report"
	"github.com/stitchtool/stitch/internal/rule"
	"github.com/stitchtool/stitch/internal/sse"
	"github.com/stitchtool/stitch/internal/storage"
)

// deps bundles everything a command needs after initialization.
type deps struct {
	cfg    *Config
	logger *slog.Logger
	root   string // absolute workspace root
	db     *history.DB
	eng    *engine.Engine
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// build initializes the logger, rules, storage, history database, and
// engine. The returned cleanup closes the database.
func build(app *application, logDst io.Writer) (*deps, func(), error) {
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(logDst, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("rules_path", cfg.Rules.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rules, err := rule.Load(cfg.Rules.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("load rules: %w", err)
	}

	root, err := filepath.Abs(cfg.Workspace.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve workspace: %w", err)
	}

	store, err := storage.NewFS(root, cfg.Workspace.Extensions)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := history.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init history: %w", err)
	}

	eng, err := engine.New(store, db, rules, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return &deps{cfg: cfg, logger: logger, root: root, db: db, eng: eng},
		func() { db.Close() }, nil
}

// Run executes one patch run over the workspace and reports the summary.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	d, cleanup, err := build(app, os.Stdout)
	if err != nil {
		return err
	}
	defer cleanup()

	runOpts := engine.RunOptions{DryRun: app.dryRun}
	if app.showDiff {
		runOpts.OnDiff = func(path, before, after string) {
			fmt.Println(report.Diff(path, before, after))
		}
	}

	run, err := d.eng.Run(runOpts)
	if err != nil {
		return fmt.Errorf("patch run: %w", err)
	}

	d.logger.Info("Patch run complete",
		slog.Bool("dry_run", app.dryRun),
		slog.Int("files_scanned", run.FilesScanned),
		slog.Int("files_patched", run.FilesPatched),
		slog.Int("files_skipped", run.FilesSkipped),
		slog.Int("anchors", run.Anchors),
		slog.Int("formed_before", run.FormedBefore),
		slog.Int("formed_after", run.FormedAfter))
	return nil
}

// Serve runs in watch mode: an initial patch run, then the fsnotify
// watcher and the diagnostics HTTP server until a shutdown signal.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	d, cleanup, err := build(app, os.Stdout)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := d.cfg
	logger := d.logger

	// Bring the workspace to its patched state before watching.
	if run, err := d.eng.Run(engine.RunOptions{}); err != nil {
		logger.Warn("initial run failed", slog.String("error", err.Error()))
	} else {
		logger.Info("Initial run complete",
			slog.Int("files_patched", run.FilesPatched),
			slog.Int("formed_after", run.FormedAfter))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build API router.
	apiRouter := api.NewRouter(d.eng, d.db, cfg.Auth.AuthEnabled(), cfg.Auth.Token, http.HandlerFunc(broker.ServeHTTP))

	// Build chi router.
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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Watch mode starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		return d.eng.Watch(gCtx, d.root, func(kind, path string) {
			broker.PublishFileEvent(kind, path)
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down...")

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

	logger.Info("Stopped successfully")
	return nil
}

// History prints recent run summaries, newest first.
func History(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	db, err := history.Open(app.config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init history: %w", err)
	}
	defer db.Close()

	runs, err := db.RecentRuns(app.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	idColor := color.New(color.FgCyan, color.Bold)
	patchedColor := color.New(color.FgGreen)
	for _, r := range runs {
		fmt.Printf("%s  %s  scanned=%d %s skipped=%d  anchors=%d formed %d->%d\n",
			idColor.Sprintf("#%d", r.ID),
			r.StartedAt.Format(time.RFC3339),
			r.FilesScanned,
			patchedColor.Sprintf("patched=%d", r.FilesPatched),
			r.FilesSkipped,
			r.Anchors, r.FormedBefore, r.FormedAfter)
	}
	return nil
}

// ServeMCP starts the MCP server on stdin/stdout. Logs go to stderr so
// they cannot corrupt the stdio transport.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	d, cleanup, err := build(app, os.Stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	d.logger.Info("MCP server starting on stdio")
	return mcpserver.New(d.eng, d.db).ServeStdio()
}
