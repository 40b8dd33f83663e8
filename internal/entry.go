// Package internal provides configuration, wiring and the long-running
// watch loop.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/gardensite/internal/catalog"
	"github.com/starford/gardensite/internal/metrics"
	"github.com/starford/gardensite/internal/models"
	"github.com/starford/gardensite/internal/pipeline"
	"github.com/starford/gardensite/internal/rebuild"
	"github.com/starford/gardensite/internal/storage"
	"github.com/starford/gardensite/internal/watch"
)

// NewRecorder returns the metrics recorder for cfg, or nil when metrics are
// disabled.
func NewRecorder(cfg *Config) *metrics.Recorder {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(cfg.Metrics.Namespace, nil)
}

// PipelineOptions maps the configuration onto pipeline options. A nil
// renderer selects the configured generator command.
func PipelineOptions(cfg *Config, logger *slog.Logger, renderer pipeline.Renderer, rec *metrics.Recorder) (pipeline.Options, error) {
	targets := make([]pipeline.Target, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		aud, err := models.ParseAudience(t.Audience)
		if err != nil {
			return pipeline.Options{}, fmt.Errorf("target %s: %w", t.Name, err)
		}
		targets = append(targets, pipeline.Target{
			Name:     t.Name,
			Audience: aud,
			Group:    t.Group,
			Dest:     t.Dest,
			Output:   t.Output,
		})
	}
	if renderer == nil && len(cfg.Generator.Command) > 0 {
		renderer = &pipeline.CommandRenderer{
			Command: cfg.Generator.Command,
			Timeout: cfg.Generator.Timeout,
			Logger:  logger,
		}
	}
	opts := pipeline.Options{
		Site:         cfg.Site.Root,
		SkipDirs:     cfg.Site.SkipDirs,
		Targets:      targets,
		Renderer:     renderer,
		AuditFix:     cfg.Audit.Fix,
		TaxonomyDirs: cfg.Audit.TaxonomyDirs,
		Metrics:      rec,
		Logger:       logger,
	}
	if cfg.Metrics.Enabled {
		opts.Textfile = cfg.Metrics.Textfile
	}
	return opts, nil
}

// Run starts watch mode: an initial build, then a rebuild after every
// settled burst of source changes and on the configured schedule, until
// ctx is cancelled or a termination signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(cfg.App, os.Stderr)
	}

	logger.Info("Configuration loaded",
		slog.String("site_root", cfg.Site.Root),
		slog.Int("targets", len(cfg.Targets)),
		slog.String("schedule", cfg.Watch.Schedule),
		slog.String("log_level", cfg.App.LogLevel.String()))

	popts, err := PipelineOptions(cfg, logger, app.renderer, NewRecorder(cfg))
	if err != nil {
		return err
	}
	runner := pipeline.New(popts)

	var db *catalog.DB
	var store *storage.FS
	if cfg.Watch.SyncCatalog {
		if store, err = storage.NewFS(cfg.Site.ContentDir()); err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		if db, err = catalog.Open(cfg.Catalog.Path); err != nil {
			return fmt.Errorf("init catalog: %w", err)
		}
		defer db.Close()
	}

	guard := rebuild.NewGuard(func(ctx context.Context) error {
		if db != nil {
			if _, err := catalog.Sync(ctx, db, store, logger); err != nil {
				logger.Warn("catalog sync failed", slog.String("error", err.Error()))
			}
		}
		_, err := runner.Run(ctx)
		return err
	}, logger)
	defer guard.Close()

	g, gCtx := errgroup.WithContext(ctx)
	trigger := func(reason string) { guard.Trigger(gCtx, reason) }

	trigger("startup")

	g.Go(func() error {
		return watch.Watch(gCtx, watch.Options{
			Root:     cfg.Site.Root,
			Skip:     cfg.Watch.Skip,
			Debounce: cfg.Watch.Debounce,
			Trigger:  trigger,
			Logger:   logger,
		})
	})

	scheduler := watch.NewScheduler(cfg.Watch.Schedule, trigger, logger)
	if err := scheduler.Start(gCtx); err != nil {
		return err
	}
	defer scheduler.Stop()

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			return errShutdown
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Watch stopped, waiting for running build")
	return nil
}

// errShutdown stops the errgroup when a signal arrives.
var errShutdown = errors.New("shutdown requested")
