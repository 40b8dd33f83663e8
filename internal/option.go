package internal

import (
	"log/slog"

	"github.com/starford/gardensite/internal/pipeline"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	logger   *slog.Logger
	renderer pipeline.Renderer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}

// WithRenderer replaces the configured generator command.
func WithRenderer(r pipeline.Renderer) Option {
	return func(a *application) {
		a.renderer = r
	}
}
