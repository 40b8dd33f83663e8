package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gardensite/internal/audit"
	"github.com/starford/gardensite/internal/filter"
	"github.com/starford/gardensite/internal/lint"
	"github.com/starford/gardensite/internal/models"
	"github.com/starford/gardensite/internal/watch"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Site      SiteConfig        `yaml:"site"`
	Targets   []TargetConfig    `yaml:"targets"`
	Generator GeneratorConfig   `yaml:"generator"`
	Audit     AuditConfig       `yaml:"audit"`
	Lint      lint.Rules        `yaml:"lint"`
	Catalog   CatalogConfig     `yaml:"catalog"`
	Watch     WatchConfig       `yaml:"watch"`
	Metrics   MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Site.Validate(); err != nil {
		return fmt.Errorf("site: %w", err)
	}
	if err := c.validateTargets(); err != nil {
		return err
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if err := c.Lint.Validate(); err != nil {
		return fmt.Errorf("lint: %w", err)
	}
	if err := c.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

func (c *Config) validateTargets() error {
	seen := make(map[string]bool, len(c.Targets))
	for i := range c.Targets {
		t := &c.Targets[i]
		if err := t.Validate(); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
		if seen[t.Name] {
			return fmt.Errorf("targets[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// Target returns the target named name.
func (c *Config) Target(name string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetConfig{}, false
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatText, LogFormatJSON)),
	)
}

// SiteConfig describes the source site.
type SiteConfig struct {
	// Root holds the generator project with its content/ directory.
	Root     string   `yaml:"root"`
	SkipDirs []string `yaml:"skip_dirs"`
}

// ContentDir returns the source content root.
func (c *SiteConfig) ContentDir() string {
	return filepath.Join(c.Root, models.ContentDir)
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.SkipDirs, validation.Each(validation.Required)),
	)
}

// TargetConfig is one audience build.
type TargetConfig struct {
	Name     string `yaml:"name"`
	Audience string `yaml:"audience"`
	Group    string `yaml:"group"`
	Dest     string `yaml:"dest"`
	Output   string `yaml:"output"`
}

// Validate validates the target configuration.
func (c *TargetConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Audience, validation.Required, validation.In(stringsToAny(models.Audiences())...)),
		validation.Field(&c.Group, validation.When(c.Audience == string(models.AudienceGroup), validation.Required)),
		validation.Field(&c.Dest, validation.Required),
	)
}

// GeneratorConfig is the external site generator command.
type GeneratorConfig struct {
	Command []string      `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the generator configuration.
func (c *GeneratorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// AuditConfig configures the leak auditor.
type AuditConfig struct {
	Fix          bool     `yaml:"fix"`
	TaxonomyDirs []string `yaml:"taxonomy_dirs"`
}

// CatalogConfig holds the SQLite catalog location.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce    time.Duration `yaml:"debounce"`
	Schedule    string        `yaml:"schedule"`
	Skip        []string      `yaml:"skip"`
	SyncCatalog bool          `yaml:"sync_catalog"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.Schedule, validation.By(func(v any) error {
			s, _ := v.(string)
			if s == "" {
				return nil
			}
			return watch.ParseSchedule(s)
		})),
	)
}

// MetricsConfig configures the Prometheus textfile.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Textfile  string `yaml:"textfile"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Textfile == "" {
		return errors.New("textfile is required when metrics are enabled")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
		},
		Site: SiteConfig{
			Root:     "./site",
			SkipDirs: append([]string(nil), filter.DefaultSkipDirs...),
		},
		Targets: []TargetConfig{
			{Name: "public", Audience: string(models.AudiencePublic), Dest: "./build/public", Output: "./out/public"},
		},
		Audit: AuditConfig{
			TaxonomyDirs: append([]string(nil), audit.DefaultTaxonomyDirs...),
		},
		Lint: lint.DefaultRules(),
		Catalog: CatalogConfig{
			Path: "./gardensite.db",
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
			Skip:     []string{".git", "resources", "public"},
		},
		Metrics: MetricsConfig{
			Namespace: "gardensite",
		},
	}
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
