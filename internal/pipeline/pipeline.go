// Package pipeline runs complete target builds: filter the content tree,
// render it, then audit and link-check the rendered output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/starford/gardensite/internal/apperr"
	"github.com/starford/gardensite/internal/audit"
	"github.com/starford/gardensite/internal/filter"
	"github.com/starford/gardensite/internal/linkcheck"
	"github.com/starford/gardensite/internal/metrics"
	"github.com/starford/gardensite/internal/models"
)

// Target is one audience build.
type Target struct {
	Name     string
	Audience models.Audience
	Group    string
	Dest     string // filtered site tree
	Output   string // rendered site; empty skips the checks
}

// Options configures a Runner.
type Options struct {
	Site         string // source site root holding content/
	SkipDirs     []string
	Targets      []Target
	Renderer     Renderer
	AuditFix     bool
	TaxonomyDirs []string
	Metrics      *metrics.Recorder
	Textfile     string
	Logger       *slog.Logger
}

// TargetResult is the outcome of one target build.
type TargetResult struct {
	Target   Target
	Filter   *filter.Result
	Audit    *audit.Report
	Links    *linkcheck.Report
	Duration time.Duration
	Err      error
}

// Outcome classifies the result for metrics.
func (r TargetResult) Outcome() string {
	switch {
	case r.Err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(r.Err, apperr.ErrFindings):
		return metrics.OutcomeLeaked
	default:
		return metrics.OutcomeFailed
	}
}

// Summary is the outcome of a Run.
type Summary struct {
	RunID   string
	Targets []TargetResult
}

// Runner executes builds for the configured targets.
type Runner struct {
	opts Options
}

// New returns a Runner. A nil Renderer means the output trees are produced
// outside the pipeline.
func New(opts Options) *Runner {
	if opts.Renderer == nil {
		opts.Renderer = NoopRenderer{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{opts: opts}
}

// Run builds every target in order. A permission failure while clearing a
// destination aborts the run; any other target failure is recorded and the
// remaining targets still build. The returned error joins all target
// errors.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString()}
	logger := r.opts.Logger.With(slog.String("component", "pipeline"), slog.String("run_id", sum.RunID))
	logger.Info("pipeline: run started", slog.Int("targets", len(r.opts.Targets)))

	var errs []error
	for _, t := range r.opts.Targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res := r.buildTarget(ctx, t, logger.With(slog.String("target", t.Name)))
		sum.Targets = append(sum.Targets, res)
		r.opts.Metrics.Build(t.Name, res.Outcome(), res.Duration, time.Now())
		if res.Err != nil {
			errs = append(errs, res.Err)
			if errors.Is(res.Err, apperr.ErrPermission) {
				break
			}
		}
	}

	if r.opts.Textfile != "" {
		if err := r.opts.Metrics.WriteTextfile(r.opts.Textfile); err != nil {
			logger.Warn("pipeline: metrics textfile", slog.String("error", err.Error()))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.Error("pipeline: run failed", slog.String("error", err.Error()))
	} else {
		logger.Info("pipeline: run finished")
	}
	return sum, err
}

func (r *Runner) buildTarget(ctx context.Context, t Target, logger *slog.Logger) (res TargetResult) {
	res.Target = t
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	fres, err := filter.Tree(filter.Options{
		Source:   r.opts.Site,
		Dest:     t.Dest,
		Audience: t.Audience,
		Group:    t.Group,
		SkipDirs: r.opts.SkipDirs,
		Logger:   logger,
	})
	if err != nil {
		res.Err = fmt.Errorf("target %s: %w", t.Name, err)
		return res
	}
	res.Filter = fres
	r.opts.Metrics.Filter(t.Name, string(t.Audience), len(fres.Documents), fres.Excluded, len(fres.Synthesized))

	if err := r.opts.Renderer.Render(ctx, t); err != nil {
		res.Err = fmt.Errorf("target %s: %w", t.Name, err)
		return res
	}

	if t.Output == "" || t.Audience != models.AudiencePublic {
		return res
	}

	rep, err := audit.Run(audit.Options{
		Source:       filepath.Join(r.opts.Site, models.ContentDir),
		Output:       t.Output,
		Fix:          r.opts.AuditFix,
		TaxonomyDirs: r.opts.TaxonomyDirs,
		Logger:       logger,
	})
	if err != nil {
		res.Err = fmt.Errorf("target %s: %w", t.Name, err)
		return res
	}
	res.Audit = rep
	for kind, n := range rep.Counts() {
		r.opts.Metrics.Findings(t.Name, string(kind), n)
	}

	links, err := linkcheck.Run(ctx, linkcheck.Options{Output: t.Output, Logger: logger})
	if err != nil {
		res.Err = fmt.Errorf("target %s: %w", t.Name, err)
		return res
	}
	res.Links = links
	r.opts.Metrics.BrokenLinks(t.Name, len(links.Broken))

	switch {
	case !rep.Passed:
		res.Err = fmt.Errorf("target %s: %w: %d audit finding(s)", t.Name, apperr.ErrFindings, len(rep.Findings))
	case !links.Passed():
		res.Err = fmt.Errorf("target %s: %w: %d broken link(s)", t.Name, apperr.ErrFindings, len(links.Broken))
	}
	return res
}
