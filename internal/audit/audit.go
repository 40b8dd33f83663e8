// Package audit cross-checks a rendered public site against the source
// content tree and reports pages that must not be published.
package audit

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/starford/gardensite/internal/filter"
	"github.com/starford/gardensite/internal/models"
	"github.com/starford/gardensite/internal/storage"
)

// DefaultTaxonomyDirs are top-level output directories the generator fills
// with taxonomy pages that have no source document.
var DefaultTaxonomyDirs = []string{"tags", "categories"}

const pageName = "index.html"

// Kind classifies a finding.
type Kind string

const (
	// KindLeak is a rendered page whose source document is not public.
	KindLeak Kind = "leak"
	// KindOrphan is a rendered page with no current source document.
	KindOrphan Kind = "orphan"
)

// Finding is one offending page, relative to the output root.
type Finding struct {
	Path   string `json:"path"`
	Kind   Kind   `json:"kind"`
	Source string `json:"source,omitempty"`
}

// Options configures an audit.
type Options struct {
	Source       string // content root
	Output       string // rendered site root
	Fix          bool
	TaxonomyDirs []string
	Logger       *slog.Logger
}

// Report is the outcome of an audit.
type Report struct {
	Findings []Finding
	// Removed lists findings deleted in fix mode.
	Removed []string
	// Pages is the number of rendered index pages inspected.
	Pages  int
	Fixed  bool
	Passed bool
}

// Counts returns the number of findings per kind.
func (r *Report) Counts() map[Kind]int {
	out := map[Kind]int{KindLeak: 0, KindOrphan: 0}
	for _, f := range r.Findings {
		out[f.Kind]++
	}
	return out
}

// Run audits opts.Output against opts.Source. Findings never make Run
// fail; an error is returned only when the source tree is unusable.
func Run(opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "audit"))
	if opts.TaxonomyDirs == nil {
		opts.TaxonomyDirs = DefaultTaxonomyDirs
	}

	src, err := storage.NewFS(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("audit: source content: %w", err)
	}
	docs, err := src.Documents("")
	if err != nil {
		return nil, fmt.Errorf("audit: read source: %w", err)
	}
	exp := expectedPages(filter.NewPlan(docs, models.AudiencePublic, ""))

	rep := &Report{}
	out, err := storage.NewFS(opts.Output)
	if err != nil {
		logger.Warn("audit: output tree unavailable, nothing to check",
			slog.String("output", opts.Output), slog.String("error", err.Error()))
		rep.Passed = true
		return rep, nil
	}

	for _, page := range sortedKeys(exp.disallowed) {
		if _, ok := exp.allowed[page]; ok {
			continue
		}
		if out.Exists(page) {
			rep.Findings = append(rep.Findings, Finding{Path: page, Kind: KindLeak, Source: exp.disallowed[page]})
		}
	}

	pages := renderedPages(out.Root(), logger)
	rep.Pages = len(pages)
	for _, page := range pages {
		if _, ok := exp.allowed[page]; ok {
			continue
		}
		if _, ok := exp.disallowed[page]; ok {
			continue
		}
		if generatorOwned(page, exp, opts.TaxonomyDirs) {
			continue
		}
		rep.Findings = append(rep.Findings, Finding{Path: page, Kind: KindOrphan})
	}
	sort.Slice(rep.Findings, func(i, j int) bool { return rep.Findings[i].Path < rep.Findings[j].Path })

	if len(rep.Findings) == 0 {
		rep.Passed = true
		logger.Info("audit: passed", slog.Int("pages", rep.Pages))
		return rep, nil
	}
	if !opts.Fix {
		logger.Warn("audit: findings", slog.Int("count", len(rep.Findings)))
		return rep, nil
	}

	rep.Fixed = true
	rep.Passed = true
	for _, f := range rep.Findings {
		if err := out.Delete(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Error("audit: remove failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			rep.Passed = false
			continue
		}
		rep.Removed = append(rep.Removed, f.Path)
		logger.Info("audit: removed", slog.String("path", f.Path), slog.String("kind", string(f.Kind)))
	}
	return rep, nil
}

type expected struct {
	allowed    map[string]struct{}
	disallowed map[string]string // output page → source document
	sections   map[string]struct{}
}

// expectedPages maps the public plan onto output pages. Section indexes
// the copier would synthesize count as allowed.
func expectedPages(plan *filter.Plan) expected {
	exp := expected{
		allowed:    make(map[string]struct{}),
		disallowed: make(map[string]string),
		sections:   make(map[string]struct{}),
	}
	for _, d := range plan.Included {
		exp.allowed[d.OutputPath()] = struct{}{}
	}
	for _, dir := range plan.Sections {
		exp.allowed[path.Join(dir, pageName)] = struct{}{}
	}
	for _, d := range append(slices.Clone(plan.Included), plan.Excluded...) {
		if d.Kind == models.KindSection {
			exp.sections[d.Dir()] = struct{}{}
		}
	}
	for _, d := range plan.Excluded {
		exp.disallowed[d.OutputPath()] = d.Path
	}
	return exp
}

// generatorOwned reports whether page looks like something the generator
// produced on its own rather than from a content document.
func generatorOwned(page string, exp expected, taxonomies []string) bool {
	parts := strings.Split(page, "/")
	switch {
	case len(parts) == 1:
		return true
	case slices.Contains(taxonomies, parts[0]):
		return true
	case len(parts) == 2:
		_, hasSource := exp.sections[parts[0]]
		return !hasSource
	default:
		return false
	}
}

// renderedPages lists every index page below root, sorted. Unreadable
// entries are logged and skipped.
func renderedPages(root string, logger *slog.Logger) []string {
	var out []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("audit: walk error", slog.String("path", p), slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Name() != pageName {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
