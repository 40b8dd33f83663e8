// Package lint checks document frontmatter against the site's editorial
// rules.
package lint

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gardensite/internal/models"
	"github.com/starford/gardensite/internal/policy"
	"github.com/starford/gardensite/internal/storage"
)

// Rules are the frontmatter requirements for regular documents.
type Rules struct {
	Required []string            `yaml:"required"`
	Allowed  map[string][]string `yaml:"allowed"`
}

// DefaultRules returns the stock rule set.
func DefaultRules() Rules {
	return Rules{
		Required: []string{"title", "type", "segment", "status", "visibility", "date"},
		Allowed: map[string][]string{
			"type":       {"note", "trip", policy.TypeTimelineEntry, "dossier", "article"},
			"segment":    {"politik", "technik", "reisen"},
			"status":     {policy.StatusSeedling, policy.StatusPlant, policy.StatusTree},
			"visibility": {policy.VisibilityPublic, policy.VisibilityGroup, policy.VisibilityPrivate},
		},
	}
}

// Validate checks the rule set itself.
func (r Rules) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Required, validation.Each(validation.Required)),
		validation.Field(&r.Allowed, validation.Each(validation.Required)),
	)
}

// Issue is one rule violation.
type Issue struct {
	Path    string
	Field   string
	Message string
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s", i.Path, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", i.Path, i.Field, i.Message)
}

// Options configures a lint run.
type Options struct {
	Source string // content root
	Rules  Rules
	Logger *slog.Logger
}

// Report is the outcome of a lint run.
type Report struct {
	Checked int
	Issues  []Issue
}

// Passed reports whether no issue was found.
func (r *Report) Passed() bool { return len(r.Issues) == 0 }

// Run lints every regular document below opts.Source. Section indexes are
// skipped. A zero Rules value selects DefaultRules.
func Run(ctx context.Context, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rules := opts.Rules
	if rules.Required == nil && rules.Allowed == nil {
		rules = DefaultRules()
	}

	src, err := storage.NewFS(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("lint: content root: %w", err)
	}
	docs, err := src.Documents("")
	if err != nil {
		return nil, fmt.Errorf("lint: read content: %w", err)
	}

	rep := &Report{}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.Kind == models.KindSection {
			continue
		}
		rep.Checked++
		rep.Issues = append(rep.Issues, Check(d, rules)...)
	}

	logger.Info("lint: done", slog.String("component", "lint"),
		slog.Int("checked", rep.Checked), slog.Int("issues", len(rep.Issues)))
	return rep, nil
}

// Check returns the rule violations of a single document, ordered by field.
func Check(d *models.Document, rules Rules) []Issue {
	if len(d.Fields) == 0 {
		return []Issue{{Path: d.Path, Message: "no valid frontmatter found"}}
	}

	err := validation.Validate(plain(d.Fields), validation.Map(keyRules(d.Fields, rules)...).AllowExtraKeys())
	if err == nil {
		return nil
	}
	errs, ok := err.(validation.Errors)
	if !ok {
		return []Issue{{Path: d.Path, Message: err.Error()}}
	}

	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]Issue, 0, len(fields))
	for _, f := range fields {
		out = append(out, Issue{Path: d.Path, Field: f, Message: message(errs[f])})
	}
	return out
}

func keyRules(fields models.Fields, rules Rules) []*validation.KeyRules {
	required := make(map[string]bool, len(rules.Required))
	for _, k := range rules.Required {
		required[k] = true
	}

	keys := make(map[string]struct{})
	for _, k := range rules.Required {
		keys[k] = struct{}{}
	}
	for k := range rules.Allowed {
		keys[k] = struct{}{}
	}
	keys["groups"] = struct{}{}

	var out []*validation.KeyRules
	for k := range keys {
		var rs []validation.Rule
		if required[k] {
			rs = append(rs, validation.Required.Error("must not be empty"))
		}
		if allowed, ok := rules.Allowed[k]; ok {
			elems := make([]interface{}, len(allowed))
			for i, a := range allowed {
				elems[i] = a
			}
			rs = append(rs, validation.In(elems...).Error("must be one of: "+strings.Join(allowed, ", ")))
		}

		optional := !required[k]
		if k == "groups" {
			grouped := policy.Visibility(fields) == policy.VisibilityGroup
			rs = append(rs, validation.When(grouped, validation.Required.Error("visibility is 'group' but no groups specified")))
			optional = optional && !grouped
		}

		kr := validation.Key(k, rs...)
		if optional {
			kr = kr.Optional()
		}
		out = append(out, kr)
	}
	return out
}

// plain converts fields to the shape ozzo-validation inspects: scalars as
// strings, lists as string slices.
func plain(fields models.Fields) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if v.IsList {
			out[k] = v.List
		} else {
			out[k] = v.Scalar
		}
	}
	return out
}

func message(err error) string {
	if e, ok := err.(validation.Error); ok {
		if e.Code() == validation.ErrKeyMissing.Code() {
			return "missing required field"
		}
		return e.Message()
	}
	return err.Error()
}
