package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/gardensite/internal"
	"github.com/starford/gardensite/internal/apperr"
	"github.com/starford/gardensite/internal/audit"
	"github.com/starford/gardensite/internal/catalog"
	"github.com/starford/gardensite/internal/filter"
	"github.com/starford/gardensite/internal/linkcheck"
	"github.com/starford/gardensite/internal/lint"
	"github.com/starford/gardensite/internal/models"
	"github.com/starford/gardensite/internal/pipeline"
	"github.com/starford/gardensite/internal/storage"
)

const searchLimit = 20

func audienceFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "audience",
		Usage:    "Target audience (" + strings.Join(models.Audiences(), ", ") + ")",
		Required: required,
		Validator: func(s string) error {
			_, err := models.ParseAudience(s)
			return err
		},
	}
}

func groupFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "group",
		Usage: "Group name for the group audience",
	}
}

// audienceArgs resolves --audience and --group. An unset audience falls
// back to def. The group audience without a group selects public documents
// only.
func audienceArgs(cmd *cli.Command, def models.Audience, logger *slog.Logger) (models.Audience, string, error) {
	aud := def
	if cmd.IsSet("audience") {
		var err error
		if aud, err = models.ParseAudience(cmd.String("audience")); err != nil {
			return "", "", apperr.Exit(2, err.Error())
		}
	}
	group := strings.TrimSpace(cmd.String("group"))
	if aud == models.AudienceGroup && group == "" {
		logger.Warn("group audience without --group, only public documents match")
	}
	return aud, group, nil
}

// stringOr returns the flag value when set, def otherwise.
func stringOr(cmd *cli.Command, name, def string) string {
	if cmd.IsSet(name) {
		return cmd.String(name)
	}
	return def
}

func filterCommand() *cli.Command {
	return &cli.Command{
		Name:  "filter",
		Usage: "Copy the site tree keeping only documents visible to an audience",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "Source site root (default: site.root)"},
			&cli.StringFlag{Name: "dest", Usage: "Destination site root", Required: true},
			audienceFlag(true),
			groupFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			aud, group, err := audienceArgs(cmd, "", logger)
			if err != nil {
				return err
			}

			res, err := filter.Tree(filter.Options{
				Source:   stringOr(cmd, "source", cfg.Site.Root),
				Dest:     cmd.String("dest"),
				Audience: aud,
				Group:    group,
				SkipDirs: cfg.Site.SkipDirs,
				Logger:   logger,
			})
			if errors.Is(err, apperr.ErrPermission) {
				return apperr.Exit(1, err.Error())
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.Root().Writer,
				"[OK] %d document(s) for %s into %s (%d excluded, %d section index(es) synthesized)\n",
				len(res.Documents), aud, cmd.String("dest"), res.Excluded, len(res.Synthesized))
			return nil
		},
	}
}

// defaultPublicOutput returns the rendered output of the first configured
// public target.
func defaultPublicOutput(cfg *internal.Config) string {
	for _, t := range cfg.Targets {
		if t.Audience == string(models.AudiencePublic) && t.Output != "" {
			return t.Output
		}
	}
	return ""
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Check a rendered public site for pages that must not be public",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "Content root (default: site.root/content)"},
			&cli.StringFlag{Name: "public", Usage: "Rendered public site (default: first public target output)"},
			&cli.BoolFlag{Name: "fix", Usage: "Delete offending pages"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			public := stringOr(cmd, "public", defaultPublicOutput(cfg))
			if public == "" {
				return apperr.Exit(2, "--public is required")
			}
			fix := cfg.Audit.Fix
			if cmd.IsSet("fix") {
				fix = cmd.Bool("fix")
			}

			rep, err := audit.Run(audit.Options{
				Source:       stringOr(cmd, "source", cfg.Site.ContentDir()),
				Output:       public,
				Fix:          fix,
				TaxonomyDirs: cfg.Audit.TaxonomyDirs,
				Logger:       logger,
			})
			if err != nil {
				return err
			}
			return printAudit(cmd.Root().Writer, cmd.Root().ErrWriter, public, rep)
		},
	}
}

func printAudit(stdout, stderr io.Writer, public string, rep *audit.Report) error {
	counts := rep.Counts()
	switch {
	case len(rep.Findings) == 0:
		fmt.Fprintf(stdout, "Leak check passed: %d page(s) in %s, no findings\n", rep.Pages, public)
		return nil
	case rep.Passed:
		for _, p := range rep.Removed {
			fmt.Fprintf(stdout, " - removed %s\n", p)
		}
		fmt.Fprintf(stdout, "Leak check fixed: removed %d page(s) (%d leak(s), %d orphan(s))\n",
			len(rep.Removed), counts[audit.KindLeak], counts[audit.KindOrphan])
		return nil
	default:
		for _, f := range rep.Findings {
			fmt.Fprintf(stderr, " - %s: %s\n", f.Kind, f.Path)
		}
		fmt.Fprintf(stderr, "Leak check failed: %d leak(s), %d orphan(s) in %s\n",
			counts[audit.KindLeak], counts[audit.KindOrphan], public)
		return apperr.Reported(1, apperr.ErrFindings)
	}
}

func lintCommand() *cli.Command {
	return &cli.Command{
		Name:  "lint",
		Usage: "Validate frontmatter of every content document",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "Content root (default: site.root/content)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rep, err := lint.Run(ctx, lint.Options{
				Source: stringOr(cmd, "source", cfg.Site.ContentDir()),
				Rules:  cfg.Lint,
				Logger: logger,
			})
			if err != nil {
				return err
			}

			if rep.Passed() {
				fmt.Fprintf(cmd.Root().Writer, "[OK] %d content file(s) passed frontmatter lint\n", rep.Checked)
				return nil
			}
			files := make(map[string]struct{})
			stderr := cmd.Root().ErrWriter
			for _, is := range rep.Issues {
				files[is.Path] = struct{}{}
				fmt.Fprintf(stderr, "[FAIL] %s\n", is)
			}
			fmt.Fprintf(stderr, "\n%d error(s) in %d file(s)\n", len(rep.Issues), len(files))
			return apperr.Reported(1, apperr.ErrFindings)
		},
	}
}

func linkcheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "linkcheck",
		Usage: "Verify internal links of a rendered site",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "public", Usage: "Rendered site (default: first public target output)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			public := stringOr(cmd, "public", defaultPublicOutput(cfg))
			if public == "" {
				return apperr.Exit(2, "--public is required")
			}

			rep, err := linkcheck.Run(ctx, linkcheck.Options{Output: public, Logger: logger})
			if err != nil {
				return err
			}
			if rep.Passed() {
				fmt.Fprintf(cmd.Root().Writer, "[OK] %d internal link(s) in %d file(s) resolve\n", rep.Links, rep.Files)
				return nil
			}
			stderr := cmd.Root().ErrWriter
			for _, b := range rep.Broken {
				fmt.Fprintf(stderr, "[FAIL] %s\n", b)
			}
			fmt.Fprintf(stderr, "\n%d broken link(s) in %d file(s)\n", len(rep.Broken), rep.Files)
			return apperr.Reported(1, apperr.ErrFindings)
		},
	}
}

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Maintain and query the SQLite document catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "Catalog database (default: catalog.path)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Index new and changed documents, drop deleted ones",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Usage: "Content root (default: site.root/content)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withCatalog(cmd, func(cfg *internal.Config, logger *slog.Logger, db *catalog.DB) error {
						store, err := storage.NewFS(stringOr(cmd, "source", cfg.Site.ContentDir()))
						if err != nil {
							return err
						}
						stats, err := catalog.Sync(ctx, db, store, logger)
						if err != nil {
							return err
						}
						fmt.Fprintf(cmd.Root().Writer, "[OK] indexed %d, unchanged %d, removed %d, failed %d\n",
							stats.Indexed, stats.Unchanged, stats.Removed, stats.Failed)
						if stats.Failed > 0 {
							return apperr.Exit(1, fmt.Sprintf("%d document(s) could not be indexed", stats.Failed))
						}
						return nil
					})
				},
			},
			{
				Name:  "ls",
				Usage: "List catalogued documents with their decision for an audience",
				Flags: []cli.Flag{audienceFlag(false), groupFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withCatalog(cmd, func(_ *internal.Config, logger *slog.Logger, db *catalog.DB) error {
						aud, group, err := audienceArgs(cmd, models.AudiencePublic, logger)
						if err != nil {
							return err
						}
						rows, err := db.List(catalog.ListFilter{})
						if err != nil {
							return err
						}
						return printPlan(cmd.Root().Writer, rows, aud, group)
					})
				},
			},
			{
				Name:      "search",
				Usage:     "Full-text search over titles and bodies",
				ArgsUsage: "<query>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					query := strings.Join(cmd.Args().Slice(), " ")
					if strings.TrimSpace(query) == "" {
						return apperr.Exit(2, "search query is required")
					}
					return withCatalog(cmd, func(_ *internal.Config, _ *slog.Logger, db *catalog.DB) error {
						hits, err := db.Search(query, searchLimit)
						if err != nil {
							return err
						}
						w := cmd.Root().Writer
						for _, h := range hits {
							fmt.Fprintf(w, "%s\t%s\n", h.Path, h.Title)
						}
						return nil
					})
				},
			},
			{
				Name:      "backlinks",
				Usage:     "List documents whose links point at a destination",
				ArgsUsage: "<link destination>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					target := cmd.Args().First()
					if target == "" {
						return apperr.Exit(2, "link destination is required")
					}
					return withCatalog(cmd, func(_ *internal.Config, _ *slog.Logger, db *catalog.DB) error {
						paths, err := db.Backlinks(target)
						if err != nil {
							return err
						}
						for _, p := range paths {
							fmt.Fprintln(cmd.Root().Writer, p)
						}
						return nil
					})
				},
			},
		},
	}
}

func withCatalog(cmd *cli.Command, fn func(*internal.Config, *slog.Logger, *catalog.DB) error) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := catalog.Open(stringOr(cmd, "db", cfg.Catalog.Path))
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(cfg, logger, db)
}

// printPlan lists catalogued documents with the inclusion decision the
// filter would take for the audience.
func printPlan(w io.Writer, rows []catalog.Row, aud models.Audience, group string) error {
	docs := make([]*models.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, &models.Document{
			DocumentMeta: models.DocumentMeta{Path: r.Path, Kind: r.Kind, Checksum: r.Checksum},
			Fields:       r.Fields,
		})
	}
	plan := filter.NewPlan(docs, aud, group)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tKIND\tVISIBILITY\tDECISION")
	for _, r := range rows {
		decision := "exclude"
		switch {
		case plan.Structural(r.Path):
			decision = "structural"
		case plan.Includes(r.Path):
			decision = "include"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Path, r.Kind, r.Visibility, decision)
	}
	for _, dir := range plan.Sections {
		if _, ok := plan.SectionIndex(dir); !ok {
			fmt.Fprintf(tw, "%s\t%s\t\tsynthesize\n", path.Join(dir, "_index.md"), models.KindSection)
		}
	}
	return tw.Flush()
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Filter, render and check every configured target once",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "Build only the named target"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if name := cmd.String("target"); name != "" {
				t, ok := cfg.Target(name)
				if !ok {
					return apperr.Exit(2, fmt.Sprintf("unknown target %q", name))
				}
				cfg.Targets = []internal.TargetConfig{t}
			}

			opts, err := internal.PipelineOptions(cfg, logger, nil, internal.NewRecorder(cfg))
			if err != nil {
				return err
			}
			sum, err := pipeline.New(opts).Run(ctx)
			printSummary(cmd.Root().Writer, cmd.Root().ErrWriter, sum)
			if err != nil {
				return apperr.Reported(1, err)
			}
			return nil
		},
	}
}

func printSummary(stdout, stderr io.Writer, sum *pipeline.Summary) {
	if sum == nil {
		return
	}
	for _, r := range sum.Targets {
		if r.Err != nil {
			fmt.Fprintf(stderr, "[FAIL] %s: %v\n", r.Target.Name, r.Err)
			continue
		}
		docs := 0
		if r.Filter != nil {
			docs = len(r.Filter.Documents)
		}
		fmt.Fprintf(stdout, "[OK] %s: %d document(s) in %s\n", r.Target.Name, docs, r.Duration.Round(time.Millisecond))
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Rebuild on source changes and on schedule until interrupted",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return internal.Run(ctx,
				internal.WithConfig(cfg),
				internal.WithLogger(logger),
			)
		},
	}
}
