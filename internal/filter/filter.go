// Package filter builds an audience-specific copy of a site's content tree:
// it copies the documents policy allows, their bundle attachments and the
// section indexes needed to navigate to them.
package filter

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/gardensite/internal/apperr"
	"github.com/starford/gardensite/internal/models"
	"github.com/starford/gardensite/internal/parser"
	"github.com/starford/gardensite/internal/policy"
	"github.com/starford/gardensite/internal/storage"
)

// DefaultSkipDirs are top-level source entries that are never copied
// besides the content tree. "resources" is Hugo's generated-asset cache.
var DefaultSkipDirs = []string{"resources"}

// Options configures a filter run.
type Options struct {
	Source   string // site root containing content/
	Dest     string // destination site root
	Audience models.Audience
	Group    string
	SkipDirs []string
	Logger   *slog.Logger
}

// Result describes what a run wrote. All paths are slash-separated and
// sorted; document paths are relative to the content root, asset paths to
// the site root.
type Result struct {
	Documents   []string
	Attachments []string
	Assets      []string
	// StructuralIndexes are the section indexes in Documents that policy
	// excluded but a nested included document needed.
	StructuralIndexes []string
	// Synthesized are placeholder section indexes written from scratch.
	Synthesized []string
	Excluded    int
}

// Tree clears the destination content tree and repopulates it for the
// configured audience. A destination that cannot be cleared because of
// permissions yields an error wrapping apperr.ErrPermission.
func Tree(opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "filter"),
		slog.String("audience", string(opts.Audience)))
	if opts.SkipDirs == nil {
		opts.SkipDirs = DefaultSkipDirs
	}

	if sameDir(opts.Source, opts.Dest) {
		return nil, fmt.Errorf("filter: source and destination are the same directory: %s", opts.Source)
	}

	srcContent := filepath.Join(opts.Source, models.ContentDir)
	src, err := storage.NewFS(srcContent)
	if err != nil {
		return nil, fmt.Errorf("filter: source content: %w", err)
	}

	destContent := filepath.Join(opts.Dest, models.ContentDir)
	if err := storage.RemoveAll(destContent); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, permissionError(destContent, opts.Dest, err)
		}
		return nil, fmt.Errorf("filter: clear destination: %w", err)
	}
	if err := os.MkdirAll(destContent, 0o755); err != nil {
		return nil, fmt.Errorf("filter: create destination: %w", err)
	}
	dst, err := storage.NewFS(destContent)
	if err != nil {
		return nil, fmt.Errorf("filter: destination content: %w", err)
	}

	res := &Result{}
	if res.Assets, err = copyAssets(opts.Source, opts.Dest, opts.SkipDirs); err != nil {
		return nil, err
	}

	docs, err := src.Documents("")
	if err != nil {
		return nil, fmt.Errorf("filter: read source: %w", err)
	}
	plan := NewPlan(docs, opts.Audience, opts.Group)
	res.Excluded = len(plan.Excluded)

	for _, d := range plan.Included {
		if err := copyDoc(src, dst, d.Path); err != nil {
			return nil, err
		}
		res.Documents = append(res.Documents, d.Path)
		if plan.Structural(d.Path) {
			res.StructuralIndexes = append(res.StructuralIndexes, d.Path)
		}
		logger.Debug("filter: copied", slog.String("path", d.Path))

		if d.Kind == models.KindBundle {
			att, err := copyAttachments(src, dst, d.Dir())
			if err != nil {
				return nil, err
			}
			res.Attachments = append(res.Attachments, att...)
		}
	}

	for _, dir := range plan.Sections {
		// A source index for dir is always part of the plan and was
		// copied above.
		if _, ok := plan.SectionIndex(dir); ok {
			continue
		}
		idx := path.Join(dir, "_index.md")
		if err := dst.Write(idx, []byte(Placeholder(dir))); err != nil {
			return nil, fmt.Errorf("filter: synthesize %s: %w", idx, err)
		}
		res.Synthesized = append(res.Synthesized, idx)
		logger.Debug("filter: synthesized section index", slog.String("path", idx))
	}

	slices.Sort(res.Attachments)

	logger.Info("filter: content tree written",
		slog.Int("documents", len(res.Documents)),
		slog.Int("excluded", res.Excluded),
		slog.Int("attachments", len(res.Attachments)),
		slog.Int("synthesized", len(res.Synthesized)),
		slog.String("dest", destContent))
	return res, nil
}

// Placeholder returns the minimal section index written for dir when the
// source has none.
func Placeholder(dir string) string {
	return parser.Render(models.Fields{
		"title":      models.ScalarValue(Humanize(path.Base(dir))),
		"status":     models.ScalarValue(policy.StatusTree),
		"visibility": models.ScalarValue(policy.VisibilityPublic),
	}, "")
}

// Humanize turns a directory name into a title: separators become spaces
// and every word starts with an upper-case letter. The rest of each word
// is kept as written.
func Humanize(name string) string {
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return cases.Title(language.Und, cases.NoLower).String(strings.Join(strings.Fields(name), " "))
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func permissionError(content, dest string, err error) error {
	return fmt.Errorf("filter: cannot clear %s (fix ownership, e.g. `sudo chown -R $(id -u):$(id -g) %s`): %w: %w",
		content, dest, apperr.ErrPermission, err)
}

// copyAssets mirrors every top-level entry of src into dst except the
// content tree and skip entries. Directories are replaced wholesale.
func copyAssets(src, dst string, skip []string) ([]string, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("filter: read source root: %w", err)
	}
	dstAbs, _ := filepath.Abs(dst)

	var out []string
	for _, e := range entries {
		name := e.Name()
		if name == models.ContentDir || slices.Contains(skip, name) {
			continue
		}
		from := filepath.Join(src, name)
		if abs, _ := filepath.Abs(from); abs == dstAbs {
			continue
		}
		to := filepath.Join(dst, name)
		if e.IsDir() {
			err = storage.CopyTree(from, to)
		} else {
			err = storage.CopyFile(from, to)
		}
		if err != nil {
			return nil, fmt.Errorf("filter: copy asset %s: %w", name, err)
		}
		out = append(out, name)
	}
	return out, nil
}

func copyDoc(src, dst *storage.FS, rel string) error {
	from, err := src.Abs(rel)
	if err != nil {
		return err
	}
	to, err := dst.Abs(rel)
	if err != nil {
		return err
	}
	if err := storage.CopyFile(from, to); err != nil {
		return fmt.Errorf("filter: copy %s: %w", rel, err)
	}
	return nil
}

// copyAttachments copies the non-content files of a bundle, including those
// in nested resource directories. A nested directory holding its own index
// is a separate bundle or section and is left to the plan.
func copyAttachments(src, dst *storage.FS, dir string) ([]string, error) {
	root, err := src.Abs(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.WalkDir(root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			if p != root && hasIndex(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if !e.Type().IsRegular() || models.IsContentFile(e.Name()) {
			return nil
		}
		sub, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel := path.Join(dir, filepath.ToSlash(sub))
		if err := copyDoc(src, dst, rel); err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filter: read bundle %s: %w", dir, err)
	}
	return out, nil
}

// hasIndex reports whether dir directly holds a bundle or section index.
func hasIndex(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if kind, ok := models.KindOf(e.Name()); ok && kind != models.KindPage && e.Type().IsRegular() {
			return true
		}
	}
	return false
}
