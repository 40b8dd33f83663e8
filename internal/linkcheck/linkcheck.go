// Package linkcheck finds root-relative links in a rendered site that do not
// resolve to a file in the same output tree.
package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoPages is returned when the output tree holds no HTML file.
var ErrNoPages = errors.New("linkcheck: no HTML files found")

// Broken is one unresolved link.
type Broken struct {
	File string // page containing the link, relative to the output root
	Href string
}

func (b Broken) String() string { return fmt.Sprintf("%s: broken link %s", b.File, b.Href) }

// Options configures a link check.
type Options struct {
	Output string
	Logger *slog.Logger
}

// Report is the outcome of a link check.
type Report struct {
	Files  int
	Links  int
	Broken []Broken
}

// Passed reports whether every link resolved.
func (r *Report) Passed() bool { return len(r.Broken) == 0 }

// Run checks every HTML file below opts.Output.
func Run(ctx context.Context, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("linkcheck: output: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("linkcheck: output is not a directory: %s", opts.Output)
	}

	pages, err := htmlFiles(opts.Output)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPages, opts.Output)
	}

	rep := &Report{Files: len(pages)}
	for _, rel := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hrefs, err := extractFile(filepath.Join(opts.Output, filepath.FromSlash(rel)))
		if err != nil {
			logger.Warn("linkcheck: unreadable page", slog.String("file", rel), slog.String("error", err.Error()))
			continue
		}
		for _, href := range hrefs {
			rep.Links++
			if !Resolves(opts.Output, href) {
				rep.Broken = append(rep.Broken, Broken{File: rel, Href: href})
			}
		}
	}

	logger.Info("linkcheck: done", slog.String("component", "linkcheck"),
		slog.Int("files", rep.Files), slog.Int("links", rep.Links), slog.Int("broken", len(rep.Broken)))
	return rep, nil
}

// Resolves reports whether the root-relative href points at a file below
// root, or at a directory holding an index.html.
func Resolves(root, href string) bool {
	target := href
	if i := strings.IndexAny(target, "#?"); i >= 0 {
		target = target[:i]
	}
	if target == "" || target == "/" {
		return true
	}
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}

	candidates := []string{target}
	if strings.HasSuffix(target, "/") {
		candidates = append(candidates, strings.TrimRight(target, "/"))
	}
	for _, c := range candidates {
		p := filepath.Join(root, filepath.FromSlash(strings.TrimLeft(c, "/")))
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			return true
		}
		if info.IsDir() {
			if idx, err := os.Stat(filepath.Join(p, "index.html")); err == nil && idx.Mode().IsRegular() {
				return true
			}
		}
	}
	return false
}

// Extract returns the root-relative href values in document order.
// Protocol-relative URLs ("//host/...") are external and skipped.
func Extract(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("linkcheck: parse HTML: %w", err)
	}

	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key != "href" {
					continue
				}
				if strings.HasPrefix(a.Val, "/") && !strings.HasPrefix(a.Val, "//") {
					out = append(out, a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

func extractFile(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return Extract(f)
}

func htmlFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".html") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("linkcheck: walk %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}
