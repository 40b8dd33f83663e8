package filter

import (
	"path"
	"sort"

	"github.com/starford/gardensite/internal/models"
	"github.com/starford/gardensite/internal/policy"
)

// Plan is the inclusion decision for one audience over a content tree. It is
// shared by the copier and the leak auditor so both agree on which pages
// and section indexes belong to a build.
type Plan struct {
	Audience models.Audience
	Group    string

	// Included holds every included document (regular and section index),
	// sorted by path.
	Included []*models.Document
	// Excluded holds every other document, sorted by path.
	Excluded []*models.Document
	// Sections lists the directories (content root excluded) that need a
	// section index because an included document lives below them.
	Sections []string

	included    map[string]struct{}
	structural  map[string]struct{}
	sectionDocs map[string]*models.Document
}

// NewPlan decides inclusion for docs. docs must be sorted by path.
func NewPlan(docs []*models.Document, audience models.Audience, group string) *Plan {
	p := &Plan{
		Audience:    audience,
		Group:       group,
		included:    make(map[string]struct{}),
		structural:  make(map[string]struct{}),
		sectionDocs: make(map[string]*models.Document),
	}

	bundleDirs := make(map[string]struct{})
	for _, d := range docs {
		switch d.Kind {
		case models.KindSection:
			if _, dup := p.sectionDocs[d.Dir()]; !dup {
				p.sectionDocs[d.Dir()] = d
			}
		case models.KindBundle:
			bundleDirs[d.Dir()] = struct{}{}
		}
	}

	// Regular documents are decided by policy alone; every included one
	// marks its structural ancestors.
	ancestors := make(map[string]struct{})
	for _, d := range docs {
		if d.Kind == models.KindSection {
			continue
		}
		if !policy.ShouldInclude(d.Fields, audience, group) {
			continue
		}
		p.included[d.Path] = struct{}{}
		for _, dir := range structuralAncestors(d) {
			ancestors[dir] = struct{}{}
		}
	}

	for _, d := range docs {
		if d.Kind != models.KindSection {
			continue
		}
		switch _, needed := ancestors[d.Dir()]; {
		case policy.ShouldInclude(d.Fields, audience, group):
			p.included[d.Path] = struct{}{}
		case needed:
			p.included[d.Path] = struct{}{}
			p.structural[d.Path] = struct{}{}
		}
	}

	for _, d := range docs {
		if _, ok := p.included[d.Path]; ok {
			p.Included = append(p.Included, d)
		} else {
			p.Excluded = append(p.Excluded, d)
		}
	}

	for dir := range ancestors {
		if dir == "" {
			continue
		}
		if _, isBundle := bundleDirs[dir]; isBundle {
			continue
		}
		p.Sections = append(p.Sections, dir)
	}
	sort.Strings(p.Sections)
	return p
}

// Includes reports whether the document at path is part of the build.
func (p *Plan) Includes(docPath string) bool {
	_, ok := p.included[docPath]
	return ok
}

// Structural reports whether the section index at path is included only
// because an included document lives below it.
func (p *Plan) Structural(docPath string) bool {
	_, ok := p.structural[docPath]
	return ok
}

// SectionIndex returns the source section index of dir, if any.
func (p *Plan) SectionIndex(dir string) (*models.Document, bool) {
	d, ok := p.sectionDocs[dir]
	return d, ok
}

// structuralAncestors returns the section directories above d, nearest
// first, ending with the content root "". A leaf bundle's own directory is
// not a section. A timeline entry does not claim its immediate section.
func structuralAncestors(d *models.Document) []string {
	start := d.SectionDir()
	if policy.Type(d.Fields) == policy.TypeTimelineEntry {
		if start == "" {
			return nil
		}
		start = parentDir(start)
	}

	var out []string
	for dir := start; ; dir = parentDir(dir) {
		out = append(out, dir)
		if dir == "" {
			return out
		}
	}
}

func parentDir(dir string) string {
	p := path.Dir(dir)
	if p == "." || p == "/" {
		return ""
	}
	return p
}
