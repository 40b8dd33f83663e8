// Package markdown extracts headings and links from a Markdown body using
// the goldmark parser.
package markdown

import (
	"bytes"
	"sort"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is an ATX or setext heading found in a body.
type Heading struct {
	Level int
	Text  string
}

// Parse parses a Markdown body (frontmatter already removed) into a goldmark AST.
func Parse(body []byte) gmast.Node {
	return goldmark.New().Parser().Parse(text.NewReader(body))
}

// Headings returns every heading of body in document order.
func Headings(body []byte) []Heading {
	root := Parse(body)
	var out []Heading
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		h, ok := n.(*gmast.Heading)
		if !ok {
			return gmast.WalkContinue, nil
		}
		out = append(out, Heading{Level: h.Level, Text: inlineText(h, body)})
		return gmast.WalkSkipChildren, nil
	})
	return out
}

// FirstH1 returns the text of the first level-1 heading, or "".
func FirstH1(body []byte) string {
	for _, h := range Headings(body) {
		if h.Level == 1 {
			return h.Text
		}
	}
	return ""
}

// Links returns the deduplicated, sorted destinations of inline links and
// images in body.
func Links(body []byte) []string {
	root := Parse(body)
	seen := make(map[string]struct{})
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Link:
			seen[string(node.Destination)] = struct{}{}
		case *gmast.Image:
			seen[string(node.Destination)] = struct{}{}
		case *gmast.AutoLink:
			seen[string(node.URL(body))] = struct{}{}
		}
		return gmast.WalkContinue, nil
	})
	out := make([]string, 0, len(seen))
	for dest := range seen {
		if dest != "" {
			out = append(out, dest)
		}
	}
	sort.Strings(out)
	return out
}

// inlineText concatenates the text segments below n.
func inlineText(n gmast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *gmast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *gmast.String:
			buf.Write(t.Value)
		}
		return gmast.WalkContinue, nil
	})
	return string(bytes.TrimSpace(buf.Bytes()))
}
