// Package parser reads and writes the restricted frontmatter dialect used by
// garden content: scalar and flat list values only, no nesting.
package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/starford/gardensite/internal/markdown"
	"github.com/starford/gardensite/internal/models"
)

const delim = "---"

var (
	keyRe  = regexp.MustCompile(`^([A-Za-z0-9_-]+):\s*(.*)$`)
	itemRe = regexp.MustCompile(`^\s*-\s*(.+)$`)
)

// Parse splits text into frontmatter fields and body. It never fails:
// missing or unterminated frontmatter yields empty fields and the original
// text as body.
func Parse(text string) (models.Fields, string) {
	norm := normalizeNewlines(text)
	if !strings.HasPrefix(norm, delim+"\n") {
		return models.Fields{}, text
	}

	rest := norm[len(delim)+1:]
	block, body, ok := splitBlock(rest)
	if !ok {
		return models.Fields{}, text
	}
	return parseBlock(block), body
}

// splitBlock finds the first closing delimiter line in rest and returns the
// lines before it and the text after its line break.
func splitBlock(rest string) ([]string, string, bool) {
	var lines []string
	for pos := 0; pos <= len(rest); {
		end := strings.IndexByte(rest[pos:], '\n')
		var line string
		next := len(rest) + 1
		if end < 0 {
			line = rest[pos:]
		} else {
			line = rest[pos : pos+end]
			next = pos + end + 1
		}
		if strings.TrimRight(line, " \t") == delim {
			if next > len(rest) {
				return lines, "", true
			}
			return lines, rest[next:], true
		}
		lines = append(lines, line)
		if end < 0 {
			break
		}
		pos = next
	}
	return nil, "", false
}

// scanState is the list-continuation state of the block scanner.
type scanState struct {
	listKey string // "" when no list is active
}

func parseBlock(lines []string) models.Fields {
	fields := models.Fields{}
	var st scanState

	for _, raw := range lines {
		line := strings.TrimRight(raw, " \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if m := keyRe.FindStringSubmatch(line); m != nil {
			key, val := m[1], strings.TrimSpace(m[2])
			st.listKey = ""
			switch {
			case strings.HasPrefix(val, "[") && strings.HasSuffix(val, "]"):
				fields[key] = models.ListValue(splitInline(val[1 : len(val)-1])...)
			case val == "":
				fields[key] = models.ListValue()
				st.listKey = key
			default:
				fields[key] = models.ScalarValue(unquote(val))
			}
			continue
		}

		if m := itemRe.FindStringSubmatch(line); m != nil && st.listKey != "" {
			v := fields[st.listKey]
			v.List = append(v.List, unquote(strings.TrimSpace(m[1])))
			fields[st.listKey] = v
		}
	}
	return fields
}

func splitInline(inner string) []string {
	inner = strings.TrimSpace(inner)
	out := []string{}
	if inner == "" {
		return out
	}
	for _, piece := range strings.Split(inner, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		out = append(out, unquote(piece))
	}
	return out
}

func unquote(s string) string {
	return strings.Trim(s, `"'`)
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// keyOrder is the order Render writes well-known keys in.
var keyOrder = []string{
	"title", "type", "segment", "status", "visibility", "groups",
	"date", "event_date", "dossier", "dossier_key", "tags",
}

// Render serializes fields and body back into a document. Well-known keys
// come first in a fixed order, the rest sorted.
func Render(fields models.Fields, body string) string {
	var b strings.Builder
	b.WriteString(delim + "\n")

	written := make(map[string]struct{}, len(fields))
	for _, k := range keyOrder {
		if v, ok := fields[k]; ok {
			writeField(&b, k, v)
			written[k] = struct{}{}
		}
	}
	rest := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := written[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		writeField(&b, k, fields[k])
	}

	b.WriteString(delim + "\n")
	b.WriteString(body)
	return b.String()
}

func writeField(b *strings.Builder, key string, v models.Value) {
	switch {
	case v.IsList && len(v.List) == 0:
		b.WriteString(key + ": []\n")
	case v.IsList:
		b.WriteString(key + ":\n")
		for _, item := range v.List {
			b.WriteString("  - " + item + "\n")
		}
	case key == "title":
		b.WriteString(key + `: "` + v.Scalar + "\"\n")
	default:
		b.WriteString(key + ": " + v.Scalar + "\n")
	}
}

// Title returns the "title" field if present, otherwise the first H1
// heading of body, otherwise "".
func Title(fields models.Fields, body string) string {
	if t, ok := fields.Scalar("title"); ok && t != "" {
		return t
	}
	return markdown.FirstH1([]byte(body))
}
