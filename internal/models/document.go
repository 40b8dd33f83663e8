// Package models defines the domain types for gardensite.
package models

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// ContentDir is the name of the content subtree inside a site root.
const ContentDir = "content"

// Kind classifies a content document by its file name.
type Kind string

const (
	// KindSection is a section-index sentinel (_index.md).
	KindSection Kind = "section"
	// KindBundle is a leaf page bundle (index.md).
	KindBundle Kind = "bundle"
	// KindPage is a regular slug document (<slug>.md).
	KindPage Kind = "page"
)

var contentExts = []string{".md", ".markdown"}

// IsContentFile reports whether name carries a content-file extension.
func IsContentFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range contentExts {
		if ext == e {
			return true
		}
	}
	return false
}

// KindOf classifies a content file name. ok is false for non-content files.
func KindOf(name string) (kind Kind, ok bool) {
	if !IsContentFile(name) {
		return "", false
	}
	switch Stem(name) {
	case "_index":
		return KindSection, true
	case "index":
		return KindBundle, true
	default:
		return KindPage, true
	}
}

// Stem returns the base name of p without its extension.
func Stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// DocumentMeta is a lightweight representation returned by tree listings.
type DocumentMeta struct {
	Path     string `json:"path"`
	Kind     Kind   `json:"kind"`
	Checksum string `json:"checksum"`
}

// Dir returns the slash-separated directory holding the document,
// "" for the content root.
func (m DocumentMeta) Dir() string {
	return cleanDir(path.Dir(m.Path))
}

// Document is a parsed content file. Fields are kept as the raw parser
// output so that policy decisions stay in one place.
type Document struct {
	DocumentMeta
	Fields Fields `json:"fields,omitempty"`
	Body   string `json:"-"`
}

// Fields maps frontmatter keys to values. Absent keys mean "not set".
type Fields map[string]Value

// Scalar returns the scalar stored under key. ok is false when the key is
// absent or holds a list.
func (f Fields) Scalar(key string) (string, bool) {
	v, found := f[key]
	if !found || v.IsList {
		return "", false
	}
	return v.Scalar, true
}

// Strings returns the value under key as a list. A non-empty scalar is
// treated as a single-element list.
func (f Fields) Strings(key string) []string {
	v, found := f[key]
	switch {
	case !found:
		return nil
	case v.IsList:
		return v.List
	case v.Scalar == "":
		return nil
	default:
		return []string{v.Scalar}
	}
}

// Value is a frontmatter value: either a scalar or a flat list of strings.
type Value struct {
	Scalar string
	List   []string
	IsList bool
}

// ScalarValue returns a scalar Value.
func ScalarValue(s string) Value { return Value{Scalar: s} }

// ListValue returns a list Value; a nil items slice becomes an empty list.
func ListValue(items ...string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{List: items, IsList: true}
}

// String renders the value for diagnostics.
func (v Value) String() string {
	if v.IsList {
		return "[" + strings.Join(v.List, ", ") + "]"
	}
	return v.Scalar
}

// SectionDir returns the directory of the section that directly contains the
// document. For a leaf bundle this is the parent of the bundle directory; for
// a section index it is the parent of the section it describes.
func (m DocumentMeta) SectionDir() string {
	switch m.Kind {
	case KindBundle, KindSection:
		d := m.Dir()
		if d == "" {
			return ""
		}
		return cleanDir(path.Dir(d))
	default:
		return m.Dir()
	}
}

// OutputPath returns the slash-separated path, relative to the rendered
// output root, of the index page a generator produces for the document.
func (m DocumentMeta) OutputPath() string {
	switch m.Kind {
	case KindSection, KindBundle:
		return path.Join(m.Dir(), "index.html")
	default:
		return path.Join(m.Dir(), Stem(m.Path), "index.html")
	}
}

func cleanDir(d string) string {
	if d == "." || d == "/" {
		return ""
	}
	return d
}

// Audience is the publication target a run filters for.
type Audience string

const (
	AudiencePublic  Audience = "public"
	AudienceGroup   Audience = "group"
	AudiencePrivate Audience = "private"
)

// Audiences lists every valid audience in display order.
func Audiences() []string {
	return []string{string(AudiencePublic), string(AudienceGroup), string(AudiencePrivate)}
}

// ParseAudience converts s into an Audience.
func ParseAudience(s string) (Audience, error) {
	switch a := Audience(strings.ToLower(strings.TrimSpace(s))); a {
	case AudiencePublic, AudienceGroup, AudiencePrivate:
		return a, nil
	default:
		return "", fmt.Errorf("unknown audience %q (want one of %s)", s, strings.Join(Audiences(), ", "))
	}
}

// MarshalJSON encodes a scalar as a JSON string and a list as an array.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsList {
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Scalar)
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = ListValue(list...)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("models: frontmatter value must be a string or list: %w", err)
	}
	*v = ScalarValue(s)
	return nil
}
