// Package policy decides whether a document is publishable for an audience.
// Every function here is pure; unrecognized values fail closed.
package policy

import (
	"slices"
	"strings"

	"github.com/starford/gardensite/internal/models"
)

// Visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityGroup   = "group"
	VisibilityPrivate = "private"
)

// Status values.
const (
	StatusSeedling = "seedling"
	StatusPlant    = "plant"
	StatusTree     = "tree"
)

// TypeTimelineEntry is the document type exempt from structural fallback
// for its immediate section.
const TypeTimelineEntry = "timeline-entry"

// Visibility returns the normalized visibility of fields, "private" when
// absent or unrecognized.
func Visibility(fields models.Fields) string {
	switch v := normalized(fields, "visibility"); v {
	case VisibilityPublic, VisibilityGroup, VisibilityPrivate:
		return v
	default:
		return VisibilityPrivate
	}
}

// Status returns the normalized status of fields, "seedling" when absent or
// unrecognized.
func Status(fields models.Fields) string {
	switch s := normalized(fields, "status"); s {
	case StatusSeedling, StatusPlant, StatusTree:
		return s
	default:
		return StatusSeedling
	}
}

// Groups returns the group names of fields. A scalar counts as one group.
func Groups(fields models.Fields) []string {
	g := fields.Strings("groups")
	if g == nil {
		return []string{}
	}
	return g
}

// Type returns the trimmed "type" field or "".
func Type(fields models.Fields) string {
	t, _ := fields.Scalar("type")
	return strings.TrimSpace(t)
}

// ShouldInclude reports whether a document with the given frontmatter is
// part of the build for audience. group only matters for the group audience.
func ShouldInclude(fields models.Fields, audience models.Audience, group string) bool {
	switch audience {
	case models.AudiencePrivate:
		return true
	case models.AudiencePublic:
		s := Status(fields)
		return Visibility(fields) == VisibilityPublic && (s == StatusPlant || s == StatusTree)
	case models.AudienceGroup:
		switch Visibility(fields) {
		case VisibilityPublic:
			return true
		case VisibilityGroup:
			return group != "" && slices.Contains(Groups(fields), group)
		}
		return false
	default:
		return false
	}
}

func normalized(fields models.Fields, key string) string {
	v, _ := fields.Scalar(key)
	return strings.ToLower(strings.TrimSpace(v))
}
