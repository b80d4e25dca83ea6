package models

import (
	"fmt"
	"strings"
)

// Addressable poster elements for content edits.
const (
	TargetPosterTitle      = "poster_title"
	TargetPosterAbstract   = "poster_abstract"
	TargetPosterConclusion = "poster_conclusion"

	sectionTargetPrefix = "section_"
)

// SectionField identifies which field of a section a target addresses.
type SectionField string

const (
	SectionFieldTitle   SectionField = "title"
	SectionFieldContent SectionField = "content"
)

// Target is a parsed target element identifier.
// Either Element is one of the poster_* constants (SectionID empty), or
// Element is empty and SectionID/Field address one section's field.
type Target struct {
	Element   string
	SectionID string
	Field     SectionField
}

// IsSection reports whether the target addresses a section field.
func (t Target) IsSection() bool { return t.SectionID != "" }

// IsSectionTarget reports whether a raw identifier uses the section form,
// without validating the rest of it.
func IsSectionTarget(id string) bool {
	return strings.HasPrefix(id, sectionTargetPrefix)
}

// ParseTarget parses a target element identifier.
// Accepted forms: poster_title, poster_abstract, poster_conclusion,
// section_<id>_title, section_<id>_content.
func ParseTarget(id string) (Target, error) {
	switch id {
	case TargetPosterTitle, TargetPosterAbstract, TargetPosterConclusion:
		return Target{Element: id}, nil
	}

	if !IsSectionTarget(id) {
		return Target{}, fmt.Errorf("unknown target element %q", id)
	}

	// Section IDs are uuid hex and contain no underscores, so the
	// identifier splits into exactly three parts.
	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[1] == "" {
		return Target{}, fmt.Errorf("malformed section target %q", id)
	}

	field := SectionField(parts[2])
	if field != SectionFieldTitle && field != SectionFieldContent {
		return Target{}, fmt.Errorf("malformed section target %q: unknown field %q", id, parts[2])
	}

	return Target{SectionID: parts[1], Field: field}, nil
}
