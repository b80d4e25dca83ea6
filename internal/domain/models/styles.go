package models

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var hexColorPattern = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// StyleProps holds the overridable style properties for one poster element.
type StyleProps struct {
	FontSize   *int    `json:"font_size,omitempty"`
	Color      *string `json:"color,omitempty"`
	FontFamily *string `json:"font_family,omitempty"`
}

// Validate checks that provided properties are usable by the renderer.
func (s StyleProps) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.FontSize, validation.Min(4), validation.Max(200)),
		validation.Field(&s.Color, validation.Match(hexColorPattern)),
	)
}

// ElementStyles is the sparse style-override mapping layered on top of
// theme defaults when rendering a deck.
type ElementStyles struct {
	Title           *StyleProps `json:"title,omitempty"`
	Abstract        *StyleProps `json:"abstract,omitempty"`
	Conclusion      *StyleProps `json:"conclusion,omitempty"`
	SectionTitle    *StyleProps `json:"section_title,omitempty"`
	SectionContent  *StyleProps `json:"section_content,omitempty"`
	SlideBackground *string     `json:"slide_background,omitempty"`
}

// ForRole returns the override props for a renderer role, or nil.
func (e *ElementStyles) ForRole(role string) *StyleProps {
	if e == nil {
		return nil
	}
	switch role {
	case "title":
		return e.Title
	case "abstract":
		return e.Abstract
	case "conclusion":
		return e.Conclusion
	case "section_title":
		return e.SectionTitle
	case "section_content":
		return e.SectionContent
	}
	return nil
}

// Validate checks each provided element's properties.
func (e *ElementStyles) Validate() error {
	if e == nil {
		return nil
	}
	for role, props := range map[string]*StyleProps{
		"title":           e.Title,
		"abstract":        e.Abstract,
		"conclusion":      e.Conclusion,
		"section_title":   e.SectionTitle,
		"section_content": e.SectionContent,
	} {
		if props == nil {
			continue
		}
		if err := props.Validate(); err != nil {
			return fmt.Errorf("style overrides for %s: %w", role, err)
		}
	}
	if e.SlideBackground != nil && !hexColorPattern.MatchString(*e.SlideBackground) {
		return fmt.Errorf("style overrides: slide_background %q is not a hex color", *e.SlideBackground)
	}
	return nil
}
