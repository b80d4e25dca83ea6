package deck

import (
	"strings"

	"posterlab/internal/domain/models"
)

// Renderer roles. Each poster element maps to one role, which picks its
// theme defaults and its override slot.
const (
	roleTitle          = "title"
	roleAbstract       = "abstract"
	roleSectionTitle   = "section_title"
	roleSectionContent = "section_content"
	roleConclusion     = "conclusion"
)

// textStyle is the fully resolved style for one text shape.
type textStyle struct {
	Color      string // RRGGBB
	SizePt     int
	Centered   bool
	FontFamily string
}

// themeBackground returns the slide background color for a theme.
func themeBackground(theme string) string {
	switch theme {
	case "minimalist_dark":
		return "1E1E1E"
	case "creative_warm":
		return "FFF8F0"
	default:
		return "FFFFFF"
	}
}

// resolveBackground layers the slide_background override, when present
// and parseable, over the theme background.
func resolveBackground(theme string, overrides *models.ElementStyles) string {
	bg := themeBackground(theme)
	if overrides != nil && overrides.SlideBackground != nil {
		if hex, ok := normalizeHex(*overrides.SlideBackground); ok {
			bg = hex
		}
	}
	return bg
}

// baseColor returns the theme's text color for a role. Section content
// and the conclusion body share the body color.
func baseColor(theme, role string) string {
	body := role == roleSectionContent || role == roleConclusion

	switch theme {
	case "minimalist_dark":
		if body {
			return "CCCCCC"
		}
		return "EEEEEE"
	case "professional_blue":
		switch role {
		case roleTitle:
			return "003366"
		case roleSectionTitle:
			return "005A9C"
		default:
			return "222222"
		}
	case "creative_warm":
		switch role {
		case roleTitle:
			return "B7410E"
		case roleSectionTitle:
			return "D9534F"
		default:
			return "3C3C3C"
		}
	default:
		return "101010"
	}
}

// resolveTextStyle computes the final style for a role: theme defaults
// first, then any matching override on top. Malformed override colors
// are ignored rather than failing the render.
func resolveTextStyle(theme, role string, overrides *models.ElementStyles) textStyle {
	st := textStyle{Color: baseColor(theme, role)}

	switch role {
	case roleTitle:
		st.SizePt = 40
		st.Centered = true
	case roleAbstract:
		st.SizePt = 24
		st.Centered = true
	case roleSectionTitle:
		st.SizePt = 32
	default:
		st.SizePt = 16
	}

	props := overrides.ForRole(role)
	if props == nil {
		return st
	}
	if props.Color != nil {
		if hex, ok := normalizeHex(*props.Color); ok {
			st.Color = hex
		}
	}
	if props.FontSize != nil && *props.FontSize > 0 {
		st.SizePt = *props.FontSize
	}
	if props.FontFamily != nil && *props.FontFamily != "" {
		st.FontFamily = *props.FontFamily
	}
	return st
}

// normalizeHex strips a leading '#' and uppercases a 6-digit hex color.
func normalizeHex(s string) (string, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return "", false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return "", false
		}
	}
	return strings.ToUpper(s), true
}
