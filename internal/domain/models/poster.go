package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// PreviewStatus tracks the lifecycle of the derived preview image.
// The stored status row is the single source of truth for the preview
// pipeline; clients must treat unrecognized values as transient.
type PreviewStatus string

const (
	PreviewPending    PreviewStatus = "pending"
	PreviewGenerating PreviewStatus = "generating"
	PreviewCompleted  PreviewStatus = "completed"
	PreviewFailed     PreviewStatus = "failed"
)

// Valid reports whether s is one of the four known states.
func (s PreviewStatus) Valid() bool {
	switch s {
	case PreviewPending, PreviewGenerating, PreviewCompleted, PreviewFailed:
		return true
	}
	return false
}

// KnownThemes is the closed set of selectable deck themes.
var KnownThemes = []string{"default", "minimalist_dark", "professional_blue", "creative_warm"}

// IsKnownTheme reports whether the theme identifier is selectable.
func IsKnownTheme(theme string) bool {
	for _, t := range KnownThemes {
		if t == theme {
			return true
		}
	}
	return false
}

// Poster is the root aggregate being authored.
type Poster struct {
	ID               string         `json:"poster_id" db:"id"`
	Title            string         `json:"title" db:"title"`
	Abstract         *string        `json:"abstract" db:"abstract"`
	Conclusion       *string        `json:"conclusion" db:"conclusion"`
	SelectedTheme    string         `json:"selected_theme" db:"selected_theme"`
	StyleOverrides   *ElementStyles `json:"style_overrides" db:"style_overrides"`
	DeckFilePath     *string        `json:"deck_file_path" db:"deck_file_path"`
	PreviewImagePath *string        `json:"preview_image_path" db:"preview_image_path"`
	PreviewStatus    PreviewStatus  `json:"preview_status" db:"preview_status"`
	PreviewLastError *string        `json:"preview_last_error" db:"preview_last_error"`
	LastModified     time.Time      `json:"last_modified" db:"last_modified"`
	Sections         []Section      `json:"sections"`
}

// Section is a titled content block owned by exactly one poster.
// ImageRefs entries are either http(s) URLs or paths relative to the
// managed upload root; relative refs must never escape the root.
type Section struct {
	ID        string   `json:"section_id" db:"id"`
	PosterID  string   `json:"-" db:"poster_id"`
	Title     string   `json:"section_title" db:"title"`
	Content   *string  `json:"section_content" db:"content"`
	ImageRefs []string `json:"image_urls" db:"image_refs"`
}

// SectionByID returns the section with the given ID, or nil.
func (p *Poster) SectionByID(id string) *Section {
	for i := range p.Sections {
		if p.Sections[i].ID == id {
			return &p.Sections[i]
		}
	}
	return nil
}

// Validate checks aggregate-level invariants before persistence.
func (p *Poster) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Title, validation.Required),
		validation.Field(&p.SelectedTheme, validation.Required, validation.By(themeRule)),
		validation.Field(&p.PreviewStatus, validation.By(statusRule)),
	)
}

func themeRule(value interface{}) error {
	theme, _ := value.(string)
	if !IsKnownTheme(theme) {
		return validation.NewError("validation_unknown_theme", "must be a known theme")
	}
	return nil
}

func statusRule(value interface{}) error {
	status, _ := value.(PreviewStatus)
	if !status.Valid() {
		return validation.NewError("validation_unknown_status", "must be a known preview status")
	}
	return nil
}
