package repositories

import (
	"context"

	"posterlab/internal/domain/models"
)

// Optional carries an explicit presence bit alongside a value, so that
// "not provided" and "provided as zero/null" stay distinguishable in
// partial updates. For nullable columns T is a pointer type and a set
// nil value means "clear".
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// SectionDraft is the input shape for installing a section: everything
// but the identifier, which the store generates on insert.
type SectionDraft struct {
	Title     string
	Content   *string
	ImageRefs []string
}

// PosterUpdate describes a partial poster update. Only fields with the
// presence bit set are written; Sections, when set, is a full atomic
// replacement of the child collection with freshly generated IDs.
type PosterUpdate struct {
	Title          Optional[string]
	Abstract       Optional[*string]
	Conclusion     Optional[*string]
	SelectedTheme  Optional[string]
	StyleOverrides Optional[*models.ElementStyles]
	Sections       Optional[[]SectionDraft]
}

// Empty reports whether no field is staged.
func (u *PosterUpdate) Empty() bool {
	return !u.Title.Set && !u.Abstract.Set && !u.Conclusion.Set &&
		!u.SelectedTheme.Set && !u.StyleOverrides.Set && !u.Sections.Set
}

// PosterCreate holds the fields needed to create a poster.
type PosterCreate struct {
	Title          string
	Abstract       *string
	Conclusion     *string
	SelectedTheme  string
	StyleOverrides *models.ElementStyles
	Sections       []SectionDraft
}

// PosterRepository persists poster aggregates and their sections.
//
// ApplyUpdate performs all staged field writes, including whole-section
// replacement, in a single transaction and bumps last_modified.
// SetPreviewStatus and SetArtifactPaths are derived-artifact bookkeeping
// and do not bump last_modified.
type PosterRepository interface {
	Create(ctx context.Context, data *PosterCreate) (*models.Poster, error)
	GetByID(ctx context.Context, id string) (*models.Poster, error)
	List(ctx context.Context, limit, offset int) ([]models.Poster, error)
	ApplyUpdate(ctx context.Context, id string, update *PosterUpdate) (*models.Poster, error)
	SetArtifactPaths(ctx context.Context, id string, deckPath, previewPath Optional[*string]) (*models.Poster, error)
	SetPreviewStatus(ctx context.Context, id string, status models.PreviewStatus, imagePath, lastError *string) (*models.Poster, error)
	SetSectionImages(ctx context.Context, posterID, sectionID string, imageRefs []string) (*models.Poster, error)
	Delete(ctx context.Context, id string) (*models.Poster, error)
}
