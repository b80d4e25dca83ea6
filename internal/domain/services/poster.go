package services

import (
	"context"
	"io"

	"posterlab/internal/domain/models"
	"posterlab/internal/domain/repositories"
)

// PosterService handles poster session lifecycle and uploads.
type PosterService interface {
	// CreatePoster starts a new authoring session. An optional topic
	// seeds the initial title and abstract.
	CreatePoster(ctx context.Context, req *CreatePosterRequest) (*models.Poster, error)

	// GetPoster retrieves a poster with its sections.
	GetPoster(ctx context.Context, id string) (*models.Poster, error)

	// ListPosters returns posters ordered by last modification.
	ListPosters(ctx context.Context, limit, offset int) ([]models.Poster, error)

	// DeletePoster removes the poster, its sections, and best-effort
	// all files associated with it (uploads, deck, preview).
	DeletePoster(ctx context.Context, id string) (*models.Poster, error)

	// UploadSectionImage stores an uploaded image under the managed
	// upload root and appends its reference to the section's image list.
	UploadSectionImage(ctx context.Context, posterID, sectionID, filename string, content io.Reader) (*models.Poster, string, error)
}

// CreatePosterRequest is the input for starting a poster session.
type CreatePosterRequest struct {
	Topic *string `json:"topic,omitempty"`
}

// UpdateService reconciles one heterogeneous edit request against a poster.
type UpdateService interface {
	// ProcessUpdate stages the requested changes in order, applies them
	// atomically, and returns the updated poster plus a human-readable
	// summary of what happened. Sub-failures (LLM errors, bad targets)
	// are folded into the summary rather than escalated.
	ProcessUpdate(ctx context.Context, posterID string, req *UpdateRequest) (*models.Poster, string, error)
}

// UpdateRequest is a heterogeneous edit request. All fields are
// independent; any subset may be present. StyleOverrides and Sections
// carry explicit presence so "absent", "null" and "value" stay distinct.
type UpdateRequest struct {
	PromptText      *string
	TargetElementID *string
	IsDirectUpdate  bool
	SelectedTheme   *string
	StyleOverrides  repositories.Optional[*models.ElementStyles]
	Sections        repositories.Optional[[]repositories.SectionDraft]
}

// PreviewState classifies the outcome of a preview request for the caller.
type PreviewState string

const (
	// PreviewReady means the preview image exists and is current.
	PreviewReady PreviewState = "ready"
	// PreviewInProgress means regeneration is queued or running; poll again.
	PreviewInProgress PreviewState = "in_progress"
	// PreviewErrored means the last attempt failed and no retry was started.
	PreviewErrored PreviewState = "errored"
	// PreviewRetry means the stored state was inconsistent; try again shortly.
	PreviewRetry PreviewState = "retry"
)

// PreviewOutcome is the result of a preview request.
type PreviewOutcome struct {
	State     PreviewState
	Poster    *models.Poster
	ImagePath string // set when State == PreviewReady
}

// PreviewService orchestrates deck and preview regeneration.
type PreviewService interface {
	// GetPreview checks deck and preview staleness, schedules background
	// regeneration when needed, and reports the current state.
	GetPreview(ctx context.Context, posterID string) (*PreviewOutcome, error)

	// TriggerDeckGeneration regenerates the deck unconditionally,
	// persists its path, and queues a preview refresh.
	TriggerDeckGeneration(ctx context.Context, posterID string) (*models.Poster, error)
}

// Completer is a single-turn text completion call against the LLM
// collaborator. Failures must be catchable; they are folded into
// user-facing summaries, never escalated as faults.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// DeckRenderer writes a slide deck for a poster snapshot to outputPath.
// It is pure with respect to its inputs; its only side effect is the
// single file it writes.
type DeckRenderer interface {
	Render(ctx context.Context, poster *models.Poster, outputPath string) error
}

// Rasterizer converts a deck file into a preview image inside outputDir
// and returns the image path. It enforces its own timeout and returns an
// error (never panics) on any failure.
type Rasterizer interface {
	Rasterize(ctx context.Context, deckPath, outputDir string) (string, error)
}

// TaskRunner executes work off the request path, fire-and-forget.
// No ordering is guaranteed across jobs.
type TaskRunner interface {
	Enqueue(name string, fn func(ctx context.Context))
}

// UploadStore owns the managed upload directory tree.
type UploadStore interface {
	// SaveSectionImage stores content under poster_<id>/section_<id>/ and
	// returns the reference path relative to the upload root.
	SaveSectionImage(posterID, sectionID, filename string, content io.Reader) (string, error)

	// ResolvePath maps a stored relative reference to an absolute path,
	// rejecting anything that escapes the upload root.
	ResolvePath(ref string) (string, error)

	// DeleteRef removes a single referenced file. Remote URLs and unsafe
	// paths are ignored. Errors are returned for logging only.
	DeleteRef(ref string) error

	// DeleteSectionDir removes a section's upload directory.
	DeleteSectionDir(posterID, sectionID string) error

	// PurgePoster removes the poster's whole upload directory.
	PurgePoster(posterID string) error
}
