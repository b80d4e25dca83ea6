package poster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"posterlab/internal/domain"
	"posterlab/internal/domain/models"
	"posterlab/internal/domain/repositories"
	"posterlab/internal/domain/services"
)

// PreviewController drives the preview state machine. The persisted
// preview_status row is the single source of truth; the controller never
// holds poster-wide locks, so two rapid requests can both observe a
// stale state and enqueue jobs (the last job to finish wins).
type PreviewController struct {
	repo       repositories.PosterRepository
	renderer   services.DeckRenderer
	rasterizer services.Rasterizer
	tasks      services.TaskRunner
	deckDir    string
	previewDir string
	logger     *slog.Logger
}

// NewPreviewController creates a new preview pipeline controller
func NewPreviewController(
	repo repositories.PosterRepository,
	renderer services.DeckRenderer,
	rasterizer services.Rasterizer,
	tasks services.TaskRunner,
	deckDir, previewDir string,
	logger *slog.Logger,
) *PreviewController {
	return &PreviewController{
		repo:       repo,
		renderer:   renderer,
		rasterizer: rasterizer,
		tasks:      tasks,
		deckDir:    deckDir,
		previewDir: previewDir,
		logger:     logger,
	}
}

// GetPreview checks deck and preview freshness, schedules background
// regeneration when needed, and reports the current state.
func (c *PreviewController) GetPreview(ctx context.Context, posterID string) (*services.PreviewOutcome, error) {
	poster, err := c.repo.GetByID(ctx, posterID)
	if err != nil {
		return nil, err
	}

	poster, deckPath, err := c.ensureFreshDeck(ctx, poster)
	if err != nil {
		return nil, err
	}

	if c.previewStale(poster, deckPath) && poster.PreviewStatus != models.PreviewGenerating {
		poster, err = c.repo.SetPreviewStatus(ctx, posterID, models.PreviewPending, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("mark preview pending: %w", err)
		}
		c.enqueueRefresh(posterID, deckPath)
		return &services.PreviewOutcome{State: services.PreviewInProgress, Poster: poster}, nil
	}

	switch poster.PreviewStatus {
	case models.PreviewPending, models.PreviewGenerating:
		return &services.PreviewOutcome{State: services.PreviewInProgress, Poster: poster}, nil
	case models.PreviewCompleted:
		if poster.PreviewImagePath != nil && fileExists(*poster.PreviewImagePath) {
			return &services.PreviewOutcome{
				State:     services.PreviewReady,
				Poster:    poster,
				ImagePath: *poster.PreviewImagePath,
			}, nil
		}
	case models.PreviewFailed:
		return &services.PreviewOutcome{State: services.PreviewErrored, Poster: poster}, nil
	}

	// Inconsistent state; the next request will re-run the staleness check.
	c.logger.Warn("inconsistent preview state",
		"poster_id", posterID,
		"status", poster.PreviewStatus,
		"image_path", poster.PreviewImagePath,
	)
	return &services.PreviewOutcome{State: services.PreviewRetry, Poster: poster}, nil
}

// TriggerDeckGeneration regenerates the deck unconditionally, persists
// its path, and queues a preview refresh.
func (c *PreviewController) TriggerDeckGeneration(ctx context.Context, posterID string) (*models.Poster, error) {
	poster, err := c.repo.GetByID(ctx, posterID)
	if err != nil {
		return nil, err
	}

	deckPath := c.deckPath(posterID)
	if err := c.renderDeck(ctx, poster, deckPath); err != nil {
		return nil, err
	}

	poster, err = c.repo.SetArtifactPaths(ctx, posterID, repositories.Some(&deckPath), repositories.Optional[*string]{})
	if err != nil {
		return nil, fmt.Errorf("record deck path: %w", err)
	}

	poster, err = c.repo.SetPreviewStatus(ctx, posterID, models.PreviewPending, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("mark preview pending: %w", err)
	}

	c.enqueueRefresh(posterID, deckPath)
	return poster, nil
}

// ensureFreshDeck regenerates the deck synchronously when it is missing
// or older than the poster's last modification. Deck rendering is local
// and cheap, so it stays on the request path.
func (c *PreviewController) ensureFreshDeck(ctx context.Context, poster *models.Poster) (*models.Poster, string, error) {
	deckPath := c.deckPath(poster.ID)

	current := poster.DeckFilePath != nil && *poster.DeckFilePath != ""
	if current {
		deckPath = *poster.DeckFilePath
		mtime, ok := fileMtime(deckPath)
		current = ok && !mtime.Before(poster.LastModified)
	}
	if current {
		return poster, deckPath, nil
	}

	deckPath = c.deckPath(poster.ID)
	if err := c.renderDeck(ctx, poster, deckPath); err != nil {
		return nil, "", err
	}

	updated, err := c.repo.SetArtifactPaths(ctx, poster.ID, repositories.Some(&deckPath), repositories.Optional[*string]{})
	if err != nil {
		return nil, "", fmt.Errorf("record deck path: %w", err)
	}
	return updated, deckPath, nil
}

// renderDeck renders the deck and records a failed preview status when
// rendering breaks, since no preview can follow from a broken deck.
func (c *PreviewController) renderDeck(ctx context.Context, poster *models.Poster, deckPath string) error {
	if err := os.MkdirAll(c.deckDir, 0o755); err != nil {
		return fmt.Errorf("create deck directory: %w", err)
	}
	if err := c.renderer.Render(ctx, poster, deckPath); err != nil {
		msg := fmt.Sprintf("deck generation failed: %v", err)
		if _, serr := c.repo.SetPreviewStatus(ctx, poster.ID, models.PreviewFailed, nil, &msg); serr != nil {
			c.logger.Error("could not record deck failure", "poster_id", poster.ID, "error", serr)
		}
		return fmt.Errorf("render deck: %w", err)
	}
	return nil
}

// previewStale reports whether the preview image needs regeneration:
// the last attempt failed, no image exists, or the deck is newer. Only
// a generating status counts as work in flight; pending is not, since a
// pending row with no live job (fresh poster, lost job) must be able to
// schedule one.
func (c *PreviewController) previewStale(poster *models.Poster, deckPath string) bool {
	if poster.PreviewStatus == models.PreviewFailed {
		return true
	}
	if poster.PreviewStatus == models.PreviewGenerating {
		return false
	}
	if poster.PreviewImagePath == nil || !fileExists(*poster.PreviewImagePath) {
		return true
	}

	previewMtime, ok := fileMtime(*poster.PreviewImagePath)
	if !ok {
		return true
	}
	if deckMtime, ok := fileMtime(deckPath); ok && deckMtime.After(previewMtime) {
		return true
	}
	return false
}

func (c *PreviewController) enqueueRefresh(posterID, deckPath string) {
	c.tasks.Enqueue("preview:"+posterID, func(ctx context.Context) {
		c.runPreviewJob(ctx, posterID, deckPath)
	})
}

// runPreviewJob is the background job body. It must never leave the
// poster stuck in "generating": every failure path, panics included,
// records a failed status. If even that final write fails, the failure
// is logged and the job ends.
func (c *PreviewController) runPreviewJob(ctx context.Context, posterID, deckPath string) {
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("preview job panicked: %v", rec)
			c.logger.Error("preview job panicked", "poster_id", posterID, "error", rec)
			c.recordStatus(ctx, posterID, models.PreviewFailed, nil, &msg)
		}
	}()

	if _, err := c.repo.SetPreviewStatus(ctx, posterID, models.PreviewGenerating, nil, nil); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Poster deleted after the job was queued; nothing to do.
			c.logger.Debug("preview job for deleted poster", "poster_id", posterID)
			return
		}
		c.logger.Error("could not mark preview generating", "poster_id", posterID, "error", err)
		return
	}

	imagePath, err := c.rasterizer.Rasterize(ctx, deckPath, c.previewDir)
	if err != nil {
		msg := err.Error()
		c.recordStatus(ctx, posterID, models.PreviewFailed, nil, &msg)
		return
	}

	c.recordStatus(ctx, posterID, models.PreviewCompleted, &imagePath, nil)
}

func (c *PreviewController) recordStatus(ctx context.Context, posterID string, status models.PreviewStatus, imagePath, lastError *string) {
	if _, err := c.repo.SetPreviewStatus(ctx, posterID, status, imagePath, lastError); err != nil {
		c.logger.Error("could not record preview status",
			"poster_id", posterID,
			"status", status,
			"error", err,
		)
	}
}

func (c *PreviewController) deckPath(posterID string) string {
	return filepath.Join(c.deckDir, posterID+".pptx")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fileMtime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
