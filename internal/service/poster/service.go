package poster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"posterlab/internal/domain"
	"posterlab/internal/domain/models"
	"posterlab/internal/domain/repositories"
	"posterlab/internal/domain/services"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Service implements services.PosterService
type Service struct {
	repo    repositories.PosterRepository
	uploads services.UploadStore
	logger  *slog.Logger
}

// NewService creates a new poster service
func NewService(repo repositories.PosterRepository, uploads services.UploadStore, logger *slog.Logger) services.PosterService {
	return &Service{
		repo:    repo,
		uploads: uploads,
		logger:  logger,
	}
}

// CreatePoster starts a new authoring session. The optional topic seeds
// the initial title and abstract.
func (s *Service) CreatePoster(ctx context.Context, req *services.CreatePosterRequest) (*models.Poster, error) {
	title := "New Untitled Poster"
	abstract := "Initial abstract."
	if req != nil && req.Topic != nil && *req.Topic != "" {
		title = fmt.Sprintf("New Poster: %s", *req.Topic)
		abstract = fmt.Sprintf("Abstract for poster on %s.", *req.Topic)
	}

	created, err := s.repo.Create(ctx, &repositories.PosterCreate{
		Title:         title,
		Abstract:      &abstract,
		SelectedTheme: "default",
		Sections:      []repositories.SectionDraft{},
	})
	if err != nil {
		return nil, fmt.Errorf("create poster: %w", err)
	}

	s.logger.Info("poster created", "poster_id", created.ID, "title", created.Title)
	return created, nil
}

// GetPoster retrieves a poster with its sections.
func (s *Service) GetPoster(ctx context.Context, id string) (*models.Poster, error) {
	return s.repo.GetByID(ctx, id)
}

// ListPosters returns posters ordered by last modification.
func (s *Service) ListPosters(ctx context.Context, limit, offset int) ([]models.Poster, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// DeletePoster removes the poster row and best-effort all files it
// referenced. File cleanup failures are logged, never escalated; the row
// deletion is the operation that matters.
func (s *Service) DeletePoster(ctx context.Context, id string) (*models.Poster, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.uploads.PurgePoster(id); err != nil {
		s.logger.Warn("could not purge poster uploads", "poster_id", id, "error", err)
	}
	s.removeArtifact(id, deleted.DeckFilePath, "deck")
	s.removeArtifact(id, deleted.PreviewImagePath, "preview")

	s.logger.Info("poster deleted", "poster_id", id)
	return deleted, nil
}

func (s *Service) removeArtifact(posterID string, path *string, kind string) {
	if path == nil || *path == "" {
		return
	}
	if err := os.Remove(*path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("could not remove generated file", "poster_id", posterID, "kind", kind, "path", *path, "error", err)
	}
}

// UploadSectionImage stores the uploaded file under the managed upload
// root and appends its reference to the section's image list.
func (s *Service) UploadSectionImage(ctx context.Context, posterID, sectionID, filename string, content io.Reader) (*models.Poster, string, error) {
	poster, err := s.repo.GetByID(ctx, posterID)
	if err != nil {
		return nil, "", err
	}

	section := poster.SectionByID(sectionID)
	if section == nil {
		return nil, "", &domain.NotFoundError{Message: fmt.Sprintf("section %s not found in poster %s", sectionID, posterID)}
	}

	ref, err := s.uploads.SaveSectionImage(posterID, sectionID, filename, content)
	if err != nil {
		return nil, "", err
	}

	refs := append(append([]string{}, section.ImageRefs...), ref)
	updated, err := s.repo.SetSectionImages(ctx, posterID, sectionID, refs)
	if err != nil {
		// The row write failed; don't leave the orphaned file behind.
		if derr := s.uploads.DeleteRef(ref); derr != nil {
			s.logger.Warn("could not remove orphaned upload", "ref", ref, "error", derr)
		}
		return nil, "", err
	}

	s.logger.Info("section image uploaded", "poster_id", posterID, "section_id", sectionID, "ref", ref)
	return updated, ref, nil
}
