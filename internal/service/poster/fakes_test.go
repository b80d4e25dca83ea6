package poster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"posterlab/internal/domain"
	"posterlab/internal/domain/models"
	"posterlab/internal/domain/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func writeMarkerFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("x"), 0o644)
}

// fakeRepo is an in-memory PosterRepository.
type fakeRepo struct {
	mu      sync.Mutex
	posters map[string]*models.Poster
	nextID  int

	applyErr     error
	statusErr    error
	setImagesErr error
	appliedCount int
	statusWrites []models.PreviewStatus
}

func newFakeRepo(posters ...*models.Poster) *fakeRepo {
	r := &fakeRepo{posters: map[string]*models.Poster{}}
	for _, p := range posters {
		r.posters[p.ID] = p
	}
	return r
}

func (r *fakeRepo) genID() string {
	r.nextID++
	return fmt.Sprintf("generated%04d", r.nextID)
}

func copyPoster(p *models.Poster) *models.Poster {
	cp := *p
	cp.Sections = make([]models.Section, len(p.Sections))
	for i, s := range p.Sections {
		cs := s
		cs.ImageRefs = append([]string{}, s.ImageRefs...)
		cp.Sections[i] = cs
	}
	return &cp
}

func (r *fakeRepo) Create(ctx context.Context, data *repositories.PosterCreate) (*models.Poster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &models.Poster{
		ID:             r.genID(),
		Title:          data.Title,
		Abstract:       data.Abstract,
		Conclusion:     data.Conclusion,
		SelectedTheme:  data.SelectedTheme,
		StyleOverrides: data.StyleOverrides,
		PreviewStatus:  models.PreviewPending,
		LastModified:   time.Now().UTC(),
		Sections:       []models.Section{},
	}
	for _, d := range data.Sections {
		p.Sections = append(p.Sections, models.Section{
			ID: r.genID(), PosterID: p.ID, Title: d.Title, Content: d.Content,
			ImageRefs: append([]string{}, d.ImageRefs...),
		})
	}
	r.posters[p.ID] = p
	return copyPoster(p), nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*models.Poster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posters[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("poster %s not found", id)}
	}
	return copyPoster(p), nil
}

func (r *fakeRepo) List(ctx context.Context, limit, offset int) ([]models.Poster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Poster{}
	for _, p := range r.posters {
		out = append(out, *copyPoster(p))
	}
	return out, nil
}

func (r *fakeRepo) ApplyUpdate(ctx context.Context, id string, update *repositories.PosterUpdate) (*models.Poster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applyErr != nil {
		return nil, r.applyErr
	}
	p, ok := r.posters[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("poster %s not found", id)}
	}
	r.appliedCount++

	if update.Title.Set {
		p.Title = update.Title.Value
	}
	if update.Abstract.Set {
		p.Abstract = update.Abstract.Value
	}
	if update.Conclusion.Set {
		p.Conclusion = update.Conclusion.Value
	}
	if update.SelectedTheme.Set {
		p.SelectedTheme = update.SelectedTheme.Value
	}
	if update.StyleOverrides.Set {
		p.StyleOverrides = update.StyleOverrides.Value
	}
	if update.Sections.Set {
		p.Sections = nil
		for _, d := range update.Sections.Value {
			p.Sections = append(p.Sections, models.Section{
				ID: r.genID(), PosterID: p.ID, Title: d.Title, Content: d.Content,
				ImageRefs: append([]string{}, d.ImageRefs...),
			})
		}
	}
	p.LastModified = time.Now().UTC()
	return copyPoster(p), nil
}

func (r *fakeRepo) SetArtifactPaths(ctx context.Context, id string, deckPath, previewPath repositories.Optional[*string]) (*models.Poster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posters[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("poster %s not found", id)}
	}
	if deckPath.Set {
		p.DeckFilePath = deckPath.Value
	}
	if previewPath.Set {
		p.PreviewImagePath = previewPath.Value
	}
	return copyPoster(p), nil
}

func (r *fakeRepo) SetPreviewStatus(ctx context.Context, id string, status models.PreviewStatus, imagePath, lastError *string) (*models.Poster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statusErr != nil {
		return nil, r.statusErr
	}
	p, ok := r.posters[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("poster %s not found", id)}
	}
	r.statusWrites = append(r.statusWrites, status)
	p.PreviewStatus = status
	switch status {
	case models.PreviewCompleted:
		p.PreviewImagePath = imagePath
		p.PreviewLastError = nil
	case models.PreviewFailed:
		p.PreviewLastError = lastError
	default:
		p.PreviewLastError = nil
	}
	return copyPoster(p), nil
}

func (r *fakeRepo) SetSectionImages(ctx context.Context, posterID, sectionID string, imageRefs []string) (*models.Poster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setImagesErr != nil {
		return nil, r.setImagesErr
	}
	p, ok := r.posters[posterID]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("poster %s not found", posterID)}
	}
	for i := range p.Sections {
		if p.Sections[i].ID == sectionID {
			p.Sections[i].ImageRefs = append([]string{}, imageRefs...)
			p.LastModified = time.Now().UTC()
			return copyPoster(p), nil
		}
	}
	return nil, &domain.NotFoundError{Message: fmt.Sprintf("section %s not found in poster %s", sectionID, posterID)}
}

func (r *fakeRepo) Delete(ctx context.Context, id string) (*models.Poster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posters[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("poster %s not found", id)}
	}
	delete(r.posters, id)
	return p, nil
}

// fakeCompleter returns a scripted completion and records prompts.
type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// fakeUploads records deletions instead of touching a filesystem.
type fakeUploads struct {
	saveRef     string
	saveErr     error
	deletedRefs []string
	deletedDirs []string
	purged      []string
}

func (f *fakeUploads) SaveSectionImage(posterID, sectionID, filename string, content io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	if f.saveRef != "" {
		return f.saveRef, nil
	}
	return fmt.Sprintf("poster_%s/section_%s/%s", posterID, sectionID, filename), nil
}

func (f *fakeUploads) ResolvePath(ref string) (string, error) { return "/resolved/" + ref, nil }

func (f *fakeUploads) DeleteRef(ref string) error {
	f.deletedRefs = append(f.deletedRefs, ref)
	return nil
}

func (f *fakeUploads) DeleteSectionDir(posterID, sectionID string) error {
	f.deletedDirs = append(f.deletedDirs, posterID+"/"+sectionID)
	return nil
}

func (f *fakeUploads) PurgePoster(posterID string) error {
	f.purged = append(f.purged, posterID)
	return nil
}

// fakeRenderer writes a marker file, or fails.
type fakeRenderer struct {
	err     error
	renders int
}

func (f *fakeRenderer) Render(ctx context.Context, poster *models.Poster, outputPath string) error {
	f.renders++
	if f.err != nil {
		return f.err
	}
	return writeMarkerFile(outputPath)
}

// fakeRasterizer returns a scripted image path, writes it, or fails.
type fakeRasterizer struct {
	err        error
	imagePath  string
	panics     bool
	rasterized int
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, deckPath, outputDir string) (string, error) {
	f.rasterized++
	if f.panics {
		panic("rasterizer exploded")
	}
	if f.err != nil {
		return "", f.err
	}
	if err := writeMarkerFile(f.imagePath); err != nil {
		return "", err
	}
	return f.imagePath, nil
}

// syncRunner executes jobs inline, making background behavior
// deterministic in tests.
type syncRunner struct {
	jobs []string
}

func (s *syncRunner) Enqueue(name string, fn func(ctx context.Context)) {
	s.jobs = append(s.jobs, name)
	fn(context.Background())
}

// heldRunner collects jobs without running them, so tests can observe
// the pending state and release jobs explicitly.
type heldRunner struct {
	jobs []func(ctx context.Context)
}

func (h *heldRunner) Enqueue(name string, fn func(ctx context.Context)) {
	h.jobs = append(h.jobs, fn)
}

func (h *heldRunner) runAll() {
	for _, fn := range h.jobs {
		fn(context.Background())
	}
	h.jobs = nil
}
