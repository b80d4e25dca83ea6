package poster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"posterlab/internal/domain"
	"posterlab/internal/domain/services"
)

func newServiceForTest(repo *fakeRepo, uploads *fakeUploads) services.PosterService {
	return NewService(repo, uploads, discardLogger())
}

func TestCreatePosterWithTopic(t *testing.T) {
	svc := newServiceForTest(newFakeRepo(), &fakeUploads{})

	created, err := svc.CreatePoster(context.Background(), &services.CreatePosterRequest{Topic: ptr("Marine Biology")})
	if err != nil {
		t.Fatalf("CreatePoster: %v", err)
	}
	if created.Title != "New Poster: Marine Biology" {
		t.Errorf("title = %q", created.Title)
	}
	if created.Abstract == nil || *created.Abstract != "Abstract for poster on Marine Biology." {
		t.Errorf("abstract = %v", created.Abstract)
	}
	if created.SelectedTheme != "default" {
		t.Errorf("theme = %q", created.SelectedTheme)
	}
	if len(created.Sections) != 0 {
		t.Errorf("sections = %d, want empty", len(created.Sections))
	}
}

func TestCreatePosterWithoutTopic(t *testing.T) {
	svc := newServiceForTest(newFakeRepo(), &fakeUploads{})

	for _, req := range []*services.CreatePosterRequest{nil, {}, {Topic: ptr("")}} {
		created, err := svc.CreatePoster(context.Background(), req)
		if err != nil {
			t.Fatalf("CreatePoster: %v", err)
		}
		if created.Title != "New Untitled Poster" {
			t.Errorf("title = %q", created.Title)
		}
		if created.Abstract == nil || *created.Abstract != "Initial abstract." {
			t.Errorf("abstract = %v", created.Abstract)
		}
	}
}

func TestListPostersClampsPagination(t *testing.T) {
	repo := newFakeRepo(basePoster())
	svc := newServiceForTest(repo, &fakeUploads{})

	for _, tc := range []struct {
		limit, offset int
	}{
		{0, 0},
		{-5, -3},
		{10_000, 2},
	} {
		if _, err := svc.ListPosters(context.Background(), tc.limit, tc.offset); err != nil {
			t.Fatalf("ListPosters(%d, %d): %v", tc.limit, tc.offset, err)
		}
	}
}

func TestDeletePosterCleansUpFiles(t *testing.T) {
	p := basePoster()
	dir := t.TempDir()
	deckPath := filepath.Join(dir, "p1.pptx")
	imagePath := filepath.Join(dir, "p1.png")
	for _, path := range []string{deckPath, imagePath} {
		if err := writeMarkerFile(path); err != nil {
			t.Fatal(err)
		}
	}
	p.DeckFilePath = &deckPath
	p.PreviewImagePath = &imagePath

	repo := newFakeRepo(p)
	uploads := &fakeUploads{}
	svc := newServiceForTest(repo, uploads)

	deleted, err := svc.DeletePoster(context.Background(), "p1")
	if err != nil {
		t.Fatalf("DeletePoster: %v", err)
	}
	if deleted.ID != "p1" {
		t.Errorf("deleted id = %s", deleted.ID)
	}
	if _, ok := repo.posters["p1"]; ok {
		t.Error("poster row still present")
	}
	if len(uploads.purged) != 1 || uploads.purged[0] != "p1" {
		t.Errorf("purged = %v", uploads.purged)
	}
	for _, path := range []string{deckPath, imagePath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s still on disk", path)
		}
	}
}

func TestDeletePosterNotFound(t *testing.T) {
	uploads := &fakeUploads{}
	svc := newServiceForTest(newFakeRepo(), uploads)

	_, err := svc.DeletePoster(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if len(uploads.purged) != 0 {
		t.Error("no purge for a missing poster")
	}
}

func TestUploadSectionImageAppendsRef(t *testing.T) {
	repo := newFakeRepo(basePoster())
	uploads := &fakeUploads{saveRef: "poster_p1/section_sec1/abcd.png"}
	svc := newServiceForTest(repo, uploads)

	updated, ref, err := svc.UploadSectionImage(context.Background(), "p1", "sec1", "photo.png", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("UploadSectionImage: %v", err)
	}
	if ref != "poster_p1/section_sec1/abcd.png" {
		t.Errorf("ref = %q", ref)
	}

	sec := updated.SectionByID("sec1")
	if sec == nil {
		t.Fatal("section missing from updated poster")
	}
	if len(sec.ImageRefs) != 2 || sec.ImageRefs[1] != ref {
		t.Errorf("image refs = %v, want existing ref plus the new one", sec.ImageRefs)
	}
}

func TestUploadSectionImageUnknownSection(t *testing.T) {
	repo := newFakeRepo(basePoster())
	uploads := &fakeUploads{}
	svc := newServiceForTest(repo, uploads)

	_, _, err := svc.UploadSectionImage(context.Background(), "p1", "nope", "photo.png", strings.NewReader("data"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestUploadSectionImageSaveFailure(t *testing.T) {
	repo := newFakeRepo(basePoster())
	uploads := &fakeUploads{saveErr: &domain.ValidationError{Message: "file type .exe is not allowed"}}
	svc := newServiceForTest(repo, uploads)

	_, _, err := svc.UploadSectionImage(context.Background(), "p1", "sec1", "virus.exe", strings.NewReader("data"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation failure", err)
	}
	if got := repo.posters["p1"].Sections[0].ImageRefs; len(got) != 1 {
		t.Errorf("image refs = %v, must be unchanged", got)
	}
}

func TestUploadSectionImageRemovesOrphanOnWriteFailure(t *testing.T) {
	repo := newFakeRepo(basePoster())
	repo.setImagesErr = errors.New("connection reset")
	uploads := &fakeUploads{saveRef: "poster_p1/section_sec1/abcd.png"}
	svc := newServiceForTest(repo, uploads)

	_, _, err := svc.UploadSectionImage(context.Background(), "p1", "sec1", "photo.png", strings.NewReader("data"))
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("err = %v, want write failure", err)
	}
	if len(uploads.deletedRefs) != 1 || uploads.deletedRefs[0] != "poster_p1/section_sec1/abcd.png" {
		t.Errorf("deleted refs = %v, want the orphaned file removed", uploads.deletedRefs)
	}
}
