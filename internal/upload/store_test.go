package upload

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"posterlab/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), 1<<20, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestSaveSectionImage(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.SaveSectionImage("p1", "s1", "chart.png", strings.NewReader("fake png bytes"))
	if err != nil {
		t.Fatalf("SaveSectionImage: %v", err)
	}

	if !strings.HasPrefix(ref, "poster_p1/section_s1/") {
		t.Errorf("ref = %q, want poster_p1/section_s1/ prefix", ref)
	}
	if !strings.HasSuffix(ref, ".png") {
		t.Errorf("ref = %q, want .png suffix", ref)
	}

	path, err := store.ResolvePath(ref)
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "fake png bytes" {
		t.Errorf("saved content = %q", data)
	}
}

func TestSaveSectionImageRejectsExtension(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"script.exe", "page.html", "noext", "archive.zip"} {
		_, err := store.SaveSectionImage("p1", "s1", name, strings.NewReader("x"))
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("SaveSectionImage(%q) error = %v, want validation error", name, err)
		}
	}
}

func TestSaveSectionImageRejectsOversized(t *testing.T) {
	store, err := NewStore(t.TempDir(), 10, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	_, err = store.SaveSectionImage("p1", "s1", "big.png", strings.NewReader(strings.Repeat("a", 11)))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}

	// The partial file must not be left behind
	dir := filepath.Join(store.root, "poster_p1", "section_s1")
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("oversized upload left %d files behind", len(entries))
	}
}

func TestResolvePathRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	for _, ref := range []string{"../secret.png", "poster_p1/../../etc/passwd", "/etc/passwd", ""} {
		if _, err := store.ResolvePath(ref); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("ResolvePath(%q) error = %v, want validation error", ref, err)
		}
	}
}

func TestDeleteRef(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.SaveSectionImage("p1", "s1", "a.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("SaveSectionImage: %v", err)
	}

	if err := store.DeleteRef(ref); err != nil {
		t.Fatalf("DeleteRef: %v", err)
	}
	path, _ := store.ResolvePath(ref)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still exists after DeleteRef")
	}

	// Deleting again is not an error
	if err := store.DeleteRef(ref); err != nil {
		t.Errorf("second DeleteRef: %v", err)
	}

	// Remote URLs and unsafe refs are skipped silently
	if err := store.DeleteRef("https://example.com/img.png"); err != nil {
		t.Errorf("DeleteRef(url): %v", err)
	}
	if err := store.DeleteRef("../outside.png"); err != nil {
		t.Errorf("DeleteRef(traversal): %v", err)
	}
}

func TestPurgePoster(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.SaveSectionImage("p1", "s1", "a.png", strings.NewReader("x")); err != nil {
		t.Fatalf("SaveSectionImage: %v", err)
	}
	if _, err := store.SaveSectionImage("p1", "s2", "b.gif", strings.NewReader("y")); err != nil {
		t.Fatalf("SaveSectionImage: %v", err)
	}

	if err := store.PurgePoster("p1"); err != nil {
		t.Fatalf("PurgePoster: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.root, "poster_p1")); !os.IsNotExist(err) {
		t.Error("poster directory still exists after purge")
	}
}

func TestSweepStale(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	old := filepath.Join(dir, "old.pptx")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().Add(-8 * 24 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}

	fresh := filepath.Join(dir, "fresh.pptx")
	if err := os.WriteFile(fresh, []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	SweepStale(logger, dir, 7*24*time.Hour)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale file survived the sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh file was removed by the sweep")
	}

	// A missing directory is quietly ignored
	SweepStale(logger, filepath.Join(dir, "missing"), time.Hour)
}
