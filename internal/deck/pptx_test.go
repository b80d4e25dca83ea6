package deck

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"posterlab/internal/domain"
	"posterlab/internal/domain/models"
)

func testRenderer(resolve RefResolver) *Renderer {
	if resolve == nil {
		resolve = func(ref string) (string, error) {
			return "", &domain.ValidationError{Message: "no local refs in this test"}
		}
	}
	return NewRenderer(slog.New(slog.DiscardHandler), resolve, time.Second)
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func readZipPart(t *testing.T, zr *zip.ReadCloser, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("open %s: %v", name, err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read %s: %v", name, err)
			}
			return string(data)
		}
	}
	t.Fatalf("part %s not found in package", name)
	return ""
}

func testPoster() *models.Poster {
	abstract := "An abstract about <important> things"
	content := "First section body"
	conclusion := "It works"
	return &models.Poster{
		ID:            "abc123",
		Title:         "Research & Results",
		Abstract:      &abstract,
		Conclusion:    &conclusion,
		SelectedTheme: "default",
		Sections: []models.Section{
			{ID: "s1", Title: "Methods", Content: &content, ImageRefs: []string{}},
		},
	}
}

func TestRenderProducesValidPackage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "deck.pptx")
	if err := testRenderer(nil).Render(context.Background(), testPoster(), out); err != nil {
		t.Fatalf("Render: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("open package: %v", err)
	}
	defer zr.Close()

	// Title slide + 1 section + conclusion
	for _, part := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"ppt/presentation.xml",
		"ppt/_rels/presentation.xml.rels",
		"ppt/slideMasters/slideMaster1.xml",
		"ppt/slideLayouts/slideLayout1.xml",
		"ppt/theme/theme1.xml",
		"ppt/slides/slide1.xml",
		"ppt/slides/slide2.xml",
		"ppt/slides/slide3.xml",
	} {
		readZipPart(t, zr, part)
	}

	slide1 := readZipPart(t, zr, "ppt/slides/slide1.xml")
	if !strings.Contains(slide1, "Research &amp; Results") {
		t.Error("title text missing or not escaped on title slide")
	}
	if !strings.Contains(slide1, "An abstract about &lt;important&gt; things") {
		t.Error("abstract text missing or not escaped")
	}
	if !strings.Contains(slide1, `sz="4000"`) {
		t.Error("title should render at 40pt")
	}

	slide2 := readZipPart(t, zr, "ppt/slides/slide2.xml")
	if !strings.Contains(slide2, "Methods") || !strings.Contains(slide2, "First section body") {
		t.Error("section slide is missing its text")
	}

	slide3 := readZipPart(t, zr, "ppt/slides/slide3.xml")
	if !strings.Contains(slide3, "Conclusion") || !strings.Contains(slide3, "It works") {
		t.Error("conclusion slide is missing its text")
	}
}

func TestRenderSkipsEmptyOptionalSlides(t *testing.T) {
	poster := testPoster()
	poster.Abstract = nil
	poster.Conclusion = nil
	poster.Sections = nil

	out := filepath.Join(t.TempDir(), "deck.pptx")
	if err := testRenderer(nil).Render(context.Background(), poster, out); err != nil {
		t.Fatalf("Render: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("open package: %v", err)
	}
	defer zr.Close()

	pres := readZipPart(t, zr, "ppt/presentation.xml")
	if got := strings.Count(pres, "<p:sldId "); got != 1 {
		t.Errorf("slide count = %d, want 1 (title only)", got)
	}
}

func TestRenderThemeBackground(t *testing.T) {
	poster := testPoster()
	poster.SelectedTheme = "minimalist_dark"

	out := filepath.Join(t.TempDir(), "deck.pptx")
	if err := testRenderer(nil).Render(context.Background(), poster, out); err != nil {
		t.Fatalf("Render: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	slide1 := readZipPart(t, zr, "ppt/slides/slide1.xml")
	if !strings.Contains(slide1, `<a:srgbClr val="1E1E1E"/>`) {
		t.Error("dark theme background not applied")
	}
	if !strings.Contains(slide1, `val="EEEEEE"`) {
		t.Error("dark theme title color not applied")
	}
}

func TestRenderEmbedsRemoteImage(t *testing.T) {
	img := tinyPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	}))
	defer srv.Close()

	poster := testPoster()
	poster.Sections[0].ImageRefs = []string{srv.URL + "/chart.png"}

	out := filepath.Join(t.TempDir(), "deck.pptx")
	if err := testRenderer(nil).Render(context.Background(), poster, out); err != nil {
		t.Fatalf("Render: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	media := readZipPart(t, zr, "ppt/media/image1.png")
	if media != string(img) {
		t.Error("embedded image bytes do not match the served image")
	}

	slide2 := readZipPart(t, zr, "ppt/slides/slide2.xml")
	if !strings.Contains(slide2, `r:embed="rId2"`) {
		t.Error("section slide does not reference the embedded image")
	}
	rels := readZipPart(t, zr, "ppt/slides/_rels/slide2.xml.rels")
	if !strings.Contains(rels, "../media/image1.png") {
		t.Error("slide relationships do not target the media part")
	}
}

func TestRenderEmbedsManagedUpload(t *testing.T) {
	img := tinyPNG(t)
	dir := t.TempDir()
	local := filepath.Join(dir, "upload.png")
	if err := os.WriteFile(local, img, 0o644); err != nil {
		t.Fatal(err)
	}

	resolve := func(ref string) (string, error) {
		if ref != "poster_abc123/section_s1/upload.png" {
			return "", fmt.Errorf("unexpected ref %q", ref)
		}
		return local, nil
	}

	poster := testPoster()
	poster.Sections[0].ImageRefs = []string{"poster_abc123/section_s1/upload.png"}

	out := filepath.Join(t.TempDir(), "deck.pptx")
	if err := testRenderer(resolve).Render(context.Background(), poster, out); err != nil {
		t.Fatalf("Render: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	readZipPart(t, zr, "ppt/media/image1.png")
}

func TestRenderSurvivesBadImageRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	poster := testPoster()
	poster.Sections[0].ImageRefs = []string{srv.URL + "/gone.png", "also/not/resolvable.png"}

	out := filepath.Join(t.TempDir(), "deck.pptx")
	if err := testRenderer(nil).Render(context.Background(), poster, out); err != nil {
		t.Fatalf("Render should not fail on unreachable images: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/media/") {
			t.Errorf("unexpected media part %s", f.Name)
		}
	}
}

func TestRenderOnlyFirstImageEmbedded(t *testing.T) {
	img := tinyPNG(t)
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	}))
	defer srv.Close()

	poster := testPoster()
	poster.Sections[0].ImageRefs = []string{srv.URL + "/a.png", srv.URL + "/b.png"}

	out := filepath.Join(t.TempDir(), "deck.pptx")
	if err := testRenderer(nil).Render(context.Background(), poster, out); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if hits != 1 {
		t.Errorf("downloaded %d images, want 1", hits)
	}
}
