package deck

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"posterlab/internal/domain/models"
)

// EMU geometry. OOXML positions everything in English Metric Units.
const (
	emuPerInch = 914400

	slideWidth  = 12192000 // 13.33in, 16:9
	slideHeight = 6858000  // 7.5in
)

type textShape struct {
	text  string
	style textStyle
	x, y  int64
	w, h  int64
}

type imageShape struct {
	data []byte
	ext  string
	x, y int64
	w, h int64
}

type slideSpec struct {
	background string
	texts      []textShape
	image      *imageShape
}

// Renderer writes a poster snapshot as a PowerPoint deck. Rendering is
// pure with respect to the poster; the only side effect is the output
// file. Image failures degrade to a slide without that image.
type Renderer struct {
	logger *slog.Logger
	fetch  *imageFetcher
}

// NewRenderer creates a renderer. resolve maps managed image references
// to file paths; fetchTimeout bounds each remote image download.
func NewRenderer(logger *slog.Logger, resolve RefResolver, fetchTimeout time.Duration) *Renderer {
	return &Renderer{
		logger: logger,
		fetch:  newImageFetcher(resolve, fetchTimeout, logger),
	}
}

// Render writes the deck for poster to outputPath.
func (r *Renderer) Render(ctx context.Context, poster *models.Poster, outputPath string) error {
	theme := poster.SelectedTheme
	if theme == "" {
		theme = "default"
	}
	overrides := poster.StyleOverrides
	background := resolveBackground(theme, overrides)

	slides := []slideSpec{r.titleSlide(poster, theme, background, overrides)}

	for i := range poster.Sections {
		slides = append(slides, r.sectionSlide(ctx, &poster.Sections[i], theme, background, overrides))
	}

	if poster.Conclusion != nil && *poster.Conclusion != "" {
		slides = append(slides, r.conclusionSlide(*poster.Conclusion, theme, background, overrides))
	}

	if err := writePptx(outputPath, slides); err != nil {
		return fmt.Errorf("write deck: %w", err)
	}
	return nil
}

func (r *Renderer) titleSlide(poster *models.Poster, theme, background string, overrides *models.ElementStyles) slideSpec {
	slide := slideSpec{background: background}

	slide.texts = append(slide.texts, textShape{
		text:  poster.Title,
		style: resolveTextStyle(theme, roleTitle, overrides),
		x:     inches(0.5), y: inches(2.0),
		w: slideWidth - inches(1.0), h: inches(1.3),
	})

	if poster.Abstract != nil && *poster.Abstract != "" {
		slide.texts = append(slide.texts, textShape{
			text:  *poster.Abstract,
			style: resolveTextStyle(theme, roleAbstract, overrides),
			x:     inches(1.0), y: inches(3.6),
			w: slideWidth - inches(2.0), h: inches(2.2),
		})
	}
	return slide
}

func (r *Renderer) sectionSlide(ctx context.Context, section *models.Section, theme, background string, overrides *models.ElementStyles) slideSpec {
	slide := slideSpec{background: background}

	slide.texts = append(slide.texts, textShape{
		text:  section.Title,
		style: resolveTextStyle(theme, roleSectionTitle, overrides),
		x:     inches(0.5), y: inches(0.4),
		w: slideWidth - inches(1.0), h: inches(1.0),
	})

	content := ""
	if section.Content != nil {
		content = *section.Content
	}
	slide.texts = append(slide.texts, textShape{
		text:  content,
		style: resolveTextStyle(theme, roleSectionContent, overrides),
		x:     inches(0.5), y: inches(1.8),
		w: inches(5.2), h: inches(4.8),
	})

	// Only the first usable image is placed.
	for _, ref := range section.ImageRefs {
		img, ok := r.loadImage(ctx, ref, section.Title)
		if !ok {
			continue
		}
		slide.image = img
		break
	}
	return slide
}

func (r *Renderer) conclusionSlide(conclusion, theme, background string, overrides *models.ElementStyles) slideSpec {
	return slideSpec{
		background: background,
		texts: []textShape{
			{
				text:  "Conclusion",
				style: resolveTextStyle(theme, roleSectionTitle, overrides),
				x:     inches(0.5), y: inches(0.4),
				w: slideWidth - inches(1.0), h: inches(1.0),
			},
			{
				text:  conclusion,
				style: resolveTextStyle(theme, roleConclusion, overrides),
				x:     inches(0.5), y: inches(1.8),
				w: slideWidth - inches(1.0), h: inches(4.8),
			},
		},
	}
}

// loadImage fetches one image reference and sizes it into the reserved
// region to the right of the section body, preserving aspect ratio.
func (r *Renderer) loadImage(ctx context.Context, ref, sectionTitle string) (*imageShape, bool) {
	data, ext, err := r.fetch.fetch(ctx, ref)
	if err != nil {
		r.logger.Warn("skipping section image", "section", sectionTitle, "ref", ref, "error", err)
		return nil, false
	}

	const (
		maxW = 3.5 * emuPerInch
		maxH = 3.0 * emuPerInch
	)
	w, h := int64(maxW), int64(maxH)

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil && cfg.Width > 0 && cfg.Height > 0 {
		w = int64(maxW)
		h = w * int64(cfg.Height) / int64(cfg.Width)
		if h > int64(maxH) {
			scale := float64(maxH) / float64(h)
			h = int64(maxH)
			w = int64(float64(w) * scale)
		}
	}

	return &imageShape{
		data: data,
		ext:  ext,
		x:    inches(6.0), y: inches(1.8),
		w: w, h: h,
	}, true
}

func inches(in float64) int64 {
	return int64(in * emuPerInch)
}
