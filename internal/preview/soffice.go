package preview

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// commandRunner executes an external command and returns its combined
// output. Swappable in tests.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// SofficeRasterizer converts slide decks to PNG previews by shelling out
// to LibreOffice in headless mode.
type SofficeRasterizer struct {
	command string
	timeout time.Duration
	logger  *slog.Logger
	run     commandRunner
}

// NewSofficeRasterizer creates a rasterizer that invokes command
// (normally "soffice") with the given per-conversion timeout.
func NewSofficeRasterizer(command string, timeout time.Duration, logger *slog.Logger) *SofficeRasterizer {
	return &SofficeRasterizer{
		command: command,
		timeout: timeout,
		logger:  logger,
		run:     runCommand,
	}
}

// Rasterize converts deckPath into a PNG inside outputDir and returns
// the image path. LibreOffice names the output after the input file's
// stem, so the result is located by that convention rather than parsed
// from process output.
func (r *SofficeRasterizer) Rasterize(ctx context.Context, deckPath, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create preview directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := []string{"--headless", "--convert-to", "png", "--outdir", outputDir, deckPath}
	r.logger.Debug("running rasterizer", "command", r.command, "deck", deckPath)

	output, err := r.run(ctx, r.command, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("rasterization timed out after %s", r.timeout)
		}
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return "", fmt.Errorf("rasterization failed: %w: %s", err, detail)
		}
		return "", fmt.Errorf("rasterization failed: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(deckPath), filepath.Ext(deckPath))
	imagePath := filepath.Join(outputDir, stem+".png")
	if _, err := os.Stat(imagePath); err != nil {
		return "", fmt.Errorf("rasterizer produced no output image at %s", imagePath)
	}

	return imagePath, nil
}
