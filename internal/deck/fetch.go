package deck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// maxImageBytes caps how much image data is read for a single embed.
const maxImageBytes = 10 << 20

// RefResolver maps a managed image reference to an absolute file path.
// It must reject anything outside the managed upload root.
type RefResolver func(ref string) (string, error)

// imageFetcher loads image bytes for a reference, which is either an
// http(s) URL or a managed upload reference.
type imageFetcher struct {
	client  *http.Client
	resolve RefResolver
	logger  *slog.Logger
}

func newImageFetcher(resolve RefResolver, timeout time.Duration, logger *slog.Logger) *imageFetcher {
	return &imageFetcher{
		client:  &http.Client{Timeout: timeout},
		resolve: resolve,
		logger:  logger,
	}
}

// fetch returns the image bytes and normalized extension ("png", "jpeg"
// or "gif") for a reference.
func (f *imageFetcher) fetch(ctx context.Context, ref string) ([]byte, string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return f.fetchRemote(ctx, ref)
	}
	return f.fetchLocal(ref)
}

func (f *imageFetcher) fetchRemote(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}

	ext := extFromName(path.Base(url))
	if ext == "" {
		ext = extFromContentType(resp.Header.Get("Content-Type"))
	}
	if ext == "" {
		ext = "png"
	}
	return data, ext, nil
}

func (f *imageFetcher) fetchLocal(ref string) ([]byte, string, error) {
	p, err := f.resolve(ref)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, "", fmt.Errorf("read image file: %w", err)
	}
	ext := extFromName(filepath.Base(p))
	if ext == "" {
		ext = "png"
	}
	return data, ext, nil
}

func extFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	}
	return ""
}

func extFromContentType(ct string) string {
	switch {
	case strings.HasPrefix(ct, "image/png"):
		return "png"
	case strings.HasPrefix(ct, "image/jpeg"):
		return "jpeg"
	case strings.HasPrefix(ct, "image/gif"):
		return "gif"
	}
	return ""
}
