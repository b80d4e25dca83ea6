package upload

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"posterlab/internal/domain"
)

// allowedExtensions is the closed set of accepted image file types.
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// Store manages the upload directory tree. Section images live under
// <root>/poster_<posterID>/section_<sectionID>/ and are referenced by
// their path relative to the root.
type Store struct {
	root     string
	maxBytes int64
	logger   *slog.Logger
}

// NewStore creates a store rooted at root, creating the directory if
// needed. Files larger than maxBytes are rejected.
func NewStore(root string, maxBytes int64, logger *slog.Logger) (*Store, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &Store{root: absRoot, maxBytes: maxBytes, logger: logger}, nil
}

// SaveSectionImage validates and writes an uploaded image, returning its
// reference path relative to the upload root.
func (s *Store) SaveSectionImage(posterID, sectionID, filename string, content io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", &domain.ValidationError{
			Message: fmt.Sprintf("file type %q is not allowed; accepted types are png, jpg, jpeg, gif", ext),
		}
	}

	dir := filepath.Join(s.root, posterDir(posterID), sectionDir(sectionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create section directory: %w", err)
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	// Copy one byte past the cap so an oversized upload is detectable.
	n, err := io.Copy(f, io.LimitReader(content, s.maxBytes+1))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if n > s.maxBytes {
		os.Remove(path)
		return "", &domain.ValidationError{
			Message: fmt.Sprintf("file exceeds the maximum upload size of %d bytes", s.maxBytes),
		}
	}

	ref := filepath.ToSlash(filepath.Join(posterDir(posterID), sectionDir(sectionID), name))
	return ref, nil
}

// ResolvePath maps a stored reference to an absolute path under the root.
// References containing traversal segments are rejected before any
// filesystem access.
func (s *Store) ResolvePath(ref string) (string, error) {
	if !safeRef(ref) {
		return "", &domain.ValidationError{Message: fmt.Sprintf("invalid image reference %q", ref)}
	}
	return filepath.Join(s.root, filepath.FromSlash(ref)), nil
}

// DeleteRef removes the file a reference points to. Remote URLs and
// unsafe references are skipped; a missing file is not an error.
func (s *Store) DeleteRef(ref string) error {
	if isRemoteRef(ref) || !safeRef(ref) {
		return nil
	}
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload %s: %w", ref, err)
	}
	return nil
}

// DeleteSectionDir removes a section's upload directory and everything in it.
func (s *Store) DeleteSectionDir(posterID, sectionID string) error {
	if strings.Contains(posterID, "..") || strings.Contains(sectionID, "..") {
		return &domain.ValidationError{Message: "invalid identifier"}
	}
	dir := filepath.Join(s.root, posterDir(posterID), sectionDir(sectionID))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete section directory: %w", err)
	}
	return nil
}

// PurgePoster removes a poster's whole upload directory.
func (s *Store) PurgePoster(posterID string) error {
	if strings.Contains(posterID, "..") {
		return &domain.ValidationError{Message: "invalid identifier"}
	}
	dir := filepath.Join(s.root, posterDir(posterID))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("purge poster uploads: %w", err)
	}
	return nil
}

func posterDir(posterID string) string   { return "poster_" + posterID }
func sectionDir(sectionID string) string { return "section_" + sectionID }

// isRemoteRef reports whether the reference is an external URL rather
// than a managed upload.
func isRemoteRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// safeRef reports whether a reference stays inside the upload root.
func safeRef(ref string) bool {
	if ref == "" || strings.Contains(ref, "..") {
		return false
	}
	if filepath.IsAbs(ref) || strings.HasPrefix(ref, "/") {
		return false
	}
	return true
}
