package upload

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// SweepStale removes regular files under dir whose modification time is
// older than maxAge. Used at startup to clear generated artifacts that
// outlived their posters. Failures are logged, never fatal.
func SweepStale(logger *slog.Logger, dir string, maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("stale file sweep failed", "dir", dir, "error", err)
		}
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("could not remove stale file", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("removed stale generated files", "dir", dir, "count", removed)
	}
}
