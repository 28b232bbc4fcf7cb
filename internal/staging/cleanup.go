package staging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"loom/internal/logging"
)

// CleanStaleResult contains the outcome of a stale directory sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes leftover *.staging directories under projectsDir
// older than maxAge. Crashed creations leave their staging tree behind
// for inspection; this sweep reclaims the space once it goes stale.
func CleanStale(projectsDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	projectsDir = strings.TrimSpace(projectsDir)
	if projectsDir == "" {
		return result
	}

	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: projectsDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), Suffix) {
			continue
		}

		dirPath := filepath.Join(projectsDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logger.Warn("failed to remove stale staging directory",
				logging.String("path", dirPath),
				logging.Error(err))
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		logger.Info("removed stale staging directory",
			logging.String("path", dirPath),
			logging.Duration("age", time.Since(info.ModTime())))
	}

	return result
}
