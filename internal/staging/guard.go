package staging

import (
	"log/slog"
	"os"

	"loom/internal/logging"
)

// Guard tracks filesystem paths created during staging so every early
// return can undo them. Disarm once the work is promoted; anything
// still armed is removed in reverse creation order.
type Guard struct {
	paths  []string
	logger *slog.Logger
	armed  bool
}

// NewGuard returns an armed guard.
func NewGuard(logger *slog.Logger) *Guard {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Guard{logger: logger, armed: true}
}

// Track records a path for removal on cleanup.
func (g *Guard) Track(path string) {
	if path == "" {
		return
	}
	g.paths = append(g.paths, path)
}

// Disarm marks the tracked work as kept; Cleanup becomes a no-op.
func (g *Guard) Disarm() {
	g.armed = false
}

// Cleanup removes tracked paths in reverse creation order while the
// guard is armed. Safe to call multiple times and from defer.
func (g *Guard) Cleanup() {
	if !g.armed {
		return
	}
	for i := len(g.paths) - 1; i >= 0; i-- {
		path := g.paths[i]
		if err := os.RemoveAll(path); err != nil {
			g.logger.Warn("failed to remove staging path",
				logging.String("path", path),
				logging.Error(err))
		}
	}
	g.paths = nil
}
