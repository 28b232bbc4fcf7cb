package testsupport

import (
	"path/filepath"
	"testing"

	"loom/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.AppDir = base
	cfg.Paths.ProjectsDir = filepath.Join(base, "projects")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithLanguages overrides the default language pair on the test config.
func WithLanguages(src, trg string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Languages.DefaultSource = src
		cfg.Languages.DefaultTarget = trg
	}
}
