package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDatabase()
	c.normalizeLanguages()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.AppDir) == "" {
		c.Paths.AppDir = defaultAppDir
	}
	if c.Paths.AppDir, err = expandPath(c.Paths.AppDir); err != nil {
		return fmt.Errorf("paths.app_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ProjectsDir) == "" {
		c.Paths.ProjectsDir = filepath.Join(c.Paths.AppDir, "projects")
	} else if c.Paths.ProjectsDir, err = expandPath(c.Paths.ProjectsDir); err != nil {
		return fmt.Errorf("paths.projects_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.AppDir, "logs")
	} else if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDatabase() {
	c.Database.JournalMode = strings.ToUpper(strings.TrimSpace(c.Database.JournalMode))
	if c.Database.JournalMode == "" {
		c.Database.JournalMode = defaultJournalMode
	}
	c.Database.Synchronous = strings.ToUpper(strings.TrimSpace(c.Database.Synchronous))
	if c.Database.Synchronous == "" {
		c.Database.Synchronous = defaultSynchronous
	}
}

func (c *Config) normalizeLanguages() {
	c.Languages.DefaultSource = strings.TrimSpace(c.Languages.DefaultSource)
	if c.Languages.DefaultSource == "" {
		c.Languages.DefaultSource = defaultSourceLanguage
	}
	c.Languages.DefaultTarget = strings.TrimSpace(c.Languages.DefaultTarget)
	if c.Languages.DefaultTarget == "" {
		c.Languages.DefaultTarget = defaultTargetLanguage
	}
}

func (c *Config) normalizeTools() {
	c.Tools.Extractor = strings.TrimSpace(c.Tools.Extractor)
	if c.Tools.Extractor == "" {
		c.Tools.Extractor = defaultExtractorCommand
	}
	c.Tools.Converter = strings.TrimSpace(c.Tools.Converter)
	if c.Tools.Converter == "" {
		c.Tools.Converter = defaultConverterCommand
	}
	if c.Tools.TimeoutSeconds <= 0 {
		c.Tools.TimeoutSeconds = defaultToolTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
