package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLanguages(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.AppDir) == "" {
		return errors.New("paths.app_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ProjectsDir) == "" {
		return errors.New("paths.projects_dir must be set")
	}
	return nil
}

func (c *Config) validateLanguages() error {
	if _, err := language.Parse(c.Languages.DefaultSource); err != nil {
		return fmt.Errorf("languages.default_source %q is not a valid BCP-47 tag: %w", c.Languages.DefaultSource, err)
	}
	if _, err := language.Parse(c.Languages.DefaultTarget); err != nil {
		return fmt.Errorf("languages.default_target %q is not a valid BCP-47 tag: %w", c.Languages.DefaultTarget, err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format must be console, json, or auto (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
