package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/store"
)

// commandContext lazily loads configuration and opens shared resources
// once per invocation.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	storeOnce sync.Once
	store     *store.Store
	storeErr  error

	lock *flock.Flock
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) ensureStore() (*store.Store, error) {
	c.storeOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.storeErr = err
			return
		}
		logger, err := c.ensureLogger()
		if err != nil {
			c.storeErr = err
			return
		}
		c.store, c.storeErr = store.OpenWithSettings(
			cfg.Paths.AppDir, cfg.Database.JournalMode, cfg.Database.Synchronous, logger)
	})
	return c.store, c.storeErr
}

// acquireLock takes the single-writer file lock. Mutating commands
// call it so two invocations never race on the same database and
// staging directories.
func (c *commandContext) acquireLock() error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if c.lock == nil {
		c.lock = flock.New(filepath.Join(cfg.Paths.AppDir, "loom.lock"))
	}
	ok, err := c.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another loom instance is already running")
	}
	return nil
}

func (c *commandContext) close() {
	if c.store != nil {
		_ = c.store.Close()
	}
	if c.lock != nil {
		_ = c.lock.Unlock()
	}
}
