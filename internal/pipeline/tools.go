package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"loom/internal/config"
	"loom/internal/logging"
)

const defaultToolTimeout = 5 * time.Minute

// Extractor turns a source document into an XLIFF file for one
// language pair.
type Extractor interface {
	Extract(ctx context.Context, inputPath, outputPath, srcLang, trgLang string) error
	Name() string
}

// Converter turns an XLIFF file into its JLIFF form.
type Converter interface {
	Convert(ctx context.Context, xliffPath, outputPath string) error
	Name() string
}

// commandTool shells out to a configured external command. The command
// is a black box: it gets positional arguments and must exit zero after
// writing the output file.
type commandTool struct {
	command string
	timeout time.Duration
	logger  *slog.Logger
}

func toolTimeout(cfg config.Tools) time.Duration {
	if cfg.TimeoutSeconds > 0 {
		return time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return defaultToolTimeout
}

// NewCommandExtractor builds an extractor around cfg.Extractor.
func NewCommandExtractor(cfg config.Tools, logger *slog.Logger) Extractor {
	return &commandTool{
		command: cfg.Extractor,
		timeout: toolTimeout(cfg),
		logger:  logging.NewComponentLogger(logger, "extractor"),
	}
}

// NewCommandConverter builds a converter around cfg.Converter.
func NewCommandConverter(cfg config.Tools, logger *slog.Logger) Converter {
	return &commandTool{
		command: cfg.Converter,
		timeout: toolTimeout(cfg),
		logger:  logging.NewComponentLogger(logger, "converter"),
	}
}

func (t *commandTool) Name() string {
	if t.command == "" {
		return ""
	}
	return filepath.Base(strings.Fields(t.command)[0])
}

func (t *commandTool) Extract(ctx context.Context, inputPath, outputPath, srcLang, trgLang string) error {
	return t.run(ctx, inputPath, outputPath, srcLang, trgLang)
}

func (t *commandTool) Convert(ctx context.Context, xliffPath, outputPath string) error {
	return t.run(ctx, xliffPath, outputPath)
}

func (t *commandTool) run(ctx context.Context, args ...string) error {
	if strings.TrimSpace(t.command) == "" {
		return fmt.Errorf("no tool command configured")
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	parts := strings.Fields(t.command)
	cmd := exec.CommandContext(ctx, parts[0], append(parts[1:], args...)...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		tail := output.String()
		if len(tail) > 2048 {
			tail = tail[len(tail)-2048:]
		}
		t.logger.Error("tool command failed",
			logging.String("command", parts[0]),
			logging.Duration("elapsed", elapsed),
			logging.String("output", tail),
			logging.Error(err))
		return fmt.Errorf("%s: %w: %s", parts[0], err, strings.TrimSpace(tail))
	}

	t.logger.Debug("tool command finished",
		logging.String("command", parts[0]),
		logging.Duration("elapsed", elapsed))
	return nil
}
