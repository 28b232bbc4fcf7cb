package project

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"loom/internal/store"
)

const (
	nameMinLen = 2
	nameMaxLen = 120

	fallbackSlug     = "project"
	fallbackFileStem = "file"
)

// ValidateName checks a project display name before any mutation.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < nameMinLen {
		return fmt.Errorf("%w: project name must be at least %d characters", store.ErrValidation, nameMinLen)
	}
	if len(trimmed) > nameMaxLen {
		return fmt.Errorf("%w: project name must be at most %d characters", store.ErrValidation, nameMaxLen)
	}
	return nil
}

// Slugify converts a display name into a filesystem- and URL-safe slug.
// Runs of non-alphanumeric characters collapse to single hyphens; a
// name with no usable characters falls back to "project".
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

// CollisionName appends a counter to a filename while preserving its
// extension: "document.docx" with counter 2 becomes "document-2.docx".
func CollisionName(originalName string, counter int) string {
	ext := filepath.Ext(originalName)
	stem := strings.TrimSuffix(originalName, ext)
	if stem == "" {
		stem = fallbackFileStem
	}
	return fmt.Sprintf("%s-%d%s", stem, counter, ext)
}
