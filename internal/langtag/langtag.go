// Package langtag normalizes BCP-47 language tags and derives the
// canonical directory names used for per-pair artifact layout.
package langtag

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Normalize parses raw as a BCP-47 tag and returns its canonical form.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("language tag is empty")
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse language tag %q: %w", trimmed, err)
	}
	return tag.String(), nil
}

// NormalizePair normalizes both sides of a language pair and rejects
// pairs where source and target collapse to the same tag.
func NormalizePair(src, trg string) (string, string, error) {
	normSrc, err := Normalize(src)
	if err != nil {
		return "", "", fmt.Errorf("source: %w", err)
	}
	normTrg, err := Normalize(trg)
	if err != nil {
		return "", "", fmt.Errorf("target: %w", err)
	}
	if strings.EqualFold(normSrc, normTrg) {
		return "", "", fmt.Errorf("source and target language are both %q", normSrc)
	}
	return normSrc, normTrg, nil
}

// PairDirectory returns the on-disk directory name for a language pair,
// e.g. "en-US__it-IT". Tag separators are flattened so the result is a
// single path element.
func PairDirectory(src, trg string) string {
	return sanitizeTag(src) + "__" + sanitizeTag(trg)
}

func sanitizeTag(tag string) string {
	var b strings.Builder
	b.Grow(len(tag))
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
