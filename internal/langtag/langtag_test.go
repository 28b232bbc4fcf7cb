package langtag_test

import (
	"testing"

	"loom/internal/langtag"
)

func TestNormalizeCanonicalizesCase(t *testing.T) {
	got, err := langtag.Normalize(" EN-us ")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got != "en-US" {
		t.Fatalf("expected en-US, got %q", got)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "not a tag", "123!"} {
		if _, err := langtag.Normalize(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestNormalizePair(t *testing.T) {
	src, trg, err := langtag.NormalizePair("en-us", "IT-it")
	if err != nil {
		t.Fatalf("NormalizePair failed: %v", err)
	}
	if src != "en-US" || trg != "it-IT" {
		t.Fatalf("unexpected pair: %s -> %s", src, trg)
	}
}

func TestNormalizePairRejectsIdenticalLanguages(t *testing.T) {
	if _, _, err := langtag.NormalizePair("en-US", "EN-us"); err == nil {
		t.Fatal("expected identical source and target to be rejected")
	}
}

func TestPairDirectory(t *testing.T) {
	if got := langtag.PairDirectory("en-US", "it-IT"); got != "en-US__it-IT" {
		t.Fatalf("unexpected pair directory: %q", got)
	}
	if got := langtag.PairDirectory("en/US", "it"); got != "en-US__it" {
		t.Fatalf("separator not sanitized: %q", got)
	}
}
