package store

import "strings"

// JournalMode is a whitelisted write-durability setting. Only approved
// values reach the PRAGMA statement; anything else falls back to WAL.
type JournalMode string

const (
	JournalWAL      JournalMode = "WAL"
	JournalDelete   JournalMode = "DELETE"
	JournalTruncate JournalMode = "TRUNCATE"
)

// ParseJournalMode maps raw config text onto the whitelist. The second
// return value reports whether raw was recognized.
func ParseJournalMode(raw string) (JournalMode, bool) {
	switch JournalMode(strings.ToUpper(strings.TrimSpace(raw))) {
	case JournalWAL:
		return JournalWAL, true
	case JournalDelete:
		return JournalDelete, true
	case JournalTruncate:
		return JournalTruncate, true
	}
	return JournalWAL, false
}

// Synchronous is a whitelisted write-buffering setting.
type Synchronous string

const (
	SynchronousNormal Synchronous = "NORMAL"
	SynchronousFull   Synchronous = "FULL"
	SynchronousExtra  Synchronous = "EXTRA"
)

// ParseSynchronous maps raw config text onto the whitelist, falling
// back to NORMAL. OFF is deliberately absent: durability is never
// lowered below the default via configuration.
func ParseSynchronous(raw string) (Synchronous, bool) {
	switch Synchronous(strings.ToUpper(strings.TrimSpace(raw))) {
	case SynchronousNormal:
		return SynchronousNormal, true
	case SynchronousFull:
		return SynchronousFull, true
	case SynchronousExtra:
		return SynchronousExtra, true
	}
	return SynchronousNormal, false
}

// PerfConfig carries the whitelisted storage pragmas applied on open.
type PerfConfig struct {
	JournalMode JournalMode
	Synchronous Synchronous
}

// DefaultPerfConfig returns the safe defaults (WAL, NORMAL).
func DefaultPerfConfig() PerfConfig {
	return PerfConfig{JournalMode: JournalWAL, Synchronous: SynchronousNormal}
}
