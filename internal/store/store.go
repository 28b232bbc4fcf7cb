package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"loom/internal/logging"
)

// resetEnvVar deletes the database before open when set. Development
// convenience only.
const resetEnvVar = "LOOM_RESET_DB"

// Store manages project persistence backed by SQLite. All mutating
// methods serialize through a single write mutex; the engine is
// single-process, single-writer-at-a-time.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// Open connects to the database under baseDir, applies the whitelisted
// pragmas, and runs the idempotent schema bootstrap. Bootstrap failure
// is fatal to opening.
func Open(baseDir string, perf PerfConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "store")

	if baseDir == "" {
		return nil, fmt.Errorf("open store: %w: base directory is empty", ErrValidation)
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure store directory: %w", err)
	}

	dbPath := filepath.Join(baseDir, "loom.db")
	if os.Getenv(resetEnvVar) != "" {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reset database: %w", err)
			}
		}
		logger.Warn("database reset requested, removed existing database", logging.String("path", dbPath))
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode=%s", perf.JournalMode),
		fmt.Sprintf("PRAGMA synchronous=%s", perf.Synchronous),
		"PRAGMA foreign_keys = ON",
		"PRAGMA recursive_triggers = OFF",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, logger: logger}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// OpenWithSettings builds a PerfConfig from raw config strings,
// warning and defaulting on any value outside the whitelist.
func OpenWithSettings(baseDir, journalMode, synchronous string, logger *slog.Logger) (*Store, error) {
	perf := DefaultPerfConfig()

	mode, ok := ParseJournalMode(journalMode)
	if !ok && journalMode != "" {
		log := logger
		if log == nil {
			log = logging.NewNop()
		}
		log.Warn("unsupported journal mode, using default",
			logging.String("requested", journalMode),
			logging.String("fallback", string(JournalWAL)))
	}
	perf.JournalMode = mode

	syncMode, ok := ParseSynchronous(synchronous)
	if !ok && synchronous != "" {
		log := logger
		if log == nil {
			log = logging.NewNop()
		}
		log.Warn("unsupported synchronous mode, using default",
			logging.String("requested", synchronous),
			logging.String("fallback", string(SynchronousNormal)))
	}
	perf.Synchronous = syncMode

	return Open(baseDir, perf, logger)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func parseOptionalTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
