package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// LocalUserID is the seeded owner used by single-user installs.
const LocalUserID = "local-user"

// initSchema applies the embedded bootstrap inside one transaction on
// every open. All statements are idempotent, so a current, partial, or
// empty database converges to the same schema.
func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	// Databases created before the pipeline rework predate these columns.
	bridgeColumns := []struct {
		table      string
		definition string
	}{
		{"project_files", "hash_sha256 TEXT"},
		{"project_file_conversions", "jliff_rel_path TEXT"},
		{"project_file_conversions", "tag_map_rel_path TEXT"},
	}
	for _, col := range bridgeColumns {
		if err := addColumnIfMissing(ctx, tx, col.table, col.definition); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (user_id, email, display_name)
         VALUES (?, 'local@localhost', 'Local Owner')`, LocalUserID); err != nil {
		return fmt.Errorf("seed local user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func addColumnIfMissing(ctx context.Context, tx *sql.Tx, table, definition string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, definition))
	if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
		return fmt.Errorf("add column %s.%s: %w", table, definition, err)
	}
	return nil
}
