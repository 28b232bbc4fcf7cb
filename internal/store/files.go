package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"loom/internal/fileutil"
	"loom/internal/logging"
)

const fileColumns = `id, project_id, original_name, original_path, stored_rel_path,
    ext, size_bytes, hash_sha256, role, mime_type, storage_state, importer,
    created_at, updated_at`

func scanFile(scanner interface{ Scan(dest ...any) error }) (*File, error) {
	var (
		id, projectID, originalName, originalPath, storedRelPath, ext string
		roleRaw, stateRaw                                             string
		sizeBytes                                                     sql.NullInt64
		hash, mimeType, importer                                      sql.NullString
		createdRaw, updatedRaw                                        string
	)
	if err := scanner.Scan(
		&id, &projectID, &originalName, &originalPath, &storedRelPath,
		&ext, &sizeBytes, &hash, &roleRaw, &mimeType, &stateRaw, &importer,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	role, err := ParseFileRole(roleRaw)
	if err != nil {
		return nil, err
	}
	state, err := ParseStorageState(stateRaw)
	if err != nil {
		return nil, err
	}

	file := &File{
		ID:            id,
		ProjectID:     projectID,
		OriginalName:  originalName,
		OriginalPath:  originalPath,
		StoredRelPath: storedRelPath,
		Ext:           ext,
		SizeBytes:     sizeBytes.Int64,
		HashSHA256:    hash.String,
		Role:          role,
		MimeType:      mimeType.String,
		StorageState:  state,
		Importer:      importer.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		file.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		file.UpdatedAt = updated
	}
	return file, nil
}

// GetFile fetches a project file by identifier.
func (s *Store) GetFile(ctx context.Context, id string) (*File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM project_files WHERE id = ?`, id)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return file, nil
}

// ListFiles returns a project's files ordered by creation time.
func (s *Store) ListFiles(ctx context.Context, projectID string) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM project_files WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "list files")
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// RecordFileHash stores the hash and size computed during staging.
func (s *Store) RecordFileHash(ctx context.Context, fileID, hashSHA256 string, sizeBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE project_files SET hash_sha256 = ?, size_bytes = ?, updated_at = ? WHERE id = ?`,
		hashSHA256, sizeBytes, timestamp(), fileID)
	if err != nil {
		return mapSQLError(err, "record file hash")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapSQLError(err, "record file hash")
	}
	if affected == 0 {
		return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	return nil
}

// FinalizeStagedFiles flips every STAGED file of the project to COPIED
// and strips stagingPrefix from its stored path, inside one
// transaction. Called only after the staging tree has been renamed
// into place.
func (s *Store) FinalizeStagedFiles(ctx context.Context, projectID, stagingPrefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLError(err, "begin finalize tx")
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, stored_rel_path FROM project_files WHERE project_id = ? AND storage_state = ?`,
		projectID, StorageStaged)
	if err != nil {
		return mapSQLError(err, "query staged files")
	}

	type pathFix struct {
		id      string
		relPath string
	}
	var fixes []pathFix
	for rows.Next() {
		var fix pathFix
		if err := rows.Scan(&fix.id, &fix.relPath); err != nil {
			rows.Close()
			return mapSQLError(err, "scan staged file")
		}
		fixes = append(fixes, fix)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return mapSQLError(err, "iterate staged files")
	}
	rows.Close()

	now := timestamp()
	for _, fix := range fixes {
		relPath := strings.TrimPrefix(fix.relPath, stagingPrefix)
		_, err := tx.ExecContext(ctx,
			`UPDATE project_files SET stored_rel_path = ?, storage_state = ?, updated_at = ? WHERE id = ?`,
			relPath, StorageCopied, now, fix.id)
		if err != nil {
			return mapSQLError(err, "finalize staged file")
		}
	}

	if err := tx.Commit(); err != nil {
		return mapSQLError(err, "commit finalize tx")
	}
	return nil
}

// SetStorageState flips a single file's storage state.
func (s *Store) SetStorageState(ctx context.Context, fileID string, state StorageState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE project_files SET storage_state = ?, updated_at = ? WHERE id = ?`,
		state, timestamp(), fileID)
	if err != nil {
		return mapSQLError(err, "set storage state")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapSQLError(err, "set storage state")
	}
	if affected == 0 {
		return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	return nil
}

// DeleteFile removes a file row; its targets and their artifacts
// cascade. Disk cleanup is the caller's responsibility.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM project_files WHERE id = ?`, fileID)
	if err != nil {
		return mapSQLError(err, "delete file")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapSQLError(err, "delete file")
	}
	if affected == 0 {
		return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	return nil
}

// IntegrityReport is the outcome of one hash verification.
type IntegrityReport struct {
	FileID       string
	OK           bool
	ExpectedHash string
	ActualHash   string
}

// VerifyFileIntegrity recomputes the file's content hash and compares
// it to the stored value. A mismatch is reported, never repaired; the
// stored hash is left untouched.
func (s *Store) VerifyFileIntegrity(ctx context.Context, fileID string) (*IntegrityReport, error) {
	file, err := s.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.HashSHA256 == "" {
		return nil, fmt.Errorf("verify file %s: %w: no stored hash", fileID, ErrValidation)
	}

	project, err := s.GetProject(ctx, file.ProjectID)
	if err != nil {
		return nil, err
	}

	absPath, err := fileutil.JoinWithin(project.RootPath, file.StoredRelPath)
	if err != nil {
		return nil, fmt.Errorf("verify file %s: %w: %v", fileID, ErrConstraint, err)
	}

	actual, err := fileutil.HashFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("verify file %s: %w: %v", fileID, ErrIO, err)
	}

	report := &IntegrityReport{
		FileID:       fileID,
		OK:           actual == file.HashSHA256,
		ExpectedHash: file.HashSHA256,
		ActualHash:   actual,
	}
	if !report.OK {
		s.logger.Warn("file content hash mismatch",
			logging.String(logging.FieldFileID, fileID),
			logging.String("expected", report.ExpectedHash),
			logging.String("actual", report.ActualHash))
	}
	return report, nil
}
