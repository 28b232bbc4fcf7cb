package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

func scanTarget(scanner interface{ Scan(dest ...any) error }) (*Target, error) {
	var (
		id, fileID, pairID, statusRaw string
		createdRaw, updatedRaw        string
	)
	if err := scanner.Scan(&id, &fileID, &pairID, &statusRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	status, err := ParseTargetStatus(statusRaw)
	if err != nil {
		return nil, err
	}
	target := &Target{ID: id, FileID: fileID, PairID: pairID, Status: status}
	if created, err := parseTimeString(createdRaw); err == nil {
		target.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		target.UpdatedAt = updated
	}
	return target, nil
}

const targetColumns = "file_target_id, file_id, pair_id, status, created_at, updated_at"

// GetTarget fetches a file target by identifier.
func (s *Store) GetTarget(ctx context.Context, id string) (*Target, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+targetColumns+` FROM file_targets WHERE file_target_id = ?`, id)
	target, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file target %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get file target: %w", err)
	}
	return target, nil
}

// EnsureTarget inserts a (file, pair) target unless it already exists.
// The pair must belong to the same project as the file; cross-project
// linkage is rejected, never coerced.
func (s *Store) EnsureTarget(ctx context.Context, fileID, pairID string) (*Target, error) {
	file, err := s.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	pair, err := s.GetPair(ctx, pairID)
	if err != nil {
		return nil, err
	}
	if file.ProjectID != pair.ProjectID {
		return nil, fmt.Errorf("file target: %w: file belongs to project %s, pair to project %s",
			ErrConstraint, file.ProjectID, pair.ProjectID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+targetColumns+` FROM file_targets WHERE file_id = ? AND pair_id = ?`, fileID, pairID)
	target, err := scanTarget(row)
	if err == nil {
		return target, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, mapSQLError(err, "lookup file target")
	}

	now := timestamp()
	target = &Target{ID: uuid.NewString(), FileID: fileID, PairID: pairID, Status: TargetPending}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO file_targets (file_target_id, file_id, pair_id, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		target.ID, target.FileID, target.PairID, target.Status, now, now)
	if err != nil {
		return nil, mapSQLError(err, "insert file target")
	}
	return target, nil
}

// SetTargetStatus flips a target's pipeline status.
func (s *Store) SetTargetStatus(ctx context.Context, id string, status TargetStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE file_targets SET status = ?, updated_at = ? WHERE file_target_id = ?`,
		status, timestamp(), id)
	if err != nil {
		return mapSQLError(err, "set target status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapSQLError(err, "set target status")
	}
	if affected == 0 {
		return fmt.Errorf("file target %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListTargets returns all targets of a project ordered by creation time.
func (s *Store) ListTargets(ctx context.Context, projectID string) ([]*Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.file_target_id, t.file_id, t.pair_id, t.status, t.created_at, t.updated_at
         FROM file_targets t
         JOIN project_files f ON f.id = t.file_id
         WHERE f.project_id = ?
         ORDER BY t.created_at`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "list file targets")
	}
	defer rows.Close()

	var targets []*Target
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// ListTargetsByStatus returns a project's targets in the given status.
func (s *Store) ListTargetsByStatus(ctx context.Context, projectID string, status TargetStatus) ([]*Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.file_target_id, t.file_id, t.pair_id, t.status, t.created_at, t.updated_at
         FROM file_targets t
         JOIN project_files f ON f.id = t.file_id
         WHERE f.project_id = ? AND t.status = ?
         ORDER BY t.created_at`, projectID, status)
	if err != nil {
		return nil, mapSQLError(err, "list file targets by status")
	}
	defer rows.Close()

	var targets []*Target
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}
