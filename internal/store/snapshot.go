package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Snapshot is a consistent multi-table view of one project, assembled
// inside a single transaction.
type Snapshot struct {
	Project   *Project
	Pairs     []*LanguagePair
	Files     []*File
	Targets   []*Target
	Artifacts []*Artifact
	Jobs      []*Job
	Notes     []*Note
}

// ProjectSnapshot reads the project and all its dependent rows within
// one transaction so the view is consistent even while a writer is
// active.
func (s *Store) ProjectSnapshot(ctx context.Context, projectID string) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapSQLError(err, "begin snapshot tx")
	}
	defer func() { _ = tx.Rollback() }()

	snapshot := &Snapshot{}

	row := tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, projectID)
	snapshot.Project, err = scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot project: %w", err)
	}

	pairRows, err := tx.QueryContext(ctx,
		`SELECT pair_id, project_id, src_lang, trg_lang, created_at
         FROM project_language_pairs WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "snapshot pairs")
	}
	for pairRows.Next() {
		pair, err := scanPair(pairRows)
		if err != nil {
			pairRows.Close()
			return nil, err
		}
		snapshot.Pairs = append(snapshot.Pairs, pair)
	}
	if err := pairRows.Err(); err != nil {
		pairRows.Close()
		return nil, mapSQLError(err, "snapshot pairs")
	}
	pairRows.Close()

	fileRows, err := tx.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM project_files WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "snapshot files")
	}
	for fileRows.Next() {
		file, err := scanFile(fileRows)
		if err != nil {
			fileRows.Close()
			return nil, err
		}
		snapshot.Files = append(snapshot.Files, file)
	}
	if err := fileRows.Err(); err != nil {
		fileRows.Close()
		return nil, mapSQLError(err, "snapshot files")
	}
	fileRows.Close()

	targetRows, err := tx.QueryContext(ctx,
		`SELECT t.file_target_id, t.file_id, t.pair_id, t.status, t.created_at, t.updated_at
         FROM file_targets t
         JOIN project_files f ON f.id = t.file_id
         WHERE f.project_id = ?
         ORDER BY t.created_at`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "snapshot targets")
	}
	for targetRows.Next() {
		target, err := scanTarget(targetRows)
		if err != nil {
			targetRows.Close()
			return nil, err
		}
		snapshot.Targets = append(snapshot.Targets, target)
	}
	if err := targetRows.Err(); err != nil {
		targetRows.Close()
		return nil, mapSQLError(err, "snapshot targets")
	}
	targetRows.Close()

	artifactRows, err := tx.QueryContext(ctx,
		`SELECT a.artifact_id, a.file_target_id, a.kind, a.rel_path, a.size_bytes,
            a.checksum, a.tool, a.status, a.created_at, a.updated_at
         FROM artifacts a
         JOIN file_targets t ON t.file_target_id = a.file_target_id
         JOIN project_files f ON f.id = t.file_id
         WHERE f.project_id = ?
         ORDER BY a.created_at`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "snapshot artifacts")
	}
	for artifactRows.Next() {
		artifact, err := scanArtifact(artifactRows)
		if err != nil {
			artifactRows.Close()
			return nil, err
		}
		snapshot.Artifacts = append(snapshot.Artifacts, artifact)
	}
	if err := artifactRows.Err(); err != nil {
		artifactRows.Close()
		return nil, mapSQLError(err, "snapshot artifacts")
	}
	artifactRows.Close()

	jobRows, err := tx.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "snapshot jobs")
	}
	for jobRows.Next() {
		job, err := scanJob(jobRows)
		if err != nil {
			jobRows.Close()
			return nil, err
		}
		snapshot.Jobs = append(snapshot.Jobs, job)
	}
	if err := jobRows.Err(); err != nil {
		jobRows.Close()
		return nil, mapSQLError(err, "snapshot jobs")
	}
	jobRows.Close()

	noteRows, err := tx.QueryContext(ctx,
		`SELECT note_id, project_id, author_user_id, body, created_at
         FROM notes WHERE project_id = ? ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "snapshot notes")
	}
	for noteRows.Next() {
		var (
			note       Note
			createdRaw string
		)
		if err := noteRows.Scan(&note.ID, &note.ProjectID, &note.AuthorUserID, &note.Body, &createdRaw); err != nil {
			noteRows.Close()
			return nil, mapSQLError(err, "snapshot notes")
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			note.CreatedAt = created
		}
		snapshot.Notes = append(snapshot.Notes, &note)
	}
	if err := noteRows.Err(); err != nil {
		noteRows.Close()
		return nil, mapSQLError(err, "snapshot notes")
	}
	noteRows.Close()

	return snapshot, nil
}
