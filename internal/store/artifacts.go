package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const artifactColumns = `artifact_id, file_target_id, kind, rel_path, size_bytes,
    checksum, tool, status, created_at, updated_at`

func scanArtifact(scanner interface{ Scan(dest ...any) error }) (*Artifact, error) {
	var (
		id, targetID, kindRaw, relPath, statusRaw string
		sizeBytes                                 sql.NullInt64
		checksum, tool                            sql.NullString
		createdRaw, updatedRaw                    string
	)
	if err := scanner.Scan(
		&id, &targetID, &kindRaw, &relPath, &sizeBytes,
		&checksum, &tool, &statusRaw, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	kind, err := ParseArtifactKind(kindRaw)
	if err != nil {
		return nil, err
	}
	status, err := ParseArtifactStatus(statusRaw)
	if err != nil {
		return nil, err
	}

	artifact := &Artifact{
		ID:        id,
		TargetID:  targetID,
		Kind:      kind,
		RelPath:   relPath,
		SizeBytes: sizeBytes.Int64,
		Checksum:  checksum.String,
		Tool:      tool.String,
		Status:    status,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		artifact.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		artifact.UpdatedAt = updated
	}
	return artifact, nil
}

// ArtifactUpsert carries one artifact generation outcome.
type ArtifactUpsert struct {
	TargetID  string
	Kind      ArtifactKind
	RelPath   string
	SizeBytes int64
	Checksum  string
	Tool      string
	Status    ArtifactStatus
}

// UpsertArtifact records an artifact conflict-safely on (target, kind):
// re-running a task updates the existing row instead of duplicating it.
func (s *Store) UpsertArtifact(ctx context.Context, up ArtifactUpsert) (*Artifact, error) {
	if up.TargetID == "" {
		return nil, fmt.Errorf("upsert artifact: %w: target id is empty", ErrValidation)
	}

	s.mu.Lock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (
            artifact_id, file_target_id, kind, rel_path, size_bytes,
            checksum, tool, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(file_target_id, kind) DO UPDATE SET
            rel_path = excluded.rel_path,
            size_bytes = excluded.size_bytes,
            checksum = excluded.checksum,
            tool = excluded.tool,
            status = excluded.status,
            updated_at = excluded.updated_at`,
		uuid.NewString(), up.TargetID, up.Kind, up.RelPath,
		nullableInt64(up.SizeBytes), nullableString(up.Checksum),
		nullableString(up.Tool), up.Status, timestamp(), timestamp())
	s.mu.Unlock()
	if err != nil {
		return nil, mapSQLError(err, "upsert artifact")
	}

	return s.GetArtifactByKind(ctx, up.TargetID, up.Kind)
}

// GetArtifactByKind fetches the artifact of one kind for a target.
func (s *Store) GetArtifactByKind(ctx context.Context, targetID string, kind ArtifactKind) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE file_target_id = ? AND kind = ?`,
		targetID, kind)
	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact (%s, %s): %w", targetID, kind, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return artifact, nil
}

// GetArtifact fetches an artifact by identifier.
func (s *Store) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE artifact_id = ?`, id)
	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return artifact, nil
}

// ListArtifactsForTarget returns a target's artifacts ordered by kind.
func (s *Store) ListArtifactsForTarget(ctx context.Context, targetID string) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE file_target_id = ? ORDER BY kind`, targetID)
	if err != nil {
		return nil, mapSQLError(err, "list artifacts for target")
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, rows.Err()
}

// ListArtifacts returns all artifacts of a project ordered by creation time.
func (s *Store) ListArtifacts(ctx context.Context, projectID string) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.artifact_id, a.file_target_id, a.kind, a.rel_path, a.size_bytes,
            a.checksum, a.tool, a.status, a.created_at, a.updated_at
         FROM artifacts a
         JOIN file_targets t ON t.file_target_id = a.file_target_id
         JOIN project_files f ON f.id = t.file_id
         WHERE f.project_id = ?
         ORDER BY a.created_at`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "list artifacts")
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, rows.Err()
}
