package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// JobKey builds the deterministic ledger key for one operation against
// one entity, e.g. "EXTRACT_XLIFF::{projectID}::{targetID}".
func JobKey(jobType JobType, projectID, entityID string) string {
	return fmt.Sprintf("%s::%s::%s", jobType, projectID, entityID)
}

const jobColumns = `job_id, project_id, job_type, job_key, file_target_id,
    artifact_id, state, attempts, error, created_at, started_at, finished_at`

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id, projectID, typeRaw, key, stateRaw string
		targetID, artifactID, errText         sql.NullString
		attempts                              int
		createdRaw                            string
		startedRaw, finishedRaw               sql.NullString
	)
	if err := scanner.Scan(
		&id, &projectID, &typeRaw, &key, &targetID,
		&artifactID, &stateRaw, &attempts, &errText,
		&createdRaw, &startedRaw, &finishedRaw,
	); err != nil {
		return nil, err
	}

	jobType, err := ParseJobType(typeRaw)
	if err != nil {
		return nil, err
	}
	state, err := ParseJobState(stateRaw)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:         id,
		ProjectID:  projectID,
		Type:       jobType,
		Key:        key,
		TargetID:   targetID.String,
		ArtifactID: artifactID.String,
		State:      state,
		Attempts:   attempts,
		Error:      errText.String,
		StartedAt:  parseOptionalTime(startedRaw),
		FinishedAt: parseOptionalTime(finishedRaw),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	return job, nil
}

// JobUpsert carries one ledger transition keyed by Key.
type JobUpsert struct {
	ProjectID  string
	Type       JobType
	Key        string
	TargetID   string
	ArtifactID string
	State      JobState
	Error      string
}

// UpsertJob records a ledger transition idempotently: re-submitting a
// known job key updates the existing row instead of inserting a
// duplicate. A transition to RUNNING counts one attempt; terminal
// states stamp finished_at.
func (s *Store) UpsertJob(ctx context.Context, up JobUpsert) (*Job, error) {
	if up.Key == "" {
		return nil, fmt.Errorf("upsert job: %w: job key is empty", ErrValidation)
	}

	now := timestamp()
	var startedAt, finishedAt any
	var initialAttempts int
	switch up.State {
	case JobRunning:
		startedAt = now
		initialAttempts = 1
	case JobSucceeded, JobFailed, JobCancelled:
		finishedAt = now
	}

	s.mu.Lock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (
            job_id, project_id, job_type, job_key, file_target_id, artifact_id,
            state, attempts, error, created_at, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(job_key) DO UPDATE SET
            state = excluded.state,
            error = excluded.error,
            attempts = jobs.attempts + CASE WHEN excluded.state = 'RUNNING' THEN 1 ELSE 0 END,
            file_target_id = COALESCE(excluded.file_target_id, jobs.file_target_id),
            artifact_id = COALESCE(excluded.artifact_id, jobs.artifact_id),
            started_at = COALESCE(excluded.started_at, jobs.started_at),
            finished_at = excluded.finished_at`,
		uuid.NewString(), up.ProjectID, up.Type, up.Key,
		nullableString(up.TargetID), nullableString(up.ArtifactID),
		up.State, initialAttempts, nullableString(up.Error),
		now, startedAt, finishedAt)
	s.mu.Unlock()
	if err != nil {
		return nil, mapSQLError(err, "upsert job")
	}

	return s.GetJobByKey(ctx, up.Key)
}

// GetJobByKey fetches a ledger row by its deterministic key.
func (s *Store) GetJobByKey(ctx context.Context, key string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_key = ?`, key)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns a project's ledger rows ordered by creation time.
func (s *Store) ListJobs(ctx context.Context, projectID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "list jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListJobsNeedingAttention returns every PENDING or FAILED ledger row
// across all projects. The list is advisory; nothing is retried
// automatically.
func (s *Store) ListJobsNeedingAttention(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE state IN (?, ?) ORDER BY created_at`,
		JobPending, JobFailed)
	if err != nil {
		return nil, mapSQLError(err, "list jobs needing attention")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
