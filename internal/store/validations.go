package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// InsertValidation records one named validator verdict for an artifact.
func (s *Store) InsertValidation(ctx context.Context, artifactID, validator string, passed bool, resultJSON string) (*Validation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	validation := &Validation{
		ID:         uuid.NewString(),
		ArtifactID: artifactID,
		Validator:  validator,
		Passed:     passed,
		ResultJSON: resultJSON,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO validations (validation_id, artifact_id, validator, passed, result_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		validation.ID, validation.ArtifactID, validation.Validator,
		boolToInt(validation.Passed), nullableString(validation.ResultJSON), timestamp())
	if err != nil {
		return nil, mapSQLError(err, "insert validation")
	}
	return validation, nil
}

// ListValidations returns an artifact's validation results, newest first.
func (s *Store) ListValidations(ctx context.Context, artifactID string) ([]*Validation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT validation_id, artifact_id, validator, passed, result_json, created_at
         FROM validations WHERE artifact_id = ? ORDER BY created_at DESC`, artifactID)
	if err != nil {
		return nil, mapSQLError(err, "list validations")
	}
	defer rows.Close()

	var validations []*Validation
	for rows.Next() {
		var (
			v          Validation
			passed     int
			resultJSON sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&v.ID, &v.ArtifactID, &v.Validator, &passed, &resultJSON, &createdRaw); err != nil {
			return nil, mapSQLError(err, "scan validation")
		}
		v.Passed = passed != 0
		v.ResultJSON = resultJSON.String
		if created, err := parseTimeString(createdRaw); err == nil {
			v.CreatedAt = created
		}
		validations = append(validations, &v)
	}
	return validations, rows.Err()
}
