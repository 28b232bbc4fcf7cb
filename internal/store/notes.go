package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AddNote attaches a free-form annotation to a project.
func (s *Store) AddNote(ctx context.Context, projectID, authorUserID, body string) (*Note, error) {
	if body == "" {
		return nil, fmt.Errorf("add note: %w: body is empty", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	note := &Note{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		AuthorUserID: authorUserID,
		Body:         body,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (note_id, project_id, author_user_id, body, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.ProjectID, note.AuthorUserID, note.Body, timestamp())
	if err != nil {
		return nil, mapSQLError(err, "insert note")
	}
	return note, nil
}

// ListNotes returns a project's notes, newest first.
func (s *Store) ListNotes(ctx context.Context, projectID string) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT note_id, project_id, author_user_id, body, created_at
         FROM notes WHERE project_id = ? ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "list notes")
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		var (
			note       Note
			createdRaw string
		)
		if err := rows.Scan(&note.ID, &note.ProjectID, &note.AuthorUserID, &note.Body, &createdRaw); err != nil {
			return nil, mapSQLError(err, "scan note")
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			note.CreatedAt = created
		}
		notes = append(notes, &note)
	}
	return notes, rows.Err()
}
