package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

func scanPair(scanner interface{ Scan(dest ...any) error }) (*LanguagePair, error) {
	var (
		id, projectID, src, trg string
		createdRaw              string
	)
	if err := scanner.Scan(&id, &projectID, &src, &trg, &createdRaw); err != nil {
		return nil, err
	}
	pair := &LanguagePair{ID: id, ProjectID: projectID, SrcLang: src, TrgLang: trg}
	if created, err := parseTimeString(createdRaw); err == nil {
		pair.CreatedAt = created
	}
	return pair, nil
}

// GetPair fetches a language pair by identifier.
func (s *Store) GetPair(ctx context.Context, id string) (*LanguagePair, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT pair_id, project_id, src_lang, trg_lang, created_at
         FROM project_language_pairs WHERE pair_id = ?`, id)
	pair, err := scanPair(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("language pair %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get language pair: %w", err)
	}
	return pair, nil
}

// ListPairs returns a project's language pairs ordered by creation time.
func (s *Store) ListPairs(ctx context.Context, projectID string) ([]*LanguagePair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pair_id, project_id, src_lang, trg_lang, created_at
         FROM project_language_pairs WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, mapSQLError(err, "list language pairs")
	}
	defer rows.Close()

	var pairs []*LanguagePair
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}

// EnsurePair inserts a language pair unless the project already has it,
// returning the existing or new row either way.
func (s *Store) EnsurePair(ctx context.Context, projectID, src, trg string) (*LanguagePair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT pair_id, project_id, src_lang, trg_lang, created_at
         FROM project_language_pairs WHERE project_id = ? AND src_lang = ? AND trg_lang = ?`,
		projectID, src, trg)
	pair, err := scanPair(row)
	if err == nil {
		return pair, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, mapSQLError(err, "lookup language pair")
	}

	pair = &LanguagePair{ID: uuid.NewString(), ProjectID: projectID, SrcLang: src, TrgLang: trg}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_language_pairs (pair_id, project_id, src_lang, trg_lang, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		pair.ID, pair.ProjectID, pair.SrcLang, pair.TrgLang, timestamp())
	if err != nil {
		return nil, mapSQLError(err, "insert language pair")
	}
	return pair, nil
}
