package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PairSeed is one language pair requested at project creation.
type PairSeed struct {
	SrcLang string
	TrgLang string
}

// FileSeed is one file requested at project creation. StoredRelPath is
// staging-relative until promotion. Processable files get one target
// per language pair.
type FileSeed struct {
	ID            string
	OriginalName  string
	OriginalPath  string
	StoredRelPath string
	Ext           string
	Role          FileRole
	MimeType      string
	Processable   bool
}

// ProjectSeed is the complete input for the seeding transaction. ID is
// optional; callers that pre-compute directory names supply it, others
// get a generated one.
type ProjectSeed struct {
	ID             string
	Name           string
	Slug           string
	Type           ProjectType
	OwnerUserID    string
	ClientID       string
	DomainID       string
	RootPath       string
	DefaultSrcLang string
	DefaultTrgLang string
	Pairs          []PairSeed
	Files          []FileSeed
}

// SeededProject is the row set created by one seeding transaction.
type SeededProject struct {
	Project Project
	Pairs   []LanguagePair
	Files   []File
	Targets []Target
}

// SeedProject inserts the project (lifecycle CREATING), its deduped
// language pairs, its files (storage STAGED), and one PENDING target
// per processable file and pair, all inside a single transaction. Any
// failure rolls the whole seed back; no partial rows survive.
func (s *Store) SeedProject(ctx context.Context, seed ProjectSeed) (*SeededProject, error) {
	if seed.Name == "" {
		return nil, fmt.Errorf("seed project: %w: name is empty", ErrValidation)
	}
	if seed.OwnerUserID == "" {
		return nil, fmt.Errorf("seed project: %w: owner is empty", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var taken int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM projects
         WHERE owner_user_id = ? AND name = ? COLLATE NOCASE AND archived_at IS NULL`,
		seed.OwnerUserID, seed.Name).Scan(&taken)
	if err != nil {
		return nil, mapSQLError(err, "check project name")
	}
	if taken > 0 {
		return nil, fmt.Errorf("seed project: %w: a project named %q already exists", ErrValidation, seed.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapSQLError(err, "begin seed tx")
	}
	defer func() { _ = tx.Rollback() }()

	projectID := seed.ID
	if projectID == "" {
		projectID = uuid.NewString()
	}

	now := timestamp()
	project := Project{
		ID:              projectID,
		Name:            seed.Name,
		Slug:            seed.Slug,
		Type:            seed.Type,
		RootPath:        seed.RootPath,
		Status:          ProjectActive,
		OwnerUserID:     seed.OwnerUserID,
		ClientID:        seed.ClientID,
		DomainID:        seed.DomainID,
		LifecycleStatus: LifecycleCreating,
		DefaultSrcLang:  seed.DefaultSrcLang,
		DefaultTrgLang:  seed.DefaultTrgLang,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO projects (
            id, name, slug, project_type, root_path, status, owner_user_id,
            client_id, domain_id, lifecycle_status, default_src_lang,
            default_tgt_lang, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.Name, project.Slug, project.Type, project.RootPath,
		project.Status, project.OwnerUserID,
		nullableString(project.ClientID), nullableString(project.DomainID),
		project.LifecycleStatus,
		nullableString(project.DefaultSrcLang), nullableString(project.DefaultTrgLang),
		now, now)
	if err != nil {
		return nil, mapSQLError(err, "insert project")
	}

	result := &SeededProject{Project: project}

	seenPairs := make(map[string]bool, len(seed.Pairs))
	for _, pairSeed := range seed.Pairs {
		key := pairSeed.SrcLang + "\x00" + pairSeed.TrgLang
		if seenPairs[key] {
			continue
		}
		seenPairs[key] = true

		pair := LanguagePair{
			ID:        uuid.NewString(),
			ProjectID: project.ID,
			SrcLang:   pairSeed.SrcLang,
			TrgLang:   pairSeed.TrgLang,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO project_language_pairs (pair_id, project_id, src_lang, trg_lang, created_at)
             VALUES (?, ?, ?, ?, ?)`,
			pair.ID, pair.ProjectID, pair.SrcLang, pair.TrgLang, now)
		if err != nil {
			return nil, mapSQLError(err, "insert language pair")
		}
		result.Pairs = append(result.Pairs, pair)
	}

	for _, fileSeed := range seed.Files {
		fileID := fileSeed.ID
		if fileID == "" {
			fileID = uuid.NewString()
		}
		file := File{
			ID:            fileID,
			ProjectID:     project.ID,
			OriginalName:  fileSeed.OriginalName,
			OriginalPath:  fileSeed.OriginalPath,
			StoredRelPath: fileSeed.StoredRelPath,
			Ext:           fileSeed.Ext,
			Role:          fileSeed.Role,
			MimeType:      fileSeed.MimeType,
			StorageState:  StorageStaged,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO project_files (
                id, project_id, original_name, original_path, stored_rel_path,
                ext, role, mime_type, storage_state, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			file.ID, file.ProjectID, file.OriginalName, file.OriginalPath,
			file.StoredRelPath, file.Ext, file.Role,
			nullableString(file.MimeType), file.StorageState, now, now)
		if err != nil {
			return nil, mapSQLError(err, "insert project file")
		}
		result.Files = append(result.Files, file)

		if !fileSeed.Processable {
			continue
		}
		for _, pair := range result.Pairs {
			target := Target{
				ID:     uuid.NewString(),
				FileID: file.ID,
				PairID: pair.ID,
				Status: TargetPending,
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO file_targets (file_target_id, file_id, pair_id, status, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?)`,
				target.ID, target.FileID, target.PairID, target.Status, now, now)
			if err != nil {
				return nil, mapSQLError(err, "insert file target")
			}
			result.Targets = append(result.Targets, target)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mapSQLError(err, "commit seed tx")
	}
	return result, nil
}

const projectColumns = `id, name, slug, project_type, root_path, status, owner_user_id,
    client_id, domain_id, lifecycle_status, archived_at, default_src_lang,
    default_tgt_lang, created_at, updated_at, metadata`

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		id, name, slug, projectType, rootPath, statusRaw, owner string
		lifecycleRaw                                            string
		clientID, domainID, archivedAt                          sql.NullString
		defaultSrc, defaultTrg, metadata                        sql.NullString
		createdRaw, updatedRaw                                  string
	)
	if err := scanner.Scan(
		&id, &name, &slug, &projectType, &rootPath, &statusRaw, &owner,
		&clientID, &domainID, &lifecycleRaw, &archivedAt,
		&defaultSrc, &defaultTrg, &createdRaw, &updatedRaw, &metadata,
	); err != nil {
		return nil, err
	}

	status, err := ParseProjectStatus(statusRaw)
	if err != nil {
		return nil, err
	}
	lifecycle, err := ParseLifecycleStatus(lifecycleRaw)
	if err != nil {
		return nil, err
	}
	parsedType, err := ParseProjectType(projectType)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("project id %q: %w", id, ErrStore)
	}

	project := &Project{
		ID:              id,
		Name:            name,
		Slug:            slug,
		Type:            parsedType,
		RootPath:        rootPath,
		Status:          status,
		OwnerUserID:     owner,
		ClientID:        clientID.String,
		DomainID:        domainID.String,
		LifecycleStatus: lifecycle,
		ArchivedAt:      parseOptionalTime(archivedAt),
		DefaultSrcLang:  defaultSrc.String,
		DefaultTrgLang:  defaultTrg.String,
		Metadata:        metadata.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		project.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		project.UpdatedAt = updated
	}
	return project, nil
}

// GetProject fetches a project by identifier.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// ListProjects returns all projects ordered by creation time, newest
// first. Archived projects are included; callers filter on Status.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapSQLError(err, "list projects")
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// SetLifecycleStatus flips a project's lifecycle state.
func (s *Store) SetLifecycleStatus(ctx context.Context, id string, status LifecycleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET lifecycle_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return mapSQLError(err, "set lifecycle status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapSQLError(err, "set lifecycle status")
	}
	if affected == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetRootPath persists the final project root after promotion.
func (s *Store) SetRootPath(ctx context.Context, id, rootPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE projects SET root_path = ? WHERE id = ?`, rootPath, id)
	if err != nil {
		return mapSQLError(err, "set root path")
	}
	return nil
}

// SetDefaultLanguages records the project's default language pair.
func (s *Store) SetDefaultLanguages(ctx context.Context, projectID, src, trg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET default_src_lang = ?, default_tgt_lang = ?, updated_at = ? WHERE id = ?`,
		src, trg, timestamp(), projectID)
	if err != nil {
		return mapSQLError(err, "set default languages")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapSQLError(err, "set default languages")
	}
	if affected == 0 {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return nil
}

// ArchiveProject marks a project archived, freeing its name for reuse.
func (s *Store) ArchiveProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = ?, archived_at = ? WHERE id = ? AND archived_at IS NULL`,
		ProjectArchived, timestamp(), id)
	if err != nil {
		return mapSQLError(err, "archive project")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapSQLError(err, "archive project")
	}
	if affected == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteProject removes a project; all dependent rows cascade.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return mapSQLError(err, "delete project")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapSQLError(err, "delete project")
	}
	if affected == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}
