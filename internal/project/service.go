package project

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"loom/internal/config"
	"loom/internal/fileutil"
	"loom/internal/langtag"
	"loom/internal/logging"
	"loom/internal/staging"
	"loom/internal/store"
)

// Extensions accepted for import. XLIFF-like files are stored but not
// scheduled for extraction; they are already in interchange form.
var (
	convertibleExtensions = map[string]bool{
		"doc": true, "docx": true, "ppt": true, "pptx": true,
		"xls": true, "xlsx": true, "odt": true, "odp": true, "ods": true,
		"html": true, "xml": true, "dita": true, "md": true,
	}
	xliffExtensions = map[string]bool{
		"xlf": true, "xliff": true, "mqxliff": true, "sdlxliff": true,
	}
)

// Stages reported by CreateError.
const (
	StageSeed    = "seed"
	StageFiles   = "stage"
	StagePromote = "promote"
)

// CreateError reports which stage of a staged creation failed.
type CreateError struct {
	Stage string
	Err   error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("project creation failed during %s: %v", e.Stage, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// Service orchestrates project lifecycle operations over the store and
// the filesystem.
type Service struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger

	// Seams for fault injection in tests.
	copyInto func(area *staging.Area, srcPath, relPath string) (int64, string, error)
	promote  func(area *staging.Area) error
}

// NewService wires a project service.
func NewService(st *store.Store, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		store:  st,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "project"),
		copyInto: func(area *staging.Area, srcPath, relPath string) (int64, string, error) {
			return area.CopyFile(srcPath, relPath)
		},
		promote: func(area *staging.Area) error {
			return area.Promote()
		},
	}
}

// CreateRequest describes one staged project creation.
type CreateRequest struct {
	Name      string
	Type      store.ProjectType
	OwnerID   string
	ClientID  string
	DomainID  string
	Pairs     []store.PairSeed
	FilePaths []string
}

// CreateStaged runs the full creation protocol: seed rows in one
// transaction, copy files into an isolated staging tree with streaming
// hashes, then atomically promote the tree and flip the rows. Any
// failure reports its stage; staging failures leave no partial
// directories behind.
func (s *Service) CreateStaged(ctx context.Context, req CreateRequest) (*store.SeededProject, error) {
	if err := ValidateName(req.Name); err != nil {
		return nil, &CreateError{Stage: StageSeed, Err: err}
	}
	if req.Type == "" {
		req.Type = store.ProjectTypeTranslation
	}
	if req.OwnerID == "" {
		req.OwnerID = store.LocalUserID
	}
	if len(req.Pairs) == 0 {
		req.Pairs = []store.PairSeed{{
			SrcLang: s.cfg.Languages.DefaultSource,
			TrgLang: s.cfg.Languages.DefaultTarget,
		}}
	}

	pairs := make([]store.PairSeed, 0, len(req.Pairs))
	for _, pair := range req.Pairs {
		src, trg, err := langtag.NormalizePair(pair.SrcLang, pair.TrgLang)
		if err != nil {
			return nil, &CreateError{Stage: StageSeed, Err: fmt.Errorf("%w: %v", store.ErrValidation, err)}
		}
		pairs = append(pairs, store.PairSeed{SrcLang: src, TrgLang: trg})
	}

	if len(req.FilePaths) == 0 {
		return nil, &CreateError{Stage: StageSeed, Err: fmt.Errorf("%w: no files to import", store.ErrValidation)}
	}

	projectID := uuid.NewString()
	slug := Slugify(req.Name)
	dirName := projectID + "-" + slug
	finalDir := filepath.Join(s.cfg.Paths.ProjectsDir, dirName)

	seed := store.ProjectSeed{
		ID:          projectID,
		Name:        strings.TrimSpace(req.Name),
		Slug:        slug,
		Type:        req.Type,
		OwnerUserID: req.OwnerID,
		ClientID:    req.ClientID,
		DomainID:    req.DomainID,
		RootPath:    finalDir,
		Pairs:       pairs,
	}
	if len(pairs) > 0 {
		seed.DefaultSrcLang = pairs[0].SrcLang
		seed.DefaultTrgLang = pairs[0].TrgLang
	}

	usedNames := make(map[string]bool, len(req.FilePaths))
	for _, srcPath := range req.FilePaths {
		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, &CreateError{Stage: StageSeed, Err: fmt.Errorf("%w: %v", store.ErrValidation, err)}
		}
		if info.IsDir() {
			return nil, &CreateError{Stage: StageSeed, Err: fmt.Errorf("%w: %s is a directory", store.ErrValidation, srcPath)}
		}

		name := filepath.Base(srcPath)
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if !convertibleExtensions[ext] && !xliffExtensions[ext] {
			return nil, &CreateError{Stage: StageSeed, Err: fmt.Errorf("%w: unsupported file type %q", store.ErrValidation, name)}
		}

		for counter := 2; usedNames[strings.ToLower(name)]; counter++ {
			name = CollisionName(filepath.Base(srcPath), counter)
		}
		usedNames[strings.ToLower(name)] = true

		// Stored names are prefixed with the file id so sibling
		// uploads can never clash on disk.
		fileID := uuid.NewString()
		seed.Files = append(seed.Files, store.FileSeed{
			ID:            fileID,
			OriginalName:  name,
			OriginalPath:  srcPath,
			StoredRelPath: staging.PathPrefix + "original/" + fileID + "__" + name,
			Ext:           ext,
			Role:          store.RoleSource,
			MimeType:      mimeTypeForExt(ext),
			Processable:   convertibleExtensions[ext],
		})
	}

	created, err := s.store.SeedProject(ctx, seed)
	if err != nil {
		return nil, &CreateError{Stage: StageSeed, Err: err}
	}

	logger := s.logger.With(logging.String(logging.FieldProjectID, projectID))
	logger.Info("project seeded",
		logging.Int("files", len(created.Files)),
		logging.Int("pairs", len(created.Pairs)),
		logging.Int("targets", len(created.Targets)))

	if err := s.store.SetLifecycleStatus(ctx, projectID, store.LifecycleInProgress); err != nil {
		return nil, &CreateError{Stage: StageFiles, Err: err}
	}

	guard := staging.NewGuard(logger)
	defer guard.Cleanup()

	area, err := staging.Create(s.cfg.Paths.ProjectsDir, dirName, guard)
	if err != nil {
		s.failCreation(ctx, logger, created, nil, "")
		return nil, &CreateError{Stage: StageFiles, Err: fmt.Errorf("%w: %v", store.ErrIO, err)}
	}

	for i, file := range created.Files {
		relPath := strings.TrimPrefix(file.StoredRelPath, staging.PathPrefix)
		jobKey := store.JobKey(store.JobCopyFile, projectID, file.ID)
		if _, err := s.store.UpsertJob(ctx, store.JobUpsert{
			ProjectID: projectID,
			Type:      store.JobCopyFile,
			Key:       jobKey,
			State:     store.JobRunning,
		}); err != nil {
			s.failCreation(ctx, logger, created, nil, "")
			return nil, &CreateError{Stage: StageFiles, Err: err}
		}

		size, hash, err := s.copyInto(area, file.OriginalPath, relPath)
		if err != nil {
			s.failCreation(ctx, logger, created, &jobKey, err.Error())
			return nil, &CreateError{Stage: StageFiles, Err: fmt.Errorf("%w: copy %s: %v", store.ErrIO, file.OriginalName, err)}
		}
		if err := s.store.RecordFileHash(ctx, file.ID, hash, size); err != nil {
			s.failCreation(ctx, logger, created, &jobKey, err.Error())
			return nil, &CreateError{Stage: StageFiles, Err: err}
		}
		created.Files[i].HashSHA256 = hash
		created.Files[i].SizeBytes = size

		if _, err := s.store.UpsertJob(ctx, store.JobUpsert{
			ProjectID: projectID,
			Type:      store.JobCopyFile,
			Key:       jobKey,
			State:     store.JobSucceeded,
		}); err != nil {
			s.failCreation(ctx, logger, created, nil, "")
			return nil, &CreateError{Stage: StageFiles, Err: err}
		}
		logger.Info("file staged",
			logging.String(logging.FieldFileID, file.ID),
			logging.String("name", file.OriginalName),
			logging.Int64("bytes", size))
	}

	if err := s.promote(area); err != nil {
		// The staging tree stays on disk for inspection; no file rows
		// are touched so they keep their STAGED state and paths.
		guard.Disarm()
		if statusErr := s.store.SetLifecycleStatus(ctx, projectID, store.LifecycleError); statusErr != nil {
			logger.Error("failed to record promote failure", logging.Error(statusErr))
		}
		return nil, &CreateError{Stage: StagePromote, Err: fmt.Errorf("%w: %v", store.ErrIO, err)}
	}
	guard.Disarm()

	if err := s.store.FinalizeStagedFiles(ctx, projectID, staging.PathPrefix); err != nil {
		return nil, &CreateError{Stage: StagePromote, Err: err}
	}
	for i := range created.Files {
		created.Files[i].StoredRelPath = strings.TrimPrefix(created.Files[i].StoredRelPath, staging.PathPrefix)
		created.Files[i].StorageState = store.StorageCopied
	}
	if err := s.store.SetRootPath(ctx, projectID, finalDir); err != nil {
		return nil, &CreateError{Stage: StagePromote, Err: err}
	}
	if err := s.store.SetLifecycleStatus(ctx, projectID, store.LifecycleReady); err != nil {
		return nil, &CreateError{Stage: StagePromote, Err: err}
	}

	created.Project.LifecycleStatus = store.LifecycleReady
	logger.Info("project promoted", logging.String("root", finalDir))
	return created, nil
}

// failCreation marks the project ERROR and records the failed copy job.
// The armed guard removes the partial staging tree on return.
func (s *Service) failCreation(ctx context.Context, logger *slog.Logger, created *store.SeededProject, failedJobKey *string, errText string) {
	if failedJobKey != nil {
		if _, err := s.store.UpsertJob(ctx, store.JobUpsert{
			ProjectID: created.Project.ID,
			Type:      store.JobCopyFile,
			Key:       *failedJobKey,
			State:     store.JobFailed,
			Error:     errText,
		}); err != nil {
			logger.Error("failed to record copy failure", logging.Error(err))
		}
	}
	if err := s.store.SetLifecycleStatus(ctx, created.Project.ID, store.LifecycleError); err != nil {
		logger.Error("failed to mark project errored", logging.Error(err))
	}
}

// Details returns a consistent multi-table view of one project.
func (s *Service) Details(ctx context.Context, projectID string) (*store.Snapshot, error) {
	return s.store.ProjectSnapshot(ctx, projectID)
}

// List returns all projects.
func (s *Service) List(ctx context.Context) ([]*store.Project, error) {
	return s.store.ListProjects(ctx)
}

// RemoveFile deletes a project file: its row cascades to targets and
// artifacts, and its bytes plus any artifact outputs are removed from
// disk best-effort after the database commit.
func (s *Service) RemoveFile(ctx context.Context, projectID, fileID string) error {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if file.ProjectID != projectID {
		return fmt.Errorf("%w: file %s does not belong to project %s", store.ErrValidation, fileID, projectID)
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}

	snapshot, err := s.store.ProjectSnapshot(ctx, projectID)
	if err != nil {
		return err
	}
	var artifactPaths []string
	for _, target := range snapshot.Targets {
		if target.FileID != fileID {
			continue
		}
		for _, artifact := range snapshot.Artifacts {
			if artifact.TargetID == target.ID {
				artifactPaths = append(artifactPaths, artifact.RelPath)
			}
		}
	}

	if err := s.store.DeleteFile(ctx, fileID); err != nil {
		return err
	}

	removePaths := append(artifactPaths, file.StoredRelPath)
	for _, relPath := range removePaths {
		absPath, err := fileutil.JoinWithin(project.RootPath, relPath)
		if err != nil {
			s.logger.Warn("skipping unsafe path during file removal",
				logging.String("rel_path", relPath), logging.Error(err))
			continue
		}
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove file from disk",
				logging.String("path", absPath), logging.Error(err))
		}
	}

	s.logger.Info("file removed",
		logging.String(logging.FieldProjectID, projectID),
		logging.String(logging.FieldFileID, fileID))
	return nil
}

// Archive marks a project archived, freeing its name for reuse. Files
// stay on disk.
func (s *Service) Archive(ctx context.Context, projectID string) error {
	return s.store.ArchiveProject(ctx, projectID)
}

func mimeTypeForExt(ext string) string {
	switch ext {
	case "doc":
		return "application/msword"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "ppt":
		return "application/vnd.ms-powerpoint"
	case "pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case "xls":
		return "application/vnd.ms-excel"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "odt":
		return "application/vnd.oasis.opendocument.text"
	case "odp":
		return "application/vnd.oasis.opendocument.presentation"
	case "ods":
		return "application/vnd.oasis.opendocument.spreadsheet"
	case "html":
		return "text/html"
	case "xml", "dita":
		return "application/xml"
	case "md":
		return "text/markdown"
	case "xlf", "xliff", "mqxliff", "sdlxliff":
		return "application/xliff+xml"
	default:
		return "application/octet-stream"
	}
}
