package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"loom/internal/fileutil"
	"loom/internal/langtag"
	"loom/internal/logging"
	"loom/internal/store"
)

// Artifact directories under the project root, one subdirectory per
// language pair.
const (
	xliffDirPrefix = "artifacts/xliff"
	jliffDirPrefix = "artifacts/xjliff"
)

// Task is one unit of conversion work: extract a source file into
// XLIFF for its language pair, then convert that XLIFF into JLIFF.
type Task struct {
	TargetID string
	FileID   string
	PairID   string
	FileName string
	SrcLang  string
	TrgLang  string

	InputPath string
	XLIFFRel  string
	XLIFFPath string
	JLIFFRel  string
	JLIFFPath string
}

// Plan enumerates the runnable work of one project plus anything the
// planner noticed along the way.
type Plan struct {
	ProjectID         string
	Tasks             []Task
	IntegrityAlerts   []*store.IntegrityReport
	SkippedFiles      []string
	LegacyConversions int
}

// Planner builds conversion plans from pending targets.
type Planner struct {
	store  *store.Store
	logger *slog.Logger
}

// NewPlanner wires a planner.
func NewPlanner(st *store.Store, logger *slog.Logger) *Planner {
	return &Planner{
		store:  st,
		logger: logging.NewComponentLogger(logger, "planner"),
	}
}

// BuildPlan gathers all PENDING targets of a ready project into tasks.
// Every scheduled input is hash-verified first: a mismatch raises an
// alert and excludes the task, and an unreadable input flips the file
// to MISSING. Legacy conversion rows are counted so a caller can run
// the bridge before executing the plan.
func (p *Planner) BuildPlan(ctx context.Context, projectID string) (*Plan, error) {
	project, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	switch project.LifecycleStatus {
	case store.LifecycleReady, store.LifecycleCompleted:
	default:
		return nil, fmt.Errorf("plan project %s: %w: lifecycle is %s",
			projectID, store.ErrValidation, project.LifecycleStatus)
	}

	plan := &Plan{ProjectID: projectID}

	plan.LegacyConversions, err = p.store.CountConversions(ctx, projectID)
	if err != nil {
		return nil, err
	}

	targets, err := p.store.ListTargetsByStatus(ctx, projectID, store.TargetPending)
	if err != nil {
		return nil, err
	}

	for _, target := range targets {
		file, err := p.store.GetFile(ctx, target.FileID)
		if err != nil {
			return nil, err
		}
		if file.StorageState != store.StorageCopied {
			plan.SkippedFiles = append(plan.SkippedFiles, file.OriginalName)
			p.logger.Warn("skipping target with unusable file",
				logging.String(logging.FieldFileID, file.ID),
				logging.String("storage_state", string(file.StorageState)))
			continue
		}

		report, err := p.store.VerifyFileIntegrity(ctx, file.ID)
		if err != nil {
			if errors.Is(err, store.ErrIO) {
				if stateErr := p.store.SetStorageState(ctx, file.ID, store.StorageMissing); stateErr != nil {
					return nil, stateErr
				}
				plan.IntegrityAlerts = append(plan.IntegrityAlerts, &store.IntegrityReport{
					FileID:       file.ID,
					ExpectedHash: file.HashSHA256,
				})
				plan.SkippedFiles = append(plan.SkippedFiles, file.OriginalName)
				p.logger.Warn("file content unreadable, marked missing",
					logging.String(logging.FieldFileID, file.ID),
					logging.Error(err))
				continue
			}
			return nil, err
		}
		if !report.OK {
			plan.IntegrityAlerts = append(plan.IntegrityAlerts, report)
			plan.SkippedFiles = append(plan.SkippedFiles, file.OriginalName)
			continue
		}

		pair, err := p.store.GetPair(ctx, target.PairID)
		if err != nil {
			return nil, err
		}

		task, err := buildTask(project, target, file, pair)
		if err != nil {
			return nil, err
		}
		plan.Tasks = append(plan.Tasks, task)
	}

	p.logger.Info("plan built",
		logging.String(logging.FieldProjectID, projectID),
		logging.Int("tasks", len(plan.Tasks)),
		logging.Int("alerts", len(plan.IntegrityAlerts)),
		logging.Int("legacy_conversions", plan.LegacyConversions))
	return plan, nil
}

func buildTask(project *store.Project, target *store.Target, file *store.File, pair *store.LanguagePair) (Task, error) {
	pairDir := langtag.PairDirectory(pair.SrcLang, pair.TrgLang)
	xliffRel := path.Join(xliffDirPrefix, pairDir, file.ID+".xlf")
	jliffRel := path.Join(jliffDirPrefix, pairDir, file.ID+".jliff")

	inputPath, err := fileutil.JoinWithin(project.RootPath, file.StoredRelPath)
	if err != nil {
		return Task{}, fmt.Errorf("task input: %w: %v", store.ErrConstraint, err)
	}
	xliffPath, err := fileutil.JoinWithin(project.RootPath, xliffRel)
	if err != nil {
		return Task{}, fmt.Errorf("task xliff output: %w: %v", store.ErrConstraint, err)
	}
	jliffPath, err := fileutil.JoinWithin(project.RootPath, jliffRel)
	if err != nil {
		return Task{}, fmt.Errorf("task jliff output: %w: %v", store.ErrConstraint, err)
	}

	return Task{
		TargetID:  target.ID,
		FileID:    file.ID,
		PairID:    pair.ID,
		FileName:  file.OriginalName,
		SrcLang:   pair.SrcLang,
		TrgLang:   pair.TrgLang,
		InputPath: inputPath,
		XLIFFRel:  xliffRel,
		XLIFFPath: xliffPath,
		JLIFFRel:  jliffRel,
		JLIFFPath: jliffPath,
	}, nil
}
