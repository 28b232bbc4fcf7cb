package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"loom/internal/fileutil"
	"loom/internal/logging"
	"loom/internal/store"
)

// Runner executes a plan sequentially. Each task runs in isolation: a
// failure marks that target and its jobs and the run moves to the next
// task, so one bad document never blocks a batch.
type Runner struct {
	store     *store.Store
	extractor Extractor
	converter Converter
	logger    *slog.Logger
}

// NewRunner wires a runner.
func NewRunner(st *store.Store, extractor Extractor, converter Converter, logger *slog.Logger) *Runner {
	return &Runner{
		store:     st,
		extractor: extractor,
		converter: converter,
		logger:    logging.NewComponentLogger(logger, "runner"),
	}
}

// RunSummary counts the outcomes of one plan execution.
type RunSummary struct {
	Extracted         int
	Converted         int
	Failed            int
	ValidationsFailed int
}

// Run executes every task of the plan. The returned error covers only
// infrastructure failures (database or context); per-task tool
// failures land in the summary and the job ledger.
func (r *Runner) Run(ctx context.Context, plan *Plan) (*RunSummary, error) {
	summary := &RunSummary{}

	for _, task := range plan.Tasks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := r.runTask(ctx, plan.ProjectID, task, summary); err != nil {
			return summary, err
		}
	}

	r.logger.Info("plan executed",
		logging.String(logging.FieldProjectID, plan.ProjectID),
		logging.Int("extracted", summary.Extracted),
		logging.Int("converted", summary.Converted),
		logging.Int("failed", summary.Failed),
		logging.Int("validations_failed", summary.ValidationsFailed))
	return summary, nil
}

func (r *Runner) runTask(ctx context.Context, projectID string, task Task, summary *RunSummary) error {
	logger := r.logger.With(
		logging.String(logging.FieldTargetID, task.TargetID),
		logging.String("file", task.FileName))

	xliffArtifact, err := r.extract(ctx, projectID, task, logger)
	if err != nil {
		return err
	}
	if xliffArtifact == nil {
		summary.Failed++
		return nil
	}
	summary.Extracted++

	jliffArtifact, err := r.convert(ctx, projectID, task, logger)
	if err != nil {
		return err
	}
	if jliffArtifact == nil {
		summary.Failed++
		return nil
	}
	summary.Converted++

	return r.validate(ctx, projectID, task, xliffArtifact, jliffArtifact, summary, logger)
}

// extract runs the extraction step. A nil artifact with nil error means
// the tool failed and the failure has been recorded.
func (r *Runner) extract(ctx context.Context, projectID string, task Task, logger *slog.Logger) (*store.Artifact, error) {
	jobKey := store.JobKey(store.JobExtractXLIFF, projectID, task.TargetID)
	if _, err := r.store.UpsertJob(ctx, store.JobUpsert{
		ProjectID: projectID,
		Type:      store.JobExtractXLIFF,
		Key:       jobKey,
		TargetID:  task.TargetID,
		State:     store.JobRunning,
	}); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(task.XLIFFPath), 0o755); err != nil {
		return nil, r.failTarget(ctx, projectID, task, jobKey, store.JobExtractXLIFF, err)
	}
	if err := r.extractor.Extract(ctx, task.InputPath, task.XLIFFPath, task.SrcLang, task.TrgLang); err != nil {
		return nil, r.failTarget(ctx, projectID, task, jobKey, store.JobExtractXLIFF, err)
	}

	artifact, err := r.recordArtifact(ctx, task.TargetID, store.ArtifactXLIFF, task.XLIFFRel, task.XLIFFPath, r.extractor.Name())
	if err != nil {
		return nil, r.failTarget(ctx, projectID, task, jobKey, store.JobExtractXLIFF, err)
	}

	if _, err := r.store.UpsertJob(ctx, store.JobUpsert{
		ProjectID:  projectID,
		Type:       store.JobExtractXLIFF,
		Key:        jobKey,
		TargetID:   task.TargetID,
		ArtifactID: artifact.ID,
		State:      store.JobSucceeded,
	}); err != nil {
		return nil, err
	}
	if err := r.store.SetTargetStatus(ctx, task.TargetID, store.TargetExtracted); err != nil {
		return nil, err
	}

	logger.Info("xliff extracted", logging.String("path", task.XLIFFRel))
	return artifact, nil
}

// convert runs the JLIFF conversion step. A nil artifact with nil
// error means the tool failed; the target keeps its EXTRACTED status
// so only conversion is retried later.
func (r *Runner) convert(ctx context.Context, projectID string, task Task, logger *slog.Logger) (*store.Artifact, error) {
	jobKey := store.JobKey(store.JobConvertJLIFF, projectID, task.TargetID)
	if _, err := r.store.UpsertJob(ctx, store.JobUpsert{
		ProjectID: projectID,
		Type:      store.JobConvertJLIFF,
		Key:       jobKey,
		TargetID:  task.TargetID,
		State:     store.JobRunning,
	}); err != nil {
		return nil, err
	}

	runErr := os.MkdirAll(filepath.Dir(task.JLIFFPath), 0o755)
	if runErr == nil {
		runErr = r.converter.Convert(ctx, task.XLIFFPath, task.JLIFFPath)
	}
	if runErr != nil {
		logger.Error("jliff conversion failed", logging.Error(runErr))
		if _, err := r.store.UpsertJob(ctx, store.JobUpsert{
			ProjectID: projectID,
			Type:      store.JobConvertJLIFF,
			Key:       jobKey,
			TargetID:  task.TargetID,
			State:     store.JobFailed,
			Error:     runErr.Error(),
		}); err != nil {
			return nil, err
		}
		return nil, nil
	}

	artifact, err := r.recordArtifact(ctx, task.TargetID, store.ArtifactJLIFF, task.JLIFFRel, task.JLIFFPath, r.converter.Name())
	if err != nil {
		return nil, err
	}
	if _, err := r.store.UpsertJob(ctx, store.JobUpsert{
		ProjectID:  projectID,
		Type:       store.JobConvertJLIFF,
		Key:        jobKey,
		TargetID:   task.TargetID,
		ArtifactID: artifact.ID,
		State:      store.JobSucceeded,
	}); err != nil {
		return nil, err
	}

	logger.Info("jliff converted", logging.String("path", task.JLIFFRel))
	return artifact, nil
}

// validate checks that both outputs are well formed and records the
// verdicts. A failed check is a recorded verdict, not a run error.
func (r *Runner) validate(ctx context.Context, projectID string, task Task, xliffArtifact, jliffArtifact *store.Artifact, summary *RunSummary, logger *slog.Logger) error {
	jobKey := store.JobKey(store.JobValidate, projectID, task.TargetID)
	if _, err := r.store.UpsertJob(ctx, store.JobUpsert{
		ProjectID: projectID,
		Type:      store.JobValidate,
		Key:       jobKey,
		TargetID:  task.TargetID,
		State:     store.JobRunning,
	}); err != nil {
		return err
	}

	checks := []struct {
		artifact  *store.Artifact
		validator string
		path      string
		check     func([]byte) error
	}{
		{xliffArtifact, "xliff-wellformed", task.XLIFFPath, checkXML},
		{jliffArtifact, "jliff-wellformed", task.JLIFFPath, checkJSON},
	}

	allPassed := true
	for _, c := range checks {
		passed := true
		detail := ""
		data, err := os.ReadFile(c.path)
		if err == nil {
			err = c.check(data)
		}
		if err != nil {
			passed = false
			allPassed = false
			detail = err.Error()
			logger.Warn("artifact validation failed",
				logging.String("validator", c.validator),
				logging.Error(err))
		}
		result, err := json.Marshal(map[string]string{"detail": detail})
		if err != nil {
			return fmt.Errorf("encode validation result: %w", err)
		}
		if _, err := r.store.InsertValidation(ctx, c.artifact.ID, c.validator, passed, string(result)); err != nil {
			return err
		}
	}

	state := store.JobSucceeded
	errText := ""
	if !allPassed {
		summary.ValidationsFailed++
		state = store.JobFailed
		errText = "artifact validation failed"
	}
	_, err := r.store.UpsertJob(ctx, store.JobUpsert{
		ProjectID:  projectID,
		Type:       store.JobValidate,
		Key:        jobKey,
		TargetID:   task.TargetID,
		ArtifactID: jliffArtifact.ID,
		State:      state,
		Error:      errText,
	})
	return err
}

func (r *Runner) recordArtifact(ctx context.Context, targetID string, kind store.ArtifactKind, relPath, absPath, tool string) (*store.Artifact, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat artifact output: %w", err)
	}
	checksum, err := fileutil.HashFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("hash artifact output: %w", err)
	}
	return r.store.UpsertArtifact(ctx, store.ArtifactUpsert{
		TargetID:  targetID,
		Kind:      kind,
		RelPath:   relPath,
		SizeBytes: info.Size(),
		Checksum:  checksum,
		Tool:      tool,
		Status:    store.ArtifactGenerated,
	})
}

// failTarget records a tool failure on the ledger and flips the target
// to FAILED. It returns nil so the caller can continue with the next
// task; only database errors propagate.
func (r *Runner) failTarget(ctx context.Context, projectID string, task Task, jobKey string, jobType store.JobType, cause error) error {
	r.logger.Error("task failed",
		logging.String(logging.FieldTargetID, task.TargetID),
		logging.String(logging.FieldJobType, string(jobType)),
		logging.Error(cause))

	if _, err := r.store.UpsertJob(ctx, store.JobUpsert{
		ProjectID: projectID,
		Type:      jobType,
		Key:       jobKey,
		TargetID:  task.TargetID,
		State:     store.JobFailed,
		Error:     cause.Error(),
	}); err != nil {
		return err
	}
	return r.store.SetTargetStatus(ctx, task.TargetID, store.TargetFailed)
}

func checkXML(data []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	sawElement := false
	for {
		token, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if !sawElement {
					return fmt.Errorf("no root element")
				}
				return nil
			}
			return err
		}
		if _, ok := token.(xml.StartElement); ok {
			sawElement = true
		}
	}
}

func checkJSON(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("not valid JSON")
	}
	return nil
}
