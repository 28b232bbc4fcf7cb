package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/config"
	"loom/internal/project"
	"loom/internal/store"
	"loom/internal/testsupport"
)

type fakeExtractor struct {
	failFor map[string]bool
	calls   int
}

func (f *fakeExtractor) Name() string { return "fake-extract" }

func (f *fakeExtractor) Extract(_ context.Context, inputPath, outputPath, srcLang, trgLang string) error {
	f.calls++
	// Stored inputs are named {fileID}__{original name}.
	for name := range f.failFor {
		if f.failFor[name] && strings.HasSuffix(inputPath, "__"+name) {
			return errors.New("simulated extraction failure")
		}
	}
	body := `<?xml version="1.0"?><xliff version="2.0" srcLang="` + srcLang +
		`" trgLang="` + trgLang + `"><file id="f1"/></xliff>`
	return os.WriteFile(outputPath, []byte(body), 0o644)
}

type fakeConverter struct {
	failFor map[string]bool
	calls   int
}

func (f *fakeConverter) Name() string { return "fake-convert" }

func (f *fakeConverter) Convert(_ context.Context, xliffPath, outputPath string) error {
	f.calls++
	if f.failFor[filepath.Base(xliffPath)] {
		return errors.New("simulated conversion failure")
	}
	return os.WriteFile(outputPath, []byte(`{"jliff":"2.0","units":[]}`), 0o644)
}

func newPipelineFixture(t *testing.T, fileNames ...string) (*store.Store, *config.Config, *store.SeededProject) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := project.NewService(st, cfg, nil)

	docs := testsupport.SourceDocs(t, t.TempDir(), fileNames...)
	created, err := svc.CreateStaged(context.Background(), project.CreateRequest{
		Name:      "Pipeline Fixture",
		Pairs:     []store.PairSeed{{SrcLang: "en-US", TrgLang: "it-IT"}},
		FilePaths: docs,
	})
	if err != nil {
		t.Fatalf("CreateStaged: %v", err)
	}
	return st, cfg, created
}

func TestBuildPlanCoversPendingTargets(t *testing.T) {
	st, _, created := newPipelineFixture(t, "a.docx", "b.md")
	planner := NewPlanner(st, nil)

	plan, err := planner.BuildPlan(context.Background(), created.Project.ID)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan.Tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(plan.Tasks))
	}
	if len(plan.IntegrityAlerts) != 0 {
		t.Fatalf("unexpected alerts: %+v", plan.IntegrityAlerts)
	}
	for _, task := range plan.Tasks {
		if !strings.Contains(task.XLIFFRel, "artifacts/xliff/en-US__it-IT/") {
			t.Errorf("xliff path %q missing pair directory", task.XLIFFRel)
		}
		if !strings.HasSuffix(task.XLIFFRel, task.FileID+".xlf") {
			t.Errorf("xliff path %q not keyed by file id", task.XLIFFRel)
		}
		if !strings.Contains(task.JLIFFRel, "artifacts/xjliff/en-US__it-IT/") {
			t.Errorf("jliff path %q missing pair directory", task.JLIFFRel)
		}
		if _, err := os.Stat(task.InputPath); err != nil {
			t.Errorf("task input %q not on disk: %v", task.InputPath, err)
		}
	}
}

func TestBuildPlanRejectsUnpromotedProject(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded, err := st.SeedProject(context.Background(),
		testsupport.SampleSeed("unpromoted", filepath.Join(cfg.Paths.ProjectsDir, "x"), "a.docx"))
	if err != nil {
		t.Fatalf("SeedProject: %v", err)
	}

	_, err = NewPlanner(st, nil).BuildPlan(context.Background(), seeded.Project.ID)
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for CREATING project, got %v", err)
	}
}

func TestBuildPlanFlagsTamperedFile(t *testing.T) {
	st, _, created := newPipelineFixture(t, "a.docx", "b.docx")
	ctx := context.Background()

	projectRow, err := st.GetProject(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	var tampered string
	for _, file := range created.Files {
		if file.OriginalName == "a.docx" {
			tampered = filepath.Join(projectRow.RootPath, filepath.FromSlash(file.StoredRelPath))
		}
	}
	if err := os.WriteFile(tampered, []byte("tampered content"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	plan, err := NewPlanner(st, nil).BuildPlan(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan.Tasks) != 1 {
		t.Fatalf("got %d tasks, want 1 (tampered file excluded)", len(plan.Tasks))
	}
	if len(plan.IntegrityAlerts) != 1 || plan.IntegrityAlerts[0].OK {
		t.Fatalf("expected one mismatch alert, got %+v", plan.IntegrityAlerts)
	}

	// The stored hash is never repaired by verification.
	for _, file := range created.Files {
		if file.OriginalName != "a.docx" {
			continue
		}
		row, err := st.GetFile(ctx, file.ID)
		if err != nil {
			t.Fatalf("GetFile: %v", err)
		}
		if row.HashSHA256 != plan.IntegrityAlerts[0].ExpectedHash {
			t.Fatal("stored hash changed during verification")
		}
	}
}

func TestBuildPlanMarksUnreadableFileMissing(t *testing.T) {
	st, _, created := newPipelineFixture(t, "a.docx")
	ctx := context.Background()

	projectRow, err := st.GetProject(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if err := os.Remove(filepath.Join(projectRow.RootPath, filepath.FromSlash(created.Files[0].StoredRelPath))); err != nil {
		t.Fatalf("remove: %v", err)
	}

	plan, err := NewPlanner(st, nil).BuildPlan(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan.Tasks) != 0 {
		t.Fatalf("got %d tasks, want 0", len(plan.Tasks))
	}

	row, err := st.GetFile(ctx, created.Files[0].ID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if row.StorageState != store.StorageMissing {
		t.Fatalf("storage = %s, want MISSING", row.StorageState)
	}
}

func TestRunExecutesFullTask(t *testing.T) {
	st, _, created := newPipelineFixture(t, "a.docx")
	ctx := context.Background()
	projectID := created.Project.ID

	plan, err := NewPlanner(st, nil).BuildPlan(ctx, projectID)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	runner := NewRunner(st, &fakeExtractor{}, &fakeConverter{}, nil)
	summary, err := runner.Run(ctx, plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Extracted != 1 || summary.Converted != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	target, err := st.GetTarget(ctx, plan.Tasks[0].TargetID)
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if target.Status != store.TargetExtracted {
		t.Fatalf("target status = %s", target.Status)
	}

	artifacts, err := st.ListArtifactsForTarget(ctx, target.ID)
	if err != nil {
		t.Fatalf("ListArtifactsForTarget: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("got %d artifacts, want xliff and jliff", len(artifacts))
	}
	projectRow, err := st.GetProject(ctx, projectID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	for _, artifact := range artifacts {
		if artifact.Status != store.ArtifactGenerated {
			t.Errorf("%s status = %s", artifact.Kind, artifact.Status)
		}
		if artifact.Checksum == "" || artifact.SizeBytes == 0 {
			t.Errorf("%s missing checksum or size", artifact.Kind)
		}
		if _, err := os.Stat(filepath.Join(projectRow.RootPath, artifact.RelPath)); err != nil {
			t.Errorf("%s output missing on disk: %v", artifact.Kind, err)
		}

		validations, err := st.ListValidations(ctx, artifact.ID)
		if err != nil {
			t.Fatalf("ListValidations: %v", err)
		}
		if len(validations) != 1 || !validations[0].Passed {
			t.Errorf("%s validation = %+v", artifact.Kind, validations)
		}
	}

	for _, jobType := range []store.JobType{store.JobExtractXLIFF, store.JobConvertJLIFF, store.JobValidate} {
		job, err := st.GetJobByKey(ctx, store.JobKey(jobType, projectID, target.ID))
		if err != nil {
			t.Fatalf("GetJobByKey %s: %v", jobType, err)
		}
		if job.State != store.JobSucceeded {
			t.Errorf("%s job state = %s", jobType, job.State)
		}
	}
}

func TestRunIsolatesFailingTask(t *testing.T) {
	st, _, created := newPipelineFixture(t, "good.docx", "bad.docx")
	ctx := context.Background()
	projectID := created.Project.ID

	plan, err := NewPlanner(st, nil).BuildPlan(ctx, projectID)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	extractor := &fakeExtractor{failFor: map[string]bool{"bad.docx": true}}
	summary, err := NewRunner(st, extractor, &fakeConverter{}, nil).Run(ctx, plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Extracted != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	targets, err := st.ListTargets(ctx, projectID)
	if err != nil {
		t.Fatalf("ListTargets: %v", err)
	}
	statuses := map[store.TargetStatus]int{}
	for _, target := range targets {
		statuses[target.Status]++
	}
	if statuses[store.TargetExtracted] != 1 || statuses[store.TargetFailed] != 1 {
		t.Fatalf("target statuses = %v", statuses)
	}

	attention, err := st.ListJobsNeedingAttention(ctx)
	if err != nil {
		t.Fatalf("ListJobsNeedingAttention: %v", err)
	}
	var failedExtract int
	for _, job := range attention {
		if job.Type == store.JobExtractXLIFF && job.State == store.JobFailed {
			failedExtract++
			if !strings.Contains(job.Error, "simulated extraction failure") {
				t.Errorf("job error = %q", job.Error)
			}
		}
	}
	if failedExtract != 1 {
		t.Fatalf("failed extract jobs = %d, want 1", failedExtract)
	}
}

func TestRerunAfterFailureReusesLedgerRows(t *testing.T) {
	st, _, created := newPipelineFixture(t, "retry.docx")
	ctx := context.Background()
	projectID := created.Project.ID

	plan, err := NewPlanner(st, nil).BuildPlan(ctx, projectID)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	targetID := plan.Tasks[0].TargetID

	failing := &fakeExtractor{failFor: map[string]bool{"retry.docx": true}}
	if _, err := NewRunner(st, failing, &fakeConverter{}, nil).Run(ctx, plan); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The target is FAILED so a fresh plan skips it until it is reset.
	if err := st.SetTargetStatus(ctx, targetID, store.TargetPending); err != nil {
		t.Fatalf("reset target: %v", err)
	}
	plan, err = NewPlanner(st, nil).BuildPlan(ctx, projectID)
	if err != nil {
		t.Fatalf("replan: %v", err)
	}
	if len(plan.Tasks) != 1 {
		t.Fatalf("replan tasks = %d", len(plan.Tasks))
	}

	if _, err := NewRunner(st, &fakeExtractor{}, &fakeConverter{}, nil).Run(ctx, plan); err != nil {
		t.Fatalf("second run: %v", err)
	}

	job, err := st.GetJobByKey(ctx, store.JobKey(store.JobExtractXLIFF, projectID, targetID))
	if err != nil {
		t.Fatalf("GetJobByKey: %v", err)
	}
	if job.State != store.JobSucceeded {
		t.Fatalf("job state = %s after retry", job.State)
	}
	if job.Attempts != 2 {
		t.Fatalf("job attempts = %d, want 2", job.Attempts)
	}
	if job.FinishedAt == nil {
		t.Fatal("job finished_at not stamped")
	}

	jobs, err := st.ListJobs(ctx, projectID)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	var extractRows int
	for _, row := range jobs {
		if row.Type == store.JobExtractXLIFF {
			extractRows++
		}
	}
	if extractRows != 1 {
		t.Fatalf("extract ledger rows = %d, want 1", extractRows)
	}
}

func TestRunRecordsFailedValidation(t *testing.T) {
	st, _, created := newPipelineFixture(t, "report.docx")
	ctx := context.Background()

	plan, err := NewPlanner(st, nil).BuildPlan(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	// A converter that writes garbage instead of JSON.
	converter := &brokenOutputConverter{}
	summary, err := NewRunner(st, &fakeExtractor{}, converter, nil).Run(ctx, plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.ValidationsFailed != 1 {
		t.Fatalf("validations failed = %d, want 1", summary.ValidationsFailed)
	}

	job, err := st.GetJobByKey(ctx,
		store.JobKey(store.JobValidate, created.Project.ID, plan.Tasks[0].TargetID))
	if err != nil {
		t.Fatalf("GetJobByKey: %v", err)
	}
	if job.State != store.JobFailed {
		t.Fatalf("validate job state = %s", job.State)
	}
}

type brokenOutputConverter struct{}

func (brokenOutputConverter) Name() string { return "broken-convert" }

func (brokenOutputConverter) Convert(_ context.Context, _, outputPath string) error {
	return os.WriteFile(outputPath, []byte("{not json"), 0o644)
}
