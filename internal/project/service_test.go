package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/fileutil"
	"loom/internal/staging"
	"loom/internal/store"
	"loom/internal/testsupport"
)

func newTestService(t *testing.T) (*Service, *store.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return NewService(st, cfg, nil), st, cfg.Paths.ProjectsDir
}

func stagingDirs(t *testing.T, projectsDir string) []string {
	t.Helper()
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		t.Fatalf("read projects dir: %v", err)
	}
	var dirs []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), staging.Suffix) {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs
}

func TestCreateStagedHappyPath(t *testing.T) {
	svc, st, projectsDir := newTestService(t)
	ctx := context.Background()

	docs := testsupport.SourceDocs(t, t.TempDir(), "brief.docx", "notes.md", "ready.xlf")
	created, err := svc.CreateStaged(ctx, CreateRequest{
		Name:      "Q3 Marketing",
		Pairs:     []store.PairSeed{{SrcLang: "en-US", TrgLang: "it-IT"}},
		FilePaths: docs,
	})
	if err != nil {
		t.Fatalf("CreateStaged: %v", err)
	}

	project, err := st.GetProject(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if project.LifecycleStatus != store.LifecycleReady {
		t.Fatalf("lifecycle = %s, want READY", project.LifecycleStatus)
	}
	if project.Slug != "q3-marketing" {
		t.Fatalf("slug = %q", project.Slug)
	}
	wantRoot := filepath.Join(projectsDir, project.ID+"-q3-marketing")
	if project.RootPath != wantRoot {
		t.Fatalf("root = %q, want %q", project.RootPath, wantRoot)
	}
	if len(stagingDirs(t, projectsDir)) != 0 {
		t.Fatal("staging directory left behind")
	}

	files, err := st.ListFiles(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d files, want 3", len(files))
	}
	for _, file := range files {
		if file.StorageState != store.StorageCopied {
			t.Errorf("%s storage = %s, want COPIED", file.OriginalName, file.StorageState)
		}
		if strings.HasPrefix(file.StoredRelPath, staging.PathPrefix) {
			t.Errorf("%s kept staging prefix %q", file.OriginalName, file.StoredRelPath)
		}
		absPath := filepath.Join(project.RootPath, file.StoredRelPath)
		hash, err := fileutil.HashFile(absPath)
		if err != nil {
			t.Fatalf("hash %s: %v", absPath, err)
		}
		if hash != file.HashSHA256 {
			t.Errorf("%s hash mismatch: disk %s, row %s", file.OriginalName, hash, file.HashSHA256)
		}

		job, err := st.GetJobByKey(ctx, store.JobKey(store.JobCopyFile, project.ID, file.ID))
		if err != nil {
			t.Fatalf("GetJobByKey: %v", err)
		}
		if job.State != store.JobSucceeded {
			t.Errorf("%s copy job state = %s", file.OriginalName, job.State)
		}
		if job.Attempts != 1 {
			t.Errorf("%s copy job attempts = %d, want 1", file.OriginalName, job.Attempts)
		}
	}

	// The XLIFF import is stored but not scheduled for extraction.
	targets, err := st.ListTargets(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListTargets: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("got %d targets, want 2 (docx and md only)", len(targets))
	}
}

func TestCreateStagedCopyFailureLeavesNoResidue(t *testing.T) {
	svc, st, projectsDir := newTestService(t)
	ctx := context.Background()

	docs := testsupport.SourceDocs(t, t.TempDir(), "ok.docx", "broken.docx")
	realCopy := svc.copyInto
	svc.copyInto = func(area *staging.Area, srcPath, relPath string) (int64, string, error) {
		if strings.Contains(srcPath, "broken") {
			return 0, "", errors.New("disk full")
		}
		return realCopy(area, srcPath, relPath)
	}

	_, err := svc.CreateStaged(ctx, CreateRequest{Name: "Doomed Import", FilePaths: docs})
	var createErr *CreateError
	if !errors.As(err, &createErr) || createErr.Stage != StageFiles {
		t.Fatalf("expected stage %q failure, got %v", StageFiles, err)
	}
	if !errors.Is(err, store.ErrIO) {
		t.Fatalf("expected IO classification, got %v", err)
	}

	if dirs := stagingDirs(t, projectsDir); len(dirs) != 0 {
		t.Fatalf("staging dirs left behind: %v", dirs)
	}

	projects, err := st.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("got %d projects", len(projects))
	}
	if projects[0].LifecycleStatus != store.LifecycleError {
		t.Fatalf("lifecycle = %s, want ERROR", projects[0].LifecycleStatus)
	}

	jobs, err := st.ListJobs(ctx, projects[0].ID)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	var failed int
	for _, job := range jobs {
		if job.Type == store.JobCopyFile && job.State == store.JobFailed {
			failed++
			if job.Error == "" {
				t.Error("failed copy job has no error text")
			}
		}
	}
	if failed != 1 {
		t.Fatalf("got %d failed copy jobs, want 1", failed)
	}
}

func TestCreateStagedPromoteFailureKeepsStagedRows(t *testing.T) {
	svc, st, projectsDir := newTestService(t)
	ctx := context.Background()

	docs := testsupport.SourceDocs(t, t.TempDir(), "brief.docx")
	svc.promote = func(area *staging.Area) error {
		return errors.New("rename blocked")
	}

	_, err := svc.CreateStaged(ctx, CreateRequest{Name: "Stuck Import", FilePaths: docs})
	var createErr *CreateError
	if !errors.As(err, &createErr) || createErr.Stage != StagePromote {
		t.Fatalf("expected stage %q failure, got %v", StagePromote, err)
	}

	// The staging tree survives for inspection and no file row moved on.
	if dirs := stagingDirs(t, projectsDir); len(dirs) != 1 {
		t.Fatalf("expected staging dir to survive, got %v", dirs)
	}
	projects, err := st.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if projects[0].LifecycleStatus != store.LifecycleError {
		t.Fatalf("lifecycle = %s, want ERROR", projects[0].LifecycleStatus)
	}
	files, err := st.ListFiles(ctx, projects[0].ID)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	for _, file := range files {
		if file.StorageState != store.StorageStaged {
			t.Errorf("%s storage = %s, want STAGED", file.OriginalName, file.StorageState)
		}
		if !strings.HasPrefix(file.StoredRelPath, staging.PathPrefix) {
			t.Errorf("%s lost staging prefix: %q", file.OriginalName, file.StoredRelPath)
		}
	}
}

func TestCreateStagedRenamesCollidingFiles(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	dirA, dirB := t.TempDir(), t.TempDir()
	docs := append(
		testsupport.SourceDocs(t, dirA, "report.docx"),
		testsupport.SourceDocs(t, dirB, "report.docx")...)

	created, err := svc.CreateStaged(ctx, CreateRequest{Name: "Twin Reports", FilePaths: docs})
	if err != nil {
		t.Fatalf("CreateStaged: %v", err)
	}

	files, err := st.ListFiles(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	names := make(map[string]bool, len(files))
	for _, file := range files {
		names[file.OriginalName] = true
	}
	if !names["report.docx"] || !names["report-2.docx"] {
		t.Fatalf("collision renaming failed: %v", names)
	}
}

func TestCreateStagedValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	doc := testsupport.SourceDocs(t, t.TempDir(), "brief.docx")

	cases := []struct {
		name string
		req  CreateRequest
	}{
		{"short name", CreateRequest{Name: "x", FilePaths: doc}},
		{"no files", CreateRequest{Name: "Empty Project"}},
		{"same language both sides", CreateRequest{
			Name:      "Mirror",
			FilePaths: doc,
			Pairs:     []store.PairSeed{{SrcLang: "en-US", TrgLang: "en-us"}},
		}},
	}
	for _, tc := range cases {
		_, err := svc.CreateStaged(ctx, tc.req)
		var createErr *CreateError
		if !errors.As(err, &createErr) || createErr.Stage != StageSeed {
			t.Errorf("%s: expected seed-stage failure, got %v", tc.name, err)
		}
		if !errors.Is(err, store.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}

	exe := filepath.Join(t.TempDir(), "malware.exe")
	testsupport.WriteFile(t, exe, "MZ")
	_, err := svc.CreateStaged(ctx, CreateRequest{Name: "Bad Type", FilePaths: []string{exe}})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected unsupported extension rejection, got %v", err)
	}
}

func TestRemoveFileDeletesRowAndBytes(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	docs := testsupport.SourceDocs(t, t.TempDir(), "keep.docx", "drop.docx")
	created, err := svc.CreateStaged(ctx, CreateRequest{Name: "Pruned Project", FilePaths: docs})
	if err != nil {
		t.Fatalf("CreateStaged: %v", err)
	}

	var victim store.File
	for _, file := range created.Files {
		if file.OriginalName == "drop.docx" {
			victim = file
		}
	}
	project, err := st.GetProject(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	victimPath := filepath.Join(project.RootPath, filepath.FromSlash(victim.StoredRelPath))
	if _, err := os.Stat(victimPath); err != nil {
		t.Fatalf("victim missing before removal: %v", err)
	}

	if err := svc.RemoveFile(ctx, project.ID, victim.ID); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if _, err := st.GetFile(ctx, victim.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected row gone, got %v", err)
	}
	if _, err := os.Stat(victimPath); !os.IsNotExist(err) {
		t.Fatalf("expected bytes gone, got %v", err)
	}
	targets, err := st.ListTargets(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListTargets: %v", err)
	}
	for _, target := range targets {
		if target.FileID == victim.ID {
			t.Fatal("target survived file deletion")
		}
	}
}

func TestRemoveFileRejectsForeignFile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateStaged(ctx, CreateRequest{
		Name:      "First",
		FilePaths: testsupport.SourceDocs(t, t.TempDir(), "a.docx"),
	})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := svc.CreateStaged(ctx, CreateRequest{
		Name:      "Second",
		FilePaths: testsupport.SourceDocs(t, t.TempDir(), "b.docx"),
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	err = svc.RemoveFile(ctx, first.Project.ID, second.Files[0].ID)
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ownership rejection, got %v", err)
	}
}

func TestArchiveFreesProjectName(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	name := "Seasonal Campaign"
	first, err := svc.CreateStaged(ctx, CreateRequest{
		Name:      name,
		FilePaths: testsupport.SourceDocs(t, t.TempDir(), "v1.docx"),
	})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}

	_, err = svc.CreateStaged(ctx, CreateRequest{
		Name:      name,
		FilePaths: testsupport.SourceDocs(t, t.TempDir(), "v2.docx"),
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected duplicate name rejection, got %v", err)
	}

	if err := svc.Archive(ctx, first.Project.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if _, err := svc.CreateStaged(ctx, CreateRequest{
		Name:      name,
		FilePaths: testsupport.SourceDocs(t, t.TempDir(), "v2.docx"),
	}); err != nil {
		t.Fatalf("expected archived name to be reusable: %v", err)
	}
}

func TestDetailsSnapshotCoversAllTables(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateStaged(ctx, CreateRequest{
		Name:      "Snapshot Target",
		FilePaths: testsupport.SourceDocs(t, t.TempDir(), "a.docx", "b.md"),
	})
	if err != nil {
		t.Fatalf("CreateStaged: %v", err)
	}
	if _, err := st.AddNote(ctx, created.Project.ID, store.LocalUserID, "kickoff"); err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	snap, err := svc.Details(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if snap.Project.ID != created.Project.ID {
		t.Fatal("wrong project in snapshot")
	}
	if len(snap.Files) != 2 || len(snap.Pairs) != 1 || len(snap.Targets) != 2 {
		t.Fatalf("snapshot counts: files=%d pairs=%d targets=%d",
			len(snap.Files), len(snap.Pairs), len(snap.Targets))
	}
	if len(snap.Jobs) != 2 {
		t.Fatalf("snapshot jobs = %d, want 2 copy jobs", len(snap.Jobs))
	}
	if len(snap.Notes) != 1 {
		t.Fatalf("snapshot notes = %d", len(snap.Notes))
	}
	if len(stagingDirs(t, filepath.Dir(snap.Project.RootPath))) != 0 {
		t.Fatal("staging dirs remain after promotion")
	}
}
