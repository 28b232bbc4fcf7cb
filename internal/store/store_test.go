package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"loom/internal/store"
	"loom/internal/testsupport"
)

func TestOpenBootstrapIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first := testsupport.MustOpenStore(t, cfg)
	seed := testsupport.SampleSeed("Manual", filepath.Join(cfg.Paths.ProjectsDir, "manual"), "a.docx")
	created, err := first.SeedProject(ctx, seed)
	if err != nil {
		t.Fatalf("SeedProject failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening runs the bootstrap against a current schema and must
	// leave existing rows intact.
	second, err := store.Open(cfg.Paths.AppDir, store.DefaultPerfConfig(), nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	project, err := second.GetProject(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("GetProject after reopen: %v", err)
	}
	if project.Name != "Manual" {
		t.Fatalf("unexpected project after reopen: %+v", project)
	}
}

func TestSeedProjectCreatesFullRowSet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	seed := testsupport.SampleSeed("Contract", filepath.Join(cfg.Paths.ProjectsDir, "contract"), "a.docx", "b.docx")
	created, err := st.SeedProject(ctx, seed)
	if err != nil {
		t.Fatalf("SeedProject failed: %v", err)
	}

	if created.Project.LifecycleStatus != store.LifecycleCreating {
		t.Fatalf("expected CREATING, got %s", created.Project.LifecycleStatus)
	}
	if len(created.Pairs) != 1 || len(created.Files) != 2 || len(created.Targets) != 2 {
		t.Fatalf("unexpected row counts: %d pairs, %d files, %d targets",
			len(created.Pairs), len(created.Files), len(created.Targets))
	}
	for _, target := range created.Targets {
		if target.Status != store.TargetPending {
			t.Fatalf("expected PENDING target, got %s", target.Status)
		}
	}
	for _, file := range created.Files {
		if file.StorageState != store.StorageStaged {
			t.Fatalf("expected STAGED file, got %s", file.StorageState)
		}
	}
}

func TestSeedProjectDedupesPairs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	seed := testsupport.SampleSeed("Dupes", "/tmp/dupes", "a.docx")
	seed.Pairs = append(seed.Pairs, store.PairSeed{SrcLang: "en-US", TrgLang: "it-IT"})

	created, err := st.SeedProject(context.Background(), seed)
	if err != nil {
		t.Fatalf("SeedProject failed: %v", err)
	}
	if len(created.Pairs) != 1 {
		t.Fatalf("expected duplicate pair to collapse, got %d pairs", len(created.Pairs))
	}
}

func TestSeedProjectRejectsDuplicateNameCaseInsensitive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.SeedProject(ctx, testsupport.SampleSeed("Quarterly Report", "/tmp/q1", "a.docx")); err != nil {
		t.Fatalf("first SeedProject failed: %v", err)
	}

	dupe := testsupport.SampleSeed("quarterly report", "/tmp/q2", "b.docx")
	dupe.Slug = "quarterly-report-2"
	if _, err := st.SeedProject(ctx, dupe); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for duplicate name, got %v", err)
	}
}

func TestArchivedNameCanBeReused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created, err := st.SeedProject(ctx, testsupport.SampleSeed("Recycled", "/tmp/r1", "a.docx"))
	if err != nil {
		t.Fatalf("SeedProject failed: %v", err)
	}
	if err := st.ArchiveProject(ctx, created.Project.ID); err != nil {
		t.Fatalf("ArchiveProject failed: %v", err)
	}

	reuse := testsupport.SampleSeed("Recycled", "/tmp/r2", "b.docx")
	reuse.Slug = "recycled-2"
	if _, err := st.SeedProject(ctx, reuse); err != nil {
		t.Fatalf("expected archived name to be reusable, got %v", err)
	}
}

func TestJobUpsertKeepsOneLedgerRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created, err := st.SeedProject(ctx, testsupport.SampleSeed("Jobs", "/tmp/jobs", "a.docx"))
	if err != nil {
		t.Fatalf("SeedProject failed: %v", err)
	}
	target := created.Targets[0]
	key := store.JobKey(store.JobExtractXLIFF, created.Project.ID, target.ID)

	for i := 0; i < 3; i++ {
		if _, err := st.UpsertJob(ctx, store.JobUpsert{
			ProjectID: created.Project.ID,
			Type:      store.JobExtractXLIFF,
			Key:       key,
			TargetID:  target.ID,
			State:     store.JobRunning,
		}); err != nil {
			t.Fatalf("UpsertJob %d failed: %v", i, err)
		}
	}
	job, err := st.UpsertJob(ctx, store.JobUpsert{
		ProjectID: created.Project.ID,
		Type:      store.JobExtractXLIFF,
		Key:       key,
		TargetID:  target.ID,
		State:     store.JobSucceeded,
	})
	if err != nil {
		t.Fatalf("final UpsertJob failed: %v", err)
	}

	if job.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", job.Attempts)
	}
	if job.State != store.JobSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", job.State)
	}
	if job.FinishedAt == nil {
		t.Fatal("expected finished_at to be stamped")
	}

	jobs, err := st.ListJobs(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected exactly one ledger row after resubmissions, got %d", len(jobs))
	}
}

func TestArtifactUpsertIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created, err := st.SeedProject(ctx, testsupport.SampleSeed("Artifacts", "/tmp/art", "a.docx"))
	if err != nil {
		t.Fatalf("SeedProject failed: %v", err)
	}
	target := created.Targets[0]

	up := store.ArtifactUpsert{
		TargetID: target.ID,
		Kind:     store.ArtifactXLIFF,
		RelPath:  "artifacts/xliff/en-US__it-IT/" + created.Files[0].ID + ".xlf",
		Checksum: "abc",
		Tool:     "openxliff-convert",
		Status:   store.ArtifactGenerated,
	}
	first, err := st.UpsertArtifact(ctx, up)
	if err != nil {
		t.Fatalf("first UpsertArtifact failed: %v", err)
	}

	up.Checksum = "def"
	second, err := st.UpsertArtifact(ctx, up)
	if err != nil {
		t.Fatalf("second UpsertArtifact failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same row to be updated, got %s then %s", first.ID, second.ID)
	}
	if second.Checksum != "def" {
		t.Fatalf("expected checksum update, got %q", second.Checksum)
	}

	artifacts, err := st.ListArtifactsForTarget(ctx, target.ID)
	if err != nil {
		t.Fatalf("ListArtifactsForTarget failed: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("expected one artifact after re-upsert, got %d", len(artifacts))
	}
}

func TestEnsureTargetRejectsCrossProjectPair(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	alpha, err := st.SeedProject(ctx, testsupport.SampleSeed("Alpha", "/tmp/alpha", "a.docx"))
	if err != nil {
		t.Fatalf("seed alpha: %v", err)
	}
	beta, err := st.SeedProject(ctx, testsupport.SampleSeed("Beta", "/tmp/beta", "b.docx"))
	if err != nil {
		t.Fatalf("seed beta: %v", err)
	}

	_, err = st.EnsureTarget(ctx, alpha.Files[0].ID, beta.Pairs[0].ID)
	if !errors.Is(err, store.ErrConstraint) {
		t.Fatalf("expected ErrConstraint for cross-project target, got %v", err)
	}
}

func TestDeleteFileCascades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created, err := st.SeedProject(ctx, testsupport.SampleSeed("Cascade", "/tmp/cascade", "a.docx", "b.docx"))
	if err != nil {
		t.Fatalf("SeedProject failed: %v", err)
	}

	victim := created.Files[0]
	var victimTarget, survivorTarget *store.Target
	for i := range created.Targets {
		if created.Targets[i].FileID == victim.ID {
			victimTarget = &created.Targets[i]
		} else {
			survivorTarget = &created.Targets[i]
		}
	}

	for _, target := range []*store.Target{victimTarget, survivorTarget} {
		if _, err := st.UpsertArtifact(ctx, store.ArtifactUpsert{
			TargetID: target.ID,
			Kind:     store.ArtifactXLIFF,
			RelPath:  "artifacts/xliff/en-US__it-IT/" + target.FileID + ".xlf",
			Status:   store.ArtifactGenerated,
		}); err != nil {
			t.Fatalf("UpsertArtifact failed: %v", err)
		}
	}

	if err := st.DeleteFile(ctx, victim.ID); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}

	if _, err := st.GetTarget(ctx, victimTarget.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected victim target to cascade away, got %v", err)
	}
	if _, err := st.GetArtifactByKind(ctx, victimTarget.ID, store.ArtifactXLIFF); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected victim artifact to cascade away, got %v", err)
	}
	if _, err := st.GetTarget(ctx, survivorTarget.ID); err != nil {
		t.Fatalf("survivor target should remain: %v", err)
	}
	if _, err := st.GetArtifactByKind(ctx, survivorTarget.ID, store.ArtifactXLIFF); err != nil {
		t.Fatalf("survivor artifact should remain: %v", err)
	}
}

func TestListJobsNeedingAttention(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created, err := st.SeedProject(ctx, testsupport.SampleSeed("Attention", "/tmp/att", "a.docx"))
	if err != nil {
		t.Fatalf("SeedProject failed: %v", err)
	}
	target := created.Targets[0]

	states := []store.JobState{store.JobPending, store.JobFailed, store.JobSucceeded}
	types := []store.JobType{store.JobCopyFile, store.JobExtractXLIFF, store.JobConvertJLIFF}
	for i, state := range states {
		if _, err := st.UpsertJob(ctx, store.JobUpsert{
			ProjectID: created.Project.ID,
			Type:      types[i],
			Key:       store.JobKey(types[i], created.Project.ID, target.ID),
			TargetID:  target.ID,
			State:     state,
		}); err != nil {
			t.Fatalf("UpsertJob failed: %v", err)
		}
	}

	attention, err := st.ListJobsNeedingAttention(ctx)
	if err != nil {
		t.Fatalf("ListJobsNeedingAttention failed: %v", err)
	}
	if len(attention) != 2 {
		t.Fatalf("expected 2 jobs needing attention, got %d", len(attention))
	}
	for _, job := range attention {
		if job.State != store.JobPending && job.State != store.JobFailed {
			t.Fatalf("unexpected state in attention list: %s", job.State)
		}
	}
}

func TestParseRejectsUnknownEnumValues(t *testing.T) {
	if _, err := store.ParseLifecycleStatus("EXPLODED"); err == nil {
		t.Fatal("expected lifecycle parse failure")
	} else {
		var unknown *store.UnknownEnumError
		if !errors.As(err, &unknown) {
			t.Fatalf("expected UnknownEnumError, got %T", err)
		}
	}
	if _, err := store.ParseJobState("SLEEPING"); err == nil {
		t.Fatal("expected job state parse failure")
	}
	if _, err := store.ParseArtifactKind("tarball"); err == nil {
		t.Fatal("expected artifact kind parse failure")
	}
	if _, err := store.ParseStorageState("staged"); err == nil {
		t.Fatal("expected storage state parse failure on lowercase value")
	}
}

func TestParseJournalModeFallsBack(t *testing.T) {
	mode, ok := store.ParseJournalMode("memory")
	if ok {
		t.Fatal("memory journal mode should be outside the whitelist")
	}
	if mode != store.JournalWAL {
		t.Fatalf("expected WAL fallback, got %s", mode)
	}

	sync, ok := store.ParseSynchronous("off")
	if ok {
		t.Fatal("synchronous OFF should be outside the whitelist")
	}
	if sync != store.SynchronousNormal {
		t.Fatalf("expected NORMAL fallback, got %s", sync)
	}
}
