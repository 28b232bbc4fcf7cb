package legacy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"loom/internal/langtag"
	"loom/internal/project"
	"loom/internal/store"
	"loom/internal/testsupport"
)

func newLegacyFixture(t *testing.T, fileNames ...string) (*store.Store, *store.SeededProject, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := project.NewService(st, cfg, nil)

	docs := testsupport.SourceDocs(t, t.TempDir(), fileNames...)
	created, err := svc.CreateStaged(context.Background(), project.CreateRequest{
		Name:      "Legacy Fixture",
		Pairs:     []store.PairSeed{{SrcLang: "en-US", TrgLang: "it-IT"}},
		FilePaths: docs,
	})
	if err != nil {
		t.Fatalf("CreateStaged: %v", err)
	}
	projectRow, err := st.GetProject(context.Background(), created.Project.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	return st, created, projectRow.RootPath
}

func TestBridgeDerivesRowsFromConversions(t *testing.T) {
	st, created, rootPath := newLegacyFixture(t, "doc.docx")
	ctx := context.Background()
	fileID := created.Files[0].ID

	// A completed legacy conversion into a pair the project does not
	// have yet, with its XLIFF still on disk.
	xliffRel := "artifacts/xliff/en-US__de-DE/" + fileID + ".xlf"
	testsupport.WriteFile(t, filepath.Join(rootPath, filepath.FromSlash(xliffRel)),
		`<?xml version="1.0"?><xliff version="2.0"/>`)
	testsupport.InsertLegacyConversion(t, st, fileID, "en-US", "de-DE",
		store.ConversionCompleted, xliffRel, "")

	outcome, err := NewBridge(st, nil).Run(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	if outcome.PairsCreated != 1 || outcome.TargetsCreated != 1 || outcome.ArtifactsCreated != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}

	pairs, err := st.ListPairs(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("ListPairs: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want original plus bridged", len(pairs))
	}

	targets, err := st.ListTargets(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("ListTargets: %v", err)
	}
	var bridged *store.Target
	for _, target := range targets {
		pair, err := st.GetPair(ctx, target.PairID)
		if err != nil {
			t.Fatalf("GetPair: %v", err)
		}
		if pair.TrgLang == "de-DE" {
			bridged = target
		}
	}
	if bridged == nil {
		t.Fatal("bridged target not found")
	}
	if bridged.Status != store.TargetExtracted {
		t.Fatalf("bridged target status = %s, want EXTRACTED", bridged.Status)
	}

	artifact, err := st.GetArtifactByKind(ctx, bridged.ID, store.ArtifactXLIFF)
	if err != nil {
		t.Fatalf("GetArtifactByKind: %v", err)
	}
	if artifact.Tool != "legacy-bridge" || artifact.Checksum == "" {
		t.Fatalf("artifact = %+v", artifact)
	}
}

func TestBridgeIsIdempotent(t *testing.T) {
	st, created, rootPath := newLegacyFixture(t, "doc.docx")
	ctx := context.Background()
	fileID := created.Files[0].ID

	xliffRel := "artifacts/xliff/en-US__de-DE/" + fileID + ".xlf"
	testsupport.WriteFile(t, filepath.Join(rootPath, filepath.FromSlash(xliffRel)), "<xliff/>")
	testsupport.InsertLegacyConversion(t, st, fileID, "en-US", "de-DE",
		store.ConversionCompleted, xliffRel, "")

	bridge := NewBridge(st, nil)
	if _, err := bridge.Run(ctx, created.Project.ID); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := bridge.Run(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.PairsCreated != 0 || second.TargetsCreated != 0 || second.ArtifactsCreated != 0 {
		t.Fatalf("second pass created rows: %+v", second)
	}
}

func TestBridgeSkipsFailedConversions(t *testing.T) {
	st, created, _ := newLegacyFixture(t, "doc.docx")
	ctx := context.Background()

	testsupport.InsertLegacyConversion(t, st, created.Files[0].ID, "en-US", "fr-FR",
		store.ConversionFailed, "", "")

	outcome, err := NewBridge(st, nil).Run(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	if outcome.ArtifactsCreated != 0 {
		t.Fatalf("failed conversion produced artifacts: %+v", outcome)
	}
	// The pair and target still exist so the new pipeline can retry.
	if outcome.PairsCreated != 1 || outcome.TargetsCreated != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestIndexerRegistersUntrackedArtifacts(t *testing.T) {
	st, created, rootPath := newLegacyFixture(t, "doc.docx")
	ctx := context.Background()
	fileID := created.Files[0].ID

	pairs, err := st.ListPairs(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("ListPairs: %v", err)
	}
	pairDir := langtag.PairDirectory(pairs[0].SrcLang, pairs[0].TrgLang)

	xliffRel := filepath.Join("artifacts", "xliff", pairDir, fileID+".xlf")
	jliffRel := filepath.Join("artifacts", "xjliff", pairDir, fileID+".jliff")
	testsupport.WriteFile(t, filepath.Join(rootPath, xliffRel), "<xliff/>")
	testsupport.WriteFile(t, filepath.Join(rootPath, jliffRel), `{"jliff":"2.0"}`)

	// An orphan that matches no known pair directory.
	testsupport.WriteFile(t,
		filepath.Join(rootPath, "artifacts", "xliff", "zz-ZZ__yy-YY", fileID+".xlf"), "<xliff/>")

	indexer := NewIndexer(st, nil)
	outcome, err := indexer.Run(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if outcome.Registered != 2 {
		t.Fatalf("registered = %d, want 2", outcome.Registered)
	}
	if outcome.Orphaned != 1 {
		t.Fatalf("orphaned = %d, want 1", outcome.Orphaned)
	}

	// Orphans are reported, never deleted.
	orphan := filepath.Join(rootPath, "artifacts", "xliff", "zz-ZZ__yy-YY", fileID+".xlf")
	if _, err := os.Stat(orphan); err != nil {
		t.Fatalf("orphan removed: %v", err)
	}

	second, err := indexer.Run(ctx, created.Project.ID)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.Registered != 0 {
		t.Fatalf("second pass registered %d artifacts", second.Registered)
	}
}
