package legacy

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"loom/internal/fileutil"
	"loom/internal/langtag"
	"loom/internal/logging"
	"loom/internal/store"
)

const indexTool = "disk-index"

// IndexOutcome summarizes one disk indexing pass.
type IndexOutcome struct {
	Scanned    int
	Registered int
	Orphaned   int
}

// Indexer registers artifact files found on disk that have no database
// row, recovering from runs that crashed between writing an output and
// committing it. Files that cannot be matched to a known file and pair
// are reported as orphans and left alone.
type Indexer struct {
	store  *store.Store
	logger *slog.Logger
}

// NewIndexer wires an indexer.
func NewIndexer(st *store.Store, logger *slog.Logger) *Indexer {
	return &Indexer{
		store:  st,
		logger: logging.NewComponentLogger(logger, "indexer"),
	}
}

// Run walks the project's artifact directories and registers anything
// untracked. Idempotent: a second pass registers nothing new.
func (ix *Indexer) Run(ctx context.Context, projectID string) (*IndexOutcome, error) {
	project, err := ix.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	pairs, err := ix.store.ListPairs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	pairsByDir := make(map[string]*store.LanguagePair, len(pairs))
	for _, pair := range pairs {
		pairsByDir[langtag.PairDirectory(pair.SrcLang, pair.TrgLang)] = pair
	}

	outcome := &IndexOutcome{}
	kinds := []struct {
		dir  string
		kind store.ArtifactKind
		ext  string
	}{
		{"artifacts/xliff", store.ArtifactXLIFF, ".xlf"},
		{"artifacts/xjliff", store.ArtifactJLIFF, ".jliff"},
	}

	for _, k := range kinds {
		root := filepath.Join(project.RootPath, filepath.FromSlash(k.dir))
		if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			outcome.Scanned++

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			pairDir := filepath.Dir(rel)
			fileID := strings.TrimSuffix(filepath.Base(rel), k.ext)
			if !strings.HasSuffix(rel, k.ext) || strings.Contains(pairDir, string(filepath.Separator)) {
				outcome.Orphaned++
				return nil
			}

			pair, ok := pairsByDir[pairDir]
			if !ok {
				outcome.Orphaned++
				ix.logger.Warn("artifact under unknown pair directory",
					logging.String("path", p))
				return nil
			}

			registered, err := ix.registerFromDisk(ctx, project, pair, fileID, k.kind, path.Join(k.dir, pairDir, filepath.Base(rel)))
			if err != nil {
				return err
			}
			if registered {
				outcome.Registered++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	ix.logger.Info("artifact index pass finished",
		logging.String(logging.FieldProjectID, projectID),
		logging.Int("scanned", outcome.Scanned),
		logging.Int("registered", outcome.Registered),
		logging.Int("orphaned", outcome.Orphaned))
	return outcome, nil
}

func (ix *Indexer) registerFromDisk(ctx context.Context, project *store.Project, pair *store.LanguagePair, fileID string, kind store.ArtifactKind, relPath string) (bool, error) {
	file, err := ix.store.GetFile(ctx, fileID)
	if errors.Is(err, store.ErrNotFound) {
		ix.logger.Warn("artifact names an unknown file",
			logging.String("rel_path", relPath),
			logging.String(logging.FieldFileID, fileID))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if file.ProjectID != project.ID {
		return false, nil
	}

	target, err := ix.store.EnsureTarget(ctx, file.ID, pair.ID)
	if err != nil {
		return false, err
	}

	if _, err := ix.store.GetArtifactByKind(ctx, target.ID, kind); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	absPath, err := fileutil.JoinWithin(project.RootPath, relPath)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, err
	}
	checksum, err := fileutil.HashFile(absPath)
	if err != nil {
		return false, err
	}

	if _, err := ix.store.UpsertArtifact(ctx, store.ArtifactUpsert{
		TargetID:  target.ID,
		Kind:      kind,
		RelPath:   relPath,
		SizeBytes: info.Size(),
		Checksum:  checksum,
		Tool:      indexTool,
		Status:    store.ArtifactGenerated,
	}); err != nil {
		return false, err
	}

	ix.logger.Info("registered untracked artifact",
		logging.String("rel_path", relPath),
		logging.String(logging.FieldTargetID, target.ID))
	return true, nil
}
