package legacy

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"loom/internal/fileutil"
	"loom/internal/langtag"
	"loom/internal/logging"
	"loom/internal/store"
)

const bridgeTool = "legacy-bridge"

// Outcome summarizes one bridge pass.
type Outcome struct {
	Conversions      int
	PairsCreated     int
	TargetsCreated   int
	ArtifactsCreated int
	Skipped          int
}

// Bridge derives pairs, targets, and artifact rows from the flat
// legacy conversion table. The pass is idempotent: rows that already
// exist are matched, never duplicated, so running it twice yields the
// same database. Legacy rows themselves are never modified.
type Bridge struct {
	store  *store.Store
	logger *slog.Logger
}

// NewBridge wires a bridge.
func NewBridge(st *store.Store, logger *slog.Logger) *Bridge {
	return &Bridge{
		store:  st,
		logger: logging.NewComponentLogger(logger, "bridge"),
	}
}

// Run bridges one project's legacy conversions into the current model.
func (b *Bridge) Run(ctx context.Context, projectID string) (*Outcome, error) {
	project, err := b.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	conversions, err := b.store.ListConversions(ctx, projectID)
	if err != nil {
		return nil, err
	}
	outcome := &Outcome{Conversions: len(conversions)}

	existingPairs, err := b.store.ListPairs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	knownPairs := make(map[string]bool, len(existingPairs))
	for _, pair := range existingPairs {
		knownPairs[pair.SrcLang+"\x00"+pair.TrgLang] = true
	}

	for _, conversion := range conversions {
		src, trg, err := langtag.NormalizePair(conversion.SrcLang, conversion.TgtLang)
		if err != nil {
			outcome.Skipped++
			b.logger.Warn("skipping conversion with unusable language pair",
				logging.String("conversion_id", conversion.ID),
				logging.Error(err))
			continue
		}

		pair, err := b.store.EnsurePair(ctx, projectID, src, trg)
		if err != nil {
			return nil, err
		}
		if key := src + "\x00" + trg; !knownPairs[key] {
			knownPairs[key] = true
			outcome.PairsCreated++
		}

		created, target, err := b.ensureTarget(ctx, conversion.FileID, pair.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				outcome.Skipped++
				b.logger.Warn("skipping conversion for unknown file",
					logging.String("conversion_id", conversion.ID),
					logging.String(logging.FieldFileID, conversion.FileID))
				continue
			}
			return nil, err
		}
		if created {
			outcome.TargetsCreated++
		}

		if conversion.Status != store.ConversionCompleted {
			continue
		}

		registered, err := b.registerArtifact(ctx, project, target.ID, store.ArtifactXLIFF, conversion.XLIFFRelPath)
		if err != nil {
			return nil, err
		}
		outcome.ArtifactsCreated += registered

		registered, err = b.registerArtifact(ctx, project, target.ID, store.ArtifactJLIFF, conversion.JLIFFRelPath)
		if err != nil {
			return nil, err
		}
		outcome.ArtifactsCreated += registered

		// A completed legacy conversion already produced its XLIFF, so
		// the target never goes through extraction again.
		if target.Status == store.TargetPending && conversion.XLIFFRelPath != "" {
			if err := b.store.SetTargetStatus(ctx, target.ID, store.TargetExtracted); err != nil {
				return nil, err
			}
		}
	}

	if err := b.backfillDefaults(ctx, project); err != nil {
		return nil, err
	}

	b.logger.Info("legacy bridge pass finished",
		logging.String(logging.FieldProjectID, projectID),
		logging.Int("conversions", outcome.Conversions),
		logging.Int("pairs_created", outcome.PairsCreated),
		logging.Int("targets_created", outcome.TargetsCreated),
		logging.Int("artifacts_created", outcome.ArtifactsCreated),
		logging.Int("skipped", outcome.Skipped))
	return outcome, nil
}

func (b *Bridge) ensureTarget(ctx context.Context, fileID, pairID string) (bool, *store.Target, error) {
	file, err := b.store.GetFile(ctx, fileID)
	if err != nil {
		return false, nil, err
	}

	targets, err := b.store.ListTargets(ctx, file.ProjectID)
	if err != nil {
		return false, nil, err
	}
	for _, target := range targets {
		if target.FileID == fileID && target.PairID == pairID {
			return false, target, nil
		}
	}

	target, err := b.store.EnsureTarget(ctx, fileID, pairID)
	if err != nil {
		return false, nil, err
	}
	return true, target, nil
}

// registerArtifact records one legacy output unless the target already
// has an artifact of that kind. Returns 1 when a row was created.
func (b *Bridge) registerArtifact(ctx context.Context, project *store.Project, targetID string, kind store.ArtifactKind, relPath string) (int, error) {
	if relPath == "" {
		return 0, nil
	}

	if _, err := b.store.GetArtifactByKind(ctx, targetID, kind); err == nil {
		return 0, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	up := store.ArtifactUpsert{
		TargetID: targetID,
		Kind:     kind,
		RelPath:  relPath,
		Tool:     bridgeTool,
		Status:   store.ArtifactGenerated,
	}

	absPath, err := fileutil.JoinWithin(project.RootPath, relPath)
	if err != nil {
		b.logger.Warn("legacy artifact path escapes project root",
			logging.String("rel_path", relPath), logging.Error(err))
		return 0, nil
	}
	if info, statErr := os.Stat(absPath); statErr == nil {
		up.SizeBytes = info.Size()
		if checksum, hashErr := fileutil.HashFile(absPath); hashErr == nil {
			up.Checksum = checksum
		}
	} else {
		// The row documents what the legacy run produced even when the
		// bytes are gone.
		b.logger.Warn("legacy artifact missing on disk",
			logging.String("rel_path", relPath))
	}

	if _, err := b.store.UpsertArtifact(ctx, up); err != nil {
		return 0, err
	}
	return 1, nil
}

// backfillDefaults fills the project's default language pair from its
// first pair when older rows never recorded one.
func (b *Bridge) backfillDefaults(ctx context.Context, project *store.Project) error {
	if project.DefaultSrcLang != "" && project.DefaultTrgLang != "" {
		return nil
	}
	pairs, err := b.store.ListPairs(ctx, project.ID)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return nil
	}
	return b.store.SetDefaultLanguages(ctx, project.ID, pairs[0].SrcLang, pairs[0].TrgLang)
}
