package deploy

import (
	"context"
	"fmt"
	"os"

	"nemoship/internal/artifact"
	"nemoship/internal/config"
	"nemoship/internal/fileutil"
	"nemoship/internal/ledger"
)

// RecordArtifact hashes a prepared archive (and its checkpoint when still
// present) and stores the result in the ledger.
func RecordArtifact(ctx context.Context, store *ledger.Store, cfg *config.Config, prepared artifact.Result) (ledger.Artifact, error) {
	digest, size, err := fileutil.HashFile(prepared.ArchivePath)
	if err != nil {
		return ledger.Artifact{}, fmt.Errorf("hash archive: %w", err)
	}
	record := ledger.Artifact{
		ModelID:        cfg.Model.ID,
		CheckpointPath: cfg.Model.CheckpointPath,
		ArchivePath:    prepared.ArchivePath,
		ArchiveSHA256:  digest,
		ArchiveBytes:   size,
		Reused:         prepared.Reused,
	}
	// A reused archive may outlive its checkpoint.
	if _, statErr := os.Stat(cfg.Model.CheckpointPath); statErr == nil {
		digest, size, err := fileutil.HashFile(cfg.Model.CheckpointPath)
		if err != nil {
			return ledger.Artifact{}, fmt.Errorf("hash checkpoint: %w", err)
		}
		record.CheckpointSHA256 = digest
		record.CheckpointBytes = size
	}

	id, err := store.RecordArtifact(ctx, record)
	if err != nil {
		return ledger.Artifact{}, err
	}
	record.ID = id
	return record, nil
}
