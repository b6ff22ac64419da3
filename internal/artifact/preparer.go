package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"nemoship/internal/archive"
	"nemoship/internal/checkpoint"
	"nemoship/internal/fileutil"
	"nemoship/internal/logging"
)

var (
	// ErrRetrieval reports that the checkpoint could not be obtained.
	ErrRetrieval = errors.New("checkpoint retrieval failed")
	// ErrMissingArtifact reports a checkpoint that is absent or empty after
	// retrieval.
	ErrMissingArtifact = errors.New("checkpoint missing or empty")
	// ErrPackaging reports an archive write failure.
	ErrPackaging = archive.ErrPackaging
	// ErrVerification reports an archive that failed validation.
	ErrVerification = archive.ErrVerification
)

// Result describes what Prepare did.
type Result struct {
	ArchivePath string
	// Reused is true when an existing archive was returned untouched.
	Reused bool
	// Fetched is true when the checkpoint had to be retrieved.
	Fetched bool
	// Rebuilt is true when a cached archive failed revalidation and was replaced.
	Rebuilt bool
}

// Preparer produces model archives from checkpoints.
type Preparer struct {
	fetcher       checkpoint.Fetcher
	logger        *slog.Logger
	canonicalName string
	revalidate    bool
}

// Option customizes a Preparer.
type Option func(*Preparer)

// WithLogger sets the logger used for progress messages.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Preparer) {
		p.logger = logger
	}
}

// WithCanonicalName overrides the archive entry name (default model.nemo).
func WithCanonicalName(name string) Option {
	return func(p *Preparer) {
		if name != "" {
			p.canonicalName = name
		}
	}
}

// WithRevalidateCached makes Prepare validate an existing archive before
// reusing it and rebuild it when validation fails.
func WithRevalidateCached(enabled bool) Option {
	return func(p *Preparer) {
		p.revalidate = enabled
	}
}

// NewPreparer returns a Preparer that retrieves missing checkpoints with
// fetcher. A nil fetcher fails retrieval with checkpoint.ErrNotConfigured.
func NewPreparer(fetcher checkpoint.Fetcher, opts ...Option) *Preparer {
	p := &Preparer{fetcher: fetcher, canonicalName: archive.CanonicalName}
	for _, opt := range opts {
		opt(p)
	}
	if p.fetcher == nil {
		p.fetcher = checkpoint.Disabled
	}
	p.logger = logging.NewComponentLogger(p.logger, "artifact")
	return p
}

// Prepare returns archivePath once it holds a valid archive of the
// checkpoint at checkpointPath, fetching modelID first when the checkpoint
// is absent. An existing archive is returned as-is unless revalidation is
// enabled.
func (p *Preparer) Prepare(ctx context.Context, checkpointPath, modelID, archivePath string) (string, error) {
	res, err := p.PrepareDetailed(ctx, checkpointPath, modelID, archivePath)
	if err != nil {
		return "", err
	}
	return res.ArchivePath, nil
}

// PrepareDetailed is Prepare with a report of which steps ran.
func (p *Preparer) PrepareDetailed(ctx context.Context, checkpointPath, modelID, archivePath string) (Result, error) {
	res := Result{ArchivePath: archivePath}

	if fileutil.Exists(archivePath) {
		if !p.revalidate {
			p.logger.Info("model archive exists, skipping packaging", logging.String("archive", archivePath))
			res.Reused = true
			return res, nil
		}
		if archive.ValidateEntry(archivePath, p.canonicalName) {
			p.logger.Info("cached model archive validated", logging.String("archive", archivePath))
			res.Reused = true
			return res, nil
		}
		logging.WarnWithContext(p.logger, "cached model archive failed validation", "archive_invalid",
			logging.String("archive", archivePath),
			logging.String(logging.FieldErrorHint, "the archive will be rebuilt from the checkpoint"),
			logging.String(logging.FieldImpact, "previous archive is discarded"),
		)
		if err := os.Remove(archivePath); err != nil {
			return Result{}, fmt.Errorf("%w: remove invalid archive %s: %w", ErrPackaging, archivePath, err)
		}
		res.Rebuilt = true
	}

	if err := fileutil.EnsureParentDir(checkpointPath); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	if err := fileutil.EnsureParentDir(archivePath); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPackaging, err)
	}

	if !fileutil.Exists(checkpointPath) {
		p.logger.Info("downloading checkpoint",
			logging.String("model_id", modelID),
			logging.String("checkpoint", checkpointPath),
		)
		if err := p.fetcher.Fetch(ctx, modelID, checkpointPath); err != nil {
			return Result{}, fmt.Errorf("%w: model %q: %w", ErrRetrieval, modelID, err)
		}
		res.Fetched = true
		p.logger.Info("checkpoint saved", logging.String("checkpoint", checkpointPath))
	}

	ok, err := fileutil.NonEmptyFile(checkpointPath)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("absent or zero bytes")
		}
		return Result{}, fmt.Errorf("%w: %s: %w", ErrMissingArtifact, checkpointPath, err)
	}

	p.logger.Info("packaging checkpoint",
		logging.String("checkpoint", checkpointPath),
		logging.String("archive", archivePath),
	)
	if err := archive.Pack(checkpointPath, p.canonicalName, archivePath); err != nil {
		return Result{}, err
	}

	if !archive.ValidateEntry(archivePath, p.canonicalName) {
		_ = os.Remove(archivePath)
		return Result{}, fmt.Errorf("%w: %s is not a valid model archive", ErrVerification, archivePath)
	}

	p.logger.Info("model archive ready", logging.String("archive", archivePath))
	return res, nil
}
