package testsupport

import (
	"path/filepath"
	"testing"

	"nemoship/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig returns a config whose directories all live under a fresh
// t.TempDir, with derived paths filled in the way Load would.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ArtifactsDir = filepath.Join(base, "artifacts")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Model.CheckpointPath = filepath.Join(base, "artifacts", "model.nemo")
	cfgVal.Model.ArchivePath = filepath.Join(base, "artifacts", "model.tar.gz")
	cfgVal.Serve.ModelDir = filepath.Join(base, "opt", "ml", "model")
	cfgVal.Serve.Bind = "127.0.0.1:0"
	cfgVal.AWS.Region = "us-east-1"

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithImageURI sets the serving image used by deployments.
func WithImageURI(uri string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Deploy.ImageURI = uri
	}
}

// WithRoleARN pins the execution role so role provisioning is skipped.
func WithRoleARN(arn string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.AWS.RoleARN = arn
	}
}

// WithBucket pins the S3 bucket.
func WithBucket(bucket string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.AWS.Bucket = bucket
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ArtifactsDir)
}
