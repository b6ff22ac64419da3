package preflight

import (
	"context"

	"nemoship/internal/cloud"
	"nemoship/internal/config"
)

// minFreeBytes is the space needed to hold a checkpoint and its archive.
const minFreeBytes = 5 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional checks are reported but do not block a deployment.
	Optional bool
}

// RunAll executes all applicable preflight checks for the given config.
// AWS checks only run when identity is non-nil.
func RunAll(ctx context.Context, cfg *config.Config, identity cloud.STSAPI) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Artifacts directory", cfg.Paths.ArtifactsDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Artifacts free space", cfg.Paths.ArtifactsDir, minFreeBytes),
		CheckArchive(cfg),
		CheckImageConfigured(cfg),
	}

	if identity != nil {
		results = append(results, CheckAWSIdentity(ctx, identity))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
