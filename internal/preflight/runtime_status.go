package preflight

import (
	"fmt"
	"strings"

	"nemoship/internal/archive"
	"nemoship/internal/config"
	"nemoship/internal/fileutil"
)

// CheckArchive reports whether a cached model archive exists and validates.
// A missing archive is fine: deploy will build it.
func CheckArchive(cfg *config.Config) Result {
	const name = "Model archive"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown", Optional: true}
	}
	path := cfg.Model.ArchivePath
	if !fileutil.Exists(path) {
		if fileutil.Exists(cfg.Model.CheckpointPath) {
			return Result{Name: name, Passed: true, Optional: true, Detail: "not built yet (checkpoint present)"}
		}
		return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("not built yet (will fetch %s)", cfg.Model.ID)}
	}
	if !archive.ValidateEntry(path, cfg.Model.CanonicalName) {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("%s is invalid (delete it or set model.revalidate_cached)", path)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("%s (valid)", path)}
}

// CheckImageConfigured verifies that a serving image is set for deploys.
func CheckImageConfigured(cfg *config.Config) Result {
	const name = "Serving image"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	image := strings.TrimSpace(cfg.Deploy.ImageURI)
	if image == "" {
		return Result{Name: name, Detail: "deploy.image_uri not set (or NEMOSHIP_IMAGE_URI)"}
	}
	return Result{Name: name, Passed: true, Detail: image}
}
