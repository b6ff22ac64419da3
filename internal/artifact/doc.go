// Package artifact turns a NeMo checkpoint into a verified SageMaker model
// archive.
//
// Preparer.Prepare reuses an existing archive when one is present, fetches
// the checkpoint when it is missing, packs it deterministically under the
// canonical entry name, and refuses to hand back an archive that fails
// round-trip validation. Each failure class has its own sentinel so callers
// can tell a download problem from a packaging or verification problem.
package artifact
