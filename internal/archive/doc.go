// Package archive builds and checks the single-entry gzip tar archives that
// SageMaker unpacks into the serving container's model directory.
//
// Pack writes reproducible archives: every header is normalized (owner 0,
// empty owner names, fixed modes, epoch-zero mtime) and the gzip header carries
// no name or timestamp, so identical input bytes always produce identical
// archive bytes. Archives are staged in a temporary file and renamed into place
// only after they are fully written.
//
// Validate is the read-only counterpart. It never returns an error; any problem
// opening, decompressing, or walking the archive reports the archive as invalid.
package archive
