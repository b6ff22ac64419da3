package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

const (
	// FileMode is the permission set stamped on regular file entries.
	FileMode = 0o644
	// DirMode is the permission set stamped on directory entries.
	DirMode = 0o755
	// CanonicalName is the entry name the serving container loads.
	CanonicalName = "model.nemo"

	compressionLevel = gzip.DefaultCompression
)

// Epoch is the modification time written to every entry.
var Epoch = time.Unix(0, 0).UTC()

var (
	// ErrPackaging marks failures while writing an archive.
	ErrPackaging = errors.New("packaging failed")
	// ErrVerification marks a written archive that failed validation.
	ErrVerification = errors.New("archive verification failed")
)

// Normalize strips host-specific metadata from hdr so archive bytes depend
// only on entry names and contents.
func Normalize(hdr *tar.Header) {
	if hdr == nil {
		return
	}
	hdr.Uid = 0
	hdr.Gid = 0
	hdr.Uname = ""
	hdr.Gname = ""
	if hdr.Typeflag == tar.TypeDir {
		hdr.Mode = DirMode
	} else {
		hdr.Mode = FileMode
	}
	hdr.ModTime = Epoch
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}
	hdr.PAXRecords = nil
}

// Pack writes a gzip tar archive at dest containing the contents of src as a
// single regular-file entry called name. The archive is validated before it
// replaces dest; on failure nothing is left behind at dest.
func Pack(src, name, dest string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid entry name %q", ErrPackaging, name)
	}
	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("%w: destination path required", ErrPackaging)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open source: %w", ErrPackaging, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat source: %w", ErrPackaging, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: source %s is not a regular file", ErrPackaging, src)
	}

	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp archive: %w", ErrPackaging, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeArchive(tmp, in, name, info.Size()); err != nil {
		return fmt.Errorf("%w: %w", ErrPackaging, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync archive: %w", ErrPackaging, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close archive: %w", ErrPackaging, err)
	}
	if err := os.Chmod(tmpPath, FileMode); err != nil {
		return fmt.Errorf("%w: chmod archive: %w", ErrPackaging, err)
	}
	if !ValidateEntry(tmpPath, name) {
		return fmt.Errorf("%w: packed archive for %s has no usable %q entry", ErrVerification, src, name)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("%w: move archive into place: %w", ErrPackaging, err)
	}
	committed = true
	return nil
}

func writeArchive(w io.Writer, src io.Reader, name string, size int64) error {
	gz, err := gzip.NewWriterLevel(w, compressionLevel)
	if err != nil {
		return fmt.Errorf("gzip writer: %w", err)
	}
	// Name, Comment and ModTime stay zero so the gzip header is constant.
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     size,
	}
	Normalize(hdr)
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	written, err := io.Copy(tw, src)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	if written != size {
		return fmt.Errorf("write entry: copied %d of %d bytes", written, size)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip stream: %w", err)
	}
	return nil
}
