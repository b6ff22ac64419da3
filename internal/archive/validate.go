package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// Entry summarizes one archive member.
type Entry struct {
	Name    string
	Type    byte
	Size    int64
	Mode    int64
	UID     int
	GID     int
	ModUnix int64
}

// Regular reports whether the entry is a regular file.
func (e Entry) Regular() bool {
	return e.Type == tar.TypeReg || e.Type == tar.TypeRegA //nolint:staticcheck // old writers emit TypeRegA
}

// Validate reports whether path is a readable gzip tar archive whose entries
// include a non-empty regular file named CanonicalName.
func Validate(path string) bool {
	return ValidateEntry(path, CanonicalName)
}

// ValidateEntry is Validate for an arbitrary entry name. It fails closed.
func ValidateEntry(path, name string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	entries, err := Inspect(path)
	if err != nil {
		return false
	}
	// A later entry with the same name shadows earlier ones on extraction.
	var found *Entry
	for i := range entries {
		if entries[i].Name == name {
			found = &entries[i]
		}
	}
	return found != nil && found.Regular() && found.Size > 0
}

// Inspect lists every entry in the archive at path. The whole archive is read,
// so truncated or corrupt streams surface as errors.
func Inspect(path string) ([]Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	var entries []Entry
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar header: %w", err)
		}
		// Drain the body so a short entry is detected here.
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return nil, fmt.Errorf("read entry %s: %w", hdr.Name, err)
		}
		entries = append(entries, Entry{
			Name:    hdr.Name,
			Type:    hdr.Typeflag,
			Size:    hdr.Size,
			Mode:    hdr.Mode,
			UID:     hdr.Uid,
			GID:     hdr.Gid,
			ModUnix: hdr.ModTime.Unix(),
		})
	}
	// Trailing gzip data (checksum) is verified once the reader hits EOF.
	if _, err := io.Copy(io.Discard, gz); err != nil {
		return nil, fmt.Errorf("read gzip trailer: %w", err)
	}
	return entries, nil
}
