// Package archive builds Walk abstraction on top of "archive/zip".
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to Walk
// The file argument is the zip.File structure for file in archive which satisfies
// match condition. If an error is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// Walk walks all files in the archive whose names match pattern, calling
// walkFn for each item in archive order. Pattern is either a doublestar glob
// ("styles/**/*.css") or, when it has no glob characters, a plain name
// prefix. Empty pattern matches everything. Entries with path traversal
// components ("..") or absolute paths fail the walk to prevent Zip Slip
// attacks.
func Walk(archive, pattern string, walkFn WalkFunc) error {
	if IsGlob(pattern) && !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("bad pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || !Match(pattern, name) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

// IsGlob reports whether pattern uses glob syntax.
func IsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// Match reports whether name is selected by pattern, see Walk.
func Match(pattern, name string) bool {
	if !IsGlob(pattern) {
		return strings.HasPrefix(name, pattern)
	}
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

var zipSignature = []byte("PK\x03\x04")

// IsArchive checks whether file at path starts with zip local header
// signature.
func IsArchive(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, len(zipSignature))
	if _, err := io.ReadFull(f, head); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(head, zipSignature), nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
