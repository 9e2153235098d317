package transform

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"csspipe/archive"
)

// cssPattern selects style sheets when a directory or a whole archive is
// given as source.
const cssPattern = "**/*.css"

// input is a single style sheet to process.
type input struct {
	// name is slash separated and relative to the source root, it is used
	// as parser file name and to lay out outputs
	name string
	// origin is where the data comes from, for logs and reports
	origin string
	read   func() ([]byte, error)
}

func fileInput(name, path string) input {
	return input{
		name:   name,
		origin: path,
		read:   func() ([]byte, error) { return os.ReadFile(path) },
	}
}

// collectInputs expands every source into the list of style sheets. A source
// is a file, a directory (searched recursively), a doublestar glob or a path
// inside a zip archive ("styles.zip/theme/" or "styles.zip/**/*.css").
func collectInputs(ctx context.Context, sources []string, log *zap.Logger) ([]input, error) {
	var inputs []input
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := resolveSource(src, log)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			log.Warn("No style sheets found", zap.String("source", src))
		}
		inputs = append(inputs, found...)
	}
	return inputs, nil
}

func resolveSource(src string, log *zap.Logger) ([]input, error) {
	fi, err := os.Stat(src)
	if err == nil {
		switch {
		case fi.IsDir():
			return collectDir(src)
		case !fi.Mode().IsRegular():
			return nil, fmt.Errorf("unexpected path mode for (%s)", src)
		}
		isArc, err := archive.IsArchive(src)
		if err != nil {
			return nil, fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArc {
			return collectArchive(src, cssPattern, log)
		}
		return []input{fileInput(filepath.Base(src), src)}, nil
	}

	if arc, inner, ok := splitArchivePath(src); ok {
		return collectArchive(arc, inner, log)
	}

	slashed := filepath.ToSlash(src)
	if archive.IsGlob(slashed) {
		return collectGlob(slashed)
	}
	return nil, fmt.Errorf("input source was not found (%s)", src)
}

func collectDir(dir string) ([]input, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), cssPattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("unable to process directory (%s): %w", dir, err)
	}
	inputs := make([]input, 0, len(matches))
	for _, m := range matches {
		inputs = append(inputs, fileInput(m, filepath.Join(dir, filepath.FromSlash(m))))
	}
	return inputs, nil
}

func collectGlob(pattern string) ([]input, error) {
	base, rest := doublestar.SplitPattern(pattern)
	matches, err := doublestar.Glob(os.DirFS(filepath.FromSlash(base)), rest, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("unable to expand pattern (%s): %w", pattern, err)
	}
	inputs := make([]input, 0, len(matches))
	for _, m := range matches {
		inputs = append(inputs, fileInput(m, filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m))))
	}
	return inputs, nil
}

// splitArchivePath finds the longest existing prefix of src which is a zip
// archive and returns it together with the rest of the path.
func splitArchivePath(src string) (string, string, bool) {
	var head, tail string
	for head = src; len(head) != 0; {
		head = strings.TrimSuffix(head, string(filepath.Separator))
		fi, err := os.Stat(head)
		if err == nil {
			if !fi.Mode().IsRegular() {
				return "", "", false
			}
			if ok, err := archive.IsArchive(head); err != nil || !ok {
				return "", "", false
			}
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			return head, filepath.ToSlash(tail), true
		}
		parent := filepath.Dir(head)
		if parent == head {
			break
		}
		head = parent
	}
	return "", "", false
}

// collectArchive reads matching entries. A plain prefix only selects .css
// files, a glob selects whatever it matches.
func collectArchive(arc, pattern string, log *zap.Logger) ([]input, error) {
	glob := archive.IsGlob(pattern)
	prefix := ""
	if !glob {
		prefix = pattern
	} else if base, _ := doublestar.SplitPattern(pattern); base != "." {
		prefix = base + "/"
	}

	var inputs []input
	err := archive.Walk(arc, pattern, func(a string, f *zip.File) error {
		if !glob && path.Ext(f.Name) != ".css" {
			return nil
		}
		data, err := readEntry(f)
		if err != nil {
			return fmt.Errorf("unable to read '%s' from '%s': %w", f.Name, a, err)
		}
		name := strings.TrimPrefix(strings.TrimPrefix(f.Name, prefix), "/")
		if name == "" {
			name = path.Base(f.Name)
		}
		inputs = append(inputs, input{
			name:   name,
			origin: a + "!" + f.Name,
			read:   func() ([]byte, error) { return data, nil },
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to process archive: %w", err)
	}
	log.Debug("Archive scanned", zap.String("archive", arc), zap.String("pattern", pattern), zap.Int("found", len(inputs)))
	return inputs, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
