package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func makeZip(t *testing.T, files map[string]string, dirs ...string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")

	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	defer zipFile.Close()

	w := zip.NewWriter(zipFile)
	for _, d := range dirs {
		h := &zip.FileHeader{Name: d}
		h.SetMode(os.ModeDir | 0755)
		if _, err := w.CreateHeader(h); err != nil {
			t.Fatalf("Failed to create directory %s: %v", d, err)
		}
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create file %s in zip: %v", name, err)
		}
		if _, err := fw.Write([]byte(files[name])); err != nil {
			t.Fatalf("Failed to write content for %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finish zip: %v", err)
	}
	return zipPath
}

func visit(t *testing.T, zipPath, pattern string) []string {
	t.Helper()
	var visited []string
	err := Walk(zipPath, pattern, func(archive string, file *zip.File) error {
		if archive != zipPath {
			t.Errorf("archive = %s, want %s", archive, zipPath)
		}
		visited = append(visited, file.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk(%q) error = %v", pattern, err)
	}
	return visited
}

func TestWalk(t *testing.T) {
	zipPath := makeZip(t, map[string]string{
		"styles/base.css":              ".a{}",
		"styles/theme/dark.css":        ".b{}",
		"styles/theme/dark.css.map":    "{}",
		"components/button.module.css": ".btn{}",
		"README.md":                    "readme",
	}, "styles/", "styles/theme/")

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"prefix", "styles/", []string{"styles/base.css", "styles/theme/dark.css", "styles/theme/dark.css.map"}},
		{"empty pattern", "", []string{"README.md", "components/button.module.css", "styles/base.css", "styles/theme/dark.css", "styles/theme/dark.css.map"}},
		{"no match", "nonexistent/", nil},
		{"double star", "**/*.css", []string{"components/button.module.css", "styles/base.css", "styles/theme/dark.css"}},
		{"single star", "styles/*.css", []string{"styles/base.css"}},
		{"alternation", "{components,styles}/*.css", []string{"components/button.module.css", "styles/base.css"}},
		{"case sensitive", "Styles/", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := visit(t, zipPath, tt.pattern)
			if !slices.Equal(got, tt.want) {
				t.Errorf("visited %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWalk_Errors(t *testing.T) {
	t.Run("nonexistent file", func(t *testing.T) {
		err := Walk("/nonexistent/file.zip", "", func(string, *zip.File) error { return nil })
		if err == nil {
			t.Error("Expected error for nonexistent file")
		}
	})

	t.Run("invalid zip file", func(t *testing.T) {
		invalidZip := filepath.Join(t.TempDir(), "invalid.zip")
		if err := os.WriteFile(invalidZip, []byte("not a zip file"), 0644); err != nil {
			t.Fatalf("Failed to create invalid zip: %v", err)
		}
		if err := Walk(invalidZip, "", func(string, *zip.File) error { return nil }); err == nil {
			t.Error("Expected error for invalid zip file")
		}
	})

	t.Run("bad pattern", func(t *testing.T) {
		zipPath := makeZip(t, map[string]string{"a.css": ""})
		if err := Walk(zipPath, "[a-", func(string, *zip.File) error { return nil }); err == nil {
			t.Error("Expected error for bad pattern")
		}
	})

	t.Run("unsafe path", func(t *testing.T) {
		zipPath := makeZip(t, map[string]string{"../evil.css": ""})
		if err := Walk(zipPath, "", func(string, *zip.File) error { return nil }); err == nil {
			t.Error("Expected error for path traversal")
		}
	})
}

func TestWalk_EarlyTermination(t *testing.T) {
	zipPath := makeZip(t, map[string]string{
		"files/a.css": "", "files/b.css": "", "files/c.css": "",
	})

	var visited int
	stopErr := errors.New("stop walking")
	err := Walk(zipPath, "files/", func(string, *zip.File) error {
		visited++
		if visited == 2 {
			return stopErr
		}
		return nil
	})

	if err != stopErr {
		t.Errorf("Walk() error = %v, want %v", err, stopErr)
	}
	if visited != 2 {
		t.Errorf("visited %d files, want 2 (early termination)", visited)
	}
}

func TestWalk_FileContent(t *testing.T) {
	content := []byte(".a { color: red }")
	zipPath := makeZip(t, map[string]string{"test.css": string(content)})

	err := Walk(zipPath, "", func(archive string, file *zip.File) error {
		rc, err := file.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(rc); err != nil {
			return err
		}
		if !bytes.Equal(buf.Bytes(), content) {
			t.Errorf("content = %s, want %s", buf.Bytes(), content)
		}
		return nil
	})
	if err != nil {
		t.Errorf("Walk() error = %v", err)
	}
}

func TestIsArchive(t *testing.T) {
	dir := t.TempDir()
	zipPath := makeZip(t, map[string]string{"a.css": ""})

	plain := filepath.Join(dir, "a.css")
	if err := os.WriteFile(plain, []byte(".a{}"), 0644); err != nil {
		t.Fatal(err)
	}
	short := filepath.Join(dir, "short")
	if err := os.WriteFile(short, []byte("P"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{zipPath, true},
		{plain, false},
		{short, false},
	}
	for _, tt := range tests {
		got, err := IsArchive(tt.path)
		if err != nil {
			t.Errorf("IsArchive(%s) error = %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("IsArchive(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}

	if _, err := IsArchive(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestIsSafePath(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a/b.css", true},
		{"a/..b/c.css", true},
		{"/etc/passwd", false},
		{`\windows`, false},
		{"a/../../b", false},
	}
	for _, tt := range tests {
		if got := isSafePath(tt.name); got != tt.want {
			t.Errorf("isSafePath(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
