package transform

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap/zaptest"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}

func inputNames(inputs []input) []string {
	names := make([]string, 0, len(inputs))
	for _, in := range inputs {
		names = append(names, in.name)
	}
	slices.Sort(names)
	return names
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/a.css":          ".a{}",
		"src/ui/button.css":  ".btn{}",
		"src/ui/readme.txt":  "text",
		"other/single.css":   ".s{}",
		"other/notcss.style": ".n{}",
	})
	arc := filepath.Join(dir, "bundle.zip")
	writeZip(t, arc, map[string]string{
		"theme/dark.css":     ".dark{}",
		"theme/light.css":    ".light{}",
		"theme/img/logo.svg": "<svg/>",
		"base.css":           "body{}",
	})

	tests := []struct {
		name    string
		sources []string
		want    []string
	}{
		{"directory", []string{filepath.Join(dir, "src")}, []string{"a.css", "ui/button.css"}},
		{"single file", []string{filepath.Join(dir, "other", "notcss.style")}, []string{"notcss.style"}},
		{"glob", []string{filepath.Join(dir, "src", "**", "*.css")}, []string{"a.css", "ui/button.css"}},
		{"glob with base", []string{filepath.Join(dir, "src", "ui", "*")}, []string{"button.css", "readme.txt"}},
		{"whole archive", []string{arc}, []string{"base.css", "theme/dark.css", "theme/light.css"}},
		{"archive prefix", []string{filepath.Join(arc, "theme")}, []string{"dark.css", "light.css"}},
		{"archive prefix slash", []string{arc + "/theme/"}, []string{"dark.css", "light.css"}},
		{"archive file", []string{filepath.Join(arc, "theme", "dark.css")}, []string{"dark.css"}},
		{"archive glob", []string{filepath.Join(arc, "theme", "**", "*.svg")}, []string{"img/logo.svg"}},
		{"several", []string{filepath.Join(dir, "other", "single.css"), filepath.Join(arc, "base.css")}, []string{"base.css", "single.css"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputs, err := collectInputs(context.Background(), tt.sources, zaptest.NewLogger(t))
			if err != nil {
				t.Fatalf("collectInputs() error = %v", err)
			}
			if got := inputNames(inputs); !slices.Equal(got, tt.want) {
				t.Errorf("collectInputs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollectInputs_Content(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.css": ".a{}"})
	arc := filepath.Join(dir, "bundle.zip")
	writeZip(t, arc, map[string]string{"b.css": ".b{}"})

	inputs, err := collectInputs(context.Background(), []string{filepath.Join(dir, "a.css"), arc}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("collectInputs() error = %v", err)
	}
	if len(inputs) != 2 {
		t.Fatalf("got %d inputs, want 2", len(inputs))
	}
	for i, want := range []string{".a{}", ".b{}"} {
		data, err := inputs[i].read()
		if err != nil {
			t.Fatalf("read() error = %v", err)
		}
		if string(data) != want {
			t.Errorf("input %d content = %q, want %q", i, data, want)
		}
	}
	if inputs[1].origin != arc+"!b.css" {
		t.Errorf("archive origin = %q", inputs[1].origin)
	}
}

func TestCollectInputs_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.css": ".a{}"})

	if _, err := collectInputs(context.Background(), []string{filepath.Join(dir, "missing.css")}, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for missing source")
	}
	if _, err := collectInputs(context.Background(), []string{filepath.Join(dir, "a.css", "inner.css")}, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for path below regular file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := collectInputs(ctx, []string{dir}, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestCollectInputs_NothingFound(t *testing.T) {
	dir := t.TempDir()
	inputs, err := collectInputs(context.Background(), []string{dir}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("collectInputs() error = %v", err)
	}
	if len(inputs) != 0 {
		t.Errorf("got %d inputs from empty directory", len(inputs))
	}
}

func TestSplitArchivePath(t *testing.T) {
	dir := t.TempDir()
	arc := filepath.Join(dir, "bundle.zip")
	writeZip(t, arc, map[string]string{"a.css": ""})
	writeFiles(t, dir, map[string]string{"plain.css": ".a{}"})

	tests := []struct {
		src       string
		wantArc   string
		wantInner string
		wantOK    bool
	}{
		{filepath.Join(arc, "theme", "a.css"), arc, "theme/a.css", true},
		{arc + string(filepath.Separator), arc, "", true},
		{filepath.Join(dir, "plain.css", "x.css"), "", "", false},
		{filepath.Join(dir, "missing", "x.css"), "", "", false},
	}
	for _, tt := range tests {
		a, inner, ok := splitArchivePath(tt.src)
		if a != tt.wantArc || inner != tt.wantInner || ok != tt.wantOK {
			t.Errorf("splitArchivePath(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.src, a, inner, ok, tt.wantArc, tt.wantInner, tt.wantOK)
		}
	}
}
