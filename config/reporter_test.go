package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readArchive(t *testing.T, name string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("failed to open report: %v", err)
	}
	defer r.Close()

	out := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read %s: %v", f.Name, err)
		}
		out[f.Name] = string(data)
	}
	return out
}

func TestReport_Archive(t *testing.T) {
	dir := t.TempDir()
	conf := ReporterConfig{Destination: filepath.Join(dir, "report.zip")}

	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	src := filepath.Join(dir, "input.css")
	if err := os.WriteFile(src, []byte(".a{color:red}"), 0644); err != nil {
		t.Fatal(err)
	}
	tree := filepath.Join(dir, "tree")
	if err := os.MkdirAll(filepath.Join(tree, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tree, "sub", "b.css"), []byte(".b{}"), 0644); err != nil {
		t.Fatal(err)
	}

	r.Store("input.css", src)
	r.StoreData("dump/input.txt", []byte("StyleRule"))
	if err := r.StoreCopy("tree", tree); err != nil {
		t.Fatalf("StoreCopy() error: %v", err)
	}
	// copy is taken at the time of the call
	if err := os.WriteFile(filepath.Join(tree, "sub", "b.css"), []byte("changed"), 0644); err != nil {
		t.Fatal(err)
	}
	temps := append([]string(nil), r.temps...)

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	files := readArchive(t, conf.Destination)
	if files["input.css"] != ".a{color:red}" {
		t.Errorf("input.css = %q", files["input.css"])
	}
	if files["dump/input.txt"] != "StyleRule" {
		t.Errorf("dump/input.txt = %q", files["dump/input.txt"])
	}
	if files["tree/sub/b.css"] != ".b{}" {
		t.Errorf("tree/sub/b.css = %q", files["tree/sub/b.css"])
	}
	manifest := files["MANIFEST"]
	if strings.Index(manifest, "\tdump/input.txt\t") > strings.Index(manifest, "\ttree\t") {
		t.Errorf("MANIFEST is not sorted:\n%s", manifest)
	}

	for _, d := range temps {
		if _, err := os.Stat(d); !os.IsNotExist(err) {
			t.Errorf("temporary copy %s was not removed", d)
		}
	}
	// originals are left alone
	if _, err := os.Stat(src); err != nil {
		t.Errorf("stored file should not be removed: %v", err)
	}
}

func TestReport_StoreDataVersioned(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	r.StoreData("dump", []byte("1"))
	r.StoreData("dump", []byte("2"))
	if len(r.entries) != 2 {
		t.Errorf("entries = %d, want 2", len(r.entries))
	}
}

func TestReport_StoreConflict(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	r.Store("log", "/tmp/a.log")
	r.Store("log", "/tmp/a.log")

	defer func() {
		if recover() == nil {
			t.Error("Expected panic storing different path under the same name")
		}
	}()
	r.Store("log", "/tmp/b.log")
}

func TestReport_Nil(t *testing.T) {
	var r *Report
	r.Store("a", "b")
	r.StoreData("a", nil)
	if err := r.StoreCopy("a", "b"); err != nil {
		t.Errorf("StoreCopy on nil report should not error, got: %v", err)
	}
	if r.Name() != "" {
		t.Error("Name() on nil report should be empty")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
}

func TestReport_CloseNilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
