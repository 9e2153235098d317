package transform

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"csspipe/config"
)

func openTestCache(t *testing.T, path string, cfg *config.TransformConfig) *cache {
	t.Helper()
	c, err := openCache(path, cfg, false, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("openCache() error = %v", err)
	}
	return c
}

func TestCache_GetPut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cache.sqlite")
	c := openTestCache(t, path, &config.TransformConfig{Minify: true})
	defer c.Close()

	content := []byte(".a{color:red}")
	if _, hit, err := c.get("a.css", content); err != nil || hit {
		t.Fatalf("get() on empty cache = (hit %v, err %v)", hit, err)
	}

	want := &result{Code: ".a{color:red}\n", Map: `{"version":3}`, Manifest: []byte(`{"source":"a.css"}`)}
	if err := c.put("a.css", content, want); err != nil {
		t.Fatalf("put() error = %v", err)
	}

	got, hit, err := c.get("a.css", content)
	if err != nil || !hit {
		t.Fatalf("get() = (hit %v, err %v), want hit", hit, err)
	}
	if got.Code != want.Code || got.Map != want.Map || string(got.Manifest) != string(want.Manifest) {
		t.Errorf("get() = %+v, want %+v", got, want)
	}

	if _, hit, _ := c.get("a.css", []byte(".a{color:blue}")); hit {
		t.Error("changed content must miss")
	}
	if _, hit, _ := c.get("b.css", content); hit {
		t.Error("other source name must miss")
	}
	if c.hits != 1 || c.misses != 3 {
		t.Errorf("hits/misses = %d/%d, want 1/3", c.hits, c.misses)
	}
}

func TestCache_ReplacesOldResults(t *testing.T) {
	c := openTestCache(t, filepath.Join(t.TempDir(), "cache.sqlite"), &config.TransformConfig{})
	defer c.Close()

	for _, code := range []string{".a{}", ".b{}", ".c{}"} {
		if err := c.put("a.css", []byte(code), &result{Code: code}); err != nil {
			t.Fatalf("put() error = %v", err)
		}
	}
	if err := c.put("b.css", []byte(".d{}"), &result{Code: ".d{}"}); err != nil {
		t.Fatalf("put() error = %v", err)
	}

	n, err := c.count()
	if err != nil {
		t.Fatalf("count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("count() = %d, want 2", n)
	}

	got, hit, _ := c.get("a.css", []byte(".c{}"))
	if !hit || got.Code != ".c{}" || got.Manifest != nil {
		t.Errorf("get() = %+v (hit %v), want latest result without manifest", got, hit)
	}
}

func TestCache_OptionsInvalidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	content := []byte(".a{}")

	c := openTestCache(t, path, &config.TransformConfig{Minify: false})
	if err := c.put("a.css", content, &result{Code: ".a {\n}\n"}); err != nil {
		t.Fatalf("put() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	c = openTestCache(t, path, &config.TransformConfig{Minify: false})
	if _, hit, _ := c.get("a.css", content); !hit {
		t.Error("same options must hit after reopening")
	}
	c.Close()

	c = openTestCache(t, path, &config.TransformConfig{Minify: true})
	defer c.Close()
	if _, hit, _ := c.get("a.css", content); hit {
		t.Error("changed options must miss")
	}
}

func TestCache_LayoutInvalidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	content := []byte(".a{}")

	c := openTestCache(t, path, &config.TransformConfig{})
	if err := c.put("ui/a.css", content, &result{Code: ".a {\n}\n", Manifest: []byte(`{"output":"ui/a.css"}`)}); err != nil {
		t.Fatalf("put() error = %v", err)
	}
	c.Close()

	c, err := openCache(path, &config.TransformConfig{}, true, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("openCache() error = %v", err)
	}
	defer c.Close()
	if _, hit, _ := c.get("ui/a.css", content); hit {
		t.Error("flat output layout must miss")
	}
}

func TestCache_Nil(t *testing.T) {
	var c *cache
	if _, hit, err := c.get("a.css", nil); hit || err != nil {
		t.Errorf("nil get() = (hit %v, err %v)", hit, err)
	}
	if err := c.put("a.css", nil, &result{}); err != nil {
		t.Errorf("nil put() error = %v", err)
	}
	if n, err := c.count(); n != 0 || err != nil {
		t.Errorf("nil count() = (%d, %v)", n, err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

func TestCache_CloseTwice(t *testing.T) {
	c := openTestCache(t, filepath.Join(t.TempDir(), "cache.sqlite"), &config.TransformConfig{})
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err == nil {
		t.Error("second Close() must fail")
	}
}
