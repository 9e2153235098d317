package transform

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"go.uber.org/zap"

	"csspipe/config"
	"csspipe/state"
)

// Values is a struct that holds variables we make available for output name
// template expansion.
type Values struct {
	// Stem is the source file name without its last extension.
	Stem string
	// Ext is the source file extension.
	Ext string
	// Source is the source name relative to its root, slash separated.
	Source string
	Minify bool
}

func newValues(source string, minify bool) Values {
	base := path.Base(source)
	ext := path.Ext(base)
	return Values{
		Stem:   strings.TrimSuffix(base, ext),
		Ext:    ext,
		Source: source,
		Minify: minify,
	}
}

func expandTemplate(name config.TemplateFieldName, field string, values Values) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func defaultFileName(values Values) string {
	if values.Minify {
		return values.Stem + ".min.css"
	}
	return values.Stem + ".css"
}

// buildOutputPath returns output file path for source (slash separated name
// relative to its input root). Unless NoDirs is set source directory
// structure is kept under dst. Template may introduce subdirectories of its
// own, every path segment is cleaned.
func buildOutputPath(source, dst string, env *state.LocalEnv) string {
	outDir := dst
	if !env.NoDirs {
		outDir = filepath.Join(dst, filepath.FromSlash(path.Dir(source)))
	}

	values := newValues(source, env.Cfg.Transform.Minify)
	name := defaultFileName(values)
	if tmpl := env.Cfg.Transform.OutputNameTemplate; tmpl != "" {
		expanded, err := expandTemplate(config.OutputNameTemplateFieldName, tmpl, values)
		switch {
		case err != nil:
			env.Log.Warn("Unable to prepare output file name, using default", zap.String("source", source), zap.Error(err))
		case strings.TrimSpace(expanded) == "":
			env.Log.Warn("Output file name template produced empty name, using default", zap.String("source", source))
		default:
			name = expanded
		}
	}
	return filepath.Join(outDir, cleanRelativePath(name))
}

// cleanRelativePath cleans every segment of slash separated name, dropping
// segments which would escape destination.
func cleanRelativePath(name string) string {
	var parts []string
	for seg := range strings.SplitSeq(filepath.ToSlash(name), "/") {
		seg = strings.TrimSpace(seg)
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		parts = append(parts, config.CleanFileName(seg))
	}
	if len(parts) == 0 {
		return config.CleanFileName("")
	}
	return filepath.Join(parts...)
}
