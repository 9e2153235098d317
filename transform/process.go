package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"csspipe/config"
	"csspipe/css"
	"csspipe/css/sourcemap"
	"csspipe/state"
)

// ErrDestinationExists is returned when output file exists and overwriting
// was not requested.
var ErrDestinationExists = errors.New("destination already exists")

// processor turns inputs into outputs under dst.
type processor struct {
	env   *state.LocalEnv
	cache *cache
	dst   string
	log   *zap.Logger
}

// process handles a single style sheet: it takes the result from cache when
// possible, transforms the source otherwise and writes outputs.
func (p *processor) process(ctx context.Context, in input) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := in.read()
	if err != nil {
		return fmt.Errorf("unable to read source: %w", err)
	}
	p.env.Rpt.StoreData("sources/"+in.name, data)

	out := buildOutputPath(in.name, p.dst, p.env)
	if src, err := filepath.Abs(in.origin); err == nil && src == out {
		return fmt.Errorf("output would replace source: %s", out)
	}
	if !p.env.Overwrite {
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("%w: %s", ErrDestinationExists, out)
		}
	}

	res, hit, err := p.cache.get(in.name, data)
	if err != nil {
		p.log.Warn("Cache lookup failed", zap.String("source", in.name), zap.Error(err))
	}
	if hit {
		p.log.Debug("Using cached result", zap.String("source", in.name))
	} else {
		text, enc, err := decodeSource(data)
		if err != nil {
			return err
		}
		if res, err = p.transform(in, text, enc, out); err != nil {
			return err
		}
		if err := p.cache.put(in.name, data, res); err != nil {
			p.log.Warn("Unable to cache result", zap.String("source", in.name), zap.Error(err))
		}
	}
	return p.write(out, res)
}

// transform runs parse, minify and print for text and assembles the result.
// out is needed to name the source map and the manifest.
func (p *processor) transform(in input, text, enc, out string) (*result, error) {
	tr := &p.env.Cfg.Transform
	log := p.log.With(zap.String("source", in.name))

	if !validUTF8(text) {
		log.Warn("Source is not valid UTF-8, invalid sequences will be copied as is")
	}

	sheet, err := css.ParseStyleSheet(text, css.ParserOptions{
		Filename:      in.name,
		CSSModules:    p.env.Modules,
		CustomMedia:   tr.CustomMedia,
		ErrorRecovery: tr.ErrorRecovery,
		Logger:        p.log,
	})
	if err != nil {
		return nil, err
	}
	warnings := sheet.Warnings()
	for _, w := range warnings {
		log.Warn("Skipped invalid CSS", zap.Error(w))
	}
	if url, ok := sheet.SourceMapURL(0); ok {
		log.Debug("Source carries its own source map, it is not chained", zap.Int("length", len(url)))
	}

	if tr.Minify {
		if err := sheet.Minify(css.MinifyOptions{Targets: p.env.Targets, UnusedSymbols: p.env.UnusedSymbols}); err != nil {
			return nil, err
		}
	}
	if p.env.Rpt != nil {
		p.env.Rpt.StoreData("dump/"+in.name+".txt", []byte(sheet.Dump()))
	}

	var sm *sourcemap.SourceMap
	if tr.SourceMap.Enabled() {
		sm = sourcemap.New(tr.ProjectRoot)
		if err := sm.SetSourceContent(sm.AddSource(in.name), text); err != nil {
			return nil, err
		}
	}

	printed, err := sheet.ToCSS(css.PrinterOptions{
		Minify:              tr.Minify,
		SourceMap:           sm,
		AnalyzeDependencies: tr.AnalyzeDependencies,
		PseudoClasses:       &tr.PseudoClasses,
	})
	if err != nil {
		return nil, err
	}

	res := &result{Code: printed.Code}
	switch tr.SourceMap {
	case config.SourceMapModeInline:
		url, err := sm.DataURL()
		if err != nil {
			return nil, fmt.Errorf("unable to serialize source map: %w", err)
		}
		res.Code += "/*# sourceMappingURL=" + url + " */\n"
	case config.SourceMapModeFile:
		data, err := sm.ToJSON()
		if err != nil {
			return nil, fmt.Errorf("unable to serialize source map: %w", err)
		}
		res.Map = string(data)
		res.Code += "/*# sourceMappingURL=" + filepath.Base(out) + ".map */\n"
	}

	if tr.Manifest {
		rel, err := filepath.Rel(p.dst, out)
		if err != nil {
			rel = out
		}
		m := &Manifest{
			Source:       in.name,
			Output:       filepath.ToSlash(rel),
			Encoding:     enc,
			Exports:      printed.Exports,
			References:   printed.References,
			Dependencies: printed.Dependencies,
		}
		for _, w := range warnings {
			m.Warnings = append(m.Warnings, w.Error())
		}
		if res.Manifest, err = json.MarshalIndent(m, "", "  "); err != nil {
			return nil, fmt.Errorf("unable to serialize manifest: %w", err)
		}
	}

	log.Debug("Transformed", zap.Int("in", len(text)), zap.Int("out", len(res.Code)), zap.Int("warnings", len(warnings)))
	return res, nil
}

// write stores result files next to each other: the style sheet, its source
// map and the manifest.
func (p *processor) write(out string, res *result) error {
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	files := []struct {
		name string
		data []byte
	}{
		{out, []byte(res.Code)},
		{out + ".map", []byte(res.Map)},
		{out + ".json", res.Manifest},
	}
	for _, f := range files {
		if len(f.data) == 0 {
			continue
		}
		if err := os.WriteFile(f.name, f.data, 0644); err != nil {
			return fmt.Errorf("unable to write '%s': %w", f.name, err)
		}
		p.log.Debug("Written", zap.String("file", f.name), zap.Int("size", len(f.data)))
	}
	return nil
}
