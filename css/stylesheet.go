// Package css parses style sheets into a rule tree, minifies the tree and
// prints it back, optionally scoping names as CSS modules.
package css

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"csspipe/css/ast"
	"csspipe/css/modules"
	"csspipe/css/sourcemap"
	"csspipe/css/targets"
)

// ParserOptions controls parsing and travels with the style sheet into the
// minify and print passes.
type ParserOptions struct {
	// Filename is used in errors, dependencies and source maps.
	Filename string
	// SourceIndex is stored in every location of the parsed tree.
	SourceIndex uint32
	// CSSModules enables scoping, nil disables it.
	CSSModules *modules.Config
	// CustomMedia enables parsing of @custom-media rules.
	CustomMedia bool
	// ErrorRecovery skips invalid rules and declarations with a warning
	// instead of failing.
	ErrorRecovery bool
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

func (o *ParserOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// StyleSheet is a parsed style sheet. It owns its rule tree, Minify changes
// the tree in place.
type StyleSheet struct {
	Rules []ast.Rule

	sources       []string
	sourceMapURLs []string
	options       ParserOptions
	warnings      error
}

// ParseStyleSheet parses code. With error recovery enabled invalid parts are
// skipped and reported by Warnings, otherwise the first one fails the parse.
func ParseStyleSheet(code string, opts ParserOptions) (*StyleSheet, error) {
	log := opts.logger().Named("css-parser")
	log.Debug("Parsing CSS", zap.String("filename", opts.Filename), zap.Int("size", len(code)))

	p := newParser(newSource([]byte(code), opts.SourceIndex), &opts, log, false)
	rules, err := p.parseRuleList(false)
	if err != nil {
		return nil, err
	}

	s := NewStyleSheet([]string{opts.Filename}, rules, opts)
	s.sourceMapURLs = []string{p.mapURL}
	s.warnings = p.warnings
	if s.warnings != nil {
		log.Debug("Parsed CSS with warnings", zap.Int("count", len(multierr.Errors(s.warnings))))
	}
	return s, nil
}

// NewStyleSheet builds a style sheet from rules created elsewhere, sources
// are the file names location source indexes point into.
func NewStyleSheet(sources []string, rules []ast.Rule, opts ParserOptions) *StyleSheet {
	return &StyleSheet{
		Rules:         rules,
		sources:       sources,
		sourceMapURLs: make([]string, len(sources)),
		options:       opts,
	}
}

// Sources returns the file names of the style sheet.
func (s *StyleSheet) Sources() []string {
	return s.sources
}

// Options returns the options the style sheet was parsed with.
func (s *StyleSheet) Options() ParserOptions {
	return s.options
}

// Warnings returns errors skipped by error recovery.
func (s *StyleSheet) Warnings() []error {
	return multierr.Errors(s.warnings)
}

// SourceMapURL returns the sourceMappingURL comment of source i.
func (s *StyleSheet) SourceMapURL(i int) (string, bool) {
	if i < 0 || i >= len(s.sourceMapURLs) || s.sourceMapURLs[i] == "" {
		return "", false
	}
	return s.sourceMapURLs[i], true
}

// SourceMap decodes the inline source map of source i, nil when the source
// has none.
func (s *StyleSheet) SourceMap(i int) (*sourcemap.SourceMap, error) {
	url, ok := s.SourceMapURL(i)
	if !ok {
		return nil, nil
	}
	return sourcemap.FromDataURL(url)
}

// Minify optimizes the rule tree in place. Rules minified before an error
// keep their changes.
func (s *StyleSheet) Minify(opts MinifyOptions) error {
	log := s.options.logger().Named("css-minify")
	ctx := newMinifyContext(&opts, s.sources, log)

	if s.options.CustomMedia && opts.Targets != nil && !targets.CustomMediaQueries.IsCompatible(opts.Targets) {
		ctx.customMedia = make(map[string]*ast.CustomMediaRule)
		for _, rule := range s.Rules {
			if cm, ok := rule.(*ast.CustomMediaRule); ok {
				ctx.customMedia[cm.Name] = cm
			}
		}
		log.Debug("Resolving custom media", zap.Int("definitions", len(ctx.customMedia)))
	}

	rules, err := ctx.minifyRules(s.Rules)
	if err != nil {
		return err
	}
	s.Rules = rules
	return nil
}

// ToCSS prints the style sheet. With CSS modules enabled names declared in
// the first source are scoped and the export table is returned.
func (s *StyleSheet) ToCSS(opts PrinterOptions) (*ToCSSResult, error) {
	p := newPrinter(&opts, s.sources)
	if cfg := s.options.CSSModules; cfg != nil {
		source := ""
		if len(s.sources) > 0 {
			source = s.sources[0]
		}
		p.module = modules.New(cfg, source)
		p.dashed = cfg.DashedIdents
	}

	if err := p.printRules(s.Rules, false); err != nil {
		return nil, err
	}
	p.write("\n")

	res := &ToCSSResult{Code: p.sb.String(), Dependencies: p.deps}
	if p.module != nil {
		res.Exports, res.References = p.module.Finish()
	}
	return res, nil
}
