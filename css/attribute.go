package css

import (
	"go.uber.org/zap"

	"csspipe/css/ast"
)

// StyleAttribute is the declaration list of an HTML style attribute.
type StyleAttribute struct {
	Declarations ast.DeclarationBlock

	options ParserOptions
}

// ParseStyleAttribute parses the value of a style attribute. CSS modules and
// custom media do not apply to attributes and are ignored if set.
func ParseStyleAttribute(code string, opts ParserOptions) (*StyleAttribute, error) {
	opts.CSSModules = nil
	opts.CustomMedia = false
	log := opts.logger().Named("css-parser")
	log.Debug("Parsing style attribute", zap.Int("size", len(code)))

	p := newParser(newSource([]byte(code), opts.SourceIndex), &opts, log, true)
	a := &StyleAttribute{options: opts}
	if err := p.parseDeclarationList(&a.Declarations, nil); err != nil {
		return nil, err
	}
	return a, nil
}

// Minify optimizes the declarations in place.
func (a *StyleAttribute) Minify(opts MinifyOptions) {
	ctx := newMinifyContext(&opts, []string{a.options.Filename}, a.options.logger().Named("css-minify"))
	ctx.minifyBlock(&a.Declarations, ContextStyleAttribute)
}

// ToCSS prints the declarations on a single line without a trailing
// newline. Source maps are not supported.
func (a *StyleAttribute) ToCSS(opts PrinterOptions) (*ToCSSResult, error) {
	if opts.SourceMap != nil {
		return nil, &Error{Kind: ErrSourceMapUnsupported}
	}
	p := newPrinter(&opts, []string{a.options.Filename})
	decls, err := p.printable(a.Declarations)
	if err != nil {
		return nil, err
	}
	for i := range decls {
		if i > 0 {
			p.write(";")
			p.space()
		}
		p.printDeclaration(&decls[i])
	}
	return &ToCSSResult{Code: p.sb.String(), Dependencies: p.deps}, nil
}
