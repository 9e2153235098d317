package css

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"

	"csspipe/css/ast"
	"csspipe/css/modules"
	"csspipe/css/sourcemap"
)

// PseudoClasses replaces user action pseudo-classes with plain classes,
// e.g. ":hover" with ".is-hovered". Empty fields are left alone.
type PseudoClasses struct {
	Hover        string `yaml:"hover"`
	Active       string `yaml:"active"`
	Focus        string `yaml:"focus"`
	FocusVisible string `yaml:"focus_visible"`
	FocusWithin  string `yaml:"focus_within"`
}

func (pc *PseudoClasses) replacement(name string) string {
	if pc == nil {
		return ""
	}
	switch name {
	case "hover":
		return pc.Hover
	case "active":
		return pc.Active
	case "focus":
		return pc.Focus
	case "focus-visible":
		return pc.FocusVisible
	case "focus-within":
		return pc.FocusWithin
	}
	return ""
}

// PrinterOptions controls serialization.
type PrinterOptions struct {
	// Minify drops insignificant whitespace.
	Minify bool
	// SourceMap receives one mapping per printed rule when set.
	SourceMap *sourcemap.SourceMap
	// AnalyzeDependencies removes @import rules and replaces url()
	// addresses with placeholders, reporting both as dependencies.
	AnalyzeDependencies bool
	PseudoClasses       *PseudoClasses
}

// ToCSSResult is everything a print pass produces. Exports and References
// are nil unless CSS modules are enabled, Dependencies is nil unless
// dependency analysis was requested.
type ToCSSResult struct {
	Code         string             `json:"code"`
	Exports      modules.Exports    `json:"exports,omitempty"`
	References   modules.References `json:"references,omitempty"`
	Dependencies []Dependency       `json:"dependencies,omitempty"`
}

type printer struct {
	sb     strings.Builder
	minify bool
	indent int
	line   uint32
	col    uint32

	sources    []string
	sourceMap  *sourcemap.SourceMap
	mapSources map[uint32]uint32
	pseudo     *PseudoClasses

	module *modules.CssModule
	dashed bool

	analyze bool
	deps    []Dependency

	styleDepth int
	selectors  []ast.Selector // innermost enclosing style rule
}

func newPrinter(opts *PrinterOptions, sources []string) *printer {
	p := &printer{
		minify:    opts.Minify,
		sources:   sources,
		sourceMap: opts.SourceMap,
		pseudo:    opts.PseudoClasses,
		analyze:   opts.AnalyzeDependencies,
	}
	if p.sourceMap != nil {
		p.mapSources = make(map[uint32]uint32)
	}
	if p.analyze {
		p.deps = []Dependency{}
	}
	return p
}

func (p *printer) filename(sourceIndex uint32) string {
	if int(sourceIndex) < len(p.sources) {
		return p.sources[sourceIndex]
	}
	if len(p.sources) > 0 {
		return p.sources[0]
	}
	return ""
}

func (p *printer) write(s string) {
	p.sb.WriteString(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		p.line += uint32(strings.Count(s, "\n"))
		p.col = uint32(len(s) - i - 1)
		return
	}
	p.col += uint32(len(s))
}

func (p *printer) newline() {
	if p.minify {
		return
	}
	p.write("\n")
	p.write(strings.Repeat("  ", p.indent))
}

func (p *printer) space() {
	if !p.minify {
		p.write(" ")
	}
}

func (p *printer) openBlock() {
	p.space()
	p.write("{")
	p.indent++
}

func (p *printer) closeBlock() {
	p.indent--
	p.newline()
	p.write("}")
}

func (p *printer) addMapping(loc ast.Location) {
	if p.sourceMap == nil {
		return
	}
	idx, ok := p.mapSources[loc.SourceIndex]
	if !ok {
		idx = p.sourceMap.AddSource(p.filename(loc.SourceIndex))
		p.mapSources[loc.SourceIndex] = idx
	}
	col := loc.Column
	if col > 0 {
		col--
	}
	p.sourceMap.AddMapping(p.line, p.col, &sourcemap.OriginalLocation{Source: idx, Line: loc.Line, Column: col})
}

// printRules prints a rule list. Inside a block every rule starts on a new
// line, siblings are separated by an empty line.
func (p *printer) printRules(rules []ast.Rule, inBlock bool) error {
	first := true
	for _, rule := range rules {
		if imp, ok := rule.(*ast.ImportRule); ok && p.analyze {
			p.recordImport(imp)
			continue
		}
		if !first && !p.minify {
			p.write("\n")
		}
		if !first || inBlock {
			p.newline()
		}
		first = false
		if err := p.printRule(rule); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) printRule(rule ast.Rule) error {
	p.addMapping(rule.Location())
	switch r := rule.(type) {
	case *ast.StyleRule:
		p.printSelectorList(r.Selectors, true)
		p.openBlock()
		saved := p.selectors
		p.selectors = r.Selectors
		p.styleDepth++
		err := p.printBody(r.Declarations, r.Rules)
		p.styleDepth--
		p.selectors = saved
		if err != nil {
			return err
		}
		p.closeBlock()
	case *ast.MediaRule:
		p.printAtPrelude("media", r.Query)
		p.openBlock()
		if err := p.printBody(r.Declarations, r.Rules); err != nil {
			return err
		}
		p.closeBlock()
	case *ast.GroupingRule:
		p.printAtPrelude(r.Name, r.Prelude)
		p.openBlock()
		if err := p.printBody(r.Declarations, r.Rules); err != nil {
			return err
		}
		p.closeBlock()
	case *ast.CustomMediaRule:
		p.write("@custom-media ")
		p.write(r.Name)
		p.write(" ")
		p.writeTokens(r.Query)
		p.write(";")
	case *ast.ImportRule:
		p.write("@import ")
		p.write(ast.QuoteString(r.URL))
		if len(r.Conditions) > 0 {
			p.write(" ")
			p.writeTokens(r.Conditions)
		}
		p.write(";")
	case *ast.NamespaceRule:
		p.write("@namespace ")
		if r.Prefix != "" {
			p.write(r.Prefix)
			p.write(" ")
		}
		p.write(ast.QuoteString(r.URL))
		p.write(";")
	case *ast.KeyframesRule:
		return p.printKeyframes(r)
	case *ast.FontFaceRule:
		p.write("@font-face")
		p.openBlock()
		if err := p.printDeclarations(r.Declarations, false); err != nil {
			return err
		}
		p.closeBlock()
	case *ast.UnknownAtRule:
		p.printAtPrelude(r.Name, r.Prelude)
		if !r.HasBlock {
			p.write(";")
			return nil
		}
		p.space()
		p.write("{")
		p.writeTokens(r.Block)
		p.write("}")
	}
	return nil
}

func (p *printer) printAtPrelude(name string, prelude []ast.Token) {
	p.write("@")
	p.write(name)
	if len(prelude) > 0 {
		p.write(" ")
		p.writeTokens(prelude)
	}
}

// printBody prints declarations followed by nested rules.
func (p *printer) printBody(block ast.DeclarationBlock, rules []ast.Rule) error {
	if err := p.printDeclarations(block, len(rules) > 0); err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}
	if !block.IsEmpty() && !p.minify {
		p.write("\n")
	}
	return p.printRules(rules, true)
}

// printDeclarations prints one declaration per line. In minified output the
// last semicolon is dropped unless more content follows in the block.
func (p *printer) printDeclarations(block ast.DeclarationBlock, more bool) error {
	decls, err := p.printable(block)
	if err != nil {
		return err
	}
	for i := range decls {
		p.newline()
		p.printDeclaration(&decls[i])
		if !p.minify || more || i < len(decls)-1 {
			p.write(";")
		}
	}
	return nil
}

// printable resolves composes declarations against the export table and
// returns what is left to print.
func (p *printer) printable(block ast.DeclarationBlock) ([]ast.Declaration, error) {
	all := make([]ast.Declaration, 0, block.Len())
	all = append(all, block.Declarations...)
	all = append(all, block.ImportantDeclarations...)
	if p.module == nil {
		return all, nil
	}
	out := all[:0]
	for _, d := range all {
		if d.Composes == nil {
			out = append(out, d)
			continue
		}
		filename := p.filename(d.Loc.SourceIndex)
		if p.styleDepth > 1 {
			return nil, newError(ErrInvalidComposesNesting, filename, d.Loc, "")
		}
		if p.styleDepth == 0 {
			return nil, newError(modules.ErrInvalidComposesSelector, filename, d.Loc, "")
		}
		if err := p.module.HandleComposes(p.selectors, d.Composes); err != nil {
			return nil, newError(err, filename, d.Loc, "")
		}
	}
	return out, nil
}

var animationKeywords = map[string]bool{
	"none": true, "infinite": true, "normal": true, "reverse": true,
	"alternate": true, "alternate-reverse": true, "forwards": true,
	"backwards": true, "both": true, "running": true, "paused": true,
	"ease": true, "ease-in": true, "ease-out": true, "ease-in-out": true,
	"linear": true, "step-start": true, "step-end": true,
	"initial": true, "inherit": true, "unset": true, "revert": true,
	"revert-layer": true,
}

func isAnimationProperty(name string) bool {
	name = stripVendor(name)
	return name == "animation" || name == "animation-name"
}

func (p *printer) printDeclaration(d *ast.Declaration) {
	name := d.Name
	if p.dashed && d.IsCustomProperty() {
		name = p.module.AddDashed(name)
	}
	p.write(name)
	p.write(":")
	p.space()
	if d.Composes != nil {
		p.write(d.Composes.String())
	} else {
		value := d.Value
		if p.module != nil && isAnimationProperty(d.Name) {
			value = p.scopeAnimationNames(value)
		}
		if p.dashed {
			value = p.scopeVarReferences(value)
		}
		if p.analyze {
			value = p.replaceURLs(d, value)
		}
		p.writeTokens(value)
	}
	if d.Important {
		p.space()
		p.write("!important")
	}
}

// scopeAnimationNames compiles keyframes names referenced from animation
// properties.
func (p *printer) scopeAnimationNames(value []ast.Token) []ast.Token {
	out := make([]ast.Token, len(value))
	depth := 0
	for i, t := range value {
		out[i] = t
		switch {
		case closing(t.Type) != css.ErrorToken:
			depth++
		case t.Type == css.RightParenthesisToken || t.Type == css.RightBracketToken:
			depth--
		case depth == 0 && t.Type == css.IdentToken && !animationKeywords[strings.ToLower(t.Data)]:
			out[i].Data = p.module.Reference(t.Data)
		case depth == 0 && t.Type == css.StringToken:
			out[i] = ast.Token{Type: css.IdentToken, Data: p.module.Reference(unquote(t.Data))}
		}
	}
	return out
}

// scopeVarReferences rewrites var(--name) and var(--name from ...) with the
// dashed ident scoping of the module.
func (p *printer) scopeVarReferences(value []ast.Token) []ast.Token {
	var out []ast.Token
	for i := 0; i < len(value); i++ {
		t := value[i]
		out = append(out, t)
		if t.Type != css.FunctionToken || !strings.EqualFold(t.Data, "var(") {
			continue
		}
		j := i + 1
		for j < len(value) && value[j].IsWhitespace() {
			j++
		}
		if j >= len(value) || value[j].Type != css.IdentToken || !strings.HasPrefix(value[j].Data, "--") {
			continue
		}
		name := value[j].Data
		var from ast.ComposesFrom
		next := j + 1
		// optional: from global | from "file"
		k := next
		for k < len(value) && value[k].IsWhitespace() {
			k++
		}
		if k < len(value) && value[k].IsIdent("from") {
			m := k + 1
			for m < len(value) && value[m].IsWhitespace() {
				m++
			}
			if m < len(value) {
				switch {
				case value[m].IsIdent("global"):
					from = ast.ComposesFromGlobal{}
					next = m + 1
				case value[m].Type == css.StringToken:
					from = ast.ComposesFromFile{Specifier: unquote(value[m].Data)}
					next = m + 1
				}
			}
		}
		out = append(out, ast.Token{Type: css.IdentToken, Data: p.module.ReferenceDashed(name, from)})
		i = next - 1
	}
	return out
}

// writeTokens writes component values. Minified output drops whitespace
// next to commas, colons, slashes and parentheses.
func (p *printer) writeTokens(tokens []ast.Token) {
	for i, t := range tokens {
		if t.IsWhitespace() && p.minify {
			if i == 0 || i == len(tokens)-1 || dropsSpaceAfter(tokens[i-1]) || dropsSpaceBefore(tokens[i+1]) {
				continue
			}
		}
		p.write(t.Data)
	}
}

func dropsSpaceAfter(t ast.Token) bool {
	switch t.Type {
	case css.CommaToken, css.ColonToken, css.LeftParenthesisToken, css.FunctionToken:
		return true
	}
	return t.IsDelim('/')
}

func dropsSpaceBefore(t ast.Token) bool {
	switch t.Type {
	case css.CommaToken, css.RightParenthesisToken:
		return true
	}
	return t.IsDelim('/')
}

func (p *printer) scopedName(name string, scoped bool) string {
	if scoped && p.module != nil {
		return p.module.AddLocal(name, name)
	}
	return name
}

func (p *printer) printSelectorList(list []ast.Selector, scoped bool) {
	for i, sel := range list {
		if i > 0 {
			p.write(",")
			p.space()
		}
		p.printSelector(sel, scoped)
	}
}

func (p *printer) printSelector(sel ast.Selector, scoped bool) {
	for i, c := range sel.Components {
		switch c := c.(type) {
		case ast.Combinator:
			if c.Kind == ast.Descendant {
				p.write(" ")
				continue
			}
			if i > 0 {
				p.space()
			}
			p.write(string(rune(c.Kind)))
			p.space()
		case ast.TypeSelector:
			p.write(c.Name)
		case ast.UniversalSelector:
			p.write("*")
		case ast.ClassSelector:
			p.write(".")
			p.write(p.scopedName(c.Name, scoped))
		case ast.IDSelector:
			p.write("#")
			p.write(p.scopedName(c.Name, scoped))
		case ast.AttributeSelector:
			p.write("[")
			p.write(c.Raw)
			p.write("]")
		case ast.NestingSelector:
			p.write("&")
		case ast.PseudoClass:
			if p.module != nil && c.Selectors != nil && (c.Name == "global" || c.Name == "local") {
				p.printSelectorList(c.Selectors, c.Name == "local")
				continue
			}
			if class := p.pseudo.replacement(c.Name); class != "" && !c.HasArgs {
				p.write(".")
				p.write(p.scopedName(class, scoped))
				continue
			}
			p.write(":")
			p.write(c.Name)
			if c.Selectors != nil {
				p.write("(")
				p.printSelectorList(c.Selectors, scoped)
				p.write(")")
			} else if c.HasArgs {
				p.write("(")
				p.writeTokens(c.Args)
				p.write(")")
			}
		case ast.PseudoElement:
			p.write("::")
			p.write(c.Name)
			if c.HasArgs {
				p.write("(")
				p.writeTokens(c.Args)
				p.write(")")
			}
		}
	}
}

func (p *printer) printKeyframes(r *ast.KeyframesRule) error {
	name := r.Name
	if p.module != nil {
		name = p.module.AddLocal(name, name)
	}
	p.write("@")
	p.write(r.Vendor)
	p.write("keyframes ")
	if isIdent(name) {
		p.write(name)
	} else {
		p.write(ast.QuoteString(name))
	}
	p.openBlock()
	for i := range r.Keyframes {
		kf := &r.Keyframes[i]
		if i > 0 && !p.minify {
			p.write("\n")
		}
		p.newline()
		p.addMapping(kf.Loc)
		for j, sel := range kf.Selectors {
			if j > 0 {
				p.write(",")
				p.space()
			}
			p.write(sel)
		}
		p.openBlock()
		if err := p.printDeclarations(kf.Declarations, false); err != nil {
			return err
		}
		p.closeBlock()
	}
	p.closeBlock()
	return nil
}

// isIdent reports whether s can be written as a CSS identifier without
// escaping.
func isIdent(s string) bool {
	i := 0
	if strings.HasPrefix(s, "--") {
		i = 2
	} else {
		if strings.HasPrefix(s, "-") {
			i = 1
		}
		if i >= len(s) || !isNameStart(s[i]) {
			return false
		}
	}
	for ; i < len(s); i++ {
		if !isNameStart(s[i]) && !(s[i] >= '0' && s[i] <= '9') && s[i] != '-' {
			return false
		}
	}
	return len(s) > 0
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c >= 0x80
}

func stripVendor(name string) string {
	if strings.HasPrefix(name, "-") && !strings.HasPrefix(name, "--") {
		if i := strings.IndexByte(name[1:], '-'); i >= 0 {
			return name[i+2:]
		}
	}
	return name
}
