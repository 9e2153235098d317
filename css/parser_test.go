package css_test

import (
	"errors"
	"testing"

	tcss "github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap/zaptest"

	"csspipe/css"
	"csspipe/css/ast"
	"csspipe/css/modules"
)

func parse(t *testing.T, code string, opts css.ParserOptions) *css.StyleSheet {
	t.Helper()
	if opts.Filename == "" {
		opts.Filename = "style.css"
	}
	opts.Logger = zaptest.NewLogger(t)
	sheet, err := css.ParseStyleSheet(code, opts)
	if err != nil {
		t.Fatalf("ParseStyleSheet(%q) failed: %v", code, err)
	}
	return sheet
}

func TestParseStyleSheet_RuleKinds(t *testing.T) {
	code := `@charset "utf-8";
@import url("base.css") screen;
.a, .b > p { color: red; margin: 0 !important }
@media (min-width: 10px) { .c { display: none } }
@font-face { font-family: x; src: url(x.woff) }
@keyframes spin { from { opacity: 0 } to { opacity: 1 } }
@supports (display: grid) { .d { display: grid } }
@layer base;
@page { margin: 1in }
`
	sheet := parse(t, code, css.ParserOptions{})
	if len(sheet.Rules) != 8 {
		t.Fatalf("expected 8 rules, got %d", len(sheet.Rules))
	}

	imp, ok := sheet.Rules[0].(*ast.ImportRule)
	if !ok {
		t.Fatalf("rule 0: expected *ast.ImportRule, got %T", sheet.Rules[0])
	}
	if imp.URL != "base.css" {
		t.Errorf("import url = %q, want %q", imp.URL, "base.css")
	}
	if got := ast.TokensString(imp.Conditions); got != "screen" {
		t.Errorf("import conditions = %q, want %q", got, "screen")
	}
	if imp.Loc.Line != 1 || imp.Loc.Column != 1 {
		t.Errorf("import location = %+v, want line 1 column 1", imp.Loc)
	}

	style, ok := sheet.Rules[1].(*ast.StyleRule)
	if !ok {
		t.Fatalf("rule 1: expected *ast.StyleRule, got %T", sheet.Rules[1])
	}
	if got := ast.SelectorsString(style.Selectors); got != ".a,.b>p" {
		t.Errorf("selectors = %q, want %q", got, ".a,.b>p")
	}
	if n := len(style.Declarations.Declarations); n != 1 {
		t.Fatalf("expected 1 normal declaration, got %d", n)
	}
	if d := style.Declarations.Declarations[0]; d.Name != "color" || ast.TokensString(d.Value) != "red" {
		t.Errorf("declaration = %s: %s, want color: red", d.Name, ast.TokensString(d.Value))
	}
	if n := len(style.Declarations.ImportantDeclarations); n != 1 {
		t.Fatalf("expected 1 important declaration, got %d", n)
	}
	if d := style.Declarations.ImportantDeclarations[0]; d.Name != "margin" || !d.Important || ast.TokensString(d.Value) != "0" {
		t.Errorf("important declaration = %+v", d)
	}

	if _, ok := sheet.Rules[2].(*ast.MediaRule); !ok {
		t.Errorf("rule 2: expected *ast.MediaRule, got %T", sheet.Rules[2])
	}
	if ff, ok := sheet.Rules[3].(*ast.FontFaceRule); !ok || ff.Declarations.Len() != 2 {
		t.Errorf("rule 3: expected @font-face with 2 declarations, got %#v", sheet.Rules[3])
	}
	kf, ok := sheet.Rules[4].(*ast.KeyframesRule)
	if !ok {
		t.Fatalf("rule 4: expected *ast.KeyframesRule, got %T", sheet.Rules[4])
	}
	if kf.Name != "spin" || len(kf.Keyframes) != 2 || kf.Keyframes[0].Selectors[0] != "from" {
		t.Errorf("keyframes = %+v", kf)
	}
	if g, ok := sheet.Rules[5].(*ast.GroupingRule); !ok || g.Name != "supports" || len(g.Rules) != 1 {
		t.Errorf("rule 5: expected @supports with one rule, got %#v", sheet.Rules[5])
	}
	if u, ok := sheet.Rules[6].(*ast.UnknownAtRule); !ok || u.Name != "layer" || u.HasBlock {
		t.Errorf("rule 6: expected @layer statement, got %#v", sheet.Rules[6])
	}
	if u, ok := sheet.Rules[7].(*ast.UnknownAtRule); !ok || u.Name != "page" || !u.HasBlock {
		t.Errorf("rule 7: expected @page with block, got %#v", sheet.Rules[7])
	}
}

func TestParseStyleSheet_Errors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
		line uint32
	}{
		{name: "import after rule", code: ".a{color:red}\n@import \"x.css\";", want: css.ErrUnexpectedImportRule, line: 1},
		{name: "bad selector", code: ".a..b{color:red}", want: css.ErrInvalidSelector},
		{name: "missing colon", code: ".a{color:red}\n.b{color}", want: css.ErrInvalidDeclaration, line: 1},
		{name: "empty value", code: ".a{color:}", want: css.ErrInvalidDeclaration},
		{name: "media without block", code: "@media screen;", want: css.ErrInvalidAtRulePrelude},
		{name: "unterminated rule", code: ".a", want: css.ErrUnexpectedEOF},
		{name: "keyframes without name", code: "@keyframes {}", want: css.ErrInvalidAtRulePrelude},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := css.ParseStyleSheet(tt.code, css.ParserOptions{Filename: "broken.css", Logger: zaptest.NewLogger(t)})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var cssErr *css.Error
			if !errors.As(err, &cssErr) || cssErr.Loc == nil {
				t.Fatalf("expected *css.Error with location, got %#v", err)
			}
			if cssErr.Loc.Filename != "broken.css" {
				t.Errorf("filename = %q, want %q", cssErr.Loc.Filename, "broken.css")
			}
			if cssErr.Loc.Line != tt.line {
				t.Errorf("line = %d, want %d", cssErr.Loc.Line, tt.line)
			}
		})
	}
}

func TestParseStyleSheet_ErrorRecovery(t *testing.T) {
	code := ".a{color:red}\n.b..c{color:blue}\n.d{color;width:1px}"
	sheet := parse(t, code, css.ParserOptions{ErrorRecovery: true})

	if len(sheet.Rules) != 2 {
		t.Fatalf("expected 2 rules after recovery, got %d", len(sheet.Rules))
	}
	d := sheet.Rules[1].(*ast.StyleRule)
	if d.Declarations.Len() != 1 || d.Declarations.Declarations[0].Name != "width" {
		t.Errorf("expected only width to survive, got %s", d.Declarations.String())
	}

	warnings := sheet.Warnings()
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d: %v", len(warnings), warnings)
	}
	if !errors.Is(warnings[0], css.ErrInvalidSelector) {
		t.Errorf("warning 0 = %v, want invalid selector", warnings[0])
	}
	if !errors.Is(warnings[1], css.ErrInvalidDeclaration) {
		t.Errorf("warning 1 = %v, want invalid declaration", warnings[1])
	}
}

func TestParseStyleSheet_SourceMapURL(t *testing.T) {
	const url = "data:application/json;base64,eyJ2ZXJzaW9uIjozLCJzb3VyY2VzIjpbImEuc2NzcyJdLCJuYW1lcyI6W10sIm1hcHBpbmdzIjoiQUFBQSJ9"
	sheet := parse(t, ".a{color:red}\n/*# sourceMappingURL=old.map */\n/*# sourceMappingURL="+url+" */\n", css.ParserOptions{})

	got, ok := sheet.SourceMapURL(0)
	if !ok || got != url {
		t.Fatalf("SourceMapURL(0) = %q, %v", got, ok)
	}
	if _, ok := sheet.SourceMapURL(1); ok {
		t.Error("SourceMapURL(1) should not exist")
	}

	sm, err := sheet.SourceMap(0)
	if err != nil {
		t.Fatalf("SourceMap(0) failed: %v", err)
	}
	if sources := sm.Sources(); len(sources) != 1 || sources[0] != "a.scss" {
		t.Errorf("sources = %v", sources)
	}
	if n := len(sm.Mappings()); n != 1 {
		t.Errorf("expected 1 mapping, got %d", n)
	}

	plain := parse(t, ".a{color:red}", css.ParserOptions{})
	if sm, err := plain.SourceMap(0); sm != nil || err != nil {
		t.Errorf("SourceMap(0) without comment = %v, %v", sm, err)
	}
}

func TestParseStyleSheet_Composes(t *testing.T) {
	code := `.a { composes: b c from "./x.css" } .d { composes: e from global } .f { composes: g }`

	sheet := parse(t, code, css.ParserOptions{CSSModules: &modules.Config{}})
	tests := []struct {
		names []string
		from  ast.ComposesFrom
	}{
		{names: []string{"b", "c"}, from: ast.ComposesFromFile{Specifier: "./x.css"}},
		{names: []string{"e"}, from: ast.ComposesFromGlobal{}},
		{names: []string{"g"}, from: nil},
	}
	for i, tt := range tests {
		rule := sheet.Rules[i].(*ast.StyleRule)
		c := rule.Declarations.Declarations[0].Composes
		if c == nil {
			t.Fatalf("rule %d: composes not parsed", i)
		}
		if len(c.Names) != len(tt.names) {
			t.Fatalf("rule %d: names = %v, want %v", i, c.Names, tt.names)
		}
		for j := range c.Names {
			if c.Names[j] != tt.names[j] {
				t.Errorf("rule %d: names = %v, want %v", i, c.Names, tt.names)
			}
		}
		if c.From != tt.from {
			t.Errorf("rule %d: from = %#v, want %#v", i, c.From, tt.from)
		}
	}

	plain := parse(t, code, css.ParserOptions{})
	d := plain.Rules[0].(*ast.StyleRule).Declarations.Declarations[0]
	if d.Composes != nil || d.Name != "composes" {
		t.Errorf("without css modules composes must stay a plain declaration, got %+v", d)
	}

	if _, err := css.ParseStyleSheet(".a{composes: 1px}", css.ParserOptions{CSSModules: &modules.Config{}}); !errors.Is(err, css.ErrInvalidDeclaration) {
		t.Errorf("expected invalid declaration for bad composes, got %v", err)
	}
}

func TestParseStyleSheet_CustomMedia(t *testing.T) {
	code := "@custom-media --small (max-width: 30em);"

	sheet := parse(t, code, css.ParserOptions{CustomMedia: true})
	cm, ok := sheet.Rules[0].(*ast.CustomMediaRule)
	if !ok {
		t.Fatalf("expected *ast.CustomMediaRule, got %T", sheet.Rules[0])
	}
	if cm.Name != "--small" || ast.TokensString(cm.Query) != "(max-width: 30em)" {
		t.Errorf("custom media = %s %q", cm.Name, ast.TokensString(cm.Query))
	}

	sheet = parse(t, code, css.ParserOptions{})
	if _, ok := sheet.Rules[0].(*ast.UnknownAtRule); !ok {
		t.Errorf("without custom media support expected *ast.UnknownAtRule, got %T", sheet.Rules[0])
	}
}

func TestParseStyleSheet_Nesting(t *testing.T) {
	sheet := parse(t, ".a { color: red; .b & { color: blue } &:hover { color: green } span { color: black } }", css.ParserOptions{})

	rule := sheet.Rules[0].(*ast.StyleRule)
	if rule.Declarations.Len() != 1 {
		t.Errorf("expected 1 declaration, got %d", rule.Declarations.Len())
	}
	want := []string{".b &", "&:hover", "span"}
	if len(rule.Rules) != len(want) {
		t.Fatalf("expected %d nested rules, got %d", len(want), len(rule.Rules))
	}
	for i, w := range want {
		nested := rule.Rules[i].(*ast.StyleRule)
		if got := ast.SelectorsString(nested.Selectors); got != w {
			t.Errorf("nested rule %d selectors = %q, want %q", i, got, w)
		}
	}
}

func TestParseStyleSheet_NestedGroupRules(t *testing.T) {
	code := ".a { @media (min-width: 1px) { color: red; .b { color: blue } } :hover { color: green } #x { color: black } @container (width > 1px) { .c { color: red } } }"
	sheet := parse(t, code, css.ParserOptions{})

	rule := sheet.Rules[0].(*ast.StyleRule)
	if len(rule.Rules) != 4 {
		t.Fatalf("expected 4 nested rules, got %d", len(rule.Rules))
	}
	media, ok := rule.Rules[0].(*ast.MediaRule)
	if !ok {
		t.Fatalf("nested rule 0: expected *ast.MediaRule, got %T", rule.Rules[0])
	}
	if media.Declarations.Len() != 1 || media.Declarations.Declarations[0].Name != "color" {
		t.Errorf("media declarations = %s", media.Declarations.String())
	}
	if len(media.Rules) != 1 || ast.SelectorsString(media.Rules[0].(*ast.StyleRule).Selectors) != ".b" {
		t.Errorf("media rules = %#v", media.Rules)
	}
	for i, want := range []string{":hover", "#x"} {
		nested, ok := rule.Rules[i+1].(*ast.StyleRule)
		if !ok {
			t.Fatalf("nested rule %d: expected *ast.StyleRule, got %T", i+1, rule.Rules[i+1])
		}
		if got := ast.SelectorsString(nested.Selectors); got != want {
			t.Errorf("nested rule %d selectors = %q, want %q", i+1, got, want)
		}
		if nested.Declarations.Len() != 1 {
			t.Errorf("nested rule %d: expected 1 declaration, got %d", i+1, nested.Declarations.Len())
		}
	}
	if g, ok := rule.Rules[3].(*ast.GroupingRule); !ok || g.Name != "container" || len(g.Rules) != 1 {
		t.Errorf("nested rule 3: expected @container with one rule, got %#v", rule.Rules[3])
	}

	sheet = parse(t, "@container (width > 1px) { .c { color: red } @media print { .d { color: red } } }", css.ParserOptions{})
	if g, ok := sheet.Rules[0].(*ast.GroupingRule); !ok || len(g.Rules) != 2 {
		t.Errorf("expected @container with two rules, got %#v", sheet.Rules[0])
	}
}

func TestParseStyleSheet_UnbalancedValue(t *testing.T) {
	for _, code := range []string{".a{--x:var(}", ".a{color:var(--x}", ".a{width:calc(1px + (2px)}"} {
		_, err := css.ParseStyleSheet(code, css.ParserOptions{Logger: zaptest.NewLogger(t)})
		if !errors.Is(err, css.ErrInvalidDeclaration) {
			t.Errorf("ParseStyleSheet(%q) = %v, want invalid declaration", code, err)
		}
	}

	sheet := parse(t, ".a{color:red;--x:var(}", css.ParserOptions{ErrorRecovery: true})
	if n := len(sheet.Warnings()); n != 1 {
		t.Errorf("expected 1 warning, got %d", n)
	}
	res, err := sheet.ToCSS(css.PrinterOptions{Minify: true})
	if err != nil {
		t.Fatalf("ToCSS failed: %v", err)
	}
	if res.Code != ".a{color:red}\n" {
		t.Errorf("code = %q", res.Code)
	}
}

func TestParseStyleSheet_Selectors(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "a  b", want: "a b"},
		{in: "a>b ~ c + d", want: "a>b~c+d"},
		{in: "#id.cls[href^='x']", want: "#id.cls[href^='x']"},
		{in: "svg|rect", want: "svg|rect"},
		{in: "*", want: "*"},
		{in: "p::before", want: "p::before"},
		{in: "li:nth-child(2n + 1)", want: "li:nth-child(2n + 1)"},
		{in: ":is(.a, .b) .c", want: ":is(.a,.b) .c"},
		{in: "a:has(> img)", want: "a:has(>img)"},
		{in: "A:HOVER", want: "A:hover"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sheet := parse(t, tt.in+"{color:red}", css.ParserOptions{})
			rule := sheet.Rules[0].(*ast.StyleRule)
			if got := ast.SelectorsString(rule.Selectors); got != tt.want {
				t.Errorf("selector = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseStyleSheet_Locations(t *testing.T) {
	sheet := parse(t, ".a{color:red}\n\n  .b{\n    color:blue}", css.ParserOptions{SourceIndex: 3})

	b := sheet.Rules[1].(*ast.StyleRule)
	if b.Loc != (ast.Location{SourceIndex: 3, Line: 2, Column: 3}) {
		t.Errorf("rule location = %+v", b.Loc)
	}
	d := b.Declarations.Declarations[0]
	if d.Loc != (ast.Location{SourceIndex: 3, Line: 3, Column: 5}) {
		t.Errorf("declaration location = %+v", d.Loc)
	}
}

func TestNewStyleSheet(t *testing.T) {
	rules := []ast.Rule{&ast.StyleRule{
		Selectors:    []ast.Selector{{Components: []ast.Component{ast.ClassSelector{Name: "x"}}}},
		Declarations: ast.DeclarationBlock{Declarations: []ast.Declaration{{Name: "color", Value: []ast.Token{{Type: tcss.IdentToken, Data: "red"}}}}},
	}}
	sheet := css.NewStyleSheet([]string{"a.css", "b.css"}, rules, css.ParserOptions{})
	if got := sheet.Sources(); len(got) != 2 || got[1] != "b.css" {
		t.Errorf("Sources() = %v", got)
	}
	if _, ok := sheet.SourceMapURL(1); ok {
		t.Error("expected no source map url")
	}
	res, err := sheet.ToCSS(css.PrinterOptions{Minify: true})
	if err != nil {
		t.Fatalf("ToCSS failed: %v", err)
	}
	if res.Code != ".x{color:red}\n" {
		t.Errorf("code = %q", res.Code)
	}
}
