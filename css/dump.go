package css

import (
	"csspipe/css/ast"
	"csspipe/utils/debug"
)

// Dump renders the rule tree as an indented outline for debug reports.
func (s *StyleSheet) Dump() string {
	tw := debug.NewTreeWriter()
	tw.List(0, "sources", s.sources)
	for i := range s.sourceMapURLs {
		if url, ok := s.SourceMapURL(i); ok {
			tw.TextBlock(0, "sourceMappingURL", url)
		}
	}
	dumpRules(tw, 0, s.Rules)
	return tw.String()
}

// Dump renders the attribute declarations as an indented outline.
func (a *StyleAttribute) Dump() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "StyleAttribute")
	dumpDeclarations(tw, 1, a.Declarations)
	return tw.String()
}

func dumpRules(tw *debug.TreeWriter, depth int, rules []ast.Rule) {
	for _, rule := range rules {
		loc := rule.Location()
		switch r := rule.(type) {
		case *ast.StyleRule:
			tw.Line(depth, "StyleRule @%d:%d", loc.Line+1, loc.Column)
			selectors := make([]string, 0, len(r.Selectors))
			for _, sel := range r.Selectors {
				selectors = append(selectors, sel.String())
			}
			tw.List(depth+1, "selectors", selectors)
			dumpDeclarations(tw, depth+1, r.Declarations)
			dumpRules(tw, depth+1, r.Rules)
		case *ast.MediaRule:
			tw.Line(depth, "MediaRule @%d:%d", loc.Line+1, loc.Column)
			tw.TextBlock(depth+1, "query", ast.TokensString(r.Query))
			dumpDeclarations(tw, depth+1, r.Declarations)
			dumpRules(tw, depth+1, r.Rules)
		case *ast.GroupingRule:
			tw.Line(depth, "GroupingRule %s @%d:%d", r.Name, loc.Line+1, loc.Column)
			tw.TextBlock(depth+1, "prelude", ast.TokensString(r.Prelude))
			dumpDeclarations(tw, depth+1, r.Declarations)
			dumpRules(tw, depth+1, r.Rules)
		case *ast.CustomMediaRule:
			tw.Line(depth, "CustomMediaRule %s @%d:%d", r.Name, loc.Line+1, loc.Column)
			tw.TextBlock(depth+1, "query", ast.TokensString(r.Query))
		case *ast.ImportRule:
			tw.Line(depth, "ImportRule @%d:%d", loc.Line+1, loc.Column)
			tw.TextBlock(depth+1, "url", r.URL)
			tw.TextBlock(depth+1, "conditions", ast.TokensString(r.Conditions))
		case *ast.NamespaceRule:
			tw.Line(depth, "NamespaceRule %s @%d:%d", r.Prefix, loc.Line+1, loc.Column)
			tw.TextBlock(depth+1, "url", r.URL)
		case *ast.KeyframesRule:
			tw.Line(depth, "KeyframesRule %s%s @%d:%d", r.Vendor, r.Name, loc.Line+1, loc.Column)
			for _, kf := range r.Keyframes {
				tw.List(depth+1, "keyframe", kf.Selectors)
				dumpDeclarations(tw, depth+2, kf.Declarations)
			}
		case *ast.FontFaceRule:
			tw.Line(depth, "FontFaceRule @%d:%d", loc.Line+1, loc.Column)
			dumpDeclarations(tw, depth+1, r.Declarations)
		case *ast.UnknownAtRule:
			tw.Line(depth, "UnknownAtRule %s @%d:%d", r.Name, loc.Line+1, loc.Column)
			tw.TextBlock(depth+1, "prelude", ast.TokensString(r.Prelude))
			if r.HasBlock {
				tw.TextBlock(depth+1, "block", ast.TokensString(r.Block))
			}
		}
	}
}

func dumpDeclarations(tw *debug.TreeWriter, depth int, block ast.DeclarationBlock) {
	for _, list := range [][]ast.Declaration{block.Declarations, block.ImportantDeclarations} {
		for _, d := range list {
			value := ast.TokensString(d.Value)
			if d.Composes != nil {
				value = d.Composes.String()
			}
			if d.Important {
				value += " !important"
			}
			tw.TextBlock(depth, d.Name, value)
		}
	}
}
