package css

import (
	"slices"
	"strings"

	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"csspipe/css/ast"
	"csspipe/css/targets"
)

// MinifyOptions controls the minify pass.
type MinifyOptions struct {
	// Targets are the browsers the output has to work in, nil means no
	// constraints.
	Targets *targets.Browsers
	// UnusedSymbols are class names, ids and keyframes names whose rules
	// are removed.
	UnusedSymbols map[string]struct{}
}

type minifyContext struct {
	targets          *targets.Browsers
	handler          *declarationHandler
	importantHandler *declarationHandler
	handlerContext   *handlerContext
	unusedSymbols    map[string]struct{}
	// customMedia is set when @custom-media has to be resolved
	customMedia map[string]*ast.CustomMediaRule
	sources     []string
	log         *zap.Logger
}

func newMinifyContext(opts *MinifyOptions, sources []string, log *zap.Logger) *minifyContext {
	return &minifyContext{
		targets:          opts.Targets,
		handler:          newDeclarationHandler(),
		importantHandler: newDeclarationHandler(),
		handlerContext: &handlerContext{
			targets:       opts.Targets,
			unusedSymbols: opts.UnusedSymbols,
		},
		unusedSymbols: opts.UnusedSymbols,
		sources:       sources,
		log:           log,
	}
}

func (ctx *minifyContext) filename(sourceIndex uint32) string {
	if int(sourceIndex) < len(ctx.sources) {
		return ctx.sources[sourceIndex]
	}
	return ""
}

func (ctx *minifyContext) minifyBlock(block *ast.DeclarationBlock, context DeclarationContext) {
	saved := ctx.handlerContext.context
	ctx.handlerContext.context = context
	minifyDeclarations(block, ctx.handler, ctx.importantHandler, ctx.handlerContext)
	ctx.handlerContext.context = saved
}

// minifyRules returns a new list, rules is only mutated through the rules
// it holds.
func (ctx *minifyContext) minifyRules(rules []ast.Rule) ([]ast.Rule, error) {
	out := make([]ast.Rule, 0, len(rules))
	for _, rule := range rules {
		keep, err := ctx.minifyRule(rule)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, rule)
		}
	}
	return ctx.mergeStyleRules(out), nil
}

// minifyRule minifies rule in place and reports whether it is still needed.
func (ctx *minifyContext) minifyRule(rule ast.Rule) (bool, error) {
	switch r := rule.(type) {
	case *ast.StyleRule:
		if len(ctx.unusedSymbols) > 0 {
			r.Selectors = slices.DeleteFunc(r.Selectors, ctx.isUnused)
			if len(r.Selectors) == 0 {
				return false, nil
			}
		}
		ctx.minifyBlock(&r.Declarations, ContextStyleRule)
		ctx.handlerContext.depth++
		rules, err := ctx.minifyRules(r.Rules)
		ctx.handlerContext.depth--
		if err != nil {
			return false, err
		}
		r.Rules = rules
		return !r.Declarations.IsEmpty() || len(r.Rules) > 0, nil

	case *ast.MediaRule:
		if ctx.customMedia != nil {
			query, err := ctx.resolveCustomMedia(r.Query, r.Loc)
			if err != nil {
				return false, err
			}
			r.Query = query
		}
		ctx.minifyBlock(&r.Declarations, ContextStyleRule)
		rules, err := ctx.minifyRules(r.Rules)
		if err != nil {
			return false, err
		}
		r.Rules = rules
		return !r.Declarations.IsEmpty() || len(r.Rules) > 0, nil

	case *ast.GroupingRule:
		ctx.minifyBlock(&r.Declarations, ContextStyleRule)
		rules, err := ctx.minifyRules(r.Rules)
		if err != nil {
			return false, err
		}
		r.Rules = rules
		// an empty @layer still establishes layer order
		return r.Name == "layer" || !r.Declarations.IsEmpty() || len(r.Rules) > 0, nil

	case *ast.CustomMediaRule:
		return ctx.customMedia == nil, nil

	case *ast.KeyframesRule:
		if _, unused := ctx.unusedSymbols[r.Name]; unused {
			return false, nil
		}
		for i := range r.Keyframes {
			kf := &r.Keyframes[i]
			for j, sel := range kf.Selectors {
				kf.Selectors[j] = minifyKeyframeSelector(sel)
			}
			ctx.minifyBlock(&kf.Declarations, ContextKeyframes)
		}
		return true, nil

	case *ast.FontFaceRule:
		ctx.minifyBlock(&r.Declarations, ContextNone)
		return true, nil
	}
	return true, nil
}

// isUnused reports whether sel can no longer match anything once unused
// symbols are removed: it requires an unused class or id, or an :is()-like
// pseudo-class whose every argument is unused. Names inside :not() and
// :has() are never counted.
func (ctx *minifyContext) isUnused(sel ast.Selector) bool {
	for _, c := range sel.Components {
		switch c := c.(type) {
		case ast.ClassSelector:
			if _, ok := ctx.unusedSymbols[c.Name]; ok {
				return true
			}
		case ast.IDSelector:
			if _, ok := ctx.unusedSymbols[c.Name]; ok {
				return true
			}
		case ast.PseudoClass:
			switch c.Name {
			case "is", "where", "matches", "any", "-webkit-any", "-moz-any":
				if len(c.Selectors) > 0 && !slices.ContainsFunc(c.Selectors, func(s ast.Selector) bool { return !ctx.isUnused(s) }) {
					return true
				}
			}
		}
	}
	return false
}

func minifyKeyframeSelector(sel string) string {
	switch s := strings.ToLower(sel); s {
	case "from":
		return "0%"
	case "to", "100%":
		return "to"
	default:
		if strings.HasSuffix(s, "%") {
			s = minifyNumber(css.PercentageToken, s, false)
			if s == "100%" {
				return "to"
			}
		}
		return s
	}
}

// mergeStyleRules merges adjacent style rules with equal selectors or equal
// declarations until nothing changes.
func (ctx *minifyContext) mergeStyleRules(rules []ast.Rule) []ast.Rule {
	for changed := true; changed; {
		changed = false
		for i := 0; i+1 < len(rules); i++ {
			a, ok := rules[i].(*ast.StyleRule)
			if !ok || !mergeable(a) {
				continue
			}
			b, ok := rules[i+1].(*ast.StyleRule)
			if !ok || !mergeable(b) {
				continue
			}
			switch {
			case ast.SelectorsString(a.Selectors) == ast.SelectorsString(b.Selectors):
				a.Declarations = ast.DeclarationBlock{
					Declarations:          append(slices.Clip(a.Declarations.Declarations), b.Declarations.Declarations...),
					ImportantDeclarations: append(slices.Clip(a.Declarations.ImportantDeclarations), b.Declarations.ImportantDeclarations...),
				}
				ctx.minifyBlock(&a.Declarations, ContextStyleRule)
			case a.Declarations.String() == b.Declarations.String() && !hasVendorPseudo(a.Selectors) && !hasVendorPseudo(b.Selectors):
				a.Selectors = append(slices.Clip(a.Selectors), b.Selectors...)
			default:
				continue
			}
			ctx.log.Debug("Merged style rules", zap.String("selectors", ast.SelectorsString(a.Selectors)))
			rules = slices.Delete(rules, i+1, i+2)
			changed = true
			i--
		}
	}
	return rules
}

func mergeable(r *ast.StyleRule) bool {
	return len(r.Rules) == 0 && !r.HasComposes()
}

// hasVendorPseudo reports vendor prefixed pseudo-classes and elements: a
// browser drops the whole selector list if it does not know one of them.
func hasVendorPseudo(list []ast.Selector) bool {
	for _, sel := range list {
		for _, c := range sel.Components {
			switch c := c.(type) {
			case ast.PseudoClass:
				if strings.HasPrefix(c.Name, "-") || hasVendorPseudo(c.Selectors) {
					return true
				}
			case ast.PseudoElement:
				if strings.HasPrefix(c.Name, "-") {
					return true
				}
			}
		}
	}
	return false
}
