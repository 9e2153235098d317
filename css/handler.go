package css

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"

	"csspipe/css/ast"
	"csspipe/css/targets"
)

// DeclarationContext tells which kind of block declarations are minified in.
type DeclarationContext int

const (
	ContextNone DeclarationContext = iota
	ContextStyleRule
	ContextKeyframes
	ContextStyleAttribute
)

func (c DeclarationContext) String() string {
	switch c {
	case ContextStyleRule:
		return "style-rule"
	case ContextKeyframes:
		return "keyframes"
	case ContextStyleAttribute:
		return "style-attribute"
	}
	return "none"
}

// handlerContext is the state shared by declaration handlers during one
// minify pass.
type handlerContext struct {
	targets       *targets.Browsers
	unusedSymbols map[string]struct{}
	context       DeclarationContext
	depth         int // style rule nesting
}

// declarationHandler collects declarations of one block. A later
// declaration of a property replaces an earlier one unless either value may
// act as a fallback for the other.
type declarationHandler struct {
	decls []ast.Declaration
	last  map[string]int
}

func newDeclarationHandler() *declarationHandler {
	return &declarationHandler{last: make(map[string]int)}
}

func (h *declarationHandler) handle(d ast.Declaration, ctx *handlerContext) {
	if d.Composes != nil {
		h.decls = append(h.decls, d)
		return
	}
	d.Value = minifyValue(d.Name, d.Value, ctx.targets)
	if i, ok := h.last[d.Name]; ok && !isFallbackSensitive(&h.decls[i]) && !isFallbackSensitive(&d) {
		// removed, filtered out by finalize
		h.decls[i] = ast.Declaration{}
	}
	h.last[d.Name] = len(h.decls)
	h.decls = append(h.decls, d)
}

// finalize returns the surviving declarations in order and resets the
// handler for the next block.
func (h *declarationHandler) finalize() []ast.Declaration {
	var out []ast.Declaration
	for _, d := range h.decls {
		if d.Name != "" {
			out = append(out, d)
		}
	}
	h.decls = h.decls[:0]
	clear(h.last)
	return out
}

// isFallbackSensitive reports whether a value may be unsupported by some
// browsers, so that an earlier declaration of the same property has to stay
// as a fallback: functions, url() and vendor prefixed keywords.
func isFallbackSensitive(d *ast.Declaration) bool {
	if strings.HasPrefix(d.Name, "-") && !d.IsCustomProperty() {
		return true
	}
	for _, t := range d.Value {
		switch t.Type {
		case css.FunctionToken, css.URLToken, css.BadURLToken:
			return true
		case css.IdentToken:
			if len(t.Data) > 1 && t.Data[0] == '-' && t.Data[1] != '-' {
				return true
			}
		}
	}
	return false
}

// minifyDeclarations runs a block through the handlers. Important
// declarations shadow normal ones of the same property and are dropped
// altogether inside keyframes.
func minifyDeclarations(block *ast.DeclarationBlock, handler, important *declarationHandler, ctx *handlerContext) {
	if ctx.context != ContextKeyframes {
		for _, d := range block.ImportantDeclarations {
			important.handle(d, ctx)
		}
	}
	for _, d := range block.Declarations {
		handler.handle(d, ctx)
	}
	imp := important.finalize()
	normal := handler.finalize()
	if len(imp) > 0 {
		shadowed := make(map[string]bool, len(imp))
		for _, d := range imp {
			if d.Composes == nil {
				shadowed[d.Name] = true
			}
		}
		kept := normal[:0]
		for _, d := range normal {
			if d.Composes != nil || !shadowed[d.Name] {
				kept = append(kept, d)
			}
		}
		normal = kept
	}
	block.Declarations, block.ImportantDeclarations = normal, imp
}
