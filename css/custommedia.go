package css

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"csspipe/css/ast"
)

// customMediaRef is a "(--name)" feature inside a media query, start and end
// index the parentheses.
type customMediaRef struct {
	name       string
	start, end int
}

func findCustomMediaRefs(query []ast.Token) []customMediaRef {
	var refs []customMediaRef
	for i := 0; i < len(query); i++ {
		if query[i].Type != css.LeftParenthesisToken {
			continue
		}
		j := skipSpaceAt(query, i+1)
		if j >= len(query) || query[j].Type != css.IdentToken || !strings.HasPrefix(query[j].Data, "--") {
			continue
		}
		k := skipSpaceAt(query, j+1)
		if k < len(query) && query[k].Type == css.RightParenthesisToken {
			refs = append(refs, customMediaRef{name: query[j].Data, start: i, end: k})
			i = k
		}
	}
	return refs
}

func skipSpaceAt(tokens []ast.Token, i int) int {
	for i < len(tokens) && tokens[i].IsWhitespace() {
		i++
	}
	return i
}

// topLevelKeyword reports whether any of the identifiers appears outside of
// parentheses.
func topLevelKeyword(query []ast.Token, keywords ...string) bool {
	depth := 0
	for _, t := range query {
		switch t.Type {
		case css.LeftParenthesisToken, css.FunctionToken:
			depth++
		case css.RightParenthesisToken:
			depth--
		case css.IdentToken:
			if depth > 0 {
				continue
			}
			for _, k := range keywords {
				if t.IsIdent(k) {
					return true
				}
			}
		}
	}
	return false
}

func hasTopLevelComma(query []ast.Token) bool {
	return len(splitTopLevel(query, isComma)) > 1
}

// resolveCustomMedia replaces references to custom media queries with their
// definitions. Only plain conjunctions can be expanded in place.
func (ctx *minifyContext) resolveCustomMedia(query []ast.Token, loc ast.Location) ([]ast.Token, error) {
	return ctx.expandMedia(query, loc, make(map[string]bool))
}

func (ctx *minifyContext) expandMedia(query []ast.Token, loc ast.Location, seen map[string]bool) ([]ast.Token, error) {
	refs := findCustomMediaRefs(query)
	if len(refs) == 0 {
		return query, nil
	}
	filename := ctx.filename(loc.SourceIndex)
	whole := len(refs) == 1 && refs[0].start == 0 && refs[0].end == len(query)-1
	if !whole && topLevelKeyword(query, "not", "or", "only") {
		return nil, newError(ErrUnsupportedCustomMediaBooleanLogic, filename, loc, "%s", ast.TokensString(query))
	}

	out := make([]ast.Token, 0, len(query))
	prev := 0
	for _, ref := range refs {
		rule, ok := ctx.customMedia[ref.name]
		if !ok {
			return nil, newError(ErrCustomMediaNotDefined, filename, loc, "%s", ref.name)
		}
		if seen[ref.name] {
			return nil, newError(ErrCircularCustomMedia, filename, loc, "%s", ref.name)
		}
		seen[ref.name] = true
		expanded, err := ctx.expandMedia(rule.Query, rule.Loc, seen)
		delete(seen, ref.name)
		if err != nil {
			return nil, err
		}
		if !whole {
			if hasTopLevelComma(expanded) || topLevelKeyword(expanded, "not", "or", "only") {
				return nil, newError(ErrUnsupportedCustomMediaBooleanLogic, filename, loc, "%s", ref.name)
			}
			// a media type is only valid at the start of a query
			if ref.start > 0 && len(expanded) > 0 && expanded[0].Type == css.IdentToken {
				return nil, newError(ErrUnsupportedCustomMediaBooleanLogic, filename, loc, "%s", ref.name)
			}
		}
		out = append(out, query[prev:ref.start]...)
		out = append(out, expanded...)
		prev = ref.end + 1
	}
	out = append(out, query[prev:]...)
	ctx.log.Debug("Resolved custom media", zap.String("query", ast.TokensString(out)))
	return out, nil
}
