package css

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tdewolff/parse/v2/css"

	"csspipe/css/ast"
)

// parseSelectorList parses a comma separated selector list. Relative
// selectors (starting with a combinator) are accepted only when relative is
// set, i.e. for nested style rules and :has().
func parseSelectorList(tokens []ast.Token, relative bool) ([]ast.Selector, error) {
	tokens = ast.TrimSpace(tokens)
	if len(tokens) == 0 {
		return nil, errors.New("empty selector list")
	}
	parts := splitTopLevel(tokens, isComma)
	list := make([]ast.Selector, 0, len(parts))
	for _, part := range parts {
		sel, err := parseSelector(ast.TrimSpace(part), relative)
		if err != nil {
			return nil, err
		}
		list = append(list, sel)
	}
	return list, nil
}

func combinatorKind(t ast.Token) (ast.CombinatorKind, bool) {
	switch {
	case t.IsDelim('>'):
		return ast.Child, true
	case t.IsDelim('+'):
		return ast.NextSibling, true
	case t.IsDelim('~'):
		return ast.SubsequentSibling, true
	}
	return 0, false
}

func endsWithCombinator(sel *ast.Selector) bool {
	if len(sel.Components) == 0 {
		return false
	}
	_, ok := sel.Components[len(sel.Components)-1].(ast.Combinator)
	return ok
}

// matchingClose returns the index of the token closing the block opened at
// tokens[open], or -1.
func matchingClose(tokens []ast.Token, open int) int {
	var stack []css.TokenType
	for i := open; i < len(tokens); i++ {
		t := tokens[i]
		if c := closing(t.Type); c != css.ErrorToken {
			stack = append(stack, c)
			continue
		}
		if len(stack) > 0 && t.Type == stack[len(stack)-1] {
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

func parseSelector(tokens []ast.Token, relative bool) (ast.Selector, error) {
	var (
		sel     ast.Selector
		pending bool // whitespace seen since the last component
	)
	if len(tokens) == 0 {
		return sel, errors.New("empty selector")
	}
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.IsWhitespace() {
			pending = true
			continue
		}
		if kind, ok := combinatorKind(t); ok {
			if len(sel.Components) == 0 && !relative {
				return sel, fmt.Errorf("selector cannot start with %q", t.Data)
			}
			if endsWithCombinator(&sel) {
				return sel, fmt.Errorf("unexpected combinator %q", t.Data)
			}
			sel.Components = append(sel.Components, ast.Combinator{Kind: kind})
			pending = false
			continue
		}
		if pending && len(sel.Components) > 0 && !endsWithCombinator(&sel) {
			sel.Components = append(sel.Components, ast.Combinator{Kind: ast.Descendant})
		}
		pending = false

		switch {
		case t.IsDelim('.'):
			if i+1 >= len(tokens) || tokens[i+1].Type != css.IdentToken {
				return sel, errors.New("expected class name after '.'")
			}
			i++
			sel.Components = append(sel.Components, ast.ClassSelector{Name: tokens[i].Data})
		case t.Type == css.HashToken:
			sel.Components = append(sel.Components, ast.IDSelector{Name: t.Data[1:]})
		case t.Type == css.IdentToken, t.IsDelim('*'), t.IsDelim('|'):
			name := t.Data
			// namespace prefix: ns|name, *|name, |name
			if i+2 < len(tokens) && tokens[i+1].IsDelim('|') && (tokens[i+2].Type == css.IdentToken || tokens[i+2].IsDelim('*')) {
				name += "|" + tokens[i+2].Data
				i += 2
			} else if t.IsDelim('|') {
				if i+1 >= len(tokens) || (tokens[i+1].Type != css.IdentToken && !tokens[i+1].IsDelim('*')) {
					return sel, errors.New("expected name after '|'")
				}
				name += tokens[i+1].Data
				i++
			}
			if name == "*" {
				sel.Components = append(sel.Components, ast.UniversalSelector{})
			} else {
				sel.Components = append(sel.Components, ast.TypeSelector{Name: name})
			}
		case t.IsDelim('&'):
			sel.Components = append(sel.Components, ast.NestingSelector{})
		case t.Type == css.LeftBracketToken:
			end := matchingClose(tokens, i)
			if end < 0 {
				return sel, errors.New("unterminated attribute selector")
			}
			inner := ast.TrimSpace(tokens[i+1 : end])
			if len(inner) == 0 {
				return sel, errors.New("empty attribute selector")
			}
			sel.Components = append(sel.Components, ast.AttributeSelector{Raw: ast.TokensString(inner)})
			i = end
		case t.Type == css.ColonToken:
			element := false
			if i+1 < len(tokens) && tokens[i+1].Type == css.ColonToken {
				element = true
				i++
			}
			i++
			if i >= len(tokens) {
				return sel, errors.New("expected pseudo-class name")
			}
			c, end, err := parsePseudo(tokens, i, element)
			if err != nil {
				return sel, err
			}
			sel.Components = append(sel.Components, c)
			i = end
		default:
			return sel, fmt.Errorf("unexpected %q", t.Data)
		}
	}
	if endsWithCombinator(&sel) {
		return sel, errors.New("selector cannot end with a combinator")
	}
	return sel, nil
}

// parsePseudo parses the pseudo-class or pseudo-element name at tokens[i]
// and returns the component and the index of its last token.
func parsePseudo(tokens []ast.Token, i int, element bool) (ast.Component, int, error) {
	t := tokens[i]
	switch t.Type {
	case css.IdentToken:
		name := strings.ToLower(t.Data)
		if element {
			return ast.PseudoElement{Name: name}, i, nil
		}
		return ast.PseudoClass{Name: name}, i, nil
	case css.FunctionToken:
		name := strings.ToLower(strings.TrimSuffix(t.Data, "("))
		end := matchingClose(tokens, i)
		if end < 0 {
			return nil, 0, fmt.Errorf("unterminated :%s()", name)
		}
		args := ast.TrimSpace(tokens[i+1 : end])
		if element {
			return ast.PseudoElement{Name: name, HasArgs: true, Args: ast.CloneTokens(args)}, end, nil
		}
		if ast.SelectorPseudoClasses[name] {
			list, err := parseSelectorList(args, name == "has")
			if err != nil {
				return nil, 0, fmt.Errorf(":%s(): %w", name, err)
			}
			return ast.PseudoClass{Name: name, HasArgs: true, Selectors: list}, end, nil
		}
		return ast.PseudoClass{Name: name, HasArgs: true, Args: ast.CloneTokens(args)}, end, nil
	}
	return nil, 0, fmt.Errorf("unexpected %q after ':'", t.Data)
}
