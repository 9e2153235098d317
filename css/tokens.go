package css

import (
	"bytes"
	"slices"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"

	"csspipe/css/ast"
)

// source is the text being parsed with the offsets its lines start at.
type source struct {
	data  []byte
	index uint32
	lines []int
}

func newSource(data []byte, index uint32) *source {
	s := &source{data: data, index: index, lines: []int{0}}
	for i, c := range data {
		if c == '\n' {
			s.lines = append(s.lines, i+1)
		}
	}
	return s
}

// loc converts a byte offset into a location, columns count bytes from 1.
func (s *source) loc(off int) ast.Location {
	line, found := slices.BinarySearch(s.lines, off)
	if !found {
		line--
	}
	return ast.Location{SourceIndex: s.index, Line: uint32(line), Column: uint32(off-s.lines[line]) + 1}
}

// token is a lexer token with the offset it starts at.
type token struct {
	ast.Token
	off int
}

// tokens lexes data[start:end]. Comments are dropped and runs of whitespace
// collapse to one space token.
func (s *source) tokens(start, end int) []token {
	var (
		out          []token
		lastWasSpace bool
	)
	off := start
	lexer := css.NewLexer(parse.NewInput(bytes.NewReader(s.data[start:end])))
	for {
		tt, raw := lexer.Next()
		if tt == css.ErrorToken {
			return out
		}
		at := off
		off += len(raw)

		switch tt {
		case css.CommentToken:
			continue
		case css.WhitespaceToken:
			if !lastWasSpace {
				out = append(out, token{Token: ast.Space, off: at})
			}
			lastWasSpace = true
			continue
		case css.CustomPropertyNameToken:
			// "--name" is an ordinary identifier for the rest of the parser
			tt = css.IdentToken
		}
		lastWasSpace = false
		out = append(out, token{Token: ast.Token{Type: tt, Data: string(raw)}, off: at})
	}
}

func values(ts []token) []ast.Token {
	out := make([]ast.Token, len(ts))
	for i, t := range ts {
		out[i] = t.Token
	}
	return out
}

// trimLeading drops whitespace and stray semicolons the grammar parser
// passes over before a rule or declaration.
func trimLeading(ts []token) []token {
	for len(ts) > 0 && (ts[0].IsWhitespace() || ts[0].Type == css.SemicolonToken) {
		ts = ts[1:]
	}
	return ts
}

// prelude returns the tokens of a rule head without the ';', '{' or '}'
// ending it.
func prelude(ts []ast.Token) []ast.Token {
	ts = ast.TrimSpace(ts)
	if n := len(ts); n > 0 {
		switch ts[n-1].Type {
		case css.SemicolonToken, css.LeftBraceToken, css.RightBraceToken:
			ts = ast.TrimSpace(ts[:n-1])
		}
	}
	return ts
}

// terminated reports whether a statement ends with ';' or '}' rather than
// with the end of input.
func terminated(ts []token) bool {
	for i := len(ts) - 1; i >= 0; i-- {
		if !ts[i].IsWhitespace() {
			return ts[i].Type == css.SemicolonToken || ts[i].Type == css.RightBraceToken
		}
	}
	return false
}

func isClosing(tt css.TokenType) bool {
	return tt == css.RightBraceToken || tt == css.RightParenthesisToken || tt == css.RightBracketToken
}

// closing returns the token type which closes a block opened by tt, or
// ErrorToken when tt does not open a block.
func closing(tt css.TokenType) css.TokenType {
	switch tt {
	case css.LeftBraceToken:
		return css.RightBraceToken
	case css.LeftBracketToken:
		return css.RightBracketToken
	case css.LeftParenthesisToken, css.FunctionToken:
		return css.RightParenthesisToken
	}
	return css.ErrorToken
}

// cutTerminator removes the top-level ';' or '}' ending a declaration value
// and reports whether every block and function in the rest is closed.
func cutTerminator(value []ast.Token) ([]ast.Token, bool) {
	var stack []css.TokenType
	for i, t := range value {
		if c := closing(t.Type); c != css.ErrorToken {
			stack = append(stack, c)
			continue
		}
		switch {
		case len(stack) == 0 && (t.Type == css.SemicolonToken || t.Type == css.RightBraceToken):
			return ast.TrimSpace(value[:i]), len(ast.TrimSpace(value[i+1:])) == 0
		case isClosing(t.Type):
			if len(stack) == 0 || stack[len(stack)-1] != t.Type {
				return value, false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return ast.TrimSpace(value), len(stack) == 0
}

// splitTopLevel splits tokens on top-level tokens accepted by sep.
func splitTopLevel(tokens []ast.Token, sep func(ast.Token) bool) [][]ast.Token {
	var (
		out   [][]ast.Token
		depth int
		start int
	)
	for i, t := range tokens {
		switch {
		case closing(t.Type) != css.ErrorToken:
			depth++
		case isClosing(t.Type):
			depth--
		case depth == 0 && sep(t):
			out = append(out, tokens[start:i])
			start = i + 1
		}
	}
	return append(out, tokens[start:])
}

func isComma(t ast.Token) bool { return t.Type == css.CommaToken }

// sourceMappingURL extracts the URL from "/*# sourceMappingURL=... */".
func sourceMappingURL(comment []byte) (string, bool) {
	s := string(comment)
	s = strings.TrimPrefix(s, "/*")
	s = strings.TrimSuffix(s, "*/")
	s = strings.TrimSpace(s)
	if len(s) == 0 || (s[0] != '#' && s[0] != '@') {
		return "", false
	}
	s = strings.TrimLeft(s[1:], " \t")
	url, ok := strings.CutPrefix(s, "sourceMappingURL=")
	if !ok {
		return "", false
	}
	if i := strings.IndexAny(url, " \t\r\n"); i >= 0 {
		url = url[:i]
	}
	return url, url != ""
}

// unquote strips quotes and resolves simple escapes of a string token.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	} else if len(s) >= 1 && (s[0] == '"' || s[0] == '\'') {
		// unterminated string at end of input
		s = s[1:]
	}
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			if s[i] == '\n' {
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// urlValue extracts the address from url(...) tokens, quoted or not.
func urlValue(t ast.Token) (string, bool) {
	switch t.Type {
	case css.URLToken:
		s := strings.TrimSpace(t.Data[strings.IndexByte(t.Data, '(')+1:])
		s = strings.TrimSuffix(s, ")")
		return unquote(strings.TrimSpace(s)), true
	case css.StringToken:
		return unquote(t.Data), true
	}
	return "", false
}
