// Package ast defines the rule tree produced by the css parser. The tree is
// mutated by the minifier and read by the printer.
package ast

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// Location points at the start of a rule or declaration in one of the
// sources of a style sheet.
type Location struct {
	SourceIndex uint32 // index into StyleSheet.Sources
	Line        uint32 // zero based
	Column      uint32 // one based
}

// Token is a single component value as produced by the lexer. Whitespace is
// always normalized to a single space token and comments are dropped.
type Token struct {
	Type css.TokenType
	Data string
}

// Space is the normalized whitespace token.
var Space = Token{Type: css.WhitespaceToken, Data: " "}

// IsDelim reports whether t is the delimiter c.
func (t Token) IsDelim(c byte) bool {
	return t.Type == css.DelimToken && len(t.Data) == 1 && t.Data[0] == c
}

// IsIdent reports whether t is the identifier name, compared ASCII case-insensitively.
func (t Token) IsIdent(name string) bool {
	return t.Type == css.IdentToken && strings.EqualFold(t.Data, name)
}

// IsWhitespace reports whether t is a whitespace token.
func (t Token) IsWhitespace() bool {
	return t.Type == css.WhitespaceToken
}

// TokensString concatenates token data the way it appeared in the source
// (modulo whitespace normalization).
func TokensString(tokens []Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteString(t.Data)
	}
	return sb.String()
}

// TrimSpace removes leading and trailing whitespace tokens.
func TrimSpace(tokens []Token) []Token {
	for len(tokens) > 0 && tokens[0].IsWhitespace() {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && tokens[len(tokens)-1].IsWhitespace() {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// CloneTokens returns a copy of tokens which does not share the backing array.
func CloneTokens(tokens []Token) []Token {
	if tokens == nil {
		return nil
	}
	out := make([]Token, len(tokens))
	copy(out, tokens)
	return out
}
