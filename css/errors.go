package css

import (
	"errors"
	"fmt"

	"csspipe/css/ast"
)

// Parser errors.
var (
	ErrUnexpectedToken      = errors.New("unexpected token")
	ErrUnexpectedEOF        = errors.New("unexpected end of input")
	ErrInvalidSelector      = errors.New("invalid selector")
	ErrInvalidDeclaration   = errors.New("invalid declaration")
	ErrInvalidAtRulePrelude = errors.New("invalid at-rule prelude")
	ErrUnexpectedImportRule = errors.New("@import rules must precede all rules aside from @charset and @layer statements")
)

// Minify errors.
var (
	ErrCustomMediaNotDefined              = errors.New("custom media query is not defined")
	ErrCircularCustomMedia                = errors.New("circular custom media query")
	ErrUnsupportedCustomMediaBooleanLogic = errors.New("boolean logic with custom media is not supported")
)

// Printer errors.
var (
	ErrInvalidComposesNesting = errors.New("the composes property cannot be used within nested rules")
	ErrSourceMapUnsupported   = errors.New("source maps are not supported for style attributes")
)

// ErrorLocation points at the place in a source an error originates from.
type ErrorLocation struct {
	Filename string
	Line     uint32 // zero based
	Column   uint32 // one based
}

func (l ErrorLocation) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.Line+1, l.Column)
}

// Error is returned by parse, minify and print. Kind is one of the sentinel
// errors of this package (or modules.ErrInvalidComposesSelector), so callers
// can match with errors.Is.
type Error struct {
	Kind   error
	Detail string
	Loc    *ErrorLocation
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Loc != nil {
		return e.Loc.String() + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, filename string, loc ast.Location, format string, args ...any) *Error {
	e := &Error{
		Kind: kind,
		Loc:  &ErrorLocation{Filename: filename, Line: loc.Line, Column: loc.Column},
	}
	if format != "" {
		e.Detail = fmt.Sprintf(format, args...)
	}
	return e
}
