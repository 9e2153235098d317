package modules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPattern is returned for templates with an unknown or unterminated
// bracketed token.
var ErrInvalidPattern = errors.New("invalid css modules pattern")

// Segment is a piece of a compiled Pattern. Every segment kind knows how to
// write itself, so the set of kinds cannot grow without a writer.
type Segment interface {
	write(sink func(string), v *values)
	template() string
}

// values are the per-name inputs a pattern is evaluated with.
type values struct {
	hash  string
	local string
	name  string
}

type (
	// LiteralSegment is text copied verbatim.
	LiteralSegment string
	// NameSegment is the base file name of the source ("[name]").
	NameSegment struct{}
	// LocalSegment is the original identifier ("[local]").
	LocalSegment struct{}
	// HashSegment is the per-source hash ("[hash]").
	HashSegment struct{}
)

func (s LiteralSegment) write(sink func(string), _ *values) { sink(string(s)) }
func (NameSegment) write(sink func(string), v *values)      { sink(v.name) }
func (LocalSegment) write(sink func(string), v *values)     { sink(v.local) }
func (HashSegment) write(sink func(string), v *values)      { sink(v.hash) }

func (s LiteralSegment) template() string { return string(s) }
func (NameSegment) template() string      { return "[name]" }
func (LocalSegment) template() string     { return "[local]" }
func (HashSegment) template() string      { return "[hash]" }

// Pattern controls how scoped names are built from the source hash and the
// original identifier.
type Pattern struct {
	segments []Segment
}

// DefaultPattern is "[hash]_[local]". The hash goes first so that grid line
// names, which may get an implicit -start or -end suffix, stay valid even
// when the local name begins with a digit.
func DefaultPattern() Pattern {
	return Pattern{segments: []Segment{HashSegment{}, LiteralSegment("_"), LocalSegment{}}}
}

// ParsePattern compiles a template such as "[name]__[local]--[hash]". Empty
// template produces a pattern with no segments.
func ParsePattern(template string) (Pattern, error) {
	var (
		segments = []Segment{}
		input    = template
		offset   int
	)
	for len(input) > 0 {
		if input[0] == '[' {
			end := strings.IndexByte(input, ']')
			if end < 0 {
				return Pattern{}, fmt.Errorf("%w: unterminated token at offset %d", ErrInvalidPattern, offset)
			}
			switch token := input[:end+1]; token {
			case "[name]":
				segments = append(segments, NameSegment{})
			case "[local]":
				segments = append(segments, LocalSegment{})
			case "[hash]":
				segments = append(segments, HashSegment{})
			default:
				return Pattern{}, fmt.Errorf("%w: unknown token %q at offset %d", ErrInvalidPattern, token, offset)
			}
			input = input[end+1:]
			offset += end + 1
			continue
		}
		end := strings.IndexByte(input, '[')
		if end < 0 {
			end = len(input)
		}
		segments = append(segments, LiteralSegment(input[:end]))
		input = input[end:]
		offset += end
	}
	return Pattern{segments: segments}, nil
}

// MustParsePattern is like ParsePattern but panics on error.
func MustParsePattern(template string) Pattern {
	p, err := ParsePattern(template)
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero reports whether p is the zero value, i.e. was never compiled. A
// compiled empty template is not zero.
func (p Pattern) IsZero() bool {
	return p.segments == nil
}

// Segments returns a copy of the compiled segments.
func (p Pattern) Segments() []Segment {
	return append([]Segment(nil), p.segments...)
}

// Write emits the compiled name into sink segment by segment.
func (p Pattern) Write(sink func(string), hash, local, name string) {
	v := values{hash: hash, local: local, name: name}
	for _, s := range p.segments {
		s.write(sink, &v)
	}
}

// Compile returns the compiled name as a string.
func (p Pattern) Compile(hash, local, name string) string {
	var sb strings.Builder
	p.Write(func(s string) { sb.WriteString(s) }, hash, local, name)
	return sb.String()
}

// String returns the template the pattern was compiled from.
func (p Pattern) String() string {
	var sb strings.Builder
	for _, s := range p.segments {
		sb.WriteString(s.template())
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pattern) UnmarshalText(text []byte) error {
	parsed, err := ParsePattern(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
