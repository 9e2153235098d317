package ast

import "strings"

// Selector is a complex selector: compound selectors separated by
// combinators, in source order.
type Selector struct {
	Components []Component
}

// Component is one piece of a selector. The set is closed.
type Component interface {
	isComponent()
}

// CombinatorKind is the separator between compound selectors.
type CombinatorKind byte

const (
	Descendant        CombinatorKind = ' '
	Child             CombinatorKind = '>'
	NextSibling       CombinatorKind = '+'
	SubsequentSibling CombinatorKind = '~'
)

type (
	Combinator        struct{ Kind CombinatorKind }
	TypeSelector      struct{ Name string }
	UniversalSelector struct{}
	ClassSelector     struct{ Name string }
	IDSelector        struct{ Name string }
	// AttributeSelector keeps the text between brackets verbatim.
	AttributeSelector struct{ Raw string }
	NestingSelector   struct{}
	// PseudoClass has Selectors set for selector-taking pseudo-classes
	// (:is, :not, :where, :has, :global, :local), Args otherwise.
	PseudoClass struct {
		Name      string
		HasArgs   bool
		Args      []Token
		Selectors []Selector
	}
	PseudoElement struct {
		Name    string
		HasArgs bool
		Args    []Token
	}
)

func (Combinator) isComponent()        {}
func (TypeSelector) isComponent()      {}
func (UniversalSelector) isComponent() {}
func (ClassSelector) isComponent()     {}
func (IDSelector) isComponent()        {}
func (AttributeSelector) isComponent() {}
func (NestingSelector) isComponent()   {}
func (PseudoClass) isComponent()       {}
func (PseudoElement) isComponent()     {}

// SelectorPseudoClasses lists pseudo-classes whose argument is a selector list.
var SelectorPseudoClasses = map[string]bool{
	"is":          true,
	"not":         true,
	"where":       true,
	"has":         true,
	"matches":     true,
	"any":         true,
	"-webkit-any": true,
	"-moz-any":    true,
	"global":      true,
	"local":       true,
}

// String serializes the selector in its compact form.
func (s Selector) String() string {
	var sb strings.Builder
	writeSelector(&sb, s)
	return sb.String()
}

// SelectorsString serializes a selector list in its compact form.
func SelectorsString(list []Selector) string {
	var sb strings.Builder
	for i, s := range list {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeSelector(&sb, s)
	}
	return sb.String()
}

func writeSelector(sb *strings.Builder, s Selector) {
	for _, c := range s.Components {
		switch c := c.(type) {
		case Combinator:
			sb.WriteByte(byte(c.Kind))
		case TypeSelector:
			sb.WriteString(c.Name)
		case UniversalSelector:
			sb.WriteByte('*')
		case ClassSelector:
			sb.WriteByte('.')
			sb.WriteString(c.Name)
		case IDSelector:
			sb.WriteByte('#')
			sb.WriteString(c.Name)
		case AttributeSelector:
			sb.WriteByte('[')
			sb.WriteString(c.Raw)
			sb.WriteByte(']')
		case NestingSelector:
			sb.WriteByte('&')
		case PseudoClass:
			sb.WriteByte(':')
			sb.WriteString(c.Name)
			if c.Selectors != nil {
				sb.WriteByte('(')
				sb.WriteString(SelectorsString(c.Selectors))
				sb.WriteByte(')')
			} else if c.HasArgs {
				sb.WriteByte('(')
				sb.WriteString(TokensString(c.Args))
				sb.WriteByte(')')
			}
		case PseudoElement:
			sb.WriteString("::")
			sb.WriteString(c.Name)
			if c.HasArgs {
				sb.WriteByte('(')
				sb.WriteString(TokensString(c.Args))
				sb.WriteByte(')')
			}
		}
	}
}

// SimpleClass returns the class name if the selector is exactly one class
// selector and nothing else.
func (s Selector) SimpleClass() (string, bool) {
	if len(s.Components) != 1 {
		return "", false
	}
	if c, ok := s.Components[0].(ClassSelector); ok {
		return c.Name, true
	}
	return "", false
}

