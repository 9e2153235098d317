package ast

import "strings"

// Declaration is a single property declaration. Value never contains
// leading or trailing whitespace and does not include "!important".
type Declaration struct {
	Name      string
	Value     []Token
	Important bool
	// Composes is set instead of Value for "composes" declarations parsed
	// with CSS modules enabled.
	Composes *Composes
	Loc      Location
}

// IsCustomProperty reports whether the declaration defines a custom property.
func (d Declaration) IsCustomProperty() bool {
	return strings.HasPrefix(d.Name, "--")
}

// DeclarationBlock keeps normal and !important declarations apart, the
// important ones are always printed last.
type DeclarationBlock struct {
	Declarations          []Declaration
	ImportantDeclarations []Declaration
}

// Len returns total number of declarations in the block.
func (b DeclarationBlock) Len() int {
	return len(b.Declarations) + len(b.ImportantDeclarations)
}

// IsEmpty reports whether the block has no declarations at all.
func (b DeclarationBlock) IsEmpty() bool {
	return b.Len() == 0
}

// Append adds d to the proper list according to its importance.
func (b *DeclarationBlock) Append(d Declaration) {
	if d.Important {
		b.ImportantDeclarations = append(b.ImportantDeclarations, d)
		return
	}
	b.Declarations = append(b.Declarations, d)
}

// String returns a compact canonical form used for comparisons.
func (b DeclarationBlock) String() string {
	var sb strings.Builder
	write := func(list []Declaration) {
		for _, d := range list {
			sb.WriteString(d.Name)
			sb.WriteByte(':')
			if d.Composes != nil {
				sb.WriteString(d.Composes.String())
			} else {
				sb.WriteString(TokensString(d.Value))
			}
			if d.Important {
				sb.WriteString("!important")
			}
			sb.WriteByte(';')
		}
	}
	write(b.Declarations)
	write(b.ImportantDeclarations)
	return sb.String()
}

// Composes is the parsed value of a "composes" declaration.
type Composes struct {
	Names []string
	// From is nil for names local to the current file.
	From ComposesFrom
	Loc  Location
}

// String returns the declaration value as written in CSS.
func (c *Composes) String() string {
	s := strings.Join(c.Names, " ")
	switch from := c.From.(type) {
	case ComposesFromGlobal:
		s += " from global"
	case ComposesFromFile:
		s += " from " + QuoteString(from.Specifier)
	}
	return s
}

// ComposesFrom tells where composed names come from.
type ComposesFrom interface {
	isComposesFrom()
}

// ComposesFromGlobal marks names which are not scoped.
type ComposesFromGlobal struct{}

// ComposesFromFile marks names defined in another file.
type ComposesFromFile struct {
	Specifier string
}

func (ComposesFromGlobal) isComposesFrom() {}
func (ComposesFromFile) isComposesFrom()   {}

// QuoteString serializes s as a double quoted CSS string.
func QuoteString(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case '\n':
			sb.WriteString(`\a `)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
