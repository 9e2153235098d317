package ast

// Rule is a node of the rule tree. The set of rule kinds is closed: only
// types declared in this package implement it.
type Rule interface {
	Location() Location
	isRule()
}

// StyleRule is a selector list with a declaration block. Rules holds nested
// rules (CSS nesting), which are printed as is.
type StyleRule struct {
	Selectors    []Selector
	Declarations DeclarationBlock
	Rules        []Rule
	Loc          Location
}

// MediaRule is an @media block. Declarations is only used when the rule is
// nested directly inside a style rule.
type MediaRule struct {
	Query        []Token
	Declarations DeclarationBlock
	Rules        []Rule
	Loc          Location
}

// GroupingRule covers the conditional and cascade grouping at-rules that
// carry a prelude and a block of rules: @supports, @container, @layer
// (block form), @scope and @starting-style.
type GroupingRule struct {
	Name         string
	Prelude      []Token
	Declarations DeclarationBlock
	Rules        []Rule
	Loc          Location
}

// CustomMediaRule is @custom-media --name <query>;
type CustomMediaRule struct {
	Name  string
	Query []Token
	Loc   Location
}

// ImportRule is @import with optional layer/supports/media conditions kept
// as raw tokens.
type ImportRule struct {
	URL        string
	Conditions []Token
	Loc        Location
}

// NamespaceRule is @namespace [prefix] url;
type NamespaceRule struct {
	Prefix string
	URL    string
	Loc    Location
}

// KeyframesRule is @keyframes, Vendor holds a prefix like "-webkit-".
type KeyframesRule struct {
	Name      string
	Vendor    string
	Keyframes []Keyframe
	Loc       Location
}

// Keyframe is a single keyframe block, selectors are "from", "to" or
// percentages.
type Keyframe struct {
	Selectors    []string
	Declarations DeclarationBlock
	Loc          Location
}

// FontFaceRule is @font-face.
type FontFaceRule struct {
	Declarations DeclarationBlock
	Loc          Location
}

// UnknownAtRule is kept verbatim.
type UnknownAtRule struct {
	Name     string
	Prelude  []Token
	Block    []Token
	HasBlock bool
	Loc      Location
}

func (r *StyleRule) Location() Location       { return r.Loc }
func (r *MediaRule) Location() Location       { return r.Loc }
func (r *GroupingRule) Location() Location    { return r.Loc }
func (r *CustomMediaRule) Location() Location { return r.Loc }
func (r *ImportRule) Location() Location      { return r.Loc }
func (r *NamespaceRule) Location() Location   { return r.Loc }
func (r *KeyframesRule) Location() Location   { return r.Loc }
func (r *FontFaceRule) Location() Location    { return r.Loc }
func (r *UnknownAtRule) Location() Location   { return r.Loc }

func (*StyleRule) isRule()       {}
func (*MediaRule) isRule()       {}
func (*GroupingRule) isRule()    {}
func (*CustomMediaRule) isRule() {}
func (*ImportRule) isRule()      {}
func (*NamespaceRule) isRule()   {}
func (*KeyframesRule) isRule()   {}
func (*FontFaceRule) isRule()    {}
func (*UnknownAtRule) isRule()   {}

// HasComposes reports whether any declaration of the rule is a composes
// declaration.
func (r *StyleRule) HasComposes() bool {
	for _, d := range r.Declarations.Declarations {
		if d.Composes != nil {
			return true
		}
	}
	for _, d := range r.Declarations.ImportantDeclarations {
		if d.Composes != nil {
			return true
		}
	}
	return false
}
