// Package modules implements CSS modules scoping: class names, ids,
// keyframes and (optionally) custom property names declared in a file are
// renamed with a per-file hash, and a table of original -> compiled names is
// returned to the caller.
//
// See https://github.com/css-modules/css-modules.
package modules

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"

	"csspipe/css/ast"
)

// ErrInvalidComposesSelector is returned when "composes" is used anywhere
// but in a rule whose selectors are all single class selectors.
var ErrInvalidComposesSelector = errors.New("the composes property can only be used within a simple class selector")

// Config enables CSS modules for a parse/print session.
type Config struct {
	// Pattern used for compiled names, zero value means DefaultPattern.
	Pattern Pattern
	// DashedIdents scopes custom property names as well.
	DashedIdents bool
}

// CssModule is the scoping state of a single print pass over one source.
// It owns the export table until Finish hands it over.
type CssModule struct {
	config     *Config
	pattern    Pattern
	hash       string
	name       string
	exports    Exports
	references References
}

// New prepares scoping state for source, which is hashed once here.
func New(cfg *Config, source string) *CssModule {
	pattern := cfg.Pattern
	if pattern.IsZero() {
		pattern = DefaultPattern()
	}
	return &CssModule{
		config:     cfg,
		pattern:    pattern,
		hash:       Hash(source),
		name:       FileStem(source),
		exports:    make(Exports),
		references: make(References),
	}
}

// FileStem returns the value of the "[name]" segment for source: the base
// file name without the last extension, reduced to identifier characters.
// Result is lowercase.
func FileStem(source string) string {
	base := filepath.Base(filepath.ToSlash(source))
	if base == "." || base == "/" {
		return ""
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return ""
	}
	stem = slug.Make(stem)
	if stem != "" && stem[0] >= '0' && stem[0] <= '9' {
		stem = "_" + stem
	}
	return stem
}

// Hash returns the per-source hash.
func (m *CssModule) Hash() string {
	return m.hash
}

func (m *CssModule) compile(local string) string {
	return m.pattern.Compile(m.hash, local, m.name)
}

// AddLocal registers a declared name and returns its compiled form. The
// first registration wins, later calls return the existing name.
func (m *CssModule) AddLocal(exported, local string) string {
	if e, ok := m.exports[exported]; ok {
		return e.Name
	}
	name := m.compile(local)
	m.exports[exported] = Export{Name: name, Composes: []Reference{}}
	return name
}

// Reference marks name as referenced, registering it if it was not declared
// yet, and returns its compiled form.
func (m *CssModule) Reference(name string) string {
	e, ok := m.exports[name]
	if !ok {
		e = Export{Name: m.compile(name), Composes: []Reference{}}
	}
	e.IsReferenced = true
	m.exports[name] = e
	return e.Name
}

// HandleComposes records the names composed by c on every class of
// selectors. All selectors are validated before anything is recorded, an
// invalid one leaves the export table untouched.
func (m *CssModule) HandleComposes(selectors []ast.Selector, c *ast.Composes) error {
	classes := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		class, ok := sel.SimpleClass()
		if !ok {
			return ErrInvalidComposesSelector
		}
		classes = append(classes, class)
	}

	refs := make([]Reference, 0, len(c.Names))
	var locals []string
	for _, name := range c.Names {
		switch from := c.From.(type) {
		case nil:
			refs = append(refs, LocalReference{Name: m.compiledName(name)})
			locals = append(locals, name)
		case ast.ComposesFromGlobal:
			refs = append(refs, GlobalReference{Name: name})
		case ast.ComposesFromFile:
			refs = append(refs, DependencyReference{Name: name, Specifier: from.Specifier})
		default:
			return fmt.Errorf("unexpected composes source %T", from)
		}
	}

	for _, name := range locals {
		m.Reference(name)
	}
	for _, class := range classes {
		m.AddLocal(class, class)
		e := m.exports[class]
		for _, ref := range refs {
			if !containsReference(e.Composes, ref) {
				e.Composes = append(e.Composes, ref)
			}
		}
		m.exports[class] = e
	}
	return nil
}

// compiledName returns the name an identifier has or will have in the
// export table.
func (m *CssModule) compiledName(name string) string {
	if e, ok := m.exports[name]; ok {
		return e.Name
	}
	return m.compile(name)
}

func containsReference(list []Reference, ref Reference) bool {
	for _, r := range list {
		if r == ref {
			return true
		}
	}
	return false
}

// AddDashed registers a declared custom property name ("--foo") and returns
// the name to print.
func (m *CssModule) AddDashed(name string) string {
	if e, ok := m.exports[name]; ok {
		return e.Name
	}
	compiled := "--" + m.compile(strings.TrimPrefix(name, "--"))
	m.exports[name] = Export{Name: compiled, Composes: []Reference{}}
	return compiled
}

// ReferenceDashed resolves a custom property reference as in var(--foo) or
// var(--foo from "./file.css") and returns the name to print. References to
// other files are printed as placeholders recorded in the references table.
func (m *CssModule) ReferenceDashed(name string, from ast.ComposesFrom) string {
	switch from := from.(type) {
	case ast.ComposesFromGlobal:
		return name
	case ast.ComposesFromFile:
		local := strings.TrimPrefix(name, "--")
		placeholder := "--" + Hash(from.Specifier+"_"+local)
		m.references[placeholder] = DependencyReference{Name: local, Specifier: from.Specifier}
		return placeholder
	}
	e, ok := m.exports[name]
	if !ok {
		e = Export{Name: "--" + m.compile(strings.TrimPrefix(name, "--")), Composes: []Reference{}}
	}
	e.IsReferenced = true
	m.exports[name] = e
	return e.Name
}

// Finish hands the export and references tables over to the caller. The
// module must not be used afterwards. References are nil unless dashed
// idents are enabled.
func (m *CssModule) Finish() (Exports, References) {
	exports, references := m.exports, m.references
	m.exports, m.references = nil, nil
	if !m.config.DashedIdents {
		references = nil
	}
	return exports, references
}
