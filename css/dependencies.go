package css

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"

	"csspipe/css/ast"
	"csspipe/css/modules"
)

// DependencyType tells how a dependency is referenced.
type DependencyType string

const (
	DependencyImport DependencyType = "import"
	DependencyURL    DependencyType = "url"
)

// Position is a one based line and column.
type Position struct {
	Line   uint32 `json:"line"`
	Column uint32 `json:"column"`
}

// SourceRange locates a dependency reference in its source file.
type SourceRange struct {
	FilePath string   `json:"filePath"`
	Start    Position `json:"start"`
	End      Position `json:"end"`
}

// Dependency is an @import rule or url() reference found while printing
// with dependency analysis enabled. Imports are removed from the output,
// url() addresses are replaced by Placeholder.
type Dependency struct {
	Type        DependencyType `json:"type"`
	URL         string         `json:"url"`
	Placeholder string         `json:"placeholder,omitempty"`
	Media       string         `json:"media,omitempty"`
	Loc         SourceRange    `json:"loc"`
}

func (p *printer) sourceRange(loc ast.Location, length int) SourceRange {
	start := Position{Line: loc.Line + 1, Column: loc.Column}
	end := start
	if length > 0 {
		end.Column += uint32(length) - 1
	}
	return SourceRange{FilePath: p.filename(loc.SourceIndex), Start: start, End: end}
}

func (p *printer) recordImport(r *ast.ImportRule) {
	text := "@import " + ast.QuoteString(r.URL)
	if len(r.Conditions) > 0 {
		text += " " + ast.TokensString(r.Conditions)
	}
	p.deps = append(p.deps, Dependency{
		Type:  DependencyImport,
		URL:   r.URL,
		Media: ast.TokensString(r.Conditions),
		Loc:   p.sourceRange(r.Loc, len(text)+1),
	})
}

// replaceURLs swaps url() addresses in a declaration value for placeholders
// and records them. Inline data URLs are left alone.
func (p *printer) replaceURLs(d *ast.Declaration, value []ast.Token) []ast.Token {
	var out []ast.Token
	for i, t := range value {
		url, ok := "", false
		if t.Type == css.URLToken {
			url, ok = urlValue(t)
		}
		if !ok || strings.HasPrefix(url, "data:") {
			if out != nil {
				out = append(out, t)
			}
			continue
		}
		if out == nil {
			out = append(make([]ast.Token, 0, len(value)), value[:i]...)
		}
		filename := p.filename(d.Loc.SourceIndex)
		placeholder := modules.Hash(filename + "_" + url)
		out = append(out, ast.Token{Type: css.URLToken, Data: "url(" + placeholder + ")"})
		p.deps = append(p.deps, Dependency{
			Type:        DependencyURL,
			URL:         url,
			Placeholder: placeholder,
			Loc:         p.sourceRange(d.Loc, len(d.Name)+1+len(ast.TokensString(value))),
		})
	}
	if out == nil {
		return value
	}
	return out
}
