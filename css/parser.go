package css

import (
	"bytes"
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"csspipe/css/ast"
)

// parser builds the rule tree from the grammar events of css.Parser. Heads
// and values are lexed again from the source range of every event, so
// whitespace and locations stay as written.
type parser struct {
	*source
	gp     *css.Parser
	origin int // offset of the grammar parser input in the source
	prev   int // end of the last event
	limit  int // end of the grammar parser input
	inline bool

	opts *ParserOptions
	log  *zap.Logger

	warnings   error
	mapURL     string
	depth      int  // open blocks of any kind
	styleDepth int  // open style rule blocks
	seenRule   bool // a top-level rule which must come after @import
}

// event is a grammar event with the source range it was read from.
type event struct {
	gt         css.GrammarType
	tt         css.TokenType
	data       []byte
	start, end int
}

func newParser(src *source, opts *ParserOptions, log *zap.Logger, inline bool) *parser {
	p := &parser{source: src, opts: opts, log: log, inline: inline}
	p.reset(0, len(src.data), "", inline)
	return p
}

// reset points the grammar parser at data[start:end]. A prefix is parsed in
// front of it without taking room in the source.
func (p *parser) reset(start, end int, prefix string, inline bool) {
	var r io.Reader = bytes.NewReader(p.data[start:end])
	if prefix != "" {
		r = io.MultiReader(strings.NewReader(prefix), r)
	}
	p.gp = css.NewParser(parse.NewInput(r), inline)
	p.origin, p.prev, p.limit = start-len(prefix), start, end
}

// placeholderRule wraps declaration lists parsed on their own: css.Parser
// recognizes nested rules only inside a ruleset.
const placeholderRule = "&{"

// within runs fn with a grammar parser over data[start:end]. With decls the
// range is read as the body of a style rule.
func (p *parser) within(start, end int, decls bool, fn func() error) error {
	gp, origin, prev, limit := p.gp, p.origin, p.prev, p.limit
	defer func() { p.gp, p.origin, p.prev, p.limit = gp, origin, prev, limit }()

	if !decls {
		p.reset(start, end, "", false)
		return fn()
	}
	p.reset(start, end, placeholderRule, false)
	p.next()
	return fn()
}

func (p *parser) next() event {
	gt, tt, data := p.gp.Next()
	e := event{gt: gt, tt: tt, data: data, start: p.prev, end: p.origin + p.gp.Offset()}
	p.prev = e.end
	return e
}

// lex returns the tokens of an event from its first significant one.
func (p *parser) lex(e event) []token {
	return trimLeading(p.tokens(e.start, e.end))
}

// at returns the location of the first token, or of the end of e.
func (p *parser) at(ts []token, e event) ast.Location {
	if len(ts) > 0 {
		return p.loc(ts[0].off)
	}
	return p.loc(e.end)
}

// eof reports whether an error event is the end of input.
func (p *parser) eof(e event) bool {
	return e.gt == css.ErrorGrammar && !p.gp.HasParseError()
}

func (p *parser) grammarMessage() string {
	var perr *parse.Error
	if errors.As(p.gp.Err(), &perr) {
		return perr.Message
	}
	return ""
}

// closesBlock reports whether the last error ended on a closing token which
// the grammar parser took as the end of the enclosing block.
func (p *parser) closesBlock() bool {
	vals := p.gp.Values()
	if p.inline || len(vals) == 0 || !isClosing(vals[len(vals)-1].TokenType) {
		return false
	}
	msg := p.grammarMessage()
	return strings.HasPrefix(msg, "unexpected ending in qualified rule") || strings.HasPrefix(msg, "unexpected ending in at rule")
}

// blockEnd returns the offset of the brace closing a block, given the event
// which closed it.
func blockEnd(e event) int {
	if e.gt == css.ErrorGrammar || e.tt == css.RightBraceToken {
		return e.end - 1
	}
	return e.end
}

// skipBlock consumes the events of the block just opened and returns the
// offset its content ends at.
func (p *parser) skipBlock() int {
	depth := 1
	for {
		e := p.next()
		switch e.gt {
		case css.BeginRulesetGrammar, css.BeginAtRuleGrammar:
			depth++
		case css.EndRulesetGrammar, css.EndAtRuleGrammar:
			depth--
		case css.ErrorGrammar:
			if p.eof(e) {
				return e.end
			}
			if p.closesBlock() {
				depth--
			}
		}
		if depth == 0 {
			return blockEnd(e)
		}
	}
}

// reparse consumes the block just opened and runs fn over its content with
// a grammar parser of its own. Used where the grammar parser would read the
// block differently than the rule requires.
func (p *parser) reparse(decls bool, fn func() error) error {
	start := p.prev
	end := p.skipBlock()
	return p.within(start, end, decls, fn)
}

func (p *parser) fail(kind error, loc ast.Location, format string, args ...any) *Error {
	return newError(kind, p.opts.Filename, loc, format, args...)
}

// grammarError converts an error event into an error of kind, closing
// tokens and the end of input have kinds of their own.
func (p *parser) grammarError(e event, kind error) *Error {
	msg := p.grammarMessage()
	vals := p.gp.Values()
	if n := len(vals); n > 0 && isClosing(vals[n-1].TokenType) && strings.HasPrefix(msg, "unexpected ending") {
		return p.fail(ErrUnexpectedToken, p.loc(max(e.end-1, e.start)), "%q", vals[n-1].Data)
	}
	ts := p.lex(e)
	if kind == ErrUnexpectedToken && e.end >= p.limit && !terminated(ts) {
		return p.fail(ErrUnexpectedEOF, p.at(ts, e), "")
	}
	return p.fail(kind, p.at(ts, e), "%s", msg)
}

// recover records err as a warning if error recovery is enabled. The caller
// drops the offending rule when it returns true.
func (p *parser) recover(err error) bool {
	if !p.opts.ErrorRecovery {
		return false
	}
	p.log.Warn("Skipping invalid CSS", zap.Error(err))
	p.warnings = multierr.Append(p.warnings, err)
	return true
}

// parseRuleList parses rules until end of input or, inside a block, until
// the event closing it.
func (p *parser) parseRuleList(inBlock bool) ([]ast.Rule, error) {
	var rules []ast.Rule
	for {
		e := p.next()
		var (
			rule ast.Rule
			err  error
		)
		switch e.gt {
		case css.EndRulesetGrammar, css.EndAtRuleGrammar:
			return rules, nil
		case css.CommentGrammar:
			if url, ok := sourceMappingURL(e.data); ok {
				p.mapURL = url
			}
			continue
		case css.TokenGrammar:
			// <!-- and -->
			continue
		case css.ErrorGrammar:
			if p.eof(e) {
				return rules, nil
			}
			closed := inBlock && p.closesBlock()
			if err := p.grammarError(e, ErrUnexpectedToken); !p.recover(err) {
				return nil, err
			}
			if closed {
				return rules, nil
			}
			continue
		case css.CustomPropertyGrammar, css.DeclarationGrammar:
			ts := p.lex(e)
			err = p.fail(ErrUnexpectedToken, p.at(ts, e), "declaration outside of a style rule")
		case css.AtRuleGrammar:
			rule, err = p.parseAtRule(e)
		case css.BeginAtRuleGrammar:
			rule, err = p.parseAtRuleBlock(e)
		case css.BeginRulesetGrammar:
			rule, err = p.parseStyleRule(e)
		}
		if err != nil {
			if !p.recover(err) {
				return nil, err
			}
			continue
		}
		if rule == nil {
			continue
		}
		if !inBlock && !allowedBeforeImport(rule) {
			p.seenRule = true
		}
		rules = append(rules, rule)
	}
}

func allowedBeforeImport(rule ast.Rule) bool {
	switch r := rule.(type) {
	case *ast.ImportRule:
		return true
	case *ast.UnknownAtRule:
		// @layer statement
		return r.Name == "layer" && !r.HasBlock
	}
	return false
}

func (p *parser) parseStyleRule(e event) (*ast.StyleRule, error) {
	ts := p.lex(e)
	loc := p.at(ts, e)
	selectors, err := parseSelectorList(prelude(values(ts)), p.styleDepth > 0)
	if err != nil {
		p.skipBlock()
		return nil, p.fail(ErrInvalidSelector, loc, "%v", err)
	}

	rule := &ast.StyleRule{Selectors: selectors, Loc: loc}
	p.depth++
	p.styleDepth++
	err = p.parseDeclarationList(&rule.Declarations, &rule.Rules)
	p.styleDepth--
	p.depth--
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// parseDeclarationList parses declarations up to the end of the block or,
// for a style attribute, of input. Nested rules are collected into rules, a
// nil rules rejects them.
func (p *parser) parseDeclarationList(decls *ast.DeclarationBlock, rules *[]ast.Rule) error {
	for {
		e := p.next()
		var err error
		switch e.gt {
		case css.EndRulesetGrammar, css.EndAtRuleGrammar:
			return nil
		case css.CommentGrammar, css.TokenGrammar:
			continue
		case css.ErrorGrammar:
			if p.eof(e) {
				return nil
			}
			if p.closesBlock() {
				if err := p.grammarError(e, ErrInvalidDeclaration); !p.recover(err) {
					return err
				}
				return nil
			}
			if rules != nil {
				var ok bool
				if ok, err = p.parseRelativeRule(e, decls, rules); ok {
					break
				}
			}
			err = p.grammarError(e, ErrInvalidDeclaration)
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			var d ast.Declaration
			if d, err = p.parseDeclaration(e); err == nil {
				decls.Append(d)
			}
		case css.BeginRulesetGrammar:
			if rules == nil {
				ts := p.lex(e)
				p.skipBlock()
				err = p.fail(ErrInvalidDeclaration, p.at(ts, e), "unexpected nested rule")
				break
			}
			var rule *ast.StyleRule
			if rule, err = p.parseStyleRule(e); err == nil {
				*rules = append(*rules, rule)
			}
		case css.AtRuleGrammar, css.BeginAtRuleGrammar:
			if rules == nil {
				ts, name := p.lex(e), string(e.data[1:])
				if e.gt == css.BeginAtRuleGrammar {
					p.skipBlock()
				}
				err = p.fail(ErrInvalidDeclaration, p.at(ts, e), "unexpected @%s", name)
				break
			}
			var rule ast.Rule
			if e.gt == css.AtRuleGrammar {
				rule, err = p.parseAtRule(e)
			} else {
				rule, err = p.parseAtRuleBlock(e)
			}
			if err == nil && rule != nil {
				*rules = append(*rules, rule)
			}
		}
		if err != nil && !p.recover(err) {
			return err
		}
	}
}

// parseRelativeRule handles nested style rules starting with ':', '#', '['
// or '*', which the grammar parser reports as a broken declaration running
// up to the next top-level ';' or '}'. The rule is parsed on its own and so
// is whatever follows it in the range.
func (p *parser) parseRelativeRule(e event, decls *ast.DeclarationBlock, rules *[]ast.Rule) (bool, error) {
	ts := p.lex(e)
	open := -1
	for i, t := range ts {
		if t.Type == css.SemicolonToken {
			return false, nil
		}
		if t.Type == css.LeftBraceToken {
			open = i
			break
		}
	}
	if open < 0 {
		return false, nil
	}
	end := matchingClose(values(ts), open)
	if end < 0 {
		return false, nil
	}
	ruleEnd := ts[end].off + 1

	var rule *ast.StyleRule
	err := p.within(ts[0].off, ruleEnd, false, func() (err error) {
		if e := p.next(); e.gt == css.BeginRulesetGrammar {
			rule, err = p.parseStyleRule(e)
		}
		return err
	})
	if err != nil {
		return true, err
	}
	if rule == nil {
		return false, nil
	}
	*rules = append(*rules, rule)

	if rest := trimLeading(p.tokens(ruleEnd, e.end)); len(rest) > 0 {
		return true, p.within(ruleEnd, e.end, true, func() error {
			return p.parseDeclarationList(decls, rules)
		})
	}
	return true, nil
}

func (p *parser) parseDeclaration(e event) (ast.Declaration, error) {
	ts := p.lex(e)
	loc := p.at(ts, e)
	if len(ts) == 0 || ts[0].Type != css.IdentToken {
		return ast.Declaration{}, p.fail(ErrInvalidDeclaration, loc, "invalid property name")
	}
	name := ts[0].Data
	if !strings.HasPrefix(name, "--") {
		name = strings.ToLower(name)
	}
	rest := ts[1:]
	for len(rest) > 0 && rest[0].IsWhitespace() {
		rest = rest[1:]
	}
	if len(rest) == 0 || rest[0].Type != css.ColonToken {
		return ast.Declaration{}, p.fail(ErrInvalidDeclaration, loc, "expected ':' after %q", name)
	}
	value, ok := cutTerminator(values(rest[1:]))
	if !ok {
		return ast.Declaration{}, p.fail(ErrInvalidDeclaration, loc, "unbalanced brackets in value of %q", name)
	}
	return p.declaration(name, value, loc)
}

func (p *parser) declaration(name string, value []ast.Token, loc ast.Location) (ast.Declaration, error) {
	d := ast.Declaration{Name: name, Loc: loc}
	value, d.Important = splitImportant(value)
	if len(value) == 0 && !d.IsCustomProperty() {
		return d, p.fail(ErrInvalidDeclaration, loc, "empty value for %q", name)
	}
	if name == "composes" && p.opts.CSSModules != nil {
		c, err := parseComposes(value)
		if err != nil {
			return d, p.fail(ErrInvalidDeclaration, loc, "%v", err)
		}
		c.Loc = loc
		d.Composes = c
		return d, nil
	}
	d.Value = value
	return d, nil
}

// splitImportant removes a trailing "!important".
func splitImportant(value []ast.Token) ([]ast.Token, bool) {
	n := len(value)
	if n < 2 || !value[n-1].IsIdent("important") {
		return value, false
	}
	i := n - 2
	if value[i].IsWhitespace() {
		i--
	}
	if i < 0 || !value[i].IsDelim('!') {
		return value, false
	}
	return ast.TrimSpace(value[:i]), true
}

var errUnexpectedComposes = errors.New(`composes expects class names optionally followed by "from global" or "from <string>"`)

// parseComposes parses "a b", "a from global" or `a from "./file.css"`.
func parseComposes(value []ast.Token) (*ast.Composes, error) {
	c := &ast.Composes{}
	var parts []ast.Token
	for _, t := range value {
		if !t.IsWhitespace() {
			parts = append(parts, t)
		}
	}
	for i, t := range parts {
		if t.IsIdent("from") && len(c.Names) > 0 {
			rest := parts[i+1:]
			if len(rest) != 1 {
				return nil, errUnexpectedComposes
			}
			switch {
			case rest[0].IsIdent("global"):
				c.From = ast.ComposesFromGlobal{}
			case rest[0].Type == css.StringToken:
				c.From = ast.ComposesFromFile{Specifier: unquote(rest[0].Data)}
			default:
				return nil, errUnexpectedComposes
			}
			return c, nil
		}
		if t.Type != css.IdentToken {
			return nil, errUnexpectedComposes
		}
		c.Names = append(c.Names, t.Data)
	}
	if len(c.Names) == 0 {
		return nil, errUnexpectedComposes
	}
	return c, nil
}

var groupingRules = map[string]bool{
	"supports":       true,
	"container":      true,
	"layer":          true,
	"scope":          true,
	"starting-style": true,
	"document":       true,
	"-moz-document":  true,
}

func keyframesVendor(name string) (string, bool) {
	switch name {
	case "keyframes":
		return "", true
	case "-webkit-keyframes", "-moz-keyframes", "-o-keyframes", "-ms-keyframes":
		return name[:strings.LastIndexByte(name, '-')+1], true
	}
	return "", false
}

// readsRules reports whether css.Parser reads the block of at-rule name as
// a rule list. Others are read as declarations (@font-face, @page) or as
// plain tokens.
func readsRules(name string) bool {
	if strings.HasPrefix(name, "-") {
		if i := strings.IndexByte(name[1:], '-'); i >= 0 {
			name = name[i+2:]
		}
	}
	switch name {
	case "document", "keyframes", "layer", "media", "supports":
		return true
	}
	return false
}

// requiresBlock reports whether at-rule name is invalid as a statement.
func requiresBlock(name string) bool {
	if _, ok := keyframesVendor(name); ok {
		return true
	}
	return name == "media" || name == "font-face" || (groupingRules[name] && name != "layer")
}

// parseAtRule parses an at-rule statement, one without a block.
func (p *parser) parseAtRule(e event) (ast.Rule, error) {
	ts := p.lex(e)
	loc := p.at(ts, e)
	name := string(e.data[1:])
	head := prelude(values(ts[1:]))

	switch {
	case name == "charset":
		return nil, nil
	case name == "import":
		return p.parseImport(head, loc)
	case name == "namespace":
		return p.parseNamespace(head, loc)
	case name == "custom-media" && p.opts.CustomMedia:
		return p.parseCustomMedia(head, loc)
	case requiresBlock(name):
		if !terminated(ts) {
			return nil, p.fail(ErrUnexpectedEOF, p.loc(e.end), "")
		}
		return nil, p.fail(ErrInvalidAtRulePrelude, loc, "@%s requires a block", name)
	}
	return &ast.UnknownAtRule{Name: name, Prelude: head, Loc: loc}, nil
}

// parseAtRuleBlock parses an at-rule with a block, the event opens it.
func (p *parser) parseAtRuleBlock(e event) (ast.Rule, error) {
	ts := p.lex(e)
	loc := p.at(ts, e)
	name := string(e.data[1:])
	head := prelude(values(ts[1:]))

	switch {
	case name == "charset" || name == "import" || name == "namespace" || (name == "custom-media" && p.opts.CustomMedia):
		p.skipBlock()
		return nil, p.fail(ErrInvalidAtRulePrelude, loc, "@%s cannot have a block", name)
	case name == "media":
		rule := &ast.MediaRule{Query: head, Loc: loc}
		rules, err := p.groupBody(name, &rule.Declarations)
		rule.Rules = rules
		return rule, err
	case groupingRules[name]:
		rule := &ast.GroupingRule{Name: name, Prelude: head, Loc: loc}
		rules, err := p.groupBody(name, &rule.Declarations)
		rule.Rules = rules
		return rule, err
	case name == "font-face":
		rule := &ast.FontFaceRule{Loc: loc}
		p.depth++
		defer func() { p.depth-- }()
		return rule, p.parseDeclarationList(&rule.Declarations, nil)
	}
	if vendor, ok := keyframesVendor(name); ok {
		return p.parseKeyframes(vendor, head, loc)
	}

	start := p.prev
	end := p.skipBlock()
	block := ast.TrimSpace(values(p.tokens(start, end)))
	return &ast.UnknownAtRule{Name: name, Prelude: head, HasBlock: true, Block: block, Loc: loc}, nil
}

// groupBody parses the content of a conditional group rule. Inside a style
// rule it holds declarations and nested rules.
func (p *parser) groupBody(name string, decls *ast.DeclarationBlock) (rules []ast.Rule, err error) {
	p.depth++
	defer func() { p.depth-- }()
	switch {
	case p.styleDepth > 0:
		err = p.reparse(true, func() error {
			return p.parseDeclarationList(decls, &rules)
		})
	case readsRules(name):
		rules, err = p.parseRuleList(true)
	default:
		err = p.reparse(false, func() (err error) {
			rules, err = p.parseRuleList(true)
			return err
		})
	}
	return rules, err
}

func (p *parser) parseImport(prelude []ast.Token, loc ast.Location) (ast.Rule, error) {
	if p.seenRule || p.depth > 0 {
		return nil, p.fail(ErrUnexpectedImportRule, loc, "")
	}
	if len(prelude) == 0 {
		return nil, p.fail(ErrInvalidAtRulePrelude, loc, "@import without url")
	}
	url, ok := urlValue(prelude[0])
	if !ok {
		return nil, p.fail(ErrInvalidAtRulePrelude, loc, "@import expects a string or url(), got %q", prelude[0].Data)
	}
	return &ast.ImportRule{URL: url, Conditions: ast.TrimSpace(prelude[1:]), Loc: loc}, nil
}

func (p *parser) parseNamespace(prelude []ast.Token, loc ast.Location) (ast.Rule, error) {
	rule := &ast.NamespaceRule{Loc: loc}
	if len(prelude) > 0 && prelude[0].Type == css.IdentToken {
		rule.Prefix = prelude[0].Data
		prelude = ast.TrimSpace(prelude[1:])
	}
	if len(prelude) != 1 {
		return nil, p.fail(ErrInvalidAtRulePrelude, loc, "@namespace expects an optional prefix and a url")
	}
	url, ok := urlValue(prelude[0])
	if !ok {
		return nil, p.fail(ErrInvalidAtRulePrelude, loc, "@namespace expects a string or url(), got %q", prelude[0].Data)
	}
	rule.URL = url
	return rule, nil
}

func (p *parser) parseCustomMedia(prelude []ast.Token, loc ast.Location) (ast.Rule, error) {
	if len(prelude) < 3 || prelude[0].Type != css.IdentToken || !strings.HasPrefix(prelude[0].Data, "--") || !prelude[1].IsWhitespace() {
		return nil, p.fail(ErrInvalidAtRulePrelude, loc, "@custom-media expects a dashed name and a media query")
	}
	return &ast.CustomMediaRule{Name: prelude[0].Data, Query: ast.TrimSpace(prelude[2:]), Loc: loc}, nil
}

func (p *parser) parseKeyframes(vendor string, head []ast.Token, loc ast.Location) (ast.Rule, error) {
	rule := &ast.KeyframesRule{Vendor: vendor, Loc: loc}
	switch {
	case len(head) == 1 && head[0].Type == css.IdentToken:
		rule.Name = head[0].Data
	case len(head) == 1 && head[0].Type == css.StringToken:
		rule.Name = unquote(head[0].Data)
	default:
		p.skipBlock()
		return nil, p.fail(ErrInvalidAtRulePrelude, loc, "@keyframes expects a name")
	}
	return rule, p.parseKeyframeList(rule)
}

func (p *parser) parseKeyframeList(rule *ast.KeyframesRule) error {
	p.depth++
	defer func() { p.depth-- }()
	for {
		e := p.next()
		var err error
		switch e.gt {
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			return nil
		case css.CommentGrammar, css.TokenGrammar:
			continue
		case css.ErrorGrammar:
			if p.eof(e) {
				return nil
			}
			closed := p.closesBlock()
			if err := p.grammarError(e, ErrInvalidSelector); !p.recover(err) {
				return err
			}
			if closed {
				return nil
			}
			continue
		case css.BeginRulesetGrammar:
			var kf ast.Keyframe
			if kf, err = p.parseKeyframe(e); err == nil {
				rule.Keyframes = append(rule.Keyframes, kf)
			}
		default:
			ts := p.lex(e)
			if e.gt == css.BeginAtRuleGrammar {
				p.skipBlock()
			}
			err = p.fail(ErrUnexpectedToken, p.at(ts, e), "unexpected rule in @keyframes")
		}
		if err != nil && !p.recover(err) {
			return err
		}
	}
}

func (p *parser) parseKeyframe(e event) (ast.Keyframe, error) {
	ts := p.lex(e)
	kf := ast.Keyframe{Loc: p.at(ts, e)}
	for _, part := range splitTopLevel(prelude(values(ts)), isComma) {
		part = ast.TrimSpace(part)
		if len(part) != 1 {
			p.skipBlock()
			return kf, p.fail(ErrInvalidSelector, kf.Loc, "invalid keyframe selector %q", ast.TokensString(part))
		}
		switch t := part[0]; {
		case t.IsIdent("from"), t.IsIdent("to"):
			kf.Selectors = append(kf.Selectors, strings.ToLower(t.Data))
		case t.Type == css.PercentageToken:
			kf.Selectors = append(kf.Selectors, t.Data)
		default:
			p.skipBlock()
			return kf, p.fail(ErrInvalidSelector, kf.Loc, "invalid keyframe selector %q", t.Data)
		}
	}
	return kf, p.parseDeclarationList(&kf.Declarations, nil)
}
