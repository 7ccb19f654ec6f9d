package directive

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError describes malformed directive syntax in template text.
// Offset is a byte offset into the source; Line and Column are 1-based.
type ParseError struct {
	Offset int
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Msg)
}

// Parse extracts every directive from template text, in document order.
// Expression regions that do not hold an ask() or delegate() call are
// left alone, except that a call token buried inside an unrelated
// expression is rejected: ownership of that call would be ambiguous.
func Parse(text string) ([]Directive, error) {
	p := &parser{src: text, bound: map[string]bool{}}
	for {
		i := strings.Index(p.src[p.pos:], "{{")
		if i < 0 {
			return p.dirs, nil
		}
		p.pos += i
		if err := p.region(); err != nil {
			return nil, err
		}
	}
}

type parser struct {
	src   string
	pos   int
	dirs  []Directive
	bound map[string]bool
}

// region handles one {{ occurrence starting at p.pos.
func (p *parser) region() error {
	start := p.pos
	opener := p.opener()
	if p.isDirective(start + len(opener)) {
		return p.directive(start, opener)
	}
	return p.skipForeign(start, opener)
}

// opener returns the delimiter at p.pos: "{{{", "{{-" or "{{". All
// three variants, and mixed trim closers, behave identically.
func (p *parser) opener() string {
	rest := p.src[p.pos:]
	switch {
	case strings.HasPrefix(rest, "{{{"):
		return "{{{"
	case strings.HasPrefix(rest, "{{-"):
		return "{{-"
	default:
		return "{{"
	}
}

// isDirective reports whether the region starting after the opener is
// anchored by an ask or delegate call, optionally preceded by a
// `var name =` binding. Anything else is a foreign expression.
func (p *parser) isDirective(inner int) bool {
	probe := &parser{src: p.src, pos: inner}
	probe.ws()
	if probe.word("var") {
		probe.ws()
		if probe.ident() == "" {
			return false
		}
		probe.ws()
		if !probe.lit("=") {
			return false
		}
		probe.ws()
	}
	if !probe.word("ask") && !probe.word("delegate") {
		return false
	}
	probe.ws()
	return probe.lit("(")
}

// skipForeign advances past an expression region that is not a
// directive, leaving its text for reference substitution or for the
// target tool's own template engine.
func (p *parser) skipForeign(start int, opener string) error {
	inner := start + len(opener)
	j := strings.Index(p.src[inner:], "}}")
	if j < 0 {
		// Bare braces with no closer anywhere: literal text.
		p.pos = inner
		return nil
	}
	end := inner + j + 2
	if opener == "{{{" && end < len(p.src) && p.src[end] == '}' {
		end++
	}
	if tok := callToken(p.src[inner : inner+j]); tok != "" {
		return p.errorAt(start, fmt.Sprintf("%s() call inside an expression that is not a valid directive", tok))
	}
	p.pos = end
	return nil
}

// directive parses one full directive region strictly, from the opener
// at start through the matching closer.
func (p *parser) directive(start int, opener string) error {
	p.pos = start + len(opener)
	p.ws()

	varName := ""
	if p.word("var") {
		p.ws()
		varName = p.ident()
		if varName == "" {
			return p.errf("invalid variable name after var")
		}
		p.ws()
		if !p.lit("=") {
			return p.errf("expected = after variable name %q", varName)
		}
		p.ws()
	}

	var kind Kind
	switch {
	case p.word("ask"):
		kind = KindInteractive
	case p.word("delegate"):
		kind = KindDelegated
	default:
		return p.errf("expected ask or delegate call")
	}
	d := Directive{Kind: kind, VarName: varName, Span: Span{Start: start}}

	p.ws()
	if !p.lit("(") {
		return p.errf("expected ( after %s", callName(kind))
	}
	p.ws()
	primary, err := p.stringLit()
	if err != nil {
		return err
	}
	p.ws()
	if p.lit(",") {
		p.ws()
		if err := p.options(&d); err != nil {
			return err
		}
		p.ws()
	}
	if !p.lit(")") {
		return p.errf("expected ) to close %s(...)", callName(kind))
	}
	p.ws()
	if !p.closer(opener) {
		return p.errorAt(start, "unterminated directive expression")
	}

	d.Span.End = p.pos
	d.Span.Raw = p.src[start:p.pos]

	switch kind {
	case KindInteractive:
		d.Question = primary
	case KindDelegated:
		d.Prompt = PromptSource{Kind: SourceInline, Value: primary}
		if looksLikeFilePath(primary) {
			d.Prompt.Kind = SourceFile
		}
	}

	if d.VarName != "" {
		if p.bound[d.VarName] {
			return p.errorAt(start, fmt.Sprintf("duplicate variable %q", d.VarName))
		}
		p.bound[d.VarName] = true
	}

	d.ID = computeID(&d)
	p.dirs = append(p.dirs, d)
	return nil
}

// closer consumes the closing delimiter matching the given opener.
func (p *parser) closer(opener string) bool {
	if opener == "{{{" {
		return p.lit("}}}")
	}
	return p.lit("-}}") || p.lit("}}")
}

// options parses the trailing options object and applies each pair to
// the directive, enforcing the per-kind key whitelist.
func (p *parser) options(d *Directive) error {
	if !p.lit("{") {
		return p.errf("expected options object after ,")
	}
	seen := map[string]bool{}
	p.ws()
	if p.lit("}") {
		return nil
	}
	for {
		keyAt := p.pos
		key, err := p.optionKey()
		if err != nil {
			return err
		}
		if seen[key] {
			return p.errorAt(keyAt, fmt.Sprintf("duplicate option %q", key))
		}
		seen[key] = true
		p.ws()
		if !p.lit(":") {
			return p.errf("expected : after option %q", key)
		}
		p.ws()
		if err := p.optionValue(d, key, keyAt); err != nil {
			return err
		}
		p.ws()
		switch {
		case p.lit(","):
			p.ws()
			if p.lit("}") {
				return nil
			}
		case p.lit("}"):
			return nil
		default:
			return p.errf("expected , or } in options")
		}
	}
}

func (p *parser) optionKey() (string, error) {
	if p.pos < len(p.src) && (p.src[p.pos] == '\'' || p.src[p.pos] == '"') {
		return p.stringLit()
	}
	if name := p.ident(); name != "" {
		return name, nil
	}
	return "", p.errf("expected option name")
}

// optionValue parses one option value and stores it on d. Unknown keys
// and wrong-typed values are rejected here, at parse time, so a typo
// never silently changes render behavior.
func (p *parser) optionValue(d *Directive, key string, keyAt int) error {
	switch d.Kind {
	case KindInteractive:
		switch key {
		case "defaultValue":
			s, err := p.optionString(key)
			if err != nil {
				return err
			}
			d.Interactive.DefaultValue = &s
		case "placeholder":
			s, err := p.optionString(key)
			if err != nil {
				return err
			}
			d.Interactive.Placeholder = &s
		default:
			return p.errorAt(keyAt, fmt.Sprintf("unsupported option %q for ask()", key))
		}
	case KindDelegated:
		switch key {
		case "expectJson":
			b, err := p.optionBool(key)
			if err != nil {
				return err
			}
			d.Delegated.ExpectJSON = b
		case "tool":
			s, err := p.optionString(key)
			if err != nil {
				return err
			}
			d.Delegated.Tool = s
		case "safeMode":
			b, err := p.optionBool(key)
			if err != nil {
				return err
			}
			d.Delegated.SafeMode = &b
		case "timeoutMs":
			n, err := p.optionInt(key)
			if err != nil {
				return err
			}
			d.Delegated.TimeoutMs = n
		case "systemPrompt":
			s, err := p.optionString(key)
			if err != nil {
				return err
			}
			d.Delegated.SystemPrompt = &s
		default:
			return p.errorAt(keyAt, fmt.Sprintf("unsupported option %q for delegate()", key))
		}
	}
	return nil
}

func (p *parser) optionString(key string) (string, error) {
	if !p.atStringLit() {
		return "", p.errf("option %q expects a string value", key)
	}
	return p.stringLit()
}

func (p *parser) optionBool(key string) (bool, error) {
	switch {
	case p.word("true"):
		return true, nil
	case p.word("false"):
		return false, nil
	}
	return false, p.errf("option %q expects true or false", key)
}

func (p *parser) optionInt(key string) (int, error) {
	i := p.pos
	for i < len(p.src) && p.src[i] >= '0' && p.src[i] <= '9' {
		i++
	}
	if i == p.pos || (i < len(p.src) && isWordByte(p.src[i])) {
		return 0, p.errf("option %q expects a positive integer", key)
	}
	n, err := strconv.Atoi(p.src[p.pos:i])
	if err != nil {
		return 0, p.errf("option %q value out of range", key)
	}
	p.pos = i
	return n, nil
}

// ws skips spaces, tabs and newlines.
func (p *parser) ws() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

// lit consumes s when it appears at p.pos.
func (p *parser) lit(s string) bool {
	if strings.HasPrefix(p.src[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	return false
}

// word consumes s only when it ends at a word boundary, so "ask" never
// matches inside "askew".
func (p *parser) word(s string) bool {
	if !strings.HasPrefix(p.src[p.pos:], s) {
		return false
	}
	if n := p.pos + len(s); n < len(p.src) && isWordByte(p.src[n]) {
		return false
	}
	p.pos += len(s)
	return true
}

// ident consumes an identifier, returning "" without advancing when
// none starts at p.pos.
func (p *parser) ident() string {
	i := p.pos
	if i >= len(p.src) || !isIdentStart(p.src[i]) {
		return ""
	}
	i++
	for i < len(p.src) && isWordByte(p.src[i]) {
		i++
	}
	name := p.src[p.pos:i]
	p.pos = i
	return name
}

func (p *parser) errf(format string, args ...interface{}) error {
	return p.errorAt(p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) errorAt(off int, msg string) error {
	line, col := 1, 1
	for _, c := range p.src[:off] {
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &ParseError{Offset: off, Line: line, Column: col, Msg: msg}
}

// callToken reports an ask/delegate call token found anywhere in s, or
// "" when none is present.
func callToken(s string) string {
	for _, w := range [...]string{"ask", "delegate"} {
		off := 0
		for {
			k := strings.Index(s[off:], w)
			if k < 0 {
				break
			}
			at := off + k
			off = at + len(w)
			if at > 0 && isWordByte(s[at-1]) {
				continue
			}
			rest := strings.TrimLeft(s[at+len(w):], " \t\r\n")
			if strings.HasPrefix(rest, "(") {
				return w
			}
		}
	}
	return ""
}

// looksLikeFilePath reports whether a delegated primary argument names
// a prompt file rather than inline prompt text: a single token shaped
// like a relative path with a file extension. "prompts/summary.md" is
// a file; "Summarize the repo" and bare words stay inline.
func looksLikeFilePath(v string) bool {
	if v == "" || strings.ContainsAny(v, " \t\r\n") {
		return false
	}
	if strings.Contains(v, "{{") || strings.Contains(v, "\\") {
		return false
	}
	if strings.HasPrefix(v, "/") {
		return false
	}
	if len(v) >= 2 && v[1] == ':' && isIdentStart(v[0]) {
		return false
	}
	base := v
	if i := strings.LastIndexByte(v, '/'); i >= 0 {
		base = v[i+1:]
	}
	dot := strings.LastIndexByte(base, '.')
	return dot > 0 && dot < len(base)-1
}

func callName(k Kind) string {
	if k == KindDelegated {
		return "delegate"
	}
	return "ask"
}

func isIdentStart(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func isWordByte(b byte) bool {
	return isIdentStart(b) || ('0' <= b && b <= '9')
}
