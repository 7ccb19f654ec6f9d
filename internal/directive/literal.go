package directive

import "strings"

// stringLit parses one string literal at p.pos. Four forms are
// accepted: single-quoted, double-quoted, backtick (multi-line,
// backslash-escaped backticks), and triple-double-quote blocks
// (multi-line, leading and trailing blank lines trimmed).
func (p *parser) stringLit() (string, error) {
	at := p.pos
	if at >= len(p.src) {
		return "", p.errf("expected string literal")
	}
	switch {
	case p.lit(`"""`):
		return p.tripleQuoted(at)
	case p.src[at] == '"':
		p.pos++
		return p.quoted('"', at)
	case p.src[at] == '\'':
		p.pos++
		return p.quoted('\'', at)
	case p.src[at] == '`':
		p.pos++
		return p.backtick(at)
	}
	return "", p.errf("expected string literal")
}

func (p *parser) atStringLit() bool {
	if p.pos >= len(p.src) {
		return false
	}
	switch p.src[p.pos] {
	case '\'', '"', '`':
		return true
	}
	return false
}

// quoted parses a single-line literal delimited by q.
func (p *parser) quoted(q byte, at int) (string, error) {
	var b strings.Builder
	for p.pos < len(p.src) && p.src[p.pos] != '\n' {
		c := p.src[p.pos]
		if c == q {
			p.pos++
			return b.String(), nil
		}
		if c == '\\' && p.pos+1 < len(p.src) {
			p.pos++
			b.WriteString(unescape(p.src[p.pos]))
			p.pos++
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", p.errorAt(at, "unterminated string literal")
}

// backtick parses a multi-line backtick literal. A backslash escapes a
// backtick or another backslash; everything else is kept verbatim.
func (p *parser) backtick(at int) (string, error) {
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '`' {
			p.pos++
			return b.String(), nil
		}
		if c == '\\' && p.pos+1 < len(p.src) {
			next := p.src[p.pos+1]
			if next == '`' || next == '\\' {
				b.WriteByte(next)
				p.pos += 2
				continue
			}
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", p.errorAt(at, "unterminated string literal")
}

// tripleQuoted parses a """...""" block. p.pos is already past the
// opening quotes. Content is taken verbatim, then surrounding blank
// lines are dropped.
func (p *parser) tripleQuoted(at int) (string, error) {
	j := strings.Index(p.src[p.pos:], `"""`)
	if j < 0 {
		return "", p.errorAt(at, "unterminated string literal")
	}
	content := p.src[p.pos : p.pos+j]
	p.pos += j + 3
	return trimBlankLines(content), nil
}

// trimBlankLines removes leading and trailing whitespace-only lines,
// keeping the indentation of what remains.
func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

// unescape translates a backslash escape inside a quoted literal.
// Unrecognized sequences keep the backslash, so prompt text holding
// literal backslashes survives untouched.
func unescape(c byte) string {
	switch c {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '\\', '\'', '"', '`':
		return string(c)
	}
	return "\\" + string(c)
}
