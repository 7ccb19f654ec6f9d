package directive

import "strings"

// Ref is one vars./snippets. reference region in template text, used
// to splice earlier directive results into delegated prompts and into
// rendered output.
type Ref struct {
	Span Span
	Root string   // "vars" or "snippets"
	Path []string // dotted segments after the root
}

// ScanRefs returns every reference region in text, in document order.
// A region qualifies only when its whole content is a single dotted
// vars./snippets. chain; anything else belongs to the target tool.
func ScanRefs(text string) []Ref {
	var refs []Ref
	pos := 0
	for {
		i := strings.Index(text[pos:], "{{")
		if i < 0 {
			return refs
		}
		start := pos + i
		opener := "{{"
		switch {
		case strings.HasPrefix(text[start:], "{{{"):
			opener = "{{{"
		case strings.HasPrefix(text[start:], "{{-"):
			opener = "{{-"
		}
		inner := start + len(opener)
		j := strings.Index(text[inner:], "}}")
		if j < 0 {
			pos = inner
			continue
		}
		end := inner + j + 2
		if opener == "{{{" && end < len(text) && text[end] == '}' {
			end++
		}
		content := text[inner : inner+j]
		// A -}} closer leaves its dash on the content side.
		content = strings.TrimSuffix(content, "-")
		if root, path, ok := splitRef(content); ok {
			refs = append(refs, Ref{
				Span: Span{Start: start, End: end, Raw: text[start:end]},
				Root: root,
				Path: path,
			})
		}
		pos = end
	}
}

// Interpolate replaces every reference that resolve can satisfy with
// its value. Unresolvable references stay verbatim: rendered files
// legitimately carry brace syntax aimed at the target tool.
func Interpolate(text string, resolve func(Ref) (string, bool)) string {
	refs := ScanRefs(text)
	if len(refs) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, r := range refs {
		val, ok := resolve(r)
		if !ok {
			continue
		}
		b.WriteString(text[last:r.Span.Start])
		b.WriteString(val)
		last = r.Span.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// splitRef parses "root.seg[.seg...]" surrounded by whitespace.
func splitRef(content string) (string, []string, bool) {
	s := strings.TrimSpace(content)
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return "", nil, false
	}
	root := parts[0]
	if root != "vars" && root != "snippets" {
		return "", nil, false
	}
	path := parts[1:]
	for _, seg := range path {
		if seg == "" || !wordOnly(seg) {
			return "", nil, false
		}
	}
	return root, path, true
}

func wordOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isWordByte(s[i]) {
			return false
		}
	}
	return true
}
