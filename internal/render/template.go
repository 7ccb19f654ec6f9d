package render

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/agentpack-labs/agentpack/internal/directive"
	"github.com/agentpack-labs/agentpack/internal/executor"
)

// renderTemplate reads a templated source, resolves its directives
// through the scheduler and splices the results back into the text.
func (r *run) renderTemplate(ctx context.Context, p Installed, f planned) ([]byte, error) {
	raw, err := os.ReadFile(f.src)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.src, err)
	}
	text := string(raw)

	where := path.Join(p.Name, f.srcRel)
	dirs, err := directive.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", where, err)
	}

	r.events.template = where
	ec, err := executor.Run(ctx, dirs, executor.Options{
		Prompter:       r.opts.Prompter,
		Runner:         r.opts.Runner,
		Cache:          r.cache,
		Events:         r.events,
		PackageName:    p.Name,
		PackageVersion: p.Version,
		PackageDir:     p.Dir,
		TemplatePath:   where,
		SafeMode:       r.opts.SafeMode,
	})
	if err != nil {
		return nil, err
	}
	return []byte(substitute(text, dirs, ec)), nil
}

// edit is one span replacement.
type edit struct {
	start, end int
	text       string
}

// substitute splices resolved values into their directive spans and
// resolves reference regions. Bound directives disappear from the
// output along with one following whitespace character, so a binding
// does not leave a hole behind. Unresolvable references stay verbatim:
// rendered files legitimately carry brace syntax aimed at the target
// tool.
func substitute(text string, dirs []directive.Directive, ec *executor.Context) string {
	var edits []edit

	for i := range dirs {
		d := &dirs[i]
		e := edit{start: d.Span.Start, end: d.Span.End}
		if d.Bound() {
			e.end = swallowWhitespace(text, e.end)
		} else if res, ok := ec.ByID[d.ID]; ok && res.Err == nil {
			e.text = executor.ValueText(res.Value)
		} else {
			continue
		}
		edits = append(edits, e)
	}

	for _, ref := range directive.ScanRefs(text) {
		if val, ok := ec.Resolve(ref); ok {
			edits = append(edits, edit{start: ref.Span.Start, end: ref.Span.End, text: val})
		}
	}

	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	last := 0
	for _, e := range edits {
		// A reference inside a directive's own span is already covered
		// by the directive's replacement.
		if e.start < last {
			continue
		}
		b.WriteString(text[last:e.start])
		b.WriteString(e.text)
		last = e.end
	}
	b.WriteString(text[last:])
	return b.String()
}

// swallowWhitespace extends end past one whitespace character,
// treating \r\n as a single newline.
func swallowWhitespace(text string, end int) int {
	if end >= len(text) {
		return end
	}
	switch text[end] {
	case ' ', '\t', '\n':
		return end + 1
	case '\r':
		if end+1 < len(text) && text[end+1] == '\n' {
			return end + 2
		}
		return end + 1
	}
	return end
}
