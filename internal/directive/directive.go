package directive

// Kind discriminates the two directive families.
type Kind string

const (
	// KindInteractive directives are answered by a human.
	KindInteractive Kind = "interactive"
	// KindDelegated directives are answered by an external agent tool.
	KindDelegated Kind = "delegated"
)

// SourceKind discriminates where a delegated directive's prompt text
// comes from.
type SourceKind string

const (
	// SourceInline means the primary argument is the prompt text itself.
	SourceInline SourceKind = "inline"
	// SourceFile means the primary argument names a file relative to the
	// package root whose contents become the prompt text.
	SourceFile SourceKind = "file"
)

// Span locates a directive's full expression region (delimiters included)
// within the original template text.
type Span struct {
	Start int    // byte offset of the opening delimiter
	End   int    // byte offset just past the closing delimiter
	Raw   string // the region text, delimiters included
}

// PromptSource is a delegated directive's prompt: either inline text or a
// package-relative file path.
type PromptSource struct {
	Kind  SourceKind
	Value string
}

// InteractiveOptions is the validated option set for ask() calls.
// Pointer fields distinguish "not given" from "given as empty".
type InteractiveOptions struct {
	DefaultValue *string
	Placeholder  *string
}

// DelegatedOptions is the validated option set for delegate() calls.
type DelegatedOptions struct {
	ExpectJSON   bool
	Tool         string  // agent tool override, empty means the configured tool
	SafeMode     *bool   // nil inherits the render-level safe mode
	TimeoutMs    int     // 0 means the runner default
	SystemPrompt *string // nil applies the default framing; "" disables it
}

// Directive is one parsed ask() or delegate() call.
type Directive struct {
	// ID is derived from the directive's semantic content (kind, prompt
	// text, options) and is stable across renders of unchanged templates.
	// The bound variable name and the position in the document never
	// participate.
	ID string

	Kind    Kind
	Span    Span
	VarName string // bound variable name, empty when unbound

	// Interactive fields.
	Question    string
	Interactive InteractiveOptions

	// Delegated fields.
	Prompt    PromptSource
	Delegated DelegatedOptions
}

// Bound reports whether the directive carries a `var name =` binding.
func (d *Directive) Bound() bool { return d.VarName != "" }

// PromptExcerpt returns a short single-line excerpt of the question or
// prompt, for cache entries and progress events.
func (d *Directive) PromptExcerpt() string {
	text := d.Question
	if d.Kind == KindDelegated {
		text = d.Prompt.Value
	}
	return excerpt(text, 80)
}

func excerpt(s string, max int) string {
	out := make([]rune, 0, max)
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		out = append(out, r)
		if len(out) == max {
			return string(out) + "..."
		}
	}
	return string(out)
}
