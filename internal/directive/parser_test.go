package directive

import (
	"errors"
	"strings"
	"testing"
)

func parseOne(t *testing.T, text string) Directive {
	t.Helper()
	dirs, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", text, err)
	}
	if len(dirs) != 1 {
		t.Fatalf("Parse(%q) returned %d directives, want 1", text, len(dirs))
	}
	return dirs[0]
}

func TestParse_Interactive(t *testing.T) {
	d := parseOne(t, "User: {{ ask('Name?') }} done")

	if d.Kind != KindInteractive {
		t.Errorf("Kind = %q, want %q", d.Kind, KindInteractive)
	}
	if d.Question != "Name?" {
		t.Errorf("Question = %q, want %q", d.Question, "Name?")
	}
	if d.VarName != "" {
		t.Errorf("VarName = %q, want empty", d.VarName)
	}
	if d.Span.Raw != "{{ ask('Name?') }}" {
		t.Errorf("Span.Raw = %q, want %q", d.Span.Raw, "{{ ask('Name?') }}")
	}
	if d.Span.Start != 6 || d.Span.End != 6+len(d.Span.Raw) {
		t.Errorf("Span = [%d,%d), want [6,%d)", d.Span.Start, d.Span.End, 6+len(d.Span.Raw))
	}
	if len(d.ID) != 16 {
		t.Errorf("ID = %q, want 16 hex chars", d.ID)
	}
}

func TestParse_WorkedExample(t *testing.T) {
	text := "User: {{ ask('Name?') }} / {{ var s = delegate('Summarize', {expectJson:true}) }} {{ vars.s.result }}"
	dirs, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("directives = %d, want 2", len(dirs))
	}

	if dirs[0].Kind != KindInteractive {
		t.Errorf("dirs[0].Kind = %q, want %q", dirs[0].Kind, KindInteractive)
	}
	if dirs[0].Question != "Name?" {
		t.Errorf("dirs[0].Question = %q, want %q", dirs[0].Question, "Name?")
	}

	if dirs[1].Kind != KindDelegated {
		t.Errorf("dirs[1].Kind = %q, want %q", dirs[1].Kind, KindDelegated)
	}
	if dirs[1].VarName != "s" {
		t.Errorf("dirs[1].VarName = %q, want %q", dirs[1].VarName, "s")
	}
	if dirs[1].Prompt.Kind != SourceInline || dirs[1].Prompt.Value != "Summarize" {
		t.Errorf("dirs[1].Prompt = %+v, want inline %q", dirs[1].Prompt, "Summarize")
	}
	if !dirs[1].Delegated.ExpectJSON {
		t.Error("dirs[1].Delegated.ExpectJSON = false, want true")
	}

	for _, d := range dirs {
		if text[d.Span.Start:d.Span.End] != d.Span.Raw {
			t.Errorf("span [%d,%d) does not round-trip to Raw %q", d.Span.Start, d.Span.End, d.Span.Raw)
		}
	}
}

func TestParse_DelimiterVariants(t *testing.T) {
	tests := []string{
		"{{ ask('Q') }}",
		"{{{ ask('Q') }}}",
		"{{- ask('Q') -}}",
		"{{- ask('Q') }}",
		"{{ ask('Q') -}}",
		"{{ask('Q')}}",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			d := parseOne(t, text)
			if d.Question != "Q" {
				t.Errorf("Question = %q, want %q", d.Question, "Q")
			}
			if d.Span.Raw != text {
				t.Errorf("Span.Raw = %q, want %q", d.Span.Raw, text)
			}
		})
	}
}

func TestParse_VarBinding(t *testing.T) {
	d := parseOne(t, "{{ var answer = ask('Q') }}")
	if d.VarName != "answer" {
		t.Errorf("VarName = %q, want %q", d.VarName, "answer")
	}
	if !d.Bound() {
		t.Error("Bound() = false, want true")
	}
}

func TestParse_DuplicateVariable(t *testing.T) {
	_, err := Parse("{{ var x = ask('A') }} {{ var x = ask('B') }}")
	if err == nil {
		t.Fatal("expected error for duplicate variable, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate variable") {
		t.Errorf("error = %v, want mention of duplicate variable", err)
	}
}

func TestParse_StringForms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"single quoted", `{{ ask('hello') }}`, "hello"},
		{"single quoted escape", `{{ ask('It\'s') }}`, "It's"},
		{"double quoted", `{{ ask("hello") }}`, "hello"},
		{"double quoted escapes", `{{ ask("a\"b\nc") }}`, "a\"b\nc"},
		{"unknown escape kept", `{{ ask('C:\data') }}`, "C:\\data"},
		{"backtick", "{{ ask(`hello`) }}", "hello"},
		{"backtick multiline", "{{ ask(`line one\nline two`) }}", "line one\nline two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := parseOne(t, tt.text)
			if d.Question != tt.want {
				t.Errorf("Question = %q, want %q", d.Question, tt.want)
			}
		})
	}
}

func TestParse_BacktickEscapes(t *testing.T) {
	// \` yields a literal backtick, \\ a literal backslash.
	d := parseOne(t, "{{ ask(`code \\`x\\` and slash \\\\`) }}")
	want := "code `x` and slash \\"
	if d.Question != want {
		t.Errorf("Question = %q, want %q", d.Question, want)
	}
}

func TestParse_TripleQuoted(t *testing.T) {
	text := "{{ delegate(\"\"\"\n\nSummarize the repo.\nKeep it short.\n\n\"\"\") }}"
	d := parseOne(t, text)
	want := "Summarize the repo.\nKeep it short."
	if d.Prompt.Value != want {
		t.Errorf("Prompt.Value = %q, want %q", d.Prompt.Value, want)
	}
	if d.Prompt.Kind != SourceInline {
		t.Errorf("Prompt.Kind = %q, want %q", d.Prompt.Kind, SourceInline)
	}
}

func TestParse_TripleQuotedKeepsIndent(t *testing.T) {
	text := "{{ ask(\"\"\"\n  first\n  second\n\"\"\") }}"
	d := parseOne(t, text)
	want := "  first\n  second"
	if d.Question != want {
		t.Errorf("Question = %q, want %q", d.Question, want)
	}
}

func TestParse_InteractiveOptions(t *testing.T) {
	d := parseOne(t, `{{ ask('Name?', {defaultValue: 'anon', placeholder: 'your name'}) }}`)
	if d.Interactive.DefaultValue == nil || *d.Interactive.DefaultValue != "anon" {
		t.Errorf("DefaultValue = %v, want %q", d.Interactive.DefaultValue, "anon")
	}
	if d.Interactive.Placeholder == nil || *d.Interactive.Placeholder != "your name" {
		t.Errorf("Placeholder = %v, want %q", d.Interactive.Placeholder, "your name")
	}
}

func TestParse_DelegatedOptions(t *testing.T) {
	d := parseOne(t, `{{ delegate('Summarize', {expectJson: true, tool: 'claude', safeMode: false, timeoutMs: 30000, systemPrompt: ''}) }}`)
	if !d.Delegated.ExpectJSON {
		t.Error("ExpectJSON = false, want true")
	}
	if d.Delegated.Tool != "claude" {
		t.Errorf("Tool = %q, want %q", d.Delegated.Tool, "claude")
	}
	if d.Delegated.SafeMode == nil || *d.Delegated.SafeMode {
		t.Errorf("SafeMode = %v, want false", d.Delegated.SafeMode)
	}
	if d.Delegated.TimeoutMs != 30000 {
		t.Errorf("TimeoutMs = %d, want 30000", d.Delegated.TimeoutMs)
	}
	if d.Delegated.SystemPrompt == nil || *d.Delegated.SystemPrompt != "" {
		t.Errorf("SystemPrompt = %v, want empty string", d.Delegated.SystemPrompt)
	}
}

func TestParse_OptionsOmitted(t *testing.T) {
	d := parseOne(t, `{{ delegate('Summarize') }}`)
	if d.Delegated.ExpectJSON {
		t.Error("ExpectJSON = true, want false")
	}
	if d.Delegated.SafeMode != nil {
		t.Errorf("SafeMode = %v, want nil", d.Delegated.SafeMode)
	}
	if d.Delegated.SystemPrompt != nil {
		t.Errorf("SystemPrompt = %v, want nil", d.Delegated.SystemPrompt)
	}
}

func TestParse_EmptyOptionsObject(t *testing.T) {
	d := parseOne(t, `{{ delegate('x', {}) }}`)
	if d.Kind != KindDelegated {
		t.Errorf("Kind = %q, want %q", d.Kind, KindDelegated)
	}
}

func TestParse_TrailingCommaInOptions(t *testing.T) {
	d := parseOne(t, `{{ ask('Q', {defaultValue: 'd',}) }}`)
	if d.Interactive.DefaultValue == nil || *d.Interactive.DefaultValue != "d" {
		t.Errorf("DefaultValue = %v, want %q", d.Interactive.DefaultValue, "d")
	}
}

func TestParse_OptionErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"unknown ask option", `{{ ask('Q', {expectJson: true}) }}`, "unsupported option"},
		{"unknown delegate option", `{{ delegate('Q', {nope: 'x'}) }}`, "unsupported option"},
		{"bool as string", `{{ delegate('Q', {expectJson: 'yes'}) }}`, "expects true or false"},
		{"timeout as string", `{{ delegate('Q', {timeoutMs: 'fast'}) }}`, "positive integer"},
		{"negative timeout", `{{ delegate('Q', {timeoutMs: -5}) }}`, "positive integer"},
		{"string as bool", `{{ ask('Q', {defaultValue: true}) }}`, "expects a string"},
		{"duplicate option", `{{ delegate('Q', {tool: 'a', tool: 'b'}) }}`, "duplicate option"},
		{"missing colon", `{{ delegate('Q', {tool 'a'}) }}`, "expected :"},
		{"unclosed options", `{{ delegate('Q', {tool: 'a'`, "expected , or }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.text)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestParse_PromptSourceClassification(t *testing.T) {
	tests := []struct {
		value string
		want  SourceKind
	}{
		{"prompts/summary.md", SourceFile},
		{"README.md", SourceFile},
		{"deep/nested/path.txt", SourceFile},
		{"Summarize", SourceInline},
		{"Summarize the repo", SourceInline},
		{"/etc/passwd.txt", SourceInline},
		{"no-extension", SourceInline},
		{"trailing.", SourceInline},
		{".hidden", SourceInline},
		{"has {{ vars.x }}.md", SourceInline},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			d := parseOne(t, "{{ delegate('"+tt.value+"') }}")
			if d.Prompt.Kind != tt.want {
				t.Errorf("Prompt.Kind = %q, want %q", d.Prompt.Kind, tt.want)
			}
			if d.Prompt.Value != tt.value {
				t.Errorf("Prompt.Value = %q, want %q", d.Prompt.Value, tt.value)
			}
		})
	}
}

func TestParse_ForeignRegionsIgnored(t *testing.T) {
	tests := []string{
		"{{ vars.name }}",
		"{{ snippets.abc123 }}",
		"{{#if cond}}yes{{/if}}",
		"{{ .Values.image.tag }}",
		"{{ foo | bar }}",
		"{{{ raw html }}}",
		"text with {{ and no closer",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			dirs, err := Parse(text)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", text, err)
			}
			if len(dirs) != 0 {
				t.Errorf("directives = %d, want 0", len(dirs))
			}
		})
	}
}

func TestParse_CallInsideForeignExpression(t *testing.T) {
	tests := []string{
		"{{ format(ask('Q')) }}",
		"{{ x + delegate('Q') }}",
		"{{ foo.bar ask ('Q') }}",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", text)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error type = %T, want *ParseError", err)
			}
		})
	}
}

func TestParse_ProseOutsideRegionsIsFine(t *testing.T) {
	text := "Please ask (politely) before you delegate (the noun) anything."
	dirs, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(dirs) != 0 {
		t.Errorf("directives = %d, want 0", len(dirs))
	}
}

func TestParse_WordBoundary(t *testing.T) {
	// "task(" and "askew(" must not register as calls.
	dirs, err := Parse("{{ task(1) }} {{ askew(2) }}")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(dirs) != 0 {
		t.Errorf("directives = %d, want 0", len(dirs))
	}
}

func TestParse_MalformedDirectives(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"unterminated region", "{{ ask('Q'"},
		{"missing close paren", "{{ ask('Q' }}"},
		{"missing string", "{{ ask(42) }}"},
		{"unterminated string", "{{ ask('Q) }}"},
		{"newline in quoted string", "{{ ask('a\nb') }}"},
		{"missing closer braces", "{{ ask('Q') "},
		{"triple opener double closer", "{{{ ask('Q') }}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.text)
			}
		})
	}
}

func TestParse_ClosingBracesInsideString(t *testing.T) {
	d := parseOne(t, "{{ ask('a }} b') }}")
	if d.Question != "a }} b" {
		t.Errorf("Question = %q, want %q", d.Question, "a }} b")
	}
}

func TestParse_DocumentOrder(t *testing.T) {
	text := "{{ delegate('one') }} {{ ask('two') }} {{ delegate('three') }}"
	dirs, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(dirs) != 3 {
		t.Fatalf("directives = %d, want 3", len(dirs))
	}
	wantKinds := []Kind{KindDelegated, KindInteractive, KindDelegated}
	for i, d := range dirs {
		if d.Kind != wantKinds[i] {
			t.Errorf("dirs[%d].Kind = %q, want %q", i, d.Kind, wantKinds[i])
		}
		if dirs[i].Span.Start < prevEnd(dirs, i) {
			t.Errorf("dirs[%d] out of document order", i)
		}
	}
}

func prevEnd(dirs []Directive, i int) int {
	if i == 0 {
		return 0
	}
	return dirs[i-1].Span.End
}

func TestParse_ErrorPosition(t *testing.T) {
	_, err := Parse("line one\n{{ ask('Q', {bogus: 'x'}) }}")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
	if pe.Line != 2 {
		t.Errorf("Line = %d, want 2", pe.Line)
	}
	if pe.Column <= 1 {
		t.Errorf("Column = %d, want > 1", pe.Column)
	}
}

func TestParse_InvalidVarName(t *testing.T) {
	_, err := Parse("{{ var 9lives = ask('Q') }}")
	if err == nil {
		t.Fatal("expected error for invalid variable name, got nil")
	}
}

func TestParse_NoDirectives(t *testing.T) {
	dirs, err := Parse("plain text, no braces at all")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(dirs) != 0 {
		t.Errorf("directives = %d, want 0", len(dirs))
	}
}
