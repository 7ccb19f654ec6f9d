package prompt

import (
	"strings"
	"testing"

	"github.com/AlecAivazis/survey/v2/terminal"
)

func strptr(s string) *string { return &s }

func TestReader_Ask(t *testing.T) {
	var out strings.Builder
	r := NewReader(strings.NewReader("Alice\n"), &out)

	answer, err := r.Ask(Question{Text: "Name?"})
	if err != nil {
		t.Fatalf("Ask error: %v", err)
	}
	if answer != "Alice" {
		t.Errorf("answer = %q, want %q", answer, "Alice")
	}
	if !strings.Contains(out.String(), "Name?") {
		t.Errorf("prompt output %q missing question text", out.String())
	}
}

func TestReader_DefaultOnEmptyInput(t *testing.T) {
	var out strings.Builder
	r := NewReader(strings.NewReader("\n"), &out)

	answer, err := r.Ask(Question{Text: "Name?", DefaultValue: strptr("anon")})
	if err != nil {
		t.Fatalf("Ask error: %v", err)
	}
	if answer != "anon" {
		t.Errorf("answer = %q, want %q", answer, "anon")
	}
	if !strings.Contains(out.String(), "[anon]") {
		t.Errorf("prompt output %q does not show the default", out.String())
	}
}

func TestReader_PlaceholderShown(t *testing.T) {
	var out strings.Builder
	r := NewReader(strings.NewReader("x\n"), &out)

	if _, err := r.Ask(Question{Text: "Name?", Placeholder: strptr("your name")}); err != nil {
		t.Fatalf("Ask error: %v", err)
	}
	if !strings.Contains(out.String(), "(your name)") {
		t.Errorf("prompt output %q does not show the placeholder", out.String())
	}
}

func TestReader_TrimsWhitespace(t *testing.T) {
	r := NewReader(strings.NewReader("  spaced  \n"), &strings.Builder{})

	answer, err := r.Ask(Question{Text: "Q"})
	if err != nil {
		t.Fatalf("Ask error: %v", err)
	}
	if answer != "spaced" {
		t.Errorf("answer = %q, want %q", answer, "spaced")
	}
}

func TestReader_LastLineWithoutNewline(t *testing.T) {
	r := NewReader(strings.NewReader("Alice"), &strings.Builder{})

	answer, err := r.Ask(Question{Text: "Name?"})
	if err != nil {
		t.Fatalf("Ask error: %v", err)
	}
	if answer != "Alice" {
		t.Errorf("answer = %q, want %q", answer, "Alice")
	}
}

func TestReader_ClosedInputWithoutDefault(t *testing.T) {
	r := NewReader(strings.NewReader(""), &strings.Builder{})

	if _, err := r.Ask(Question{Text: "Name?"}); err == nil {
		t.Fatal("expected error for closed input, got nil")
	}
}

func TestReader_ClosedInputWithDefault(t *testing.T) {
	r := NewReader(strings.NewReader(""), &strings.Builder{})

	answer, err := r.Ask(Question{Text: "Name?", DefaultValue: strptr("anon")})
	if err != nil {
		t.Fatalf("Ask error: %v", err)
	}
	if answer != "anon" {
		t.Errorf("answer = %q, want %q", answer, "anon")
	}
}

func TestReader_SequentialQuestions(t *testing.T) {
	var out strings.Builder
	r := NewReader(strings.NewReader("one\ntwo\n"), &out)

	first, err := r.Ask(Question{Text: "First?"})
	if err != nil {
		t.Fatalf("Ask error: %v", err)
	}
	second, err := r.Ask(Question{Text: "Second?"})
	if err != nil {
		t.Fatalf("Ask error: %v", err)
	}
	if first != "one" || second != "two" {
		t.Errorf("answers = %q, %q, want %q, %q", first, second, "one", "two")
	}
}

func TestInterrupted(t *testing.T) {
	if !Interrupted(terminal.InterruptErr) {
		t.Error("Interrupted(terminal.InterruptErr) = false, want true")
	}
	if Interrupted(nil) {
		t.Error("Interrupted(nil) = true, want false")
	}
}
