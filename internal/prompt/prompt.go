// Package prompt supplies the interactive collaborator for directive
// execution. A Prompter asks a human one question and returns the raw
// answer; the scheduler never touches a terminal directly.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// Question is one interactive request: the text to show, an optional
// default answer, and an optional hint about the expected value.
type Question struct {
	Text         string
	DefaultValue *string
	Placeholder  *string
}

// Prompter resolves interactive directives. Applying the default on
// empty input is the prompter's job, so callers always receive the
// effective answer.
type Prompter interface {
	Ask(q Question) (string, error)
}

// Default picks the prompter for this process: a survey-backed
// terminal prompter when stdin and stdout are terminals, plain
// line-oriented I/O otherwise.
func Default() Prompter {
	if isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		return Terminal{}
	}
	return NewReader(os.Stdin, os.Stderr)
}

// Interrupted reports whether err means the user aborted the prompt.
func Interrupted(err error) bool {
	return errors.Is(err, terminal.InterruptErr)
}

// Terminal asks questions on the controlling terminal.
type Terminal struct{}

// Ask shows a single-line input prompt. The placeholder hint is
// surfaced through survey's help text.
func (Terminal) Ask(q Question) (string, error) {
	input := &survey.Input{Message: q.Text}
	if q.DefaultValue != nil {
		input.Default = *q.DefaultValue
	}
	if q.Placeholder != nil {
		input.Help = *q.Placeholder
	}
	var answer string
	if err := survey.AskOne(input, &answer); err != nil {
		return "", fmt.Errorf("asking %q: %w", q.Text, err)
	}
	return answer, nil
}

// Reader asks questions over plain reader/writer streams, for
// non-terminal stdin and for tests.
type Reader struct {
	in  *bufio.Reader
	out io.Writer
}

// NewReader returns a Reader prompting on out and reading answers
// line-by-line from in.
func NewReader(in io.Reader, out io.Writer) *Reader {
	return &Reader{in: bufio.NewReader(in), out: out}
}

// Ask writes the question, with its hint and default when present, and
// reads one line. An empty line falls back to the default.
func (r *Reader) Ask(q Question) (string, error) {
	label := q.Text
	if q.Placeholder != nil && *q.Placeholder != "" {
		label = fmt.Sprintf("%s (%s)", label, *q.Placeholder)
	}
	if q.DefaultValue != nil && *q.DefaultValue != "" {
		label = fmt.Sprintf("%s [%s]", label, *q.DefaultValue)
	}
	fmt.Fprintf(r.out, "%s: ", label)

	line, err := r.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		if q.DefaultValue != nil {
			return *q.DefaultValue, nil
		}
		if err == io.EOF {
			return "", fmt.Errorf("no answer for %q: input closed", q.Text)
		}
	}
	return answer, nil
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
