// Package agent spawns external AI tool CLIs to resolve delegated
// directives. The scheduler talks to a Runner; the CLI-backed
// implementation lives here so process handling stays in one place.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"

	"github.com/agentpack-labs/agentpack/internal/tools"
)

// DefaultTimeout bounds a delegated invocation when the directive does
// not set timeoutMs.
const DefaultTimeout = 2 * time.Minute

// Request is one delegated invocation.
type Request struct {
	// Prompt is the fully interpolated prompt text.
	Prompt string

	// SystemPrompt is the effective system prompt. Empty means none:
	// an explicit empty override and "no framing" look the same here.
	SystemPrompt string

	// Tool overrides the configured tool. Either a supported tool name
	// or a full custom command line.
	Tool string

	// SafeMode keeps the tool inside its restricted permission mode.
	SafeMode bool

	// Timeout bounds the invocation; zero means DefaultTimeout.
	Timeout time.Duration
}

// Response is a successful invocation's output.
type Response struct {
	// Text is the tool's answer, with any CLI JSON envelope already
	// unwrapped.
	Text string

	// Tool is the label of what actually ran: a canonical tool name,
	// or the binary of a custom override.
	Tool string
}

// Runner resolves delegated directives. The render pipeline injects
// one, so tests can substitute a fake and count invocations.
type Runner interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// ErrorKind is a machine-readable failure class for delegated
// invocations.
type ErrorKind string

const (
	ErrNotFound    ErrorKind = "tool-not-found"
	ErrExit        ErrorKind = "tool-exit"
	ErrTimeout     ErrorKind = "tool-timeout"
	ErrNoCLI       ErrorKind = "tool-no-cli"
	ErrBadOverride ErrorKind = "bad-tool-override"
)

// Error is a failed delegated invocation.
type Error struct {
	Tool   string
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Tool, e.Detail, e.Kind)
}

// CLIRunner invokes agent CLIs resolved through the tool registry.
type CLIRunner struct {
	// DefaultTool answers delegated directives without a tool
	// override.
	DefaultTool tools.Name

	// DefaultTimeout overrides the package default when positive.
	DefaultTimeout time.Duration
}

// invocation is one planned process spawn.
type invocation struct {
	argv     []string
	stdin    string
	jsonMode bool
	tool     string
}

// Invoke spawns the tool CLI with the prompt on stdin and returns its
// answer. Not-found, non-zero exit, and timeout all map to *Error with
// a distinct kind.
func (r *CLIRunner) Invoke(ctx context.Context, req Request) (*Response, error) {
	inv, err := r.plan(req)
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.timeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, inv.argv[0], inv.argv[1:]...)
	cmd.Stdin = strings.NewReader(inv.stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logrus.WithFields(logrus.Fields{"tool": inv.tool, "argv": inv.argv}).Debug("invoking agent CLI")

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, &Error{Tool: inv.tool, Kind: ErrTimeout, Detail: fmt.Sprintf("timed out after %s", timeout)}
	}
	if runErr != nil {
		var execErr *exec.Error
		if errors.As(runErr, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return nil, &Error{Tool: inv.tool, Kind: ErrNotFound, Detail: fmt.Sprintf("%s not found in PATH", inv.argv[0])}
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = runErr.Error()
		}
		return nil, &Error{Tool: inv.tool, Kind: ErrExit, Detail: detail}
	}

	text := strings.TrimSpace(stdout.String())
	if inv.jsonMode {
		text = unwrapEnvelope(text)
	}
	return &Response{Text: text, Tool: inv.tool}, nil
}

// plan resolves the request to argv and stdin payload. A tool override
// that is not a supported name is treated as a custom command line.
func (r *CLIRunner) plan(req Request) (*invocation, error) {
	if req.Tool != "" {
		if name, ok := tools.Parse(req.Tool); ok {
			return r.toolPlan(name, req)
		}
		words, err := shellquote.Split(req.Tool)
		if err != nil || len(words) == 0 {
			return nil, &Error{Tool: req.Tool, Kind: ErrBadOverride, Detail: "tool override is neither a supported tool nor a valid command line"}
		}
		return &invocation{
			argv:  words,
			stdin: inlineSystemPrompt(req.SystemPrompt, req.Prompt),
			tool:  words[0],
		}, nil
	}
	return r.toolPlan(r.DefaultTool, req)
}

// toolPlan builds the invocation for a registry tool.
func (r *CLIRunner) toolPlan(name tools.Name, req Request) (*invocation, error) {
	cfg, ok := tools.Get(name)
	if !ok || cfg.CLI == "" {
		return nil, &Error{Tool: string(name), Kind: ErrNoCLI, Detail: "tool has no agent CLI"}
	}

	argv := append([]string{cfg.CLI}, cfg.PromptArgs...)
	jsonMode := len(cfg.JSONArgs) > 0
	if jsonMode {
		argv = append(argv, cfg.JSONArgs...)
	}

	stdin := req.Prompt
	if req.SystemPrompt != "" {
		if cfg.SystemPromptFlag != "" {
			argv = append(argv, cfg.SystemPromptFlag, req.SystemPrompt)
		} else {
			stdin = inlineSystemPrompt(req.SystemPrompt, req.Prompt)
		}
	}
	if !req.SafeMode && len(cfg.UnsafeArgs) > 0 {
		argv = append(argv, cfg.UnsafeArgs...)
	}

	return &invocation{argv: argv, stdin: stdin, jsonMode: jsonMode, tool: string(name)}, nil
}

func (r *CLIRunner) timeout() time.Duration {
	if r.DefaultTimeout > 0 {
		return r.DefaultTimeout
	}
	return DefaultTimeout
}

// Check probes whether a tool's agent CLI is installed, returning its
// resolved path.
func Check(name tools.Name) (string, error) {
	cfg, ok := tools.Get(name)
	if !ok || cfg.CLI == "" {
		return "", &Error{Tool: string(name), Kind: ErrNoCLI, Detail: "tool has no agent CLI"}
	}
	path, err := exec.LookPath(cfg.CLI)
	if err != nil {
		return "", &Error{Tool: string(name), Kind: ErrNotFound, Detail: fmt.Sprintf("%s not found in PATH", cfg.CLI)}
	}
	return path, nil
}

// inlineSystemPrompt folds the system prompt into the stdin payload
// for CLIs without a dedicated flag.
func inlineSystemPrompt(system, prompt string) string {
	if system == "" {
		return prompt
	}
	return system + "\n\n" + prompt
}

// unwrapEnvelope extracts the result text from a JSON-mode CLI
// envelope. Output that is not such an envelope passes through
// untouched.
func unwrapEnvelope(text string) string {
	var env struct {
		Result *string `json:"result"`
	}
	if err := json.Unmarshal([]byte(text), &env); err != nil || env.Result == nil {
		return text
	}
	return *env.Result
}
