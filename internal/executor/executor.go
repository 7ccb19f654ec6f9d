// Package executor resolves parsed directives to values in two strict
// passes: every interactive directive first, then every delegated
// directive, each pass in document order. Later delegated prompts can
// therefore reference any interactive answer and any earlier delegated
// result from the same render.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/sirupsen/logrus"

	"github.com/agentpack-labs/agentpack/internal/agent"
	"github.com/agentpack-labs/agentpack/internal/directive"
	"github.com/agentpack-labs/agentpack/internal/prompt"
	"github.com/agentpack-labs/agentpack/internal/snipcache"
)

// defaultSystemPrompt frames delegated calls as context extraction, so
// general-purpose agents answer with file content rather than
// conversation. A directive's systemPrompt option replaces it; an
// explicit empty string disables it.
const defaultSystemPrompt = "You are a context-extraction agent producing content for an AI coding assistant's configuration file. Reply with the requested content only, without preamble or commentary."

// Resolved is the outcome of one directive.
type Resolved struct {
	Value interface{}
	Err   *DirectiveError
}

// Context holds a single template render's resolutions.
type Context struct {
	ByVar map[string]interface{}
	ByID  map[string]Resolved
}

// Resolve looks a reference up against the resolved values, walking
// dotted path segments through JSON object values. The second return
// is false when any step is missing, so unresolvable references can
// stay verbatim in output.
func (c *Context) Resolve(ref directive.Ref) (string, bool) {
	var cur interface{}
	switch ref.Root {
	case "vars":
		v, ok := c.ByVar[ref.Path[0]]
		if !ok {
			return "", false
		}
		cur = v
	case "snippets":
		r, ok := c.ByID[ref.Path[0]]
		if !ok || r.Err != nil {
			return "", false
		}
		cur = r.Value
	default:
		return "", false
	}
	for _, seg := range ref.Path[1:] {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return "", false
		}
		if cur, ok = m[seg]; !ok {
			return "", false
		}
	}
	return ValueText(cur), true
}

// DirectiveError describes one failed directive.
type DirectiveError struct {
	ID      string
	Kind    directive.Kind
	Path    string // template-relative path
	Code    string // machine-readable failure class
	Message string
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("%s directive %s in %s: %s", e.Kind, e.ID, e.Path, e.Message)
}

// RunError aggregates every directive failure from one run. It is
// raised only after the passes finish, so it carries the maximum
// diagnostic information.
type RunError struct {
	Failures []*DirectiveError
}

func (e *RunError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d directives failed:", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n  - ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// EventType discriminates scheduler progress events.
type EventType string

const (
	EventStart    EventType = "start"
	EventEnd      EventType = "end"
	EventError    EventType = "error"
	EventAdvisory EventType = "advisory"
)

// Event is one progress report. Events arrive in strict chronological
// order: every interactive start/end pair, then every delegated one.
type Event struct {
	Type    EventType
	ID      string
	Kind    directive.Kind
	Excerpt string
	Tool    string
	Cached  bool
	Message string
	Err     error
}

// EventSink receives progress events. A nil sink discards them.
type EventSink interface {
	Emit(Event)
}

// Options configures one execution run.
type Options struct {
	Prompter prompt.Prompter
	Runner   agent.Runner
	Cache    *snipcache.Cache // nil disables persistent caching
	Events   EventSink

	PackageName    string
	PackageVersion string
	PackageDir     string // root for file-sourced prompts
	TemplatePath   string // template-relative path for error reporting

	SafeMode bool
}

// Run resolves all directives against the injected collaborators.
// Interactive failures abort immediately: once the human walks away
// there is no point asking the next question. Delegated failures are
// collected and the pass continues, so one broken tool call surfaces
// every other problem in the same run. Cache writes for directives
// that did resolve are already persisted when the aggregate *RunError
// returns.
func Run(ctx context.Context, dirs []directive.Directive, opts Options) (*Context, error) {
	r := &runner{
		opts:  opts,
		ec:    &Context{ByVar: map[string]interface{}{}, ByID: map[string]Resolved{}},
		dedup: map[string]*outcome{},
	}

	for i := range dirs {
		if dirs[i].Kind != directive.KindInteractive {
			continue
		}
		if err := r.interactive(&dirs[i]); err != nil {
			return r.ec, &RunError{Failures: r.fails}
		}
	}
	for i := range dirs {
		if dirs[i].Kind != directive.KindDelegated {
			continue
		}
		r.delegated(ctx, &dirs[i])
	}

	if len(r.fails) > 0 {
		return r.ec, &RunError{Failures: r.fails}
	}
	return r.ec, nil
}

// outcome is a shared delegated result within one render.
type outcome struct {
	value  interface{}
	tool   string
	code   string
	errMsg string
}

type runner struct {
	opts    Options
	ec      *Context
	dedup   map[string]*outcome
	advised bool
	fails   []*DirectiveError
}

func (r *runner) interactive(d *directive.Directive) error {
	r.emit(Event{Type: EventStart, ID: d.ID, Kind: d.Kind, Excerpt: d.PromptExcerpt()})

	if entry, ok := r.cacheGet(d); ok {
		r.record(d, decodeValue(entry.Value))
		r.emit(Event{Type: EventEnd, ID: d.ID, Kind: d.Kind, Cached: true})
		return nil
	}

	answer, err := r.opts.Prompter.Ask(prompt.Question{
		Text:         d.Question,
		DefaultValue: d.Interactive.DefaultValue,
		Placeholder:  d.Interactive.Placeholder,
	})
	if err != nil {
		de := r.fail(d, "prompt-failed", err.Error())
		r.emit(Event{Type: EventError, ID: d.ID, Kind: d.Kind, Err: de})
		return de
	}

	r.record(d, answer)
	r.cachePut(d, answer, "")
	r.emit(Event{Type: EventEnd, ID: d.ID, Kind: d.Kind})
	return nil
}

func (r *runner) delegated(ctx context.Context, d *directive.Directive) {
	r.emit(Event{Type: EventStart, ID: d.ID, Kind: d.Kind, Excerpt: d.PromptExcerpt()})

	// Persistent hits never invoke the tool and never advise.
	if entry, ok := r.cacheGet(d); ok {
		r.record(d, decodeValue(entry.Value))
		r.emit(Event{Type: EventEnd, ID: d.ID, Kind: d.Kind, Cached: true, Tool: entry.Tool})
		return
	}

	system := defaultSystemPrompt
	if d.Delegated.SystemPrompt != nil {
		system = *d.Delegated.SystemPrompt
	}
	key := dedupKey(d, system, r.effectiveSafeMode(d))

	// Same-render duplicate: share the first result, invoke nothing.
	if prior, ok := r.dedup[key]; ok {
		if prior.code != "" {
			de := r.fail(d, prior.code, prior.errMsg)
			r.emit(Event{Type: EventError, ID: d.ID, Kind: d.Kind, Err: de})
			return
		}
		r.record(d, prior.value)
		r.cachePut(d, prior.value, prior.tool)
		r.emit(Event{Type: EventEnd, ID: d.ID, Kind: d.Kind, Tool: prior.tool})
		return
	}

	text, err := r.promptText(d)
	if err != nil {
		de := r.fail(d, "prompt-source", err.Error())
		r.emit(Event{Type: EventError, ID: d.ID, Kind: d.Kind, Err: de})
		return
	}
	text = directive.Interpolate(text, r.ec.Resolve)

	r.adviseOnce()

	resp, err := r.opts.Runner.Invoke(ctx, agent.Request{
		Prompt:       text,
		SystemPrompt: system,
		Tool:         d.Delegated.Tool,
		SafeMode:     r.effectiveSafeMode(d),
		Timeout:      time.Duration(d.Delegated.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		code := "invoke-failed"
		var invErr *agent.Error
		if errors.As(err, &invErr) {
			code = string(invErr.Kind)
		}
		r.dedup[key] = &outcome{code: code, errMsg: err.Error()}
		de := r.fail(d, code, err.Error())
		r.emit(Event{Type: EventError, ID: d.ID, Kind: d.Kind, Err: de})
		return
	}

	value, err := interpretResult(resp.Text, d.Delegated.ExpectJSON)
	if err != nil {
		r.dedup[key] = &outcome{code: "bad-json", errMsg: err.Error()}
		de := r.fail(d, "bad-json", err.Error())
		r.emit(Event{Type: EventError, ID: d.ID, Kind: d.Kind, Err: de})
		return
	}

	r.dedup[key] = &outcome{value: value, tool: resp.Tool}
	r.record(d, value)
	r.cachePut(d, value, resp.Tool)
	r.emit(Event{Type: EventEnd, ID: d.ID, Kind: d.Kind, Tool: resp.Tool})
}

// record stores a resolved value under the directive's id and, when
// bound, its variable name.
func (r *runner) record(d *directive.Directive, value interface{}) {
	r.ec.ByID[d.ID] = Resolved{Value: value}
	if d.VarName != "" {
		r.ec.ByVar[d.VarName] = value
	}
}

func (r *runner) fail(d *directive.Directive, code, msg string) *DirectiveError {
	de := &DirectiveError{
		ID:      d.ID,
		Kind:    d.Kind,
		Path:    r.opts.TemplatePath,
		Code:    code,
		Message: msg,
	}
	r.ec.ByID[d.ID] = Resolved{Err: de}
	r.fails = append(r.fails, de)
	return de
}

func (r *runner) effectiveSafeMode(d *directive.Directive) bool {
	if d.Delegated.SafeMode != nil {
		return *d.Delegated.SafeMode
	}
	return r.opts.SafeMode
}

// promptText returns the pre-interpolation prompt: inline text, or the
// contents of a file resolved inside the package root.
func (r *runner) promptText(d *directive.Directive) (string, error) {
	if d.Prompt.Kind != directive.SourceFile {
		return d.Prompt.Value, nil
	}
	if r.opts.PackageDir == "" {
		return "", fmt.Errorf("prompt file %s: no package directory available", d.Prompt.Value)
	}
	path, err := securejoin.SecureJoin(r.opts.PackageDir, d.Prompt.Value)
	if err != nil {
		return "", fmt.Errorf("resolving prompt file %s: %w", d.Prompt.Value, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt file %s: %w", d.Prompt.Value, err)
	}
	return string(data), nil
}

// adviseOnce emits the one-time advisory before the first real tool
// invocation of a run. Persistent cache hits never reach here.
func (r *runner) adviseOnce() {
	if r.advised {
		return
	}
	r.advised = true
	r.emit(Event{
		Type:    EventAdvisory,
		Message: "delegating to an agent tool; results are cached for future renders",
	})
}

func (r *runner) emit(ev Event) {
	if r.opts.Events != nil {
		r.opts.Events.Emit(ev)
	}
}

func (r *runner) cacheGet(d *directive.Directive) (*snipcache.Entry, bool) {
	if r.opts.Cache == nil || r.opts.PackageName == "" {
		return nil, false
	}
	return r.opts.Cache.Get(r.opts.PackageName, r.opts.PackageVersion, d.ID)
}

func (r *runner) cachePut(d *directive.Directive, value interface{}, tool string) {
	if r.opts.Cache == nil || r.opts.PackageName == "" {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		logrus.WithError(err).Warnf("skipping cache write for directive %s", d.ID)
		return
	}
	entry := snipcache.Entry{
		ID:            d.ID,
		Kind:          string(d.Kind),
		PromptExcerpt: d.PromptExcerpt(),
		Value:         string(data),
		Tool:          tool,
	}
	if err := r.opts.Cache.Put(r.opts.PackageName, r.opts.PackageVersion, entry); err != nil {
		logrus.WithError(err).Warnf("persisting result for directive %s", d.ID)
	}
}

// dedupKey identifies identical delegated work within one render: the
// pre-interpolation prompt source plus everything that changes the
// invocation. The effective system prompt participates so a directive
// spelling out the default framing and one inheriting it still share.
func dedupKey(d *directive.Directive, system string, safeMode bool) string {
	return fmt.Sprintf("%s|%s|%q|%t|%q|%t|%d|%q",
		d.Kind, d.Prompt.Kind, d.Prompt.Value,
		d.Delegated.ExpectJSON, d.Delegated.Tool,
		safeMode, d.Delegated.TimeoutMs, system)
}

// interpretResult converts raw tool output into a directive value.
// Plain text unless expectJSON; either way, an object whose result
// field holds JSON-looking text gets that payload parsed and merged in
// without clobbering, with result_parsed set on success, so templates
// can reference the raw result or its structured form.
func interpretResult(text string, expectJSON bool) (interface{}, error) {
	var parsed interface{}
	err := json.Unmarshal([]byte(text), &parsed)
	if expectJSON {
		if err != nil {
			return nil, fmt.Errorf("expected JSON output: %w", err)
		}
		return unwrapResult(parsed), nil
	}
	if err == nil {
		if obj, ok := parsed.(map[string]interface{}); ok && hasJSONResult(obj) {
			return unwrapResult(obj), nil
		}
	}
	return text, nil
}

func hasJSONResult(obj map[string]interface{}) bool {
	s, ok := obj["result"].(string)
	return ok && jsonLooking(s)
}

// unwrapResult applies the opportunistic envelope handling to an
// already-parsed value.
func unwrapResult(v interface{}) interface{} {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	s, ok := obj["result"].(string)
	if !ok || !jsonLooking(s) {
		return v
	}
	var nested interface{}
	if err := json.Unmarshal([]byte(s), &nested); err != nil {
		return v
	}
	if fields, ok := nested.(map[string]interface{}); ok {
		for k, val := range fields {
			if _, exists := obj[k]; !exists {
				obj[k] = val
			}
		}
	}
	obj["result_parsed"] = nested
	return obj
}

func jsonLooking(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// decodeValue rehydrates a cached JSON value; undecodable content is
// kept as raw text rather than discarded.
func decodeValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// ValueText renders a resolved value for substitution into template
// text: strings pass through, everything else serializes as compact
// JSON.
func ValueText(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
