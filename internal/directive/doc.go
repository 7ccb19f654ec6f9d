// Package directive extracts render-time directives from template text.
// A directive is an `ask(...)` (interactive) or `delegate(...)` (delegated)
// call embedded in a double-brace expression region, optionally bound to a
// variable with a `var name =` prefix. The parser is pure: it never touches
// the filesystem and never executes anything. Expression regions that do not
// contain a call (tool-native brace syntax, `vars.` and `snippets.`
// references) pass through untouched.
package directive
