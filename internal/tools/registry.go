// Package tools is the registry of supported AI coding tools: where
// each tool expects its rendered entry file, and how its CLI is
// invoked for delegated directives.
package tools

// Name identifies a supported tool.
type Name string

const (
	ClaudeCode Name = "claude-code"
	Cursor     Name = "cursor"
	Copilot    Name = "copilot"
	Codex      Name = "codex"
	Gemini     Name = "gemini"
)

// Config maps a tool to its rendered entry file and its agent CLI.
type Config struct {
	// DefaultFile is the destination, relative to a package's output
	// directory, for the package's singular template export.
	DefaultFile string

	// CLI is the agent binary used for delegated directives. Empty
	// means the tool has no one-shot prompt mode.
	CLI string

	// PromptArgs select the CLI's non-interactive prompt mode; the
	// prompt itself always travels on stdin.
	PromptArgs []string

	// JSONArgs additionally request a structured JSON envelope on
	// stdout. Empty means the tool only emits plain text.
	JSONArgs []string

	// UnsafeArgs are appended when safe mode is off. Tools without a
	// permission model leave this empty.
	UnsafeArgs []string

	// SystemPromptFlag names the flag carrying a system prompt
	// override, when the CLI has one.
	SystemPromptFlag string
}

// All returns the supported tool names in stable order.
func All() []Name {
	return []Name{ClaudeCode, Cursor, Copilot, Codex, Gemini}
}

var registry = map[Name]Config{
	ClaudeCode: {
		DefaultFile:      "CLAUDE.md",
		CLI:              "claude",
		PromptArgs:       []string{"-p"},
		JSONArgs:         []string{"--output-format", "json"},
		UnsafeArgs:       []string{"--dangerously-skip-permissions"},
		SystemPromptFlag: "--append-system-prompt",
	},
	Cursor: {
		DefaultFile: ".cursorrules",
		CLI:         "cursor-agent",
		PromptArgs:  []string{"-p"},
		JSONArgs:    []string{"--output-format", "json"},
	},
	Copilot: {
		DefaultFile: ".github/copilot-instructions.md",
		CLI:         "copilot",
		PromptArgs:  []string{"-p"},
	},
	Codex: {
		DefaultFile: "AGENTS.md",
		CLI:         "codex",
		PromptArgs:  []string{"exec", "-"},
		JSONArgs:    []string{"--json"},
	},
	Gemini: {
		DefaultFile: "GEMINI.md",
		CLI:         "gemini",
		PromptArgs:  []string{"-p"},
	},
}

// Get returns the configuration for a tool.
func Get(n Name) (Config, bool) {
	cfg, ok := registry[n]
	return cfg, ok
}

// Parse converts a string to a tool Name, returning false if the tool
// is not supported. Common short forms map to their canonical name.
func Parse(s string) (Name, bool) {
	switch s {
	case "claude-code", "claude":
		return ClaudeCode, true
	case "cursor":
		return Cursor, true
	case "copilot":
		return Copilot, true
	case "codex":
		return Codex, true
	case "gemini":
		return Gemini, true
	default:
		return "", false
	}
}

// DefaultFiles returns tool name → default entry file, for layering
// into render configuration.
func DefaultFiles() map[string]string {
	files := make(map[string]string, len(registry))
	for name, cfg := range registry {
		files[string(name)] = cfg.DefaultFile
	}
	return files
}
