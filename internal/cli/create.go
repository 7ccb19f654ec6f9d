package cli

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentpack-labs/agentpack/internal/branding"
	"github.com/agentpack-labs/agentpack/internal/scaffold"
	"github.com/agentpack-labs/agentpack/internal/tools"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

var (
	createScope       string
	createDescription string
	createTools       string
	createOutputDir   string
)

func init() {
	createCmd.Flags().StringVar(&createScope, "scope", "", "Package scope, without the @ (e.g., acme)")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Package description")
	createCmd.Flags().StringVar(&createTools, "tools", string(tools.ClaudeCode), "Comma-separated tools the package exports to")
	createCmd.Flags().StringVar(&createOutputDir, "output-dir", "", "Output directory (default: ./<name>)")
	rootCmd.AddCommand(createCmd)
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Scaffold a new agent-configuration package",
	Long: `Scaffold a new package: a manifest, a starter directive template, and
example agent and MCP exports.

Examples:
  agentpack create review-pack --scope acme
  agentpack create java-conventions --tools claude-code,codex`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := validateName(name); err != nil {
		return err
	}
	if createScope != "" {
		if err := validateName(createScope); err != nil {
			return fmt.Errorf("invalid scope: %w", err)
		}
	}

	toolNames, err := parseToolsList(createTools)
	if err != nil {
		return err
	}

	data := scaffold.NewData(name, createScope, createDescription, toolNames)
	outDir := createOutputDir
	if outDir == "" {
		outDir = filepath.Join(".", name)
	}

	result, err := scaffold.Generate(data, outDir)
	if err != nil {
		return err
	}

	printCreateResult(cmd, result)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Edit templates/instructions.md.tpl with your package's guidance")
	fmt.Fprintln(out, "  2. Adjust the exports in agentpack.yaml for each tool")
	fmt.Fprintf(out, "  3. Add it to a project as a file: dependency and run '%s render'\n", branding.CLIName())
	return nil
}

// ─── Helpers ───────────────────────────────────────────────────────

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid name %q: must match pattern [a-z0-9][a-z0-9-]*", name)
	}
	return nil
}

// parseToolsList splits a comma-separated tool list, mapping aliases to
// canonical names and dropping duplicates.
func parseToolsList(s string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		tool, ok := tools.Parse(trimmed)
		if !ok {
			return nil, fmt.Errorf("unsupported tool %q", trimmed)
		}
		if seen[string(tool)] {
			continue
		}
		seen[string(tool)] = true
		names = append(names, string(tool))
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one tool must be specified via --tools")
	}
	return names, nil
}

func printCreateResult(cmd *cobra.Command, result *scaffold.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created package at %s/\n", result.OutputDir)
	for _, f := range result.Files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}
}
