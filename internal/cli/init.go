package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentpack-labs/agentpack/internal/branding"
	"github.com/agentpack-labs/agentpack/internal/config"
	"github.com/agentpack-labs/agentpack/internal/manifest"
	"github.com/agentpack-labs/agentpack/internal/tools"
)

var initTool string

func init() {
	initCmd.Flags().StringVar(&initTool, "tool", string(tools.ClaudeCode), "Agent tool answering delegate() directives")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an AgentPack project",
	Long: `Initialize the current directory (or --project) as an AgentPack project:
a starter agentpack.yaml, the settings directory, and the modules
directory rendered packages land in.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	// Check if the project is already initialized.
	manifestPath := filepath.Join(root, manifest.Filename)
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("project already initialized: %s exists", manifestPath)
	}

	toolName, ok := tools.Parse(initTool)
	if !ok {
		return fmt.Errorf("unsupported tool %q", initTool)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initializing %s project in %s\n", branding.DisplayName(), root)

	if err := config.Set(root, "tool", string(toolName)); err != nil {
		return err
	}
	cfg, err := config.ForRender(root, config.Overrides{})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.ModulesDir, 0755); err != nil {
		return fmt.Errorf("creating modules directory: %w", err)
	}

	starter := fmt.Sprintf(`type: project
name: %s

# Declare the packages this project uses. The resolver installs them
# into the lockfile and modules directory; file: entries point at
# local working copies.
#
# dependencies:
#   "@acme/java-conventions": ^1.0.0
#   my-local-pack: file:../my-local-pack
#
# profiles:
#   web:
#     - "@acme/java-conventions"
`, projectName(root))
	if err := os.WriteFile(manifestPath, []byte(starter), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", manifestPath, err)
	}

	// Keep per-run artifacts out of version control.
	ignorePath := filepath.Join(config.Dir(root), ".gitignore")
	if err := os.WriteFile(ignorePath, []byte("backups/\nsnipcache.json\n"), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", ignorePath, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nProject initialized. Created:\n")
	fmt.Fprintf(out, "  %s\n", manifest.Filename)
	fmt.Fprintf(out, "  %s\n", relTo(root, config.FilePath(root)))
	fmt.Fprintf(out, "  %s%c\n", relTo(root, cfg.ModulesDir), filepath.Separator)
	fmt.Fprintf(out, "\nDeclare dependencies in %s, install them, then run '%s render'.\n",
		manifest.Filename, branding.CLIName())
	return nil
}

// projectName derives a starter manifest name from the directory,
// falling back when the directory name is not a valid package name.
func projectName(root string) string {
	name := strings.ToLower(filepath.Base(root))
	if namePattern.MatchString(name) {
		return name
	}
	return "my-project"
}
