package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agentpack-labs/agentpack/internal/branding"
	"github.com/agentpack-labs/agentpack/internal/config"
	"github.com/agentpack-labs/agentpack/internal/executor"
	"github.com/agentpack-labs/agentpack/internal/manifest"
	"github.com/agentpack-labs/agentpack/internal/render"
)

var (
	renderPackage  string
	renderProfile  string
	renderTool     string
	renderForce    bool
	renderNoCache  bool
	renderSafeMode bool
)

func init() {
	renderCmd.Flags().StringVar(&renderPackage, "package", "", "Render only the named package")
	renderCmd.Flags().StringVar(&renderProfile, "profile", "", "Render only the packages in a project profile")
	renderCmd.Flags().StringVar(&renderTool, "tool", "", "Agent tool answering delegate() directives (claude-code, cursor, copilot, codex, gemini)")
	renderCmd.Flags().BoolVar(&renderForce, "force", false, "Overwrite existing files, backing them up first")
	renderCmd.Flags().BoolVar(&renderNoCache, "no-cache", false, "Ignore the directive result cache for this run")
	renderCmd.Flags().BoolVar(&renderSafeMode, "safe-mode", true, "Keep delegated tools in their restricted permission mode")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render installed packages into tool-specific files",
	Long: `Render every installed package's exports into concrete files under the
modules directory, one subtree per package.

Files ending in .tpl run through the directive pipeline: ask() prompts
you, delegate() calls an agent CLI, and results are cached so an
unchanged template re-renders without asking again. Every other export
is copied byte-for-byte. Existing files are skipped unless --force,
which backs up what it overwrites.`,
	RunE: runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	overrides := config.Overrides{
		Tool:    renderTool,
		NoCache: renderNoCache,
	}
	// Only an explicit flag may override the configured safe mode.
	if cmd.Flags().Changed("safe-mode") {
		overrides.SafeMode = &renderSafeMode
	}

	cfg, err := config.ForRender(projectDir, overrides)
	if err != nil {
		return err
	}

	proj, err := manifest.LoadProject(cfg.ProjectRoot)
	if err != nil {
		return err
	}

	opts := render.Options{
		Tool:        cfg.Tool,
		SafeMode:    cfg.SafeMode,
		Force:       renderForce,
		NoCache:     cfg.NoCache,
		PackageName: renderPackage,
		Profile:     renderProfile,
		Filenames:   cfg.Filenames,
		CachePath:   cfg.CachePath,
		StoreRoot:   cfg.StoreRoot,
		Overrides:   localOverrides(cfg.ProjectRoot, proj),
		ToolVersion: buildVersion,
		Events:      &eventPrinter{err: cmd.ErrOrStderr()},
	}

	res, runErr := render.PlanAndRender(cmd.Context(), cfg.ProjectRoot, cfg.ModulesDir, opts)
	if res != nil {
		printRenderResult(cmd, cfg.ProjectRoot, res)
	}
	if runErr != nil {
		return runErr
	}

	if res == nil || len(res.Files) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Nothing to render: no installed packages under %s.\n",
			relTo(cfg.ProjectRoot, cfg.ModulesDir))
	}
	return nil
}

func printRenderResult(cmd *cobra.Command, root string, res *render.Result) {
	out := cmd.OutOrStdout()

	if len(res.Written) > 0 {
		fmt.Fprintf(out, "Written %d file(s):\n", len(res.Written))
		for _, p := range res.Written {
			fmt.Fprintf(out, "  %s\n", relTo(root, p))
		}
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped %d file(s):\n", len(res.Skipped))
		for _, s := range res.Skipped {
			fmt.Fprintf(out, "  %s  [%s] %s\n", relTo(root, s.Path), s.Reason, s.Detail)
		}
	}
	if len(res.BackedUp) > 0 {
		fmt.Fprintf(out, "Backed up %d file(s) under %s.\n",
			len(res.BackedUp), filepath.Join(branding.HomeDir(), "backups"))
	}
}

// eventPrinter surfaces scheduler progress: the one-time delegation
// advisory on stderr, per-directive outcomes as debug diagnostics.
type eventPrinter struct {
	err io.Writer
}

func (p *eventPrinter) Emit(ev executor.Event) {
	switch ev.Type {
	case executor.EventAdvisory:
		fmt.Fprintf(p.err, "%s\n", ev.Message)
	case executor.EventEnd:
		logrus.WithFields(logrus.Fields{"id": ev.ID, "kind": ev.Kind, "cached": ev.Cached}).Debug("directive resolved")
	case executor.EventError:
		logrus.WithFields(logrus.Fields{"id": ev.ID, "kind": ev.Kind}).WithError(ev.Err).Debug("directive failed")
	}
}

// ─── Helpers ───────────────────────────────────────────────────────

// localOverrides maps file: dependencies to directories resolved
// against the project root. The renderer reads package content from
// these instead of the store when the directory exists.
func localOverrides(root string, proj *manifest.Project) map[string]string {
	if proj == nil || len(proj.Dependencies) == 0 {
		return nil
	}
	overrides := make(map[string]string)
	for name, src := range proj.Dependencies {
		if !strings.HasPrefix(src, "file:") {
			continue
		}
		dir := strings.TrimPrefix(src, "file:")
		if dir == "" {
			continue
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		overrides[name] = dir
	}
	return overrides
}

// relTo shortens a path for display when it sits under root.
func relTo(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}
