package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agentpack-labs/agentpack/internal/agent"
	"github.com/agentpack-labs/agentpack/internal/config"
	"github.com/agentpack-labs/agentpack/internal/lockfile"
	"github.com/agentpack-labs/agentpack/internal/manifest"
	"github.com/agentpack-labs/agentpack/internal/render"
	"github.com/agentpack-labs/agentpack/internal/snipcache"
	"github.com/agentpack-labs/agentpack/internal/tools"
)

var doctorManifest string

func init() {
	doctorCmd.Flags().StringVar(&doctorManifest, "check-manifest", "", "Validate a manifest file at the given path")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Health check for the project and agent tools",
	Long:  `Run diagnostic checks on the project configuration, installed packages, agent CLIs, and the directive cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorManifest != "" {
			return runManifestCheck(cmd, doctorManifest)
		}

		cfg := runConfigCheck(cmd)
		runAgentCheck(cmd, cfg)
		if cfg != nil {
			runProjectCheck(cmd, cfg)
			runCacheCheck(cmd, cfg)
		}
		return nil
	},
}

func runConfigCheck(cmd *cobra.Command) *config.Render {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration:")

	cfg, err := config.ForRender(projectDir, config.Overrides{})
	if err != nil {
		fmt.Fprintf(out, "  [FAIL] %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "  [ OK ] project root %s\n", cfg.ProjectRoot)
	fmt.Fprintf(out, "  [ OK ] tool %s, safe mode %t\n", cfg.Tool, cfg.SafeMode)
	fmt.Fprintf(out, "  [ OK ] modules %s\n", relTo(cfg.ProjectRoot, cfg.ModulesDir))
	if _, err := os.Stat(cfg.StoreRoot); err != nil {
		fmt.Fprintf(out, "  [WARN] store %s does not exist yet\n", cfg.StoreRoot)
	} else {
		fmt.Fprintf(out, "  [ OK ] store %s\n", cfg.StoreRoot)
	}
	return cfg
}

func runAgentCheck(cmd *cobra.Command, cfg *config.Render) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Agent CLIs:")
	for _, name := range tools.All() {
		path, err := agent.Check(name)
		if err != nil {
			fmt.Fprintf(out, "  [MISS] %s\n", name)
			continue
		}
		fmt.Fprintf(out, "  [ OK ] %s found at %s\n", name, path)
	}
	if cfg != nil {
		if _, err := agent.Check(cfg.Tool); err != nil {
			fmt.Fprintf(out, "  [WARN] active tool %s has no CLI; delegate() directives will fail\n", cfg.Tool)
		}
	}
}

func runProjectCheck(cmd *cobra.Command, cfg *config.Render) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Project:")

	proj, err := manifest.LoadProject(cfg.ProjectRoot)
	if err != nil {
		fmt.Fprintf(out, "  [FAIL] cannot parse %s: %v\n", manifest.Filename, err)
		return
	}
	if proj == nil {
		fmt.Fprintf(out, "  [INFO] no %s; dependencies and profiles unavailable\n", manifest.Filename)
	} else {
		fmt.Fprintf(out, "  [ OK ] %s is valid (%d dependencies, %d profiles)\n",
			manifest.Filename, len(proj.Dependencies), len(proj.Profiles))
	}

	lf, err := lockfile.Load(cfg.ProjectRoot)
	if err != nil {
		fmt.Fprintf(out, "  [FAIL] cannot parse %s: %v\n", lockfile.Filename, err)
		return
	}
	if len(lf.Packages) == 0 {
		fmt.Fprintf(out, "  [INFO] no packages pinned in %s\n", lockfile.Filename)
		return
	}
	fmt.Fprintf(out, "  [ OK ] %s pins %d package(s)\n", lockfile.Filename, len(lf.Packages))

	pkgs, err := render.DiscoverInstalled(cfg.ModulesDir, lf, cfg.StoreRoot, localOverrides(cfg.ProjectRoot, proj))
	if err != nil {
		fmt.Fprintf(out, "  [WARN] cannot scan modules directory: %v\n", err)
		return
	}
	installed := make(map[string]render.Installed, len(pkgs))
	for _, p := range pkgs {
		installed[p.Name] = p
	}

	names := make([]string, 0, len(lf.Packages))
	for name := range lf.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		version := lf.Packages[name].Version
		p, ok := installed[name]
		if !ok {
			fmt.Fprintf(out, "  [WARN] %s@%s pinned but missing under %s\n",
				name, version, relTo(cfg.ProjectRoot, cfg.ModulesDir))
			continue
		}
		if _, err := os.Stat(p.Dir); err != nil {
			fmt.Fprintf(out, "  [WARN] %s@%s has no content at %s\n", name, version, p.Dir)
			continue
		}
		if _, err := manifest.LoadPackage(p.Dir); err != nil {
			fmt.Fprintf(out, "  [FAIL] %s@%s: %v\n", name, version, err)
			continue
		}
		fmt.Fprintf(out, "  [ OK ] %s@%s\n", name, version)
	}
}

func runCacheCheck(cmd *cobra.Command, cfg *config.Render) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Cache:")
	if _, err := os.Stat(cfg.CachePath); os.IsNotExist(err) {
		fmt.Fprintf(out, "  [INFO] no cache file yet (%s)\n", relTo(cfg.ProjectRoot, cfg.CachePath))
		return
	}
	store := snipcache.Open(cfg.CachePath, buildVersion).Load()
	total := 0
	for _, p := range store.Packages {
		total += len(p.Entries)
	}
	fmt.Fprintf(out, "  [ OK ] %s holds %d result(s) for %d package(s)\n",
		relTo(cfg.ProjectRoot, cfg.CachePath), total, len(store.Packages))
}

func runManifestCheck(cmd *cobra.Command, path string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Manifest validation: %s\n", path)

	// Validate against JSON Schema.
	result, err := manifest.ValidateFile(path)
	if err != nil {
		fmt.Fprintf(out, "  [FAIL] %v\n", err)
		return fmt.Errorf("manifest validation failed: %w", err)
	}

	if result.Valid {
		// Parse to get type and name for the success message.
		base, err := manifest.Parse(path)
		if err != nil {
			fmt.Fprintf(out, "  [ OK ] Valid manifest\n")
			return nil
		}
		if base.Version != "" {
			fmt.Fprintf(out, "  [ OK ] Valid %s manifest: %s (v%s)\n", base.Type, base.Name, base.Version)
		} else {
			fmt.Fprintf(out, "  [ OK ] Valid %s manifest: %s\n", base.Type, base.Name)
		}
		return nil
	}

	// Report validation issues.
	fmt.Fprintf(out, "  [FAIL] %d validation issue(s):\n", len(result.Issues))
	for _, issue := range result.Issues {
		if issue.Path != "" {
			fmt.Fprintf(out, "    - %s: %s\n", issue.Path, issue.Message)
		} else {
			fmt.Fprintf(out, "    - %s\n", issue.Message)
		}
	}
	return fmt.Errorf("manifest %s has %d validation issue(s)", path, len(result.Issues))
}
