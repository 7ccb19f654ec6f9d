package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentpack-labs/agentpack/internal/config"
	"github.com/agentpack-labs/agentpack/internal/lockfile"
	"github.com/agentpack-labs/agentpack/internal/manifest"
	"github.com/agentpack-labs/agentpack/internal/render"
	"github.com/agentpack-labs/agentpack/internal/snipcache"
)

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the directive result cache",
	Long:  `Inspect and maintain the persistent cache of resolved ask() and delegate() results.`,
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the cache holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ForRender(projectDir, config.Overrides{})
		if err != nil {
			return err
		}

		if _, err := os.Stat(cfg.CachePath); os.IsNotExist(err) {
			fmt.Fprintf(cmd.OutOrStdout(), "No cache file at %s.\n", relTo(cfg.ProjectRoot, cfg.CachePath))
			return nil
		}

		store := snipcache.Open(cfg.CachePath, buildVersion).Load()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Cache: %s\n", relTo(cfg.ProjectRoot, cfg.CachePath))
		if !store.Metadata.GeneratedAt.IsZero() {
			fmt.Fprintf(out, "Generated: %s (tool %s)\n",
				store.Metadata.GeneratedAt.Format(time.RFC3339), store.Metadata.ToolVersion)
		}
		if len(store.Packages) == 0 {
			fmt.Fprintln(out, "Cache is empty.")
			return nil
		}

		names := make([]string, 0, len(store.Packages))
		for name := range store.Packages {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "PACKAGE\tVERSION\tENTRIES")
		total := 0
		for _, name := range names {
			p := store.Packages[name]
			fmt.Fprintf(w, "%s\t%s\t%d\n", name, p.Version, len(p.Entries))
			total += len(p.Entries)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d package(s), %d cached result(s).\n", len(names), total)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cache file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ForRender(projectDir, config.Overrides{})
		if err != nil {
			return err
		}

		if _, err := os.Stat(cfg.CachePath); os.IsNotExist(err) {
			fmt.Fprintf(cmd.OutOrStdout(), "No cache file at %s.\n", relTo(cfg.ProjectRoot, cfg.CachePath))
			return nil
		}

		if err := snipcache.Open(cfg.CachePath, buildVersion).Clear(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", relTo(cfg.ProjectRoot, cfg.CachePath))
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop cached results for packages no longer installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ForRender(projectDir, config.Overrides{})
		if err != nil {
			return err
		}
		proj, err := manifest.LoadProject(cfg.ProjectRoot)
		if err != nil {
			return err
		}
		lf, err := lockfile.Load(cfg.ProjectRoot)
		if err != nil {
			return err
		}
		pkgs, err := render.DiscoverInstalled(cfg.ModulesDir, lf, cfg.StoreRoot, localOverrides(cfg.ProjectRoot, proj))
		if err != nil {
			return err
		}

		keep := make(map[string]bool, len(pkgs))
		for _, p := range pkgs {
			keep[p.Name] = true
		}

		cache := snipcache.Open(cfg.CachePath, buildVersion)
		var stale []string
		for name := range cache.Load().Packages {
			if !keep[name] {
				stale = append(stale, name)
			}
		}
		if len(stale) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to prune.")
			return nil
		}
		sort.Strings(stale)

		if err := cache.Prune(keep); err != nil {
			return err
		}
		for _, name := range stale {
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %s.\n", name)
		}
		return nil
	},
}
