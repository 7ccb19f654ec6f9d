package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentpack-labs/agentpack/internal/config"
	"github.com/agentpack-labs/agentpack/internal/lockfile"
	"github.com/agentpack-labs/agentpack/internal/manifest"
	"github.com/agentpack-labs/agentpack/internal/render"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages",
	Long:  `List the packages installed under the project's modules directory.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

// listEntry represents an installed package for display.
type listEntry struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Source  string   `json:"source"` // "store" or "local"
	Tools   []string `json:"tools,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
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

	overrides := localOverrides(cfg.ProjectRoot, proj)
	pkgs, err := render.DiscoverInstalled(cfg.ModulesDir, lf, cfg.StoreRoot, overrides)
	if err != nil {
		return err
	}

	if len(pkgs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No packages installed yet.")
		return nil
	}

	entries := make([]listEntry, 0, len(pkgs))
	for _, p := range pkgs {
		entry := listEntry{Name: p.Name, Version: p.Version, Source: "store"}
		if dir, ok := overrides[p.Name]; ok && dir == p.Dir {
			entry.Source = "local"
		}
		// The tool list comes from the package manifest when readable.
		if m, err := manifest.LoadPackage(p.Dir); err == nil {
			entry.Tools = m.Tools()
		}
		entries = append(entries, entry)
	}

	if listJSON {
		return printListJSON(cmd, entries)
	}
	return printListTable(cmd, entries)
}

func printListTable(cmd *cobra.Command, entries []listEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tSOURCE\tTOOLS")
	for _, e := range entries {
		tools := "-"
		if len(e.Tools) > 0 {
			tools = strings.Join(e.Tools, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Version, e.Source, tools)
	}
	return w.Flush()
}

func printListJSON(cmd *cobra.Command, entries []listEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
