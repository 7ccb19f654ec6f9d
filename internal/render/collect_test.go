package render

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/agentpack-labs/agentpack/internal/manifest"
)

func TestCollectExports(t *testing.T) {
	dir := t.TempDir()
	for rel, content := range map[string]string{
		"templates/MAIN.md.tpl":          "main {{ ask('Q?') }}",
		"templates/agents/reviewer.md":   "reviewer",
		"templates/agents/nested/sub.md": "sub",
		"templates/mcp.json":             "{}",
	} {
		writeFile(t, filepath.Join(dir, filepath.FromSlash(rel)), content)
	}

	m := &manifest.Package{
		Base: manifest.Base{Type: manifest.TypePackage, Name: "demo", Version: "1.0.0"},
		Exports: map[string]manifest.ExportSet{
			"claude-code": {
				Template: "templates/MAIN.md.tpl",
				Agents:   "templates/agents",
				MCP:      "templates/mcp.json",
			},
			// Same template source: the earlier tool claims it.
			"cursor": {Template: "templates/MAIN.md.tpl"},
		},
	}
	filenames := map[string]string{"claude-code": "CLAUDE.md", "cursor": ".cursorrules"}

	got, err := collectExports(Installed{Name: "demo", Version: "1.0.0", Dir: dir}, m, filenames)
	if err != nil {
		t.Fatalf("collectExports: %v", err)
	}

	want := []struct {
		tool      string
		category  string
		rel       string
		config    bool
		templated bool
	}{
		{"claude-code", "template", "CLAUDE.md", false, true},
		{"claude-code", "agents", "agents/nested/sub.md", false, false},
		{"claude-code", "agents", "agents/reviewer.md", false, false},
		{"claude-code", "mcp", "mcp.json", true, false},
	}
	if len(got) != len(want) {
		t.Fatalf("planned %d files, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.tool != w.tool || g.category != w.category || g.rel != w.rel || g.config != w.config || g.templated != w.templated {
			t.Errorf("plan[%d] = {%s %s %s config=%t templated=%t}, want %+v",
				i, g.tool, g.category, g.rel, g.config, g.templated, w)
		}
	}
}

func TestCollectExportsMissingPathSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "templates", "real.md.tpl"), "real")

	m := &manifest.Package{
		Base: manifest.Base{Type: manifest.TypePackage, Name: "demo", Version: "1.0.0"},
		Exports: map[string]manifest.ExportSet{
			"claude-code": {
				Template: "templates/real.md.tpl",
				MCP:      "templates/missing.json",
				Agents:   "templates/no-such-dir",
			},
		},
	}

	got, err := collectExports(Installed{Name: "demo", Version: "1.0.0", Dir: dir}, m, map[string]string{"claude-code": "CLAUDE.md"})
	if err != nil {
		t.Fatalf("collectExports: %v", err)
	}
	if len(got) != 1 || got[0].rel != "CLAUDE.md" {
		t.Fatalf("planned %+v, want just the existing template", got)
	}
}

func TestCollectExportsExcludedNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "templates", "agents", "keep.md"), "keep")
	writeFile(t, filepath.Join(dir, "templates", "agents", ".git", "config"), "drop")
	writeFile(t, filepath.Join(dir, "templates", "agents", "node_modules", "pkg.js"), "drop")

	m := &manifest.Package{
		Base:    manifest.Base{Type: manifest.TypePackage, Name: "demo", Version: "1.0.0"},
		Exports: map[string]manifest.ExportSet{"claude-code": {Agents: "templates/agents"}},
	}

	got, err := collectExports(Installed{Name: "demo", Version: "1.0.0", Dir: dir}, m, nil)
	if err != nil {
		t.Fatalf("collectExports: %v", err)
	}
	if len(got) != 1 || got[0].rel != "agents/keep.md" {
		t.Fatalf("planned %+v, want just agents/keep.md", got)
	}
}

func TestCollectTreeSymlinkCycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need extra privileges on windows")
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "a")
	if err := os.Symlink(dir, filepath.Join(dir, "loop")); err != nil {
		t.Fatal(err)
	}

	got := collectTree(dir, map[string]bool{})
	if len(got) != 1 || got[0] != "a.md" {
		t.Fatalf("collectTree = %v, want [a.md]", got)
	}
}

func TestDestRel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"templates/CLAUDE.md.tpl", "CLAUDE.md"},
		{"templates/agents/reviewer.md", "agents/reviewer.md"},
		{"templates/nested/doc.md.tpl", "nested/doc.md"},
		{"templates/mcp.json", "mcp.json"},
		{"prompts/extra.md", "prompts/extra.md"},
	}
	for _, tt := range tests {
		if got := destRel(tt.in); got != tt.want {
			t.Errorf("destRel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
