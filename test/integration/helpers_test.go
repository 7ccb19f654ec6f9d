//go:build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentpack-labs/agentpack/internal/agent"
	"github.com/agentpack-labs/agentpack/internal/lockfile"
	"github.com/agentpack-labs/agentpack/internal/prompt"
)

// testEnv holds paths to isolated test directories.
type testEnv struct {
	ProjectRoot string // mock project directory, holds manifest and lockfile
	ModulesDir  string // <project>/.agentpack/modules, where installed entries live
	StoreRoot   string // AGENTPACK_STORE_ROOT, the content store packages render from
	CachePath   string // <project>/.agentpack/snipcache.json
}

// setupTestEnv creates isolated temp directories and sets environment
// variables so all AgentPack operations are sandboxed. The env vars are
// restored after the test.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	project := t.TempDir()
	env := &testEnv{
		ProjectRoot: project,
		ModulesDir:  filepath.Join(project, ".agentpack", "modules"),
		StoreRoot:   t.TempDir(),
		CachePath:   filepath.Join(project, ".agentpack", "snipcache.json"),
	}

	t.Setenv("AGENTPACK_STORE_ROOT", env.StoreRoot)

	if err := os.MkdirAll(env.ModulesDir, 0755); err != nil {
		t.Fatalf("creating modules dir: %v", err)
	}

	return env
}

// installPackage places a package's content in the store and records
// its entry under the modules directory, the state the resolver leaves
// behind after an install. files maps package-relative paths to
// content; a manifest must be among them.
func installPackage(t *testing.T, env *testEnv, name, version string, files map[string]string) {
	t.Helper()

	storeDir := lockfile.StoreDir(env.StoreRoot, name, version)
	for rel, content := range files {
		writeFile(t, filepath.Join(storeDir, filepath.FromSlash(rel)), content)
	}

	entry := filepath.Join(env.ModulesDir, filepath.FromSlash(name))
	if err := os.MkdirAll(entry, 0755); err != nil {
		t.Fatalf("creating modules entry %s: %v", entry, err)
	}
}

// writeLockfile pins the given package versions in the project
// lockfile.
func writeLockfile(t *testing.T, env *testEnv, pins map[string]string) {
	t.Helper()

	lf := &lockfile.Lockfile{
		SchemaVersion: lockfile.SchemaVersion,
		Packages:      map[string]lockfile.Entry{},
	}
	for name, version := range pins {
		lf.Packages[name] = lockfile.Entry{Version: version}
	}
	if err := lockfile.Save(env.ProjectRoot, lf); err != nil {
		t.Fatalf("writing lockfile: %v", err)
	}
}

// writeProjectManifest writes the project's agentpack.yaml.
func writeProjectManifest(t *testing.T, env *testEnv, content string) {
	t.Helper()
	writeFile(t, filepath.Join(env.ProjectRoot, "agentpack.yaml"), content)
}

// reviewPackFiles is a complete one-tool package fixture: a templated
// instruction file with one interactive and one delegated directive,
// an agents tree, and an MCP config.
func reviewPackFiles() map[string]string {
	return map[string]string{
		"agentpack.yaml": `type: package
name: "@acme/review-pack"
version: 1.2.0
description: Code review conventions
exports:
  claude-code:
    template: templates/instructions.md.tpl
    agents: templates/agents
    mcp: templates/mcp.json
`,
		"templates/instructions.md.tpl": "{{ var user = ask('Who are you?') }}\nUser: {{ vars.user }}\n{{ delegate('Reply with exactly: ok') }}\n",
		"templates/agents/reviewer.md":  "# Reviewer\nReview code for correctness.\n",
		"templates/mcp.json":            "{\"mcpServers\": {}}\n",
	}
}

// scriptedPrompter answers questions from a fixed table and records
// what was asked.
type scriptedPrompter struct {
	answers map[string]string // question text -> answer
	asked   []string
}

func (p *scriptedPrompter) Ask(q prompt.Question) (string, error) {
	p.asked = append(p.asked, q.Text)
	if answer, ok := p.answers[q.Text]; ok {
		return answer, nil
	}
	if q.DefaultValue != nil {
		return *q.DefaultValue, nil
	}
	return "", nil
}

// scriptedRunner returns a fixed reply for every delegated invocation
// and records each request, so tests can count tool spawns and inspect
// what reached the tool.
type scriptedRunner struct {
	reply    string
	requests []agent.Request
}

func (r *scriptedRunner) Invoke(_ context.Context, req agent.Request) (*agent.Response, error) {
	r.requests = append(r.requests, req)
	return &agent.Response{Text: r.reply, Tool: "claude-code"}, nil
}

// writeFile creates a file at the given path with the given content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating dir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// assertFileExists fails the test if the file does not exist.
func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist: %s (error: %v)", path, err)
	}
}

// assertFileNotExists fails the test if the file exists.
func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected file NOT to exist: %s", path)
	}
}

// assertFileContains fails if the file doesn't exist or doesn't contain substr.
func assertFileContains(t *testing.T, path, substr string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("reading %s: %v", path, err)
		return
	}
	if !strings.Contains(string(data), substr) {
		t.Errorf("file %s does not contain %q.\nContents:\n%s", path, substr, string(data))
	}
}

// assertFileEquals fails if the file doesn't exist or its content
// differs from want.
func assertFileEquals(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("reading %s: %v", path, err)
		return
	}
	if string(data) != want {
		t.Errorf("file %s = %q, want %q", path, string(data), want)
	}
}
