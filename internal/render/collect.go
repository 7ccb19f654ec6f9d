package render

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/sirupsen/logrus"

	"github.com/agentpack-labs/agentpack/internal/manifest"
)

// TemplateSuffix marks a source file as templated: parsed for
// directives and rendered, with the suffix stripped from the
// destination name. Files without it are copied byte for byte and
// never parsed, so example or documentation files can carry
// directive-like text safely.
const TemplateSuffix = ".tpl"

// excludedNames are never collected from directory exports.
var excludedNames = map[string]bool{
	"node_modules": true,
	".git":         true,
	".DS_Store":    true,
}

// planned is one source file queued for rendering.
type planned struct {
	tool      string
	category  string
	src       string // absolute source path
	srcRel    string // package-relative source path
	rel       string // destination path relative to the package output dir
	config    bool
	templated bool
}

// collectExports flattens a package's per-tool export tables into an
// ordered file plan. Tools are visited in sorted order and a source
// file claimed by an earlier tool is not planned again, so overlapping
// exports render once under the first tool's destination. Export paths
// that do not exist are logged and dropped rather than failing the
// whole render.
func collectExports(p Installed, m *manifest.Package, filenames map[string]string) ([]planned, error) {
	seen := map[string]bool{}
	var out []planned

	add := func(tool string, ex manifest.Export, src, srcRel string) {
		if seen[src] {
			return
		}
		seen[src] = true

		rel := ""
		if ex.Category == "template" {
			rel = filenames[tool]
		}
		if rel == "" {
			rel = destRel(srcRel)
		}
		out = append(out, planned{
			tool:      tool,
			category:  ex.Category,
			src:       src,
			srcRel:    path.Clean(srcRel),
			rel:       rel,
			config:    ex.Config,
			templated: strings.HasSuffix(src, TemplateSuffix),
		})
	}

	for _, tool := range m.Tools() {
		for _, ex := range m.Exports[tool].List() {
			src, err := securejoin.SecureJoin(p.Dir, ex.Path)
			if err != nil {
				return nil, fmt.Errorf("package %s: export path %s: %w", p.Name, ex.Path, err)
			}
			if ex.Dir {
				for _, f := range collectTree(src, map[string]bool{}) {
					add(tool, ex, filepath.Join(src, filepath.FromSlash(f)), path.Join(ex.Path, f))
				}
				continue
			}
			if _, err := os.Stat(src); err != nil {
				logrus.WithError(err).Warnf("package %s: skipping missing export %s", p.Name, ex.Path)
				continue
			}
			add(tool, ex, src, ex.Path)
		}
	}
	return out, nil
}

// collectTree gathers regular files under dir recursively, in the
// sorted order os.ReadDir yields. Directory symlinks are followed at
// most once each, tracked by canonical path, so a symlink cycle
// terminates. Unreadable entries are logged and skipped.
func collectTree(dir string, visited map[string]bool) []string {
	canon, err := filepath.EvalSymlinks(dir)
	if err != nil {
		logrus.WithError(err).Warnf("skipping unresolvable directory %s", dir)
		return nil
	}
	if visited[canon] {
		return nil
	}
	visited[canon] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		logrus.WithError(err).Warnf("skipping unreadable directory %s", dir)
		return nil
	}

	var out []string
	for _, e := range entries {
		if excludedNames[e.Name()] {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		info, err := os.Stat(sub)
		if err != nil {
			logrus.WithError(err).Warnf("skipping unreadable entry %s", sub)
			continue
		}
		if info.IsDir() {
			for _, f := range collectTree(sub, visited) {
				out = append(out, path.Join(e.Name(), f))
			}
			continue
		}
		out = append(out, e.Name())
	}
	return out
}

// destRel maps a package-relative source path to its destination form:
// the path under the package's templates tree, with the template
// suffix stripped. Sources kept outside templates/ keep their own
// relative path.
func destRel(srcRel string) string {
	rel := path.Clean(filepath.ToSlash(srcRel))
	rel = strings.TrimPrefix(rel, "templates/")
	return strings.TrimSuffix(rel, TemplateSuffix)
}
