package render

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/agentpack-labs/agentpack/internal/lockfile"
	"github.com/agentpack-labs/agentpack/internal/manifest"
)

// Installed is one renderable package: its tracked name and version,
// and the directory its content is read from.
type Installed struct {
	Name    string
	Version string
	Dir     string
}

// DiscoverInstalled scans modulesRoot for package entries, scoped
// (@scope/name) and flat, and resolves each to its content directory:
// a caller-supplied override path when one exists on disk, the content
// store otherwise. Entries without a lockfile version are not
// installed in the tracked sense and are silently excluded. The result
// is sorted by name.
func DiscoverInstalled(modulesRoot string, lf *lockfile.Lockfile, storeRoot string, overrides map[string]string) ([]Installed, error) {
	if lf == nil {
		return nil, nil
	}

	entries, err := os.ReadDir(modulesRoot)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading modules directory %s: %w", modulesRoot, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "@") {
			scoped, err := os.ReadDir(filepath.Join(modulesRoot, e.Name()))
			if err != nil {
				logrus.WithError(err).Warnf("skipping unreadable scope %s", e.Name())
				continue
			}
			for _, s := range scoped {
				if s.IsDir() {
					names = append(names, e.Name()+"/"+s.Name())
				}
			}
			continue
		}
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}

	var pkgs []Installed
	for _, name := range names {
		version, ok := lf.Version(name)
		if !ok {
			continue
		}
		dir := lockfile.StoreDir(storeRoot, name, version)
		if override, ok := overrides[name]; ok {
			if _, err := os.Stat(override); err == nil {
				dir = override
			}
		}
		pkgs = append(pkgs, Installed{Name: name, Version: version, Dir: dir})
	}

	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return pkgs, nil
}

// FilterPackages narrows the discovered set to what the caller asked
// for. An explicit package name selects exactly that package or
// nothing. A profile must be declared in the project manifest,
// non-empty, and fully installed, so a render never silently covers
// only part of a profile. The package name wins when both are given.
func FilterPackages(pkgs []Installed, proj *manifest.Project, packageName, profile string) ([]Installed, error) {
	if packageName != "" {
		for _, p := range pkgs {
			if p.Name == packageName {
				return []Installed{p}, nil
			}
		}
		return nil, nil
	}
	if profile == "" {
		return pkgs, nil
	}

	if proj == nil {
		return nil, fmt.Errorf("profile %q: no project manifest (%s) found", profile, manifest.Filename)
	}
	members, ok := proj.Profiles[profile]
	if !ok {
		return nil, fmt.Errorf("profile %q is not defined in %s", profile, manifest.Filename)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("profile %q is empty", profile)
	}

	byName := make(map[string]Installed, len(pkgs))
	for _, p := range pkgs {
		byName[p.Name] = p
	}
	selected := make([]Installed, 0, len(members))
	for _, m := range members {
		p, ok := byName[m]
		if !ok {
			return nil, fmt.Errorf("profile %q includes %s, which is not installed", profile, m)
		}
		selected = append(selected, p)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Name < selected[j].Name })
	return selected, nil
}
