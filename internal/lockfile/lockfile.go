// Package lockfile reads and writes agentpack-lock.yaml, the record of
// exactly which package versions a project has installed. The resolver
// that produces it is an external collaborator; the render pipeline
// only consumes the versions it pins and the content-store addresses
// derived from them.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.yaml.in/yaml/v3"
)

// Filename is the lockfile name at a project root.
const Filename = "agentpack-lock.yaml"

// SchemaVersion is the current lockfile schema.
const SchemaVersion = 1

// Entry pins one installed package.
type Entry struct {
	Version   string `yaml:"version"`
	Resolved  string `yaml:"resolved,omitempty"`
	Integrity string `yaml:"integrity,omitempty"`
}

// Lockfile is the parsed agentpack-lock.yaml.
type Lockfile struct {
	SchemaVersion int              `yaml:"schemaVersion"`
	Packages      map[string]Entry `yaml:"packages"`
}

// Path returns the full lockfile path for a project root.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, Filename)
}

// Load reads and parses the project lockfile. A missing file yields an
// empty lockfile, not an error: a project with nothing installed is a
// normal state. Malformed YAML and non-semver pinned versions are
// errors.
func Load(projectRoot string) (*Lockfile, error) {
	path := Path(projectRoot)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Lockfile{SchemaVersion: SchemaVersion, Packages: map[string]Entry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lockfile: %w", err)
	}

	var lf Lockfile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parsing lockfile %s: %w", path, err)
	}
	if lf.Packages == nil {
		lf.Packages = map[string]Entry{}
	}

	for name, entry := range lf.Packages {
		if _, err := parseSemver(entry.Version); err != nil {
			return nil, fmt.Errorf("lockfile pins invalid version %q for %s: %w", entry.Version, name, err)
		}
	}

	return &lf, nil
}

// Save writes the lockfile to the project root.
func Save(projectRoot string, lf *Lockfile) error {
	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lockfile: %w", err)
	}

	if err := os.WriteFile(Path(projectRoot), data, 0644); err != nil {
		return fmt.Errorf("writing lockfile: %w", err)
	}

	return nil
}

// Version returns the pinned version for a package name.
func (lf *Lockfile) Version(name string) (string, bool) {
	entry, ok := lf.Packages[name]
	if !ok {
		return "", false
	}
	return entry.Version, true
}

// StoreDir returns the content-store directory for a pinned package.
// Scoped names flatten their separator so one store level holds every
// package: `@acme/pkg` at version 1.2.0 lives in `@acme+pkg@1.2.0`.
func StoreDir(storeRoot, name, version string) string {
	flat := strings.ReplaceAll(name, "/", "+")
	return filepath.Join(storeRoot, flat+"@"+version)
}

// parseSemver strips a leading "v" and parses the version string.
func parseSemver(version string) (*semver.Version, error) {
	version = strings.TrimPrefix(version, "v")
	return semver.NewVersion(version)
}
