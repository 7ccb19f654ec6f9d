// Package snipcache persists resolved directive values between
// renders, scoped by owning package name and version and keyed by
// directive id. With a warm cache a re-render of unchanged templates
// asks no human and spawns no tool.
//
// Writes replace the whole file atomically, but the file is not
// locked: two renders running against the same project at once can
// lose each other's cache writes. Rendered output is unaffected.
package snipcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// SchemaVersion is bumped when the store layout changes; older or
// newer files are discarded rather than misread.
const SchemaVersion = 1

// Entry is one resolved directive.
type Entry struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	PromptExcerpt string    `json:"promptExcerpt"`
	Value         string    `json:"value"` // JSON-serialized resolved value
	Timestamp     time.Time `json:"timestamp"`
	Tool          string    `json:"tool,omitempty"`
}

// PackageEntries groups a package's cached results under the version
// they were produced with. A version mismatch invalidates the whole
// group.
type PackageEntries struct {
	Version string  `json:"version"`
	Entries []Entry `json:"entries"`
}

// Metadata describes the store file itself.
type Metadata struct {
	GeneratedAt time.Time `json:"generatedAt"`
	ToolVersion string    `json:"toolVersion"`
}

// Store is the full on-disk cache document.
type Store struct {
	SchemaVersion int                       `json:"schemaVersion"`
	Packages      map[string]PackageEntries `json:"packages"`
	Metadata      Metadata                  `json:"metadata"`
}

// Cache reads and writes one store file.
type Cache struct {
	path        string
	toolVersion string
	now         func() time.Time
	store       *Store
}

// Open returns a cache handle for the store file at path. Nothing is
// read until Load.
func Open(path, toolVersion string) *Cache {
	return &Cache{path: path, toolVersion: toolVersion, now: time.Now}
}

// WithClock replaces the time source. Tests pin it so two runs with
// the same content produce byte-identical files.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Path returns the store file location.
func (c *Cache) Path() string { return c.path }

// Load returns the in-memory store, reading the file on first use.
// A missing, unreadable, or malformed file yields an empty store with
// a warning: the cache is an optimization, never a failure source.
func (c *Cache) Load() *Store {
	if c.store == nil {
		c.store = c.read()
	}
	return c.store
}

func (c *Cache) read() *Store {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return c.empty()
	}
	if err != nil {
		logrus.WithError(err).Warnf("unreadable snippet cache %s, starting empty", c.path)
		return c.empty()
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		logrus.WithError(err).Warnf("malformed snippet cache %s, starting empty", c.path)
		return c.empty()
	}
	if store.SchemaVersion != SchemaVersion {
		logrus.Warnf("snippet cache %s has schema %d, want %d, starting empty", c.path, store.SchemaVersion, SchemaVersion)
		return c.empty()
	}
	if store.Packages == nil {
		store.Packages = map[string]PackageEntries{}
	}
	return &store
}

func (c *Cache) empty() *Store {
	return &Store{
		SchemaVersion: SchemaVersion,
		Packages:      map[string]PackageEntries{},
	}
}

// Save writes the store atomically: marshal to a temp file in the same
// directory, then rename over the previous file, so a crash never
// leaves a half-written cache. Serialization is deterministic: entries
// sort by id here and package names sort inside the JSON encoder, so
// resolve order never changes the bytes.
func (c *Cache) Save(store *Store) error {
	store.SchemaVersion = SchemaVersion
	store.Metadata.GeneratedAt = c.now().UTC()
	store.Metadata.ToolVersion = c.toolVersion
	for name, pkg := range store.Packages {
		sort.Slice(pkg.Entries, func(i, j int) bool { return pkg.Entries[i].ID < pkg.Entries[j].ID })
		store.Packages[name] = pkg
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snippet cache: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snipcache-*")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing cache temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing cache temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting cache file mode: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing cache file: %w", err)
	}
	c.store = store
	return nil
}

// Get returns the cached entry for a directive. A stored package
// version different from the installed one is a miss, never a stale
// hit.
func (c *Cache) Get(pkg, version, id string) (*Entry, bool) {
	store := c.Load()
	p, ok := store.Packages[pkg]
	if !ok || p.Version != version {
		return nil, false
	}
	for i := range p.Entries {
		if p.Entries[i].ID == id {
			return &p.Entries[i], true
		}
	}
	return nil, false
}

// Put upserts an entry under the package and version and persists
// immediately. A version change drops the package's stale entries
// first. A zero entry timestamp is stamped from the cache clock.
func (c *Cache) Put(pkg, version string, entry Entry) error {
	store := c.Load()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = c.now().UTC()
	}

	p := store.Packages[pkg]
	if p.Version != version {
		p = PackageEntries{Version: version}
	}
	replaced := false
	for i := range p.Entries {
		if p.Entries[i].ID == entry.ID {
			p.Entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		p.Entries = append(p.Entries, entry)
	}
	store.Packages[pkg] = p
	return c.Save(store)
}

// Prune removes every package not listed in keep, persisting only
// when something was removed.
func (c *Cache) Prune(keep map[string]bool) error {
	store := c.Load()
	changed := false
	for name := range store.Packages {
		if !keep[name] {
			delete(store.Packages, name)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return c.Save(store)
}

// Clear removes the store file entirely.
func (c *Cache) Clear() error {
	c.store = nil
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing snippet cache: %w", err)
	}
	return nil
}
