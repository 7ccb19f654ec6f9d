package render

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agentpack-labs/agentpack/internal/agent"
	"github.com/agentpack-labs/agentpack/internal/branding"
	"github.com/agentpack-labs/agentpack/internal/directive"
	"github.com/agentpack-labs/agentpack/internal/executor"
	"github.com/agentpack-labs/agentpack/internal/lockfile"
	"github.com/agentpack-labs/agentpack/internal/manifest"
	"github.com/agentpack-labs/agentpack/internal/prompt"
	"github.com/agentpack-labs/agentpack/internal/snipcache"
	"github.com/agentpack-labs/agentpack/internal/tools"
)

// Options configures one render run. Collaborators left nil get
// production defaults, so tests can inject fakes and the CLI can stay
// minimal.
type Options struct {
	// Tool answers delegated directives that carry no override.
	Tool tools.Name

	// SafeMode keeps delegated tools inside their restricted
	// permission mode.
	SafeMode bool

	// Force overwrites existing destinations, backing them up first.
	Force bool

	// NoCache disables the persistent directive cache for this run.
	NoCache bool

	// PackageName restricts the render to one package.
	PackageName string

	// Profile restricts the render to a project-declared profile.
	Profile string

	// Filenames maps tool names to the destination filename a singular
	// template export renders to. Nil means the registry defaults.
	Filenames map[string]string

	// CachePath locates the persistent directive cache file.
	CachePath string

	// StoreRoot locates the content store installed packages render
	// from.
	StoreRoot string

	// Overrides maps package names to local directories that take the
	// store's place when they exist.
	Overrides map[string]string

	// ToolVersion is recorded in cache metadata so entries from other
	// tool versions can be told apart.
	ToolVersion string

	Prompter prompt.Prompter
	Runner   agent.Runner
	Events   executor.EventSink
}

// SkipReason classifies why a destination was not written.
type SkipReason string

const (
	// SkipExists marks an existing destination left untouched without
	// force.
	SkipExists SkipReason = "exists"
	// SkipPathEscape marks a destination whose relative path walks out
	// of its package output directory.
	SkipPathEscape SkipReason = "path-escape"
	// SkipAncestorSymlink marks a destination refused because an
	// ancestor directory is a symlink resolving outside the project
	// root.
	SkipAncestorSymlink SkipReason = "ancestor-symlink-escape"
	// SkipSymlinkOutside marks a destination refused because it is a
	// symlink resolving outside the project root.
	SkipSymlinkOutside SkipReason = "symlink-outside-root"
	// SkipSymlinkBroken marks a destination refused because it is a
	// symlink without a target.
	SkipSymlinkBroken SkipReason = "symlink-broken"
)

// Skip is one destination the renderer declined to write.
type Skip struct {
	Path   string
	Reason SkipReason
	Detail string
}

// Trace records one directive execution for the render report.
type Trace struct {
	Template string
	ID       string
	Kind     directive.Kind
	Excerpt  string
	Tool     string
	Cached   bool
	Err      string
}

// File is one planned output with the metadata downstream per-tool
// exposure routes on. Skipped destinations appear here too, so
// unchanged files can still be routed.
type File struct {
	Package  string
	Tool     string
	Category string
	Source   string
	Dest     string
	Config   bool
	Written  bool
}

// Result reports everything one render did: what was written, what
// was skipped and why, what was backed up, and every directive
// execution.
type Result struct {
	Written      []string
	Skipped      []Skip
	BackedUp     []string
	Traces       []Trace
	PackageFiles map[string][]string
	Files        []File
}

// PlanAndRender discovers the installed packages under modulesRoot,
// narrows them to the requested selection and renders every exported
// file, one package at a time. The returned Result covers everything
// done before an error, so callers can report partial progress when a
// directive fails mid-render.
func PlanAndRender(ctx context.Context, projectRoot, modulesRoot string, opts Options) (*Result, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	rootCanon, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	if !filepath.IsAbs(modulesRoot) {
		modulesRoot = filepath.Join(root, modulesRoot)
	}

	proj, err := manifest.LoadProject(root)
	if err != nil {
		return nil, err
	}
	lf, err := lockfile.Load(root)
	if err != nil {
		return nil, err
	}

	pkgs, err := DiscoverInstalled(modulesRoot, lf, opts.StoreRoot, opts.Overrides)
	if err != nil {
		return nil, err
	}
	pkgs, err = FilterPackages(pkgs, proj, opts.PackageName, opts.Profile)
	if err != nil {
		return nil, err
	}

	r := newRun(root, rootCanon, modulesRoot, opts)
	for _, p := range pkgs {
		if err := r.renderPackage(ctx, p); err != nil {
			return r.res, err
		}
	}
	return r.res, nil
}

// run carries one render's state across packages.
type run struct {
	root      string
	rootCanon string
	modules   string
	opts      Options
	cache     *snipcache.Cache
	stamp     string
	backedUp  map[string]bool
	res       *Result
	events    *traceSink
}

func newRun(root, rootCanon, modulesRoot string, opts Options) *run {
	if opts.Prompter == nil {
		opts.Prompter = prompt.Default()
	}
	if opts.Runner == nil {
		opts.Runner = &agent.CLIRunner{DefaultTool: opts.Tool}
	}
	if opts.Filenames == nil {
		opts.Filenames = tools.DefaultFiles()
	}

	r := &run{
		root:      root,
		rootCanon: rootCanon,
		modules:   modulesRoot,
		opts:      opts,
		stamp:     time.Now().Format("20060102-150405"),
		backedUp:  map[string]bool{},
		res:       &Result{PackageFiles: map[string][]string{}},
	}
	if !opts.NoCache && opts.CachePath != "" {
		r.cache = snipcache.Open(opts.CachePath, opts.ToolVersion)
	}
	r.events = &traceSink{res: r.res, pending: map[string]string{}, next: opts.Events}
	return r
}

func (r *run) renderPackage(ctx context.Context, p Installed) error {
	if abs, err := filepath.Abs(p.Dir); err == nil {
		p.Dir = abs
	}
	m, err := manifest.LoadPackage(p.Dir)
	if err != nil {
		return fmt.Errorf("package %s: %w", p.Name, err)
	}

	files, err := collectExports(p, m, r.opts.Filenames)
	if err != nil {
		return err
	}

	outDir := filepath.Join(r.modules, filepath.FromSlash(p.Name))
	for _, f := range files {
		if err := r.renderFile(ctx, p, outDir, f); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) renderFile(ctx context.Context, p Installed, outDir string, f planned) error {
	// The join is lexical on purpose: symlinked ancestors must be
	// caught and refused with a reason, not silently rerouted.
	rel := path.Clean(f.rel)
	dest := filepath.Join(outDir, filepath.FromSlash(rel))
	if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
		r.skip(File{Package: p.Name, Tool: f.tool, Category: f.category, Source: f.src, Dest: dest, Config: f.config},
			Skip{Path: dest, Reason: SkipPathEscape, Detail: fmt.Sprintf("%s escapes its package directory", f.rel)})
		return nil
	}

	file := File{
		Package:  p.Name,
		Tool:     f.tool,
		Category: f.category,
		Source:   f.src,
		Dest:     dest,
		Config:   f.config,
	}

	if skip := r.checkAncestors(dest); skip != nil {
		r.skip(file, *skip)
		return nil
	}

	exists := false
	if fi, err := os.Lstat(dest); err == nil {
		exists = true
		if fi.Mode()&os.ModeSymlink != 0 {
			if skip := r.checkDestLink(dest); skip != nil {
				r.skip(file, *skip)
				return nil
			}
		}
	}
	if exists && !r.opts.Force {
		r.skip(file, Skip{Path: dest, Reason: SkipExists, Detail: "destination exists; use force to overwrite"})
		return nil
	}

	content, mode, err := r.content(ctx, p, f)
	if err != nil {
		return err
	}

	if exists {
		if err := r.backup(dest); err != nil {
			return err
		}
		// A vetted symlink destination becomes a regular file; writing
		// through the link would land elsewhere.
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("replacing %s: %w", dest, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}
	if err := os.WriteFile(dest, content, mode); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}

	file.Written = true
	r.res.Written = append(r.res.Written, dest)
	r.res.Files = append(r.res.Files, file)
	r.res.PackageFiles[p.Name] = append(r.res.PackageFiles[p.Name], dest)
	return nil
}

// content produces the bytes for one planned file: rendered for
// templated sources, the original bytes and mode for literal ones.
func (r *run) content(ctx context.Context, p Installed, f planned) ([]byte, os.FileMode, error) {
	if f.templated {
		data, err := r.renderTemplate(ctx, p, f)
		return data, 0644, err
	}
	info, err := os.Stat(f.src)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", f.src, err)
	}
	data, err := os.ReadFile(f.src)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", f.src, err)
	}
	return data, info.Mode().Perm(), nil
}

// skip records a destination the renderer did not write. The file
// still appears in the metadata, and an existing destination still
// counts toward its package's files.
func (r *run) skip(file File, s Skip) {
	r.res.Skipped = append(r.res.Skipped, s)
	r.res.Files = append(r.res.Files, file)
	if s.Reason == SkipExists {
		r.res.PackageFiles[file.Package] = append(r.res.PackageFiles[file.Package], file.Dest)
	}
	logrus.WithFields(logrus.Fields{"path": s.Path, "reason": s.Reason}).Debug("skipping destination")
}

// backup copies dest's current content into this run's timestamped
// backup area, once per destination per run.
func (r *run) backup(dest string) error {
	if r.backedUp[dest] {
		return nil
	}

	rel, err := filepath.Rel(r.root, dest)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(dest)
	}
	target := filepath.Join(r.root, branding.HomeDir(), "backups", r.stamp, rel)

	content, err := os.ReadFile(dest)
	if err != nil {
		return fmt.Errorf("backing up %s: %w", dest, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	if err := os.WriteFile(target, content, 0644); err != nil {
		return fmt.Errorf("backing up %s: %w", dest, err)
	}

	r.backedUp[dest] = true
	r.res.BackedUp = append(r.res.BackedUp, dest)
	return nil
}

// traceSink turns scheduler events into directive traces on the
// Result, forwarding each event to the caller's sink when one is set.
type traceSink struct {
	res      *Result
	template string
	pending  map[string]string // directive id -> prompt excerpt
	next     executor.EventSink
}

func (s *traceSink) Emit(ev executor.Event) {
	switch ev.Type {
	case executor.EventStart:
		s.pending[ev.ID] = ev.Excerpt
	case executor.EventEnd:
		s.res.Traces = append(s.res.Traces, Trace{
			Template: s.template,
			ID:       ev.ID,
			Kind:     ev.Kind,
			Excerpt:  s.pending[ev.ID],
			Tool:     ev.Tool,
			Cached:   ev.Cached,
		})
	case executor.EventError:
		msg := ""
		if de, ok := ev.Err.(*executor.DirectiveError); ok {
			msg = de.Message
		} else if ev.Err != nil {
			msg = ev.Err.Error()
		}
		s.res.Traces = append(s.res.Traces, Trace{
			Template: s.template,
			ID:       ev.ID,
			Kind:     ev.Kind,
			Excerpt:  s.pending[ev.ID],
			Err:      msg,
		})
	}
	if s.next != nil {
		s.next.Emit(ev)
	}
}
