package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// checkAncestors refuses a destination when any existing directory
// between it and the project root is a symlink resolving outside the
// root. Ancestors that do not exist yet are created later as real
// directories, so only existing ones matter.
func (r *run) checkAncestors(dest string) *Skip {
	for dir := filepath.Dir(dest); ; dir = filepath.Dir(dir) {
		if fi, err := os.Lstat(dir); err == nil && fi.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(dir)
			if err != nil || !r.within(resolved) {
				return &Skip{
					Path:   dest,
					Reason: SkipAncestorSymlink,
					Detail: fmt.Sprintf("%s is a symlink resolving outside the project root", dir),
				}
			}
		}
		if dir == r.root || filepath.Dir(dir) == dir {
			return nil
		}
	}
}

// checkDestLink vets an existing destination that is itself a symlink.
// A link resolving inside the root may be replaced by a real file; a
// link pointing outside the root, or a broken one, is never followed
// or replaced.
func (r *run) checkDestLink(dest string) *Skip {
	resolved, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return &Skip{Path: dest, Reason: SkipSymlinkBroken, Detail: "destination is a broken symlink"}
	}
	if !r.within(resolved) {
		return &Skip{Path: dest, Reason: SkipSymlinkOutside, Detail: "destination symlink resolves outside the project root"}
	}
	return nil
}

// within reports whether the canonical path p falls under the
// canonical project root.
func (r *run) within(p string) bool {
	rel, err := filepath.Rel(r.rootCanon, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
