package tools

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Workspace bounds what file tools may touch. Hidden and ReadOnly hold
// doublestar patterns relative to Root.
type Workspace struct {
	Root     string
	Restrict bool
	Hidden   []string
	ReadOnly []string
}

// NewWorkspace returns a restricted workspace rooted at root.
func NewWorkspace(root string) Workspace {
	return Workspace{Root: root, Restrict: root != ""}
}

// validatePath checks that the given path is within the workspace boundary.
// If workspacePath is empty, validation is skipped.
func validatePath(path, workspacePath string) error {
	if workspacePath == "" {
		return nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absPath = resolveSymlinks(filepath.Clean(absPath))
	cleanWorkspace := resolveSymlinks(filepath.Clean(workspacePath))

	if !strings.HasPrefix(absPath, cleanWorkspace+string(filepath.Separator)) && absPath != cleanWorkspace {
		return fmt.Errorf("access denied: path %q is outside workspace %q", absPath, cleanWorkspace)
	}
	return nil
}

// resolveSymlinks evaluates links on the deepest existing ancestor of path and
// re-appends the part that does not exist yet.
func resolveSymlinks(path string) string {
	existing := path
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return path
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return path
	}
	return filepath.Join(append([]string{resolved}, rest...)...)
}

// Resolve turns path into an absolute path, enforcing the boundary and the
// hidden patterns.
func (w Workspace) Resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", Invalidf("path is required")
	}
	if !filepath.IsAbs(path) && w.Root != "" {
		path = filepath.Join(w.Root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if w.Restrict {
		if err := validatePath(abs, w.Root); err != nil {
			return "", &ValidationError{Reason: err.Error()}
		}
	}
	if w.matches(abs, w.Hidden) {
		return "", Invalidf("access denied: %s is hidden", w.display(abs))
	}
	return abs, nil
}

// ResolveWritable is Resolve plus the read-only patterns.
func (w Workspace) ResolveWritable(path string) (string, error) {
	abs, err := w.Resolve(path)
	if err != nil {
		return "", err
	}
	if w.matches(abs, w.ReadOnly) {
		return "", Invalidf("access denied: %s is read-only", w.display(abs))
	}
	return abs, nil
}

// ResolveExisting is Resolve plus an existence check; dir selects the kind expected.
func (w Workspace) ResolveExisting(path string, dir bool) (string, error) {
	abs, err := w.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", Invalidf("%s does not exist", w.display(abs))
		}
		return "", err
	}
	if dir && !info.IsDir() {
		return "", Invalidf("%s is not a directory", w.display(abs))
	}
	if !dir && info.IsDir() {
		return "", Invalidf("%s is a directory", w.display(abs))
	}
	return abs, nil
}

// IsHidden reports whether abs matches a hidden pattern.
func (w Workspace) IsHidden(abs string) bool {
	return w.matches(abs, w.Hidden)
}

// BaseDir is the directory searches start from.
func (w Workspace) BaseDir() string {
	if w.Root != "" {
		return w.Root
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func (w Workspace) matches(abs string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	rel, ok := w.relative(abs)
	if !ok {
		return false
	}
	for _, pattern := range patterns {
		if match, err := doublestar.Match(pattern, rel); err == nil && match {
			return true
		}
	}
	return false
}

func (w Workspace) relative(abs string) (string, bool) {
	root := w.BaseDir()
	rel, err := filepath.Rel(resolveSymlinks(root), resolveSymlinks(abs))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w Workspace) display(abs string) string {
	if rel, ok := w.relative(abs); ok && rel != "." {
		return rel
	}
	return abs
}
