// Package testutil provides shared test helpers for building workspaces on disk.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Workspace is a temporary projects/ + site/ tree.
type Workspace struct {
	Root string
}

// NewWorkspace creates an empty workspace that is removed after the test.
func NewWorkspace(t *testing.T) *Workspace {
	t.Helper()
	return &Workspace{Root: t.TempDir()}
}

// ProjectsDir returns <root>/projects.
func (w *Workspace) ProjectsDir() string { return filepath.Join(w.Root, "projects") }

// ContentDir returns <root>/site/src/content/novels.
func (w *Workspace) ContentDir() string {
	return filepath.Join(w.Root, "site", "src", "content", "novels")
}

// PublicAssetsDir returns <root>/site/public/assets.
func (w *Workspace) PublicAssetsDir() string {
	return filepath.Join(w.Root, "site", "public", "assets")
}

// WriteChapter writes projects/<novel>/chapters/<name> and returns its path.
func (w *Workspace) WriteChapter(t *testing.T, novel, name, content string) string {
	t.Helper()
	return w.WriteFile(t, filepath.Join("projects", novel, "chapters", name), []byte(content))
}

// WriteAsset writes projects/<novel>/_assets/<rel> and returns its path.
func (w *Workspace) WriteAsset(t *testing.T, novel, rel string, data []byte) string {
	t.Helper()
	return w.WriteFile(t, filepath.Join("projects", novel, "_assets", rel), data)
}

// WriteContent writes site/src/content/novels/<novel>/<name> and returns its path.
func (w *Workspace) WriteContent(t *testing.T, novel, name, content string) string {
	t.Helper()
	p := filepath.Join(w.ContentDir(), novel, name)
	rel, _ := filepath.Rel(w.Root, p)
	return w.WriteFile(t, rel, []byte(content))
}

// WriteFile writes data at rel (relative to Root), creating parent directories.
func (w *Workspace) WriteFile(t *testing.T, rel string, data []byte) string {
	t.Helper()
	p := filepath.Join(w.Root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// ReadFile reads an absolute path or fails the test.
func ReadFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
