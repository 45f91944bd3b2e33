// Package storage defines the workspace file-system abstraction.
package storage

import "github.com/starford/novelpress/internal/models"

// Provider is the interface for chapter file operations.
type Provider interface {
	// List returns metadata for the .md files directly inside dir (relative to root), sorted by name.
	List(dir string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root), creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether path (relative to root) exists.
	Exists(path string) (bool, error)
}
