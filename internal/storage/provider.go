// Package storage defines the workspace file-system abstraction.
package storage

import "github.com/stitchtool/stitch/internal/models"

// Provider is the interface for workspace file operations.
type Provider interface {
	// List returns metadata for every patchable file under dir (relative to the workspace root).
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the workspace root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the workspace root).
	Write(path string, content []byte) error
	// Matches reports whether path has one of the configured extensions.
	Matches(path string) bool
}
