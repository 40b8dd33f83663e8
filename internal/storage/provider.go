// Package storage defines the content-tree file-system abstraction.
package storage

import "github.com/starford/gardensite/internal/models"

// Provider is the interface for content tree file operations.
type Provider interface {
	// List returns metadata for every content document under dir (relative
	// to the root), sorted by path.
	List(dir string) ([]models.DocumentMeta, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the root).
	Delete(path string) error
}
