// Package models defines the domain types shared across stitch packages.
package models

import "time"

// FileMetadata is a lightweight representation of a workspace file
// returned by list operations.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
