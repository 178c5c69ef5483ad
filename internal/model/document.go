// Package model contains the struct definitions shared across packages: catalog
// entries, extraction schemas, and the error kinds every layer reports.
package model

import (
	"time"
)

// DocumentStatus describes where a catalog entry is in its lifecycle. Only
// StatusUploaded is produced today; the type leaves room for processing states.
type DocumentStatus string

const (
	StatusUploaded DocumentStatus = "UPLOADED"
)

// CatalogEntry holds metadata about an uploaded document. BlobRef points into
// the blob store and is omitted from JSON because of the "-" struct tag.
type CatalogEntry struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ContentType string         `json:"contentType"`
	Size        int64          `json:"size"`
	UploadedAt  time.Time      `json:"uploadedAt"`
	Status      DocumentStatus `json:"status"`
	BlobRef     string         `json:"-"`
}
