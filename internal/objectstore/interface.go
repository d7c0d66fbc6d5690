// Package objectstore keeps media object payloads on disk, keyed by object
// identifier, with staged atomic writes and two-level directory sharding.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"

	"tams/internal/models"
)

var (
	ErrNotFound        = errors.New("object not found")
	ErrInvalidObjectID = errors.New("invalid object id")
	ErrFileTooLarge    = errors.New("file too large")
)

const (
	maxObjectIDLength = 255

	// PutURLTTL and GetURLTTL bound the validity of placeholder URLs.
	PutURLTTL = time.Hour
	GetURLTTL = 24 * time.Hour
)

// Metadata describes one stored object.
type Metadata struct {
	Size     int64
	MIMEType string
	ModTime  time.Time
}

// Stats summarizes the whole store.
type Stats struct {
	TotalBytes  int64 `json:"total_bytes"`
	ObjectCount int64 `json:"object_count"`
}

// CleanupResult reports one staging cleanup pass.
type CleanupResult struct {
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// ObjectStore is the byte-storage abstraction used by the catalog services.
type ObjectStore interface {
	Allocate(ctx context.Context, count int, ids []string) ([]models.StorageObject, error)
	Put(ctx context.Context, id string, r io.Reader) (int64, error)
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	Metadata(ctx context.Context, id string) (Metadata, error)
	DownloadURLs(ctx context.Context, id string, labels []string) ([]models.GetURL, error)
	CleanupExpiredStaging(ctx context.Context, retention time.Duration) (CleanupResult, error)
	List(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
	MaxFileSize() int64
}
