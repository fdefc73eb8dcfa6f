// Package storage abstracts where document-style data (the file-backed order
// store) lives.
//
// Two drivers are available:
//   - "local" — a directory on the local filesystem (default)
//   - "s3"    — S3-compatible object storage (AWS S3, MinIO, R2, Spaces)
//
//	disk, err := storage.New(config.Current())
//	err = disk.Put(ctx, "orders.json", data)
//	data, err := disk.Get(ctx, "orders.json")
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shashiranjanraj/orderdesk/config"
)

// ErrNotFound is returned by Get when nothing is stored at path.
var ErrNotFound = errors.New("storage: not found")

// Disk is the driver interface.
type Disk interface {
	// Put replaces the content at path, creating parents as needed.
	Put(ctx context.Context, path string, content []byte) error

	// Get returns the content at path, or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether something is stored at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
}

// New builds the disk selected by STORAGE_DISK.
func New(ctx context.Context, s config.Settings) (Disk, error) {
	switch strings.ToLower(s.StorageDisk) {
	case "", "local":
		return NewLocal(s.StorageLocalRoot)
	case "s3":
		return NewS3(ctx, S3Options{
			Bucket:   s.S3Bucket,
			Region:   s.S3Region,
			Key:      s.S3Key,
			Secret:   s.S3Secret,
			Endpoint: s.S3Endpoint,
		})
	default:
		return nil, fmt.Errorf("storage: unknown disk %q", s.StorageDisk)
	}
}
