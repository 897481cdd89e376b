// Package filestore binds a storage backend to one container and moves single
// files between the local filesystem and that container.
//
// All providers (Azure Blob, MinIO, S3, GCS) implement the Backend interface.
// Callers depend on this package and on Driver, never on a provider package
// directly (providers.Open picks one from a Config).
//
// Usage:
//
//	drv, err := azure.NewDriver(ctx, "sentinel-products")
//	if err != nil { ... }
//	defer drv.Close()
//
//	res, err := drv.Upload(ctx, "/data/S2A_MSIL2A_....zip", "incoming")
package filestore

import (
	"context"
	"io"
)

// Backend is the small slice of an object storage SDK the driver needs.
type Backend interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources (connections, goroutines, etc.).
	Close() error

	// PutObject writes size bytes from r to key inside container.
	// size may be -1 when unknown.
	PutObject(ctx context.Context, container, key string, r io.Reader, size int64, opts PutOptions) (*ObjectInfo, error)

	// GetObject opens a streaming handle to the blob at key inside container.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, container, key string) (Object, error)
}
