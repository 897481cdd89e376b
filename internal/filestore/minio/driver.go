// Package minio provides a MinIO implementation of filestore.Backend.
//
// Usage:
//
//	cfg := &filestore.Config{Provider: filestore.ProviderMinIO, Endpoint: "localhost:9000", ...}
//	b, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	drv, err := filestore.NewDriver(b, "products")
package minio

import (
	"context"
	"io"

	"github.com/koustreak/blobiface/internal/errs"
	"github.com/koustreak/blobiface/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Backend is a MinIO implementation of filestore.Backend.
// It is safe for concurrent use by multiple goroutines.
type Backend struct {
	client  *miniogo.Client
	threads uint
}

// New connects to MinIO using the provided Config and returns a Backend.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *filestore.Config) (*Backend, error) {
	b, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	if err := b.Ping(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func newBackend(cfg *filestore.Config) (*Backend, error) {
	opts := &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.MaxRetries != 0 {
		opts.MaxRetries = max(cfg.MaxRetries, 1)
	}

	client, err := miniogo.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	threads := uint(filestore.DefaultConcurrency)
	if cfg.Concurrency > 0 {
		threads = uint(cfg.Concurrency)
	}
	return &Backend{client: client, threads: threads}, nil
}

// Ping verifies the MinIO server is reachable by listing buckets.
func (b *Backend) Ping(ctx context.Context) error {
	if _, err := b.client.ListBuckets(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op for MinIO; the SDK client holds no persistent connections.
func (b *Backend) Close() error {
	return nil
}

// PutObject uploads r to key inside container. With opts.Overwrite off it
// stats the key first and refuses to replace an existing object.
func (b *Backend) PutObject(ctx context.Context, container, key string, r io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	if !opts.Overwrite {
		_, err := b.client.StatObject(ctx, container, key, miniogo.StatObjectOptions{})
		if err == nil {
			return nil, errs.Newf(errs.ErrKindAlreadyExists, "object %q already exists", key)
		}
		if mapped := mapError(err, "failed to stat object"); !errs.IsNotFound(mapped) {
			return nil, mapped
		}
	}

	up, err := b.client.PutObject(ctx, container, key, r, size, miniogo.PutObjectOptions{
		ContentType: opts.ContentType,
		NumThreads:  b.threads,
	})
	if err != nil {
		return nil, mapError(err, "failed to put object")
	}

	return &filestore.ObjectInfo{
		Key:          up.Key,
		Size:         up.Size,
		ContentType:  opts.ContentType,
		ETag:         up.ETag,
		LastModified: up.LastModified,
	}, nil
}

// GetObject opens a streaming handle to the object at key inside container.
// The caller MUST call Object.Close() after reading.
func (b *Backend) GetObject(ctx context.Context, container, key string) (filestore.Object, error) {
	obj, err := b.client.GetObject(ctx, container, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	// GetObject is lazy; Stat surfaces a missing key before any bytes are written locally.
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object after get")
	}

	return filestore.NewObject(obj, &filestore.ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}), nil
}

var _ filestore.Backend = (*Backend)(nil)
