// Package gcs provides a Google Cloud Storage implementation of filestore.Backend.
package gcs

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/koustreak/blobiface/internal/errs"
	"github.com/koustreak/blobiface/internal/filestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Backend is a GCS implementation of filestore.Backend.
// It is safe for concurrent use by multiple goroutines.
type Backend struct {
	client    *storage.Client
	projectID string
}

// New builds a GCS client and pings it.
func New(ctx context.Context, cfg *filestore.Config) (*Backend, error) {
	b, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := b.Ping(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func newBackend(ctx context.Context, cfg *filestore.Config) (*Backend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		// Emulators (fake-gcs-server) take no credentials.
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create gcs client", err)
	}

	if cfg.MaxRetries < 0 {
		client.SetRetry(storage.WithPolicy(storage.RetryNever))
	} else if cfg.MaxRetries > 0 {
		client.SetRetry(storage.WithMaxAttempts(cfg.MaxRetries + 1))
	}

	return &Backend{client: client, projectID: cfg.ProjectID}, nil
}

// Ping lists one bucket of the configured project. Without a project ID
// there is nothing cheap to ask, and Ping succeeds.
func (b *Backend) Ping(ctx context.Context) error {
	if b.projectID == "" {
		return nil
	}
	_, err := b.client.Buckets(ctx, b.projectID).Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close closes the underlying gRPC/HTTP client.
func (b *Backend) Close() error {
	return b.client.Close()
}

// PutObject streams r into a new object. With opts.Overwrite off the write
// is conditioned on the object not existing yet. A failed copy cancels the
// writer's context, which abandons the upload instead of committing the bytes
// sent so far.
func (b *Backend) PutObject(ctx context.Context, container, key string, r io.Reader, _ int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	obj := b.client.Bucket(container).Object(key)
	if !opts.Overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := obj.NewWriter(wctx)
	w.ContentType = opts.ContentType

	src := &sourceReader{r: r}
	if _, err := io.Copy(w, src); err != nil {
		cancel()
		if src.err != nil {
			return nil, errs.Wrap(errs.ErrKindTransferFailed, "failed to read upload body", src.err)
		}
		return nil, mapError(err, "failed to write object")
	}
	if err := w.Close(); err != nil {
		return nil, mapError(err, "failed to finalize object")
	}

	attrs := w.Attrs()
	return &filestore.ObjectInfo{
		Key:          key,
		Size:         attrs.Size,
		ContentType:  attrs.ContentType,
		ETag:         attrs.Etag,
		LastModified: attrs.Updated,
	}, nil
}

// sourceReader remembers a read error so it can be told apart from a
// failure on the GCS side of the copy.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

// GetObject opens a streaming reader on the object at key inside container.
func (b *Backend) GetObject(ctx context.Context, container, key string) (filestore.Object, error) {
	rd, err := b.client.Bucket(container).Object(key).NewReader(ctx)
	if err != nil {
		return nil, mapError(err, "failed to open object")
	}

	return filestore.NewObject(rd, &filestore.ObjectInfo{
		Key:          key,
		Size:         rd.Attrs.Size,
		ContentType:  rd.Attrs.ContentType,
		LastModified: rd.Attrs.LastModified,
	}), nil
}

var _ filestore.Backend = (*Backend)(nil)
