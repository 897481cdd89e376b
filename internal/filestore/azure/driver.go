// Package azure provides an Azure Blob Storage implementation of filestore.Backend.
//
// Usage:
//
//	drv, err := azure.NewDriver(ctx, "sentinel-products")
//	if err != nil { ... }
//	defer drv.Close()
//
//	res, err := drv.Download(ctx, "Sentinel-2/L2A/T32TQM/2021/06/01/scene.zip", "/data")
package azure

import (
	"context"
	"io"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/koustreak/blobiface/internal/errs"
	"github.com/koustreak/blobiface/internal/filestore"
)

// ConnectionStringEnv holds the storage account connection string.
const ConnectionStringEnv = "ACCOUNT_URL"

// FallbackConnectionStringEnv is the Azure SDK's conventional variable,
// consulted when ConnectionStringEnv is unset.
const FallbackConnectionStringEnv = "AZURE_STORAGE_CONNECTION_STRING"

// Backend is an Azure Blob Storage implementation of filestore.Backend.
// It is safe for concurrent use by multiple goroutines.
type Backend struct {
	client      *azblob.Client
	container   string
	concurrency int
}

// ConnectionStringFromEnv reads the connection string from the environment.
func ConnectionStringFromEnv() (string, error) {
	if v := os.Getenv(ConnectionStringEnv); v != "" {
		return v, nil
	}
	if v := os.Getenv(FallbackConnectionStringEnv); v != "" {
		return v, nil
	}
	return "", errs.Newf(errs.ErrKindInvalidInput,
		"azure connection string not set: export %s", ConnectionStringEnv)
}

// NewDriver builds a driver bound to container, using the connection string
// from the environment and the default config for everything else.
func NewDriver(ctx context.Context, container string, opts ...filestore.Option) (*filestore.Driver, error) {
	conn, err := ConnectionStringFromEnv()
	if err != nil {
		return nil, err
	}

	cfg := filestore.DefaultConfig(container, conn)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return filestore.NewDriver(b, container, append([]filestore.Option{filestore.WithConfig(cfg)}, opts...)...)
}

// New builds an azblob client from cfg.ConnectionString. It does not touch
// the network: a container-scoped SAS cannot list the account, so
// reachability is checked by Ping against cfg.Container instead.
func New(_ context.Context, cfg *filestore.Config) (*Backend, error) {
	return newBackend(cfg)
}

func newBackend(cfg *filestore.Config) (*Backend, error) {
	if cfg.ConnectionString == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "azure connection string is required")
	}

	opts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: int32(cfg.MaxRetries)},
		},
	}
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, opts)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create azure blob client", err)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = filestore.DefaultConcurrency
	}
	return &Backend{client: client, container: cfg.Container, concurrency: concurrency}, nil
}

// Ping fetches the properties of the bound container, which only needs
// container-level rights.
func (b *Backend) Ping(ctx context.Context) error {
	if b.container == "" {
		return errs.New(errs.ErrKindInvalidInput, "container name is required")
	}
	if _, err := b.client.ServiceClient().NewContainerClient(b.container).GetProperties(ctx, nil); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op: the SDK client holds no persistent connections of its own.
func (b *Backend) Close() error {
	return nil
}

// PutObject uploads r as a block blob. With opts.Overwrite off the request
// carries If-None-Match: *, so an existing blob is left untouched.
func (b *Backend) PutObject(ctx context.Context, container, key string, r io.Reader, _ int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	upOpts := &azblob.UploadStreamOptions{
		Concurrency: b.concurrency,
	}
	if opts.ContentType != "" {
		upOpts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(opts.ContentType)}
	}
	if !opts.Overwrite {
		upOpts.AccessConditions = &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: to.Ptr(azcore.ETagAny)},
		}
	}

	resp, err := b.client.UploadStream(ctx, container, key, r, upOpts)
	if err != nil {
		return nil, mapError(err, "failed to upload blob")
	}

	info := &filestore.ObjectInfo{Key: key, Size: -1, ContentType: opts.ContentType}
	if resp.ETag != nil {
		info.ETag = string(*resp.ETag)
	}
	if resp.LastModified != nil {
		info.LastModified = *resp.LastModified
	}
	return info, nil
}

// GetObject opens a streaming download of the blob at key inside container.
func (b *Backend) GetObject(ctx context.Context, container, key string) (filestore.Object, error) {
	resp, err := b.client.DownloadStream(ctx, container, key, nil)
	if err != nil {
		return nil, mapError(err, "failed to download blob")
	}

	info := &filestore.ObjectInfo{Key: key, Size: -1}
	if resp.ContentLength != nil {
		info.Size = *resp.ContentLength
	}
	if resp.ContentType != nil {
		info.ContentType = *resp.ContentType
	}
	if resp.ETag != nil {
		info.ETag = string(*resp.ETag)
	}
	if resp.LastModified != nil {
		info.LastModified = *resp.LastModified
	}
	return filestore.NewObject(&body{ReadCloser: resp.Body}, info), nil
}

// body maps errors raised while the caller drains the response.
type body struct {
	io.ReadCloser
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		return n, mapError(err, "failed to read blob body")
	}
	return n, err
}

var _ filestore.Backend = (*Backend)(nil)
