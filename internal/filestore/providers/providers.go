// Package providers picks a filestore.Backend implementation from a Config.
//
// It is the only package that imports every provider; everything else
// depends on filestore alone.
package providers

import (
	"context"

	"github.com/koustreak/blobiface/internal/errs"
	"github.com/koustreak/blobiface/internal/filestore"
	"github.com/koustreak/blobiface/internal/filestore/azure"
	"github.com/koustreak/blobiface/internal/filestore/gcs"
	"github.com/koustreak/blobiface/internal/filestore/minio"
	"github.com/koustreak/blobiface/internal/filestore/s3"
)

// Open validates cfg and connects to the backend it names.
func Open(ctx context.Context, cfg *filestore.Config) (filestore.Backend, error) {
	if cfg == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "storage config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case "", filestore.ProviderAzure:
		return azure.New(ctx, cfg)
	case filestore.ProviderMinIO:
		return minio.New(ctx, cfg)
	case filestore.ProviderS3:
		return s3.New(ctx, cfg)
	case filestore.ProviderGCS:
		return gcs.New(ctx, cfg)
	default:
		return nil, errs.Newf(errs.ErrKindUnsupported, "storage provider %q is not supported", cfg.Provider)
	}
}

// NewDriver opens the backend for cfg and binds it to cfg.Container.
// opts are applied after the overwrite and timeout settings of cfg.
func NewDriver(ctx context.Context, cfg *filestore.Config, opts ...filestore.Option) (*filestore.Driver, error) {
	backend, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	drv, err := filestore.NewDriver(backend, cfg.Container, append([]filestore.Option{filestore.WithConfig(cfg)}, opts...)...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return drv, nil
}
