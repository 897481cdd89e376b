// Package s3 provides an AWS S3 (and S3-compatible) implementation of
// filestore.Backend on aws-sdk-go-v2.
package s3

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/koustreak/blobiface/internal/errs"
	"github.com/koustreak/blobiface/internal/filestore"
)

// Backend is an S3 implementation of filestore.Backend.
// It is safe for concurrent use by multiple goroutines.
type Backend struct {
	client   *awss3.Client
	uploader *manager.Uploader
}

// New loads the AWS config (static keys when given, the default chain
// otherwise), builds the client and pings it.
func New(ctx context.Context, cfg *filestore.Config) (*Backend, error) {
	b, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := b.Ping(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func newBackend(ctx context.Context, cfg *filestore.Config) (*Backend, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""))
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(creds))
	}
	if cfg.MaxRetries > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries+1))
	} else if cfg.MaxRetries < 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to load aws config", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// S3-compatible servers rarely support virtual-hosted buckets.
			o.UsePathStyle = true
		}
	})

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = filestore.DefaultConcurrency
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.Concurrency = concurrency
	})

	return &Backend{client: client, uploader: uploader}, nil
}

// Ping verifies the endpoint is reachable and the credentials are accepted.
func (b *Backend) Ping(ctx context.Context) error {
	if _, err := b.client.ListBuckets(ctx, &awss3.ListBucketsInput{}); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op; the SDK's HTTP client is shared and needs no teardown.
func (b *Backend) Close() error {
	return nil
}

// PutObject uploads through the transfer manager, which switches to a
// multipart upload for large bodies. With opts.Overwrite off the request
// carries If-None-Match: *.
func (b *Backend) PutObject(ctx context.Context, container, key string, r io.Reader, _ int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	in := &awss3.PutObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
		Body:   r,
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if !opts.Overwrite {
		in.IfNoneMatch = aws.String("*")
	}

	out, err := b.uploader.Upload(ctx, in)
	if err != nil {
		return nil, mapError(err, "failed to put object")
	}

	return &filestore.ObjectInfo{
		Key:         key,
		Size:        -1,
		ContentType: opts.ContentType,
		ETag:        aws.ToString(out.ETag),
	}, nil
}

// GetObject opens a streaming handle to the object at key inside container.
func (b *Backend) GetObject(ctx context.Context, container, key string) (filestore.Object, error) {
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	info := &filestore.ObjectInfo{
		Key:         key,
		Size:        -1,
		ContentType: aws.ToString(out.ContentType),
		ETag:        aws.ToString(out.ETag),
	}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return filestore.NewObject(out.Body, info), nil
}

var _ filestore.Backend = (*Backend)(nil)
