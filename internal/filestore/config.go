package filestore

import (
	"time"

	"github.com/koustreak/blobiface/internal/errs"
)

// Provider identifies the object storage backend.
type Provider string

const (
	ProviderAzure Provider = "azure"
	ProviderMinIO Provider = "minio"
	ProviderS3    Provider = "s3"
	ProviderGCS   Provider = "gcs"
)

// Default tuning values.
const (
	DefaultConcurrency     = 10
	DefaultTransferTimeout = 50 * time.Minute
)

// Config holds all settings needed to reach a storage backend and bind a
// driver to one container.
type Config struct {
	// Provider is the storage backend. Empty means ProviderAzure.
	Provider Provider `yaml:"provider"`

	// Container is the container (bucket) the driver is bound to.
	Container string `yaml:"container"`

	// ConnectionString is the Azure storage connection string.
	ConnectionString string `yaml:"connection_string"`

	// Endpoint is the host:port (MinIO) or base URL (S3-compatible, GCS emulator).
	Endpoint string `yaml:"endpoint"`

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string `yaml:"access_key"`

	// SecretKey is the secret access key.
	SecretKey string `yaml:"secret_key"`

	// UseSSL controls whether TLS is used for MinIO connections.
	UseSSL bool `yaml:"use_ssl"`

	// Region is used by region-aware backends (S3, MinIO).
	Region string `yaml:"region"`

	// ProjectID is the GCP project used by the GCS ping.
	ProjectID string `yaml:"project_id"`

	// CredentialsFile is a GCP service account JSON file.
	// Leave empty to use application default credentials.
	CredentialsFile string `yaml:"credentials_file"`

	// MaxRetries is handed to the SDK retry policy as-is.
	// 0 keeps the SDK default, a negative value disables retries where the SDK allows it.
	MaxRetries int `yaml:"max_retries"`

	// Concurrency is the SDK's block/part parallelism for a single blob.
	Concurrency int `yaml:"concurrency"`

	// OverwriteUploads replaces existing blobs on upload.
	OverwriteUploads bool `yaml:"overwrite_uploads"`

	// OverwriteDownloads replaces existing local files on download.
	OverwriteDownloads bool `yaml:"overwrite_downloads"`

	// TransferTimeout bounds a single upload or download. 0 disables it.
	TransferTimeout time.Duration `yaml:"transfer_timeout"`
}

// DefaultConfig returns an Azure config bound to container.
func DefaultConfig(container, connectionString string) *Config {
	return &Config{
		Provider:           ProviderAzure,
		Container:          container,
		ConnectionString:   connectionString,
		Concurrency:        DefaultConcurrency,
		OverwriteUploads:   true,
		OverwriteDownloads: false,
		TransferTimeout:    DefaultTransferTimeout,
	}
}

// Validate checks the fields the selected provider needs.
func (c *Config) Validate() error {
	if c.Container == "" {
		return errs.New(errs.ErrKindInvalidInput, "container name is required")
	}

	switch c.Provider {
	case "", ProviderAzure:
		if c.ConnectionString == "" {
			return errs.New(errs.ErrKindInvalidInput, "azure connection string is required")
		}
	case ProviderMinIO:
		if c.Endpoint == "" {
			return errs.New(errs.ErrKindInvalidInput, "minio endpoint is required")
		}
		if c.AccessKey == "" || c.SecretKey == "" {
			return errs.New(errs.ErrKindInvalidInput, "minio credentials are required")
		}
	case ProviderS3:
		if c.Region == "" && c.Endpoint == "" {
			return errs.New(errs.ErrKindInvalidInput, "s3 needs a region or an endpoint")
		}
	case ProviderGCS:
	default:
		return errs.Newf(errs.ErrKindUnsupported, "storage provider %q is not supported", c.Provider)
	}

	if c.Concurrency < 0 {
		return errs.New(errs.ErrKindInvalidInput, "concurrency must not be negative")
	}
	if c.TransferTimeout < 0 {
		return errs.New(errs.ErrKindInvalidInput, "transfer timeout must not be negative")
	}
	return nil
}
