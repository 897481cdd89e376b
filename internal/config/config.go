// Package config loads blobiface settings from an optional YAML file, an
// optional .env file and the process environment, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/koustreak/blobiface/internal/errs"
	"github.com/koustreak/blobiface/internal/filestore"
	"github.com/koustreak/blobiface/internal/filestore/azure"
	"github.com/koustreak/blobiface/internal/logger"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

// Environment variable names.
const (
	EnvProvider           = "STORAGE_PROVIDER"
	EnvContainer          = "STORAGE_CONTAINER"
	EnvEndpoint           = "STORAGE_ENDPOINT"
	EnvAccessKey          = "STORAGE_ACCESS_KEY"
	EnvSecretKey          = "STORAGE_SECRET_KEY"
	EnvRegion             = "STORAGE_REGION"
	EnvUseSSL             = "STORAGE_USE_SSL"
	EnvMaxRetries         = "STORAGE_MAX_RETRIES"
	EnvConcurrency        = "STORAGE_CONCURRENCY"
	EnvOverwriteUploads   = "STORAGE_OVERWRITE_UPLOADS"
	EnvOverwriteDownloads = "STORAGE_OVERWRITE_DOWNLOADS"
	EnvTransferTimeout    = "STORAGE_TRANSFER_TIMEOUT"
	EnvGCSProject         = "GCS_PROJECT_ID"
	EnvGCSCredentials     = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
)

// Config is the full runtime configuration.
type Config struct {
	Storage filestore.Config `yaml:"storage"`
	Log     LogConfig        `yaml:"log"`
}

// LogConfig selects the logger level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Storage: *filestore.DefaultConfig("", ""),
		Log:     LogConfig{Level: "info", Format: "console"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), a .env file in the working directory if present, and
// the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	// A missing .env is the normal case.
	_ = godotenv.Load()

	cfg.applyEnv()
	return cfg, nil
}

// Logger builds the logger described by c.Log.
func (c *Config) Logger() *logger.Logger {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	return logger.New(lc)
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errs.Wrap(errs.ErrKindNotFound, "config file not found", err)
		}
		return errs.Wrap(errs.ErrKindInvalidInput, "cannot read config file", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid config file "+path, err)
	}
	return nil
}

// applyEnv overlays every variable that is set in the environment on top of
// the values already in c.
func (c *Config) applyEnv() {
	v := viper.New()
	v.AutomaticEnv()

	s := &c.Storage
	v.SetDefault(EnvProvider, string(s.Provider))
	v.SetDefault(EnvContainer, s.Container)
	v.SetDefault(EnvEndpoint, s.Endpoint)
	v.SetDefault(EnvAccessKey, s.AccessKey)
	v.SetDefault(EnvSecretKey, s.SecretKey)
	v.SetDefault(EnvRegion, s.Region)
	v.SetDefault(EnvUseSSL, s.UseSSL)
	v.SetDefault(EnvMaxRetries, s.MaxRetries)
	v.SetDefault(EnvConcurrency, s.Concurrency)
	v.SetDefault(EnvOverwriteUploads, s.OverwriteUploads)
	v.SetDefault(EnvOverwriteDownloads, s.OverwriteDownloads)
	v.SetDefault(EnvTransferTimeout, s.TransferTimeout)
	v.SetDefault(EnvGCSProject, s.ProjectID)
	v.SetDefault(EnvGCSCredentials, s.CredentialsFile)
	v.SetDefault(EnvLogLevel, c.Log.Level)
	v.SetDefault(EnvLogFormat, c.Log.Format)

	s.Provider = filestore.Provider(v.GetString(EnvProvider))
	s.Container = v.GetString(EnvContainer)
	s.Endpoint = v.GetString(EnvEndpoint)
	s.AccessKey = v.GetString(EnvAccessKey)
	s.SecretKey = v.GetString(EnvSecretKey)
	s.Region = v.GetString(EnvRegion)
	s.UseSSL = v.GetBool(EnvUseSSL)
	s.MaxRetries = v.GetInt(EnvMaxRetries)
	s.Concurrency = v.GetInt(EnvConcurrency)
	s.OverwriteUploads = v.GetBool(EnvOverwriteUploads)
	s.OverwriteDownloads = v.GetBool(EnvOverwriteDownloads)
	s.TransferTimeout = v.GetDuration(EnvTransferTimeout)
	s.ProjectID = v.GetString(EnvGCSProject)
	s.CredentialsFile = v.GetString(EnvGCSCredentials)
	c.Log.Level = v.GetString(EnvLogLevel)
	c.Log.Format = v.GetString(EnvLogFormat)

	if conn, err := azure.ConnectionStringFromEnv(); err == nil {
		s.ConnectionString = conn
	}
}
