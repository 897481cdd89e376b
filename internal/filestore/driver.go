package filestore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/koustreak/blobiface/internal/errs"
	"github.com/koustreak/blobiface/internal/logger"
	"github.com/spf13/afero"
)

// Driver moves single files between the local filesystem and one container.
// It is safe for concurrent use when the Backend is.
type Driver struct {
	backend   Backend
	container string
	fs        afero.Fs
	log       *logger.Logger

	overwriteUploads   bool
	overwriteDownloads bool
	timeout            time.Duration
}

// Option customises a Driver.
type Option func(*Driver)

// WithFs sets the local filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(d *Driver) { d.fs = fs }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithOverwrite sets whether uploads replace existing blobs and downloads
// replace existing local files.
func WithOverwrite(uploads, downloads bool) Option {
	return func(d *Driver) {
		d.overwriteUploads = uploads
		d.overwriteDownloads = downloads
	}
}

// WithTransferTimeout bounds every single transfer. 0 disables the bound.
func WithTransferTimeout(timeout time.Duration) Option {
	return func(d *Driver) { d.timeout = timeout }
}

// WithConfig applies the overwrite and timeout settings of cfg.
func WithConfig(cfg *Config) Option {
	return func(d *Driver) {
		d.overwriteUploads = cfg.OverwriteUploads
		d.overwriteDownloads = cfg.OverwriteDownloads
		d.timeout = cfg.TransferTimeout
	}
}

// NewDriver binds backend to container.
func NewDriver(backend Backend, container string, opts ...Option) (*Driver, error) {
	if backend == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "storage backend is nil")
	}
	if container == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "container name is required")
	}

	d := &Driver{
		backend:          backend,
		container:        container,
		fs:               afero.NewOsFs(),
		log:              logger.Nop(),
		overwriteUploads: true,
		timeout:          DefaultTransferTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With().Str("container", container).Logger()
	return d, nil
}

// Container returns the name of the container the driver is bound to.
func (d *Driver) Container() string {
	return d.container
}

// Ping verifies the backend is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	return d.backend.Ping(ctx)
}

// Close releases the backend.
func (d *Driver) Close() error {
	return d.backend.Close()
}

// Upload copies the file at localPath into remoteDir of the container.
// The blob key is remoteDir joined with the file's base name; an empty
// remoteDir puts the blob at the container root.
func (d *Driver) Upload(ctx context.Context, localPath, remoteDir string) (*Result, error) {
	key, err := ResolveUploadKey(localPath, remoteDir)
	if err != nil {
		return nil, err
	}

	info, err := d.fs.Stat(localPath)
	if err != nil {
		return nil, localError(err, "cannot stat local file")
	}
	if info.IsDir() {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "local path %q is a directory", localPath)
	}

	f, err := d.fs.Open(localPath)
	if err != nil {
		return nil, localError(err, "cannot open local file")
	}
	defer f.Close()

	contentType, err := sniffContentType(f)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindTransferFailed, "cannot read local file", err)
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	log := d.log.With().Str("local", localPath).Str("key", key).Logger()

	put, err := d.backend.PutObject(ctx, d.container, key, f, info.Size(), PutOptions{
		ContentType: contentType,
		Overwrite:   d.overwriteUploads,
	})
	res := &Result{LocalPath: localPath, Key: key}
	if err != nil {
		if errs.IsAlreadyExists(err) && !d.overwriteUploads {
			log.Debug("blob exists, skipping upload")
			res.Skipped = true
			return res, nil
		}
		log.ErrorWith("upload failed", err, nil)
		return nil, err
	}

	res.Bytes = info.Size()
	if put != nil {
		res.ETag = put.ETag
	}
	log.With().Int64("bytes", res.Bytes).Logger().Info("uploaded blob")
	return res, nil
}

// Download copies the blob at remotePath into localDir, recreating the
// blob's directories below it. An empty localDir means the current directory.
func (d *Driver) Download(ctx context.Context, remotePath, localDir string) (*Result, error) {
	key, err := CleanKey(remotePath)
	if err != nil {
		return nil, err
	}
	dest, err := ResolveDownloadPath(key, localDir)
	if err != nil {
		return nil, err
	}

	log := d.log.With().Str("key", key).Str("local", dest).Logger()
	res := &Result{LocalPath: dest, Key: key}

	if !d.overwriteDownloads {
		exists, err := afero.Exists(d.fs, dest)
		if err != nil {
			return nil, localError(err, "cannot stat local file")
		}
		if exists {
			log.Debug("local file exists, skipping download")
			res.Skipped = true
			return res, nil
		}
	}

	if dir := filepath.Dir(dest); dir != "." {
		if err := d.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, localError(err, "cannot create local directory")
		}
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	obj, err := d.backend.GetObject(ctx, d.container, key)
	if err != nil {
		log.ErrorWith("download failed", err, nil)
		return nil, err
	}
	defer obj.Close()

	n, err := d.writeAtomic(dest, obj)
	if err != nil {
		log.ErrorWith("download failed", err, nil)
		return nil, err
	}

	res.Bytes = n
	if info := obj.Info(); info != nil {
		res.ETag = info.ETag
	}
	log.With().Int64("bytes", n).Logger().Info("downloaded blob")
	return res, nil
}

// writeAtomic streams r into a temporary sibling of dest and renames it into
// place, so dest is either complete or untouched.
func (d *Driver) writeAtomic(dest string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dest)
	tmp, err := afero.TempFile(d.fs, dir, "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return 0, localError(err, "cannot create temporary file")
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = d.fs.Remove(tmpName)
		return 0, streamError(err)
	}

	if err := d.fs.Rename(tmpName, dest); err != nil {
		_ = d.fs.Remove(tmpName)
		return 0, localError(err, "cannot move downloaded file into place")
	}
	return n, nil
}

func (d *Driver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

// sniffContentType detects the MIME type from the head of f and rewinds it.
func sniffContentType(f afero.File) (string, error) {
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mtype.String(), nil
}

func localError(err error, msg string) *errs.Error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case errors.Is(err, os.ErrPermission):
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	default:
		return errs.Wrap(errs.ErrKindTransferFailed, msg, err)
	}
}

// streamError keeps a backend's own classification when the copy failed on
// the remote side.
func streamError(err error) error {
	if errs.KindOf(err) != errs.ErrKindUnknown {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, "download interrupted", err)
	}
	return errs.Wrap(errs.ErrKindTransferFailed, "download interrupted", err)
}
