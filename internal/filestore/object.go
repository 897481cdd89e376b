package filestore

import (
	"io"
	"time"
)

// ObjectInfo describes a single blob stored in a container.
type ObjectInfo struct {
	// Key is the full blob path within the container (e.g. "Sentinel-2/L2A/a.zip").
	Key string

	// Size is the byte size of the blob. -1 if unknown.
	Size int64

	// ContentType is the MIME type (e.g. "application/zip").
	ContentType string

	// ETag is the blob's entity tag as returned by the backend.
	ETag string

	// LastModified is when the blob was last written.
	LastModified time.Time
}

// Object is a streaming handle to a blob's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata the backend sent along with the content.
	Info() *ObjectInfo
}

// PutOptions controls a single PutObject call.
type PutOptions struct {
	// ContentType is stored with the blob. Empty lets the backend decide.
	ContentType string

	// Overwrite replaces an existing blob. When false, a backend returns an
	// errs.ErrKindAlreadyExists error instead of writing.
	Overwrite bool
}

// Result reports what a Driver transfer did.
type Result struct {
	// LocalPath is the file read on upload or written on download.
	LocalPath string

	// Key is the blob key inside the driver's container.
	Key string

	// Bytes is the number of bytes moved. 0 when Skipped.
	Bytes int64

	// ETag is the backend's tag for the blob, when it reports one.
	ETag string

	// Skipped is true when the destination already existed and overwrite was off.
	Skipped bool
}

// NewObject pairs a reader with its metadata. Backends use it to build the
// Object returned from GetObject.
func NewObject(rc io.ReadCloser, info *ObjectInfo) Object {
	return &object{ReadCloser: rc, info: info}
}

type object struct {
	io.ReadCloser
	info *ObjectInfo
}

func (o *object) Info() *ObjectInfo {
	return o.info
}
