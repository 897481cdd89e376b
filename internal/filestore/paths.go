package filestore

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/koustreak/blobiface/internal/errs"
)

// ResolveUploadKey returns the blob key a local file lands on when uploaded
// into remoteDir. An empty remoteDir ("", "." or "/") is the container root.
func ResolveUploadKey(localPath, remoteDir string) (string, error) {
	name := filepath.Base(filepath.Clean(localPath))
	if !validName(name) || localPath == "" {
		return "", errs.Newf(errs.ErrKindInvalidInput, "local path %q has no file name", localPath)
	}

	dir := cleanRemoteDir(remoteDir)
	if dir == "" {
		return name, nil
	}
	return dir + "/" + name, nil
}

// ResolveDownloadPath returns the local file a blob is written to when
// downloaded into localDir. The whole key is kept below localDir, so
// "a/b/c.zip" into "out" lands on "out/a/b/c.zip". An empty localDir is the
// current directory.
func ResolveDownloadPath(remotePath, localDir string) (string, error) {
	key, err := CleanKey(remotePath)
	if err != nil {
		return "", errs.Newf(errs.ErrKindInvalidInput, "remote path %q has no file name", remotePath)
	}

	rel := filepath.FromSlash(key)
	if localDir == "" {
		return rel, nil
	}
	return filepath.Join(localDir, rel), nil
}

// CleanKey normalises a caller-supplied blob key: forward slashes, no
// leading slash, no dot segments.
func CleanKey(key string) (string, error) {
	k := toSlash(key)
	if k == "" || strings.HasSuffix(k, "/") {
		return "", errs.Newf(errs.ErrKindInvalidInput, "blob key %q has no file name", key)
	}
	cleaned := cleanRemoteDir(k)
	if cleaned == "" || !validName(path.Base(cleaned)) {
		return "", errs.Newf(errs.ErrKindInvalidInput, "blob key %q has no file name", key)
	}
	return cleaned, nil
}

// cleanRemoteDir roots dir at the container, so ".." segments can never
// climb above it, and strips the leading and trailing slashes.
func cleanRemoteDir(dir string) string {
	return strings.Trim(path.Clean("/"+toSlash(dir)), "/")
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func validName(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
