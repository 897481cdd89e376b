package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/koustreak/blobiface/internal/errs"
	"github.com/koustreak/blobiface/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

// fakeGCS serves the JSON upload and XML read endpoints the client uses.
type fakeGCS struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	commits int
}

func (f *fakeGCS) committed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

func (f *fakeGCS) data(id string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[id].data
}

func (f *fakeGCS) seed(id, data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[id] = fakeObject{data: []byte(data)}
}

type fakeObject struct {
	data        []byte
	contentType string
}

func newFakeGCS(t *testing.T) (*fakeGCS, *Backend) {
	t.Helper()
	f := &fakeGCS{objects: map[string]fakeObject{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	b, err := newBackend(context.Background(), &filestore.Config{
		Endpoint:   srv.URL + "/storage/v1/",
		MaxRetries: -1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return f, b
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/upload/storage/v1/b/") {
		f.upload(w, r)
		return
	}
	if r.Method == http.MethodGet {
		f.read(w, r)
		return
	}
	http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotImplemented)
}

func (f *fakeGCS) upload(w http.ResponseWriter, r *http.Request) {
	bucket := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/upload/storage/v1/b/"), "/o")

	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	var meta struct {
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
	}
	part, err := mr.NextPart()
	if err != nil {
		return
	}
	if err := json.NewDecoder(part).Decode(&meta); err != nil {
		return
	}
	part, err = mr.NextPart()
	if err != nil {
		return
	}
	data, err := io.ReadAll(part)
	if err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := bucket + "/" + meta.Name
	if _, ok := f.objects[id]; ok && r.URL.Query().Get("ifGenerationMatch") == "0" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPreconditionFailed)
		fmt.Fprint(w, `{"error":{"code":412,"message":"conditionNotMet"}}`)
		return
	}
	f.objects[id] = fakeObject{data: data, contentType: meta.ContentType}
	f.commits++

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"bucket":      bucket,
		"name":        meta.Name,
		"size":        fmt.Sprint(len(data)),
		"contentType": meta.ContentType,
		"etag":        "etag-" + meta.Name,
		"generation":  "1",
		"updated":     time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
	})
}

func (f *fakeGCS) read(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	obj, ok := f.objects[strings.TrimPrefix(r.URL.Path, "/")]
	f.mu.Unlock()
	if !ok {
		http.Error(w, "NoSuchKey", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", obj.contentType)
	w.Header().Set("X-Goog-Generation", "1")
	w.Header().Set("Last-Modified", time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat))
	w.Write(obj.data)
}

type brokenReader struct {
	head []byte
	done bool
}

func (r *brokenReader) Read(p []byte) (int, error) {
	if !r.done {
		r.done = true
		return copy(p, r.head), nil
	}
	return 0, errors.New("disk read error")
}

func TestBackend_PutGetRoundTrip(t *testing.T) {
	f, b := newFakeGCS(t)
	ctx := context.Background()

	info, err := b.PutObject(ctx, "products", "a/scene.txt", strings.NewReader("hello"), 5,
		filestore.PutOptions{ContentType: "text/plain", Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "text/plain", info.ContentType)
	assert.Equal(t, "etag-a/scene.txt", info.ETag)
	assert.Equal(t, 1, f.committed())

	obj, err := b.GetObject(ctx, "products", "a/scene.txt")
	require.NoError(t, err)
	defer obj.Close()

	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "text/plain", obj.Info().ContentType)
	assert.Equal(t, int64(5), obj.Info().Size)
}

func TestBackend_PutNoOverwrite(t *testing.T) {
	f, b := newFakeGCS(t)
	f.seed("products/scene.txt", "old")

	_, err := b.PutObject(context.Background(), "products", "scene.txt", strings.NewReader("new"), 3,
		filestore.PutOptions{Overwrite: false})
	assert.True(t, errs.IsAlreadyExists(err), "got %v", err)
	assert.Equal(t, []byte("old"), f.data("products/scene.txt"))
}

func TestBackend_PutReadErrorCommitsNothing(t *testing.T) {
	f, b := newFakeGCS(t)
	f.seed("products/scene.txt", "good")

	_, err := b.PutObject(context.Background(), "products", "scene.txt",
		&brokenReader{head: []byte("HALFDATA")}, 16, filestore.PutOptions{Overwrite: true})
	assert.True(t, errs.IsTransferFailed(err), "got %v", err)

	// give an in-flight request time to land if one was sent
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, f.committed())
	assert.Equal(t, []byte("good"), f.data("products/scene.txt"))
}

func TestBackend_GetMissing(t *testing.T) {
	_, b := newFakeGCS(t)

	_, err := b.GetObject(context.Background(), "products", "missing.zip")
	assert.True(t, errs.IsNotFound(err), "got %v", err)
}

func TestNewBackend_Emulator(t *testing.T) {
	b, err := newBackend(context.Background(), &filestore.Config{
		Endpoint:   "http://localhost:4443/storage/v1/",
		MaxRetries: -1,
	})
	require.NoError(t, err)

	// no project configured: nothing to ping
	assert.NoError(t, b.Ping(context.Background()))
	assert.NoError(t, b.Close())
}

func TestSourceReader(t *testing.T) {
	src := &sourceReader{r: bytes.NewReader([]byte("abc"))}
	_, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.NoError(t, src.err, "EOF is not a read error")

	src = &sourceReader{r: &brokenReader{}}
	_, err = io.ReadAll(src)
	assert.Error(t, err)
	assert.EqualError(t, src.err, "disk read error")
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"canceled", context.Canceled, errs.ErrKindTimeout},
		{"object missing", storage.ErrObjectNotExist, errs.ErrKindNotFound},
		{"bucket missing wrapped", fmt.Errorf("open: %w", storage.ErrBucketNotExist), errs.ErrKindNotFound},
		{"precondition", &googleapi.Error{Code: http.StatusPreconditionFailed}, errs.ErrKindAlreadyExists},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, errs.ErrKindTimeout},
		{"server error", &googleapi.Error{Code: http.StatusBadGateway}, errs.ErrKindTransferFailed},
		{"network", errors.New("connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}
