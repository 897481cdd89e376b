package azure

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/koustreak/blobiface/internal/errs"
	"github.com/koustreak/blobiface/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStringFromEnv(t *testing.T) {
	t.Run("primary variable", func(t *testing.T) {
		t.Setenv(ConnectionStringEnv, "primary")
		t.Setenv(FallbackConnectionStringEnv, "fallback")

		got, err := ConnectionStringFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "primary", got)
	})

	t.Run("fallback variable", func(t *testing.T) {
		t.Setenv(ConnectionStringEnv, "")
		t.Setenv(FallbackConnectionStringEnv, "fallback")

		got, err := ConnectionStringFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "fallback", got)
	})

	t.Run("unset", func(t *testing.T) {
		t.Setenv(ConnectionStringEnv, "")
		t.Setenv(FallbackConnectionStringEnv, "")

		_, err := ConnectionStringFromEnv()
		assert.True(t, errs.IsInvalidInput(err))
	})
}

func TestNewDriver_MissingEnv(t *testing.T) {
	t.Setenv(ConnectionStringEnv, "")
	t.Setenv(FallbackConnectionStringEnv, "")

	_, err := NewDriver(context.Background(), "products")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestNewBackend(t *testing.T) {
	_, err := newBackend(&filestore.Config{})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = newBackend(&filestore.Config{ConnectionString: "not a connection string"})
	assert.True(t, errs.IsConnectionFailed(err))

	_, err = newBackend(&filestore.Config{ConnectionString: "UseDevelopmentStorage=true"})
	assert.True(t, errs.IsConnectionFailed(err), "the SDK needs AccountName or BlobEndpoint")

	b, err := newBackend(&filestore.Config{ConnectionString: azuriteConnectionString, Container: "products"})
	require.NoError(t, err)
	assert.Equal(t, filestore.DefaultConcurrency, b.concurrency)
	assert.Equal(t, "products", b.container)
	assert.NoError(t, b.Close())
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"nil", nil, errs.ErrKindUnknown},
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"blob not found", &azcore.ResponseError{ErrorCode: "BlobNotFound", StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"container not found", &azcore.ResponseError{ErrorCode: "ContainerNotFound", StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"condition not met", &azcore.ResponseError{ErrorCode: "ConditionNotMet", StatusCode: http.StatusPreconditionFailed}, errs.ErrKindAlreadyExists},
		{"blob exists", &azcore.ResponseError{ErrorCode: "BlobAlreadyExists", StatusCode: http.StatusConflict}, errs.ErrKindAlreadyExists},
		{"auth failed", &azcore.ResponseError{ErrorCode: "AuthenticationFailed", StatusCode: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"bad name", &azcore.ResponseError{ErrorCode: "InvalidResourceName", StatusCode: http.StatusBadRequest}, errs.ErrKindInvalidInput},
		{"busy", &azcore.ResponseError{ErrorCode: "ServerBusy", StatusCode: http.StatusServiceUnavailable}, errs.ErrKindTimeout},
		{"status only 404", &azcore.ResponseError{StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"status only 401", &azcore.ResponseError{StatusCode: http.StatusUnauthorized}, errs.ErrKindPermissionDenied},
		{"status 500", &azcore.ResponseError{StatusCode: http.StatusInternalServerError}, errs.ErrKindTransferFailed},
		{"no response", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op")
			if tt.err == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}
