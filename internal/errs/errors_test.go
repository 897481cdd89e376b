package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	plain := New(ErrKindInvalidInput, "container name is empty")
	assert.Equal(t, "[invalid_input] container name is empty", plain.Error())

	wrapped := Wrap(ErrKindTimeout, "download timed out", context.DeadlineExceeded)
	assert.Equal(t, "[timeout] download timed out: context deadline exceeded", wrapped.Error())
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := Wrap(ErrKindTransferFailed, "upload failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, fmt.Errorf("outer: %w", err), cause)
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", New(ErrKindNotFound, "x"), IsNotFound},
		{"timeout", New(ErrKindTimeout, "x"), IsTimeout},
		{"connection", New(ErrKindConnectionFailed, "x"), IsConnectionFailed},
		{"transfer", New(ErrKindTransferFailed, "x"), IsTransferFailed},
		{"invalid input", New(ErrKindInvalidInput, "x"), IsInvalidInput},
		{"permission", New(ErrKindPermissionDenied, "x"), IsPermissionDenied},
		{"already exists", New(ErrKindAlreadyExists, "x"), IsAlreadyExists},
		{"unsupported", Newf(ErrKindUnsupported, "provider %q", "ftp"), IsUnsupported},
		{"wrapped by fmt", fmt.Errorf("ctx: %w", New(ErrKindNotFound, "x")), IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.Equal(t, "unknown", ErrKindUnknown.String())
}
