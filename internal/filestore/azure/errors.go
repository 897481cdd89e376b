package azure

import (
	"context"
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/koustreak/blobiface/internal/errs"
)

// mapError translates an Azure SDK error into a *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet):
		return errs.Wrap(errs.ErrKindAlreadyExists, msg, err)
	case bloberror.HasCode(err, bloberror.AuthenticationFailed, bloberror.AuthorizationFailure,
		bloberror.AuthorizationPermissionMismatch, bloberror.InsufficientAccountPermissions):
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	case bloberror.HasCode(err, bloberror.InvalidResourceName, bloberror.OutOfRangeInput, bloberror.InvalidQueryParameterValue):
		return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
	case bloberror.HasCode(err, bloberror.OperationTimedOut, bloberror.ServerBusy):
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var resp *azcore.ResponseError
	if errors.As(err, &resp) {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case http.StatusConflict, http.StatusPreconditionFailed:
			return errs.Wrap(errs.ErrKindAlreadyExists, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case http.StatusBadRequest:
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		}
		return errs.Wrap(errs.ErrKindTransferFailed, msg, err)
	}

	// No HTTP response at all: DNS, TLS, refused connection.
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
