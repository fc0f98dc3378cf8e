package api

import (
	"context"
	"errors"

	"github.com/zipscope/zipscope/internal/backend"
	"github.com/zipscope/zipscope/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps domain errors to gRPC status errors. Backend rejections keep
// the raw backend message so callers can show it verbatim.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if apiErr, ok := backend.IsAPIError(err); ok {
		return status.Error(codes.FailedPrecondition, apiErr.Message)
	}

	switch {
	case errors.Is(err, types.ErrSessionNotFound),
		errors.Is(err, types.ErrNodeNotFound),
		errors.Is(err, types.ErrTaskNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrMalformedPath),
		errors.Is(err, types.ErrInvalidLevel),
		errors.Is(err, types.ErrEmptySearchQuery),
		errors.Is(err, types.ErrNoDataFields),
		errors.Is(err, types.ErrInvalidMaxReviews),
		errors.Is(err, types.ErrInvalidTaskStatus):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrMissingToken):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, types.ErrDatasetUnavailable),
		errors.Is(err, types.ErrBackendUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, types.ErrBulkCancelled),
		errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
