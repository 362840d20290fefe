package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/dialectc/internal/types"
)

// Auth errors are mapped in the auth package interceptor.
// Oracle problems map to UNAVAILABLE, bad input to INVALID_ARGUMENT,
// context expiry to DEADLINE_EXCEEDED, everything else to INTERNAL.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, types.ErrSourceTooLarge),
		errors.Is(err, types.ErrUnknownKind),
		errors.Is(err, types.ErrInvalidRule):
		code = codes.InvalidArgument
	case errors.Is(err, types.ErrNoOracle),
		errors.Is(err, types.ErrOracleEmpty):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
