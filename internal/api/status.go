package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/ironkeep/internal/errs"
)

var codeSentinels = map[codes.Code]error{
	codes.NotFound:           errs.ErrNotFound,
	codes.AlreadyExists:      errs.ErrAlreadyExists,
	codes.PermissionDenied:   errs.ErrAccessDenied,
	codes.Unauthenticated:    errs.ErrUnauthorized,
	codes.ResourceExhausted:  errs.ErrRateLimited,
	codes.InvalidArgument:    errs.ErrInvalidArgument,
	codes.DeadlineExceeded:   errs.ErrTimeout,
	codes.Unavailable:        errs.ErrUnavailable,
	codes.FailedPrecondition: errs.ErrVersionConflict,
	codes.Canceled:           context.Canceled,
}

// Code returns the gRPC code for err, matching the sentinels in errs.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, errs.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, errs.ErrAlreadyExists):
		return codes.AlreadyExists
	case errors.Is(err, errs.ErrAccessDenied):
		return codes.PermissionDenied
	case errors.Is(err, errs.ErrUnauthorized):
		return codes.Unauthenticated
	case errors.Is(err, errs.ErrRateLimited):
		return codes.ResourceExhausted
	case errors.Is(err, errs.ErrInvalidArgument), isValidation(err):
		return codes.InvalidArgument
	case errors.Is(err, errs.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, errs.ErrUnavailable):
		return codes.Unavailable
	case errors.Is(err, errs.ErrVersionConflict):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

func isValidation(err error) bool {
	var ve *errs.ValidationError
	return errors.As(err, &ve)
}

// FromStatus turns a gRPC status error back into an error matching the errs
// sentinels. Other errors are returned unchanged.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	s, ok := status.FromError(err)
	if !ok {
		return err
	}
	sentinel, known := codeSentinels[s.Code()]
	if !known {
		return err
	}
	msg := strings.TrimPrefix(s.Message(), sentinel.Error()+": ")
	if msg == "" || msg == sentinel.Error() {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

// Failure codes.
const (
	FailNotFound        = "not_found"
	FailAlreadyExists   = "already_exists"
	FailAccessDenied    = "access_denied"
	FailInvalidArgument = "invalid_argument"
	FailInternal        = "internal"
)

// FailureCode classifies a per-entity error for transport.
func FailureCode(err error) string {
	switch Code(err) {
	case codes.NotFound:
		return FailNotFound
	case codes.AlreadyExists:
		return FailAlreadyExists
	case codes.PermissionDenied:
		return FailAccessDenied
	case codes.InvalidArgument:
		return FailInvalidArgument
	default:
		return FailInternal
	}
}

// FailureError rebuilds the error of a transported Failure.
func FailureError(f Failure) error {
	var sentinel error
	switch f.Code {
	case FailNotFound:
		sentinel = errs.ErrNotFound
	case FailAlreadyExists:
		sentinel = errs.ErrAlreadyExists
	case FailAccessDenied:
		sentinel = errs.ErrAccessDenied
	case FailInvalidArgument:
		sentinel = errs.ErrInvalidArgument
	default:
		return errors.New(f.Message)
	}
	if f.Message == "" || f.Message == sentinel.Error() {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, f.Message)
}
