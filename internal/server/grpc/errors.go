package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/booksync/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain is the ErrorInfo domain of every error this server reports.
const ErrorDomain = "booksync"

// Machine-readable reasons attached to error statuses.
const (
	ReasonMissingCredentials = "MISSING_CREDENTIALS"
	ReasonInvalidCredentials = "INVALID_CREDENTIALS"
	ReasonUnauthorizedBook   = "UNAUTHORIZED_BOOK"
	ReasonUnauthorizedRecord = "UNAUTHORIZED_RECORD"
	ReasonEntityGone         = "ENTITY_GONE"
	ReasonVersionConflict    = "VERSION_CONFLICT"
	ReasonNotFound           = "NOT_FOUND"
	ReasonValidation         = "VALIDATION"
	ReasonBatchTooLarge      = "BATCH_TOO_LARGE"
	ReasonTransactionFailure = "TRANSACTION_FAILURE"
	ReasonInternal           = "INTERNAL"
)

type errorMapping struct {
	target error
	code   codes.Code
	reason string
}

// First match wins.
var errorMappings = []errorMapping{
	{common.ErrMissingCredentials, codes.Unauthenticated, ReasonMissingCredentials},
	{common.ErrInvalidCredentials, codes.PermissionDenied, ReasonInvalidCredentials},
	{common.ErrInvalidToken, codes.PermissionDenied, ReasonInvalidCredentials},
	{common.ErrUnauthorizedBook, codes.PermissionDenied, ReasonUnauthorizedBook},
	{common.ErrUnauthorizedRecord, codes.PermissionDenied, ReasonUnauthorizedRecord},
	{common.ErrEntityGone, codes.FailedPrecondition, ReasonEntityGone},
	{common.ErrVersionConflict, codes.Aborted, ReasonVersionConflict},
	{common.ErrorNotFound, codes.NotFound, ReasonNotFound},
	{common.ErrValidation, codes.InvalidArgument, ReasonValidation},
	{common.ErrBatchTooLarge, codes.ResourceExhausted, ReasonBatchTooLarge},
	{common.ErrTransactionFailure, codes.Aborted, ReasonTransactionFailure},
}

// toStatus converts a service error into a gRPC status carrying an
// errdetails.ErrorInfo. The second result is false for errors that are not
// part of the API contract; their text is not sent to the client.
func toStatus(err error) (*status.Status, bool) {
	if st, ok := status.FromError(err); ok {
		return st, true
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error()), true
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error()), true
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return withReason(status.New(m.code, err.Error()), m.reason), true
		}
	}

	return withReason(status.New(codes.Internal, "internal error"), ReasonInternal), false
}

func withReason(st *status.Status, reason string) *status.Status {
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: ErrorDomain})
	if err != nil {
		return st
	}
	return detailed
}

// ReasonOf extracts the ErrorInfo reason from an error returned by a call.
func ReasonOf(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == ErrorDomain {
			return info.Reason
		}
	}
	return ""
}
