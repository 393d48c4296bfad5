// Package common defines shared constants and sentinel errors used across
// the sync server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Authentication errors: "who are you".
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Authorization errors: "you can't touch this".
	ErrUnauthorizedBook   = errors.New("unauthorized book")
	ErrUnauthorizedRecord = errors.New("unauthorized record")

	// Conditional write outcomes.
	ErrVersionConflict = errors.New("version conflict")
	ErrEntityGone      = errors.New("entity gone")

	// Input errors, caught before any storage access.
	ErrValidation    = errors.New("validation error")
	ErrBatchTooLarge = errors.New("batch too large")

	// Datastore-level failure inside a batch transaction.
	ErrTransactionFailure = errors.New("transaction failure")

	// Device secret errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
