// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// Workflow errors
	ErrInvalidTransition = errors.New("invalid transition")
	ErrDialogOpen        = errors.New("another dialog is already open")
	ErrStaleResult       = errors.New("result discarded: screen was exited")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoActiveWizard    = errors.New("no active wizard")

	// Record errors
	ErrReadOnlyField = errors.New("field is read-only")
	ErrMirroredField = errors.New("field is mirrored from its source")
	ErrUnknownField  = errors.New("unknown field")
	ErrIndexRange    = errors.New("index out of range")
	ErrLimitReached  = errors.New("collection limit reached")

	// Verification errors
	ErrVerificationFailed = errors.New("verification failed")
	ErrTimeoutExceeded    = errors.New("verification gateway timed out")
	ErrGatewayUnavailable = errors.New("verification gateway unavailable")

	// Auth errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrResendNotAllowed   = errors.New("resend not allowed yet")
	ErrChallengeNotFound  = errors.New("login challenge not found or expired")
	ErrUnauthorized       = errors.New("unauthorized")
)

// ValidationError is a failed stage-advance guard. It is recoverable and
// local: the message is shown to the user and the workflow state is left
// unchanged.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidation extracts the ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is and As re-export the standard helpers so callers importing this
// package under the name "errors" keep them.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }
