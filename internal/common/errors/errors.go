// Package errors provides standardized error handling for the loan origination core.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidEnvelope  ErrorCode = "INVALID_REQUEST_ENVELOPE"
	ErrCodeValidationFailed ErrorCode = "APPLICATION_VALIDATION_FAILED"

	ErrCodeAuthenticationRequired ErrorCode = "AUTHENTICATION_REQUIRED"
	ErrCodeTokenInvalid           ErrorCode = "TOKEN_INVALID"

	ErrCodeApplicationNotFound        ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeIllegalStatusTransition    ErrorCode = "ILLEGAL_STATUS_TRANSITION"
	ErrCodeUnknownStatus              ErrorCode = "UNKNOWN_STATUS"
	ErrCodeDuplicateApplicationNumber ErrorCode = "DUPLICATE_APPLICATION_NUMBER"

	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"

	ErrCodeCRMSyncFailed          ErrorCode = "CRM_SYNC_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeSearchIndexFailed      ErrorCode = "SEARCH_INDEX_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewInvalidEnvelopeError creates a non-retryable request envelope error.
func NewInvalidEnvelopeError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidEnvelope,
		Message:   "Request envelope failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable business validation error.
// The itemized error list is carried in Metadata under "errors" so transports
// can surface it to the user verbatim.
func NewValidationFailedError(errs []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Application failed validation",
		Details:   strings.Join(errs, "; "),
		Retryable: false,
		Metadata:  map[string]interface{}{"errors": errs},
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthenticationRequiredError creates a non-retryable authentication error.
func NewAuthenticationRequiredError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthenticationRequired,
		Message:   "Authentication is required for this operation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokenInvalidError creates a non-retryable token error.
func NewTokenInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenInvalid,
		Message:   "Bearer token is expired, revoked, or malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationNotFoundError creates a non-retryable lookup error.
func NewApplicationNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("applicationId: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIllegalStatusTransitionError creates a non-retryable state machine error.
func NewIllegalStatusTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIllegalStatusTransition,
		Message:   fmt.Sprintf("Status transition from %q to %q is not permitted", from, to),
		Retryable: false,
		Metadata:  map[string]interface{}{"from": from, "to": to},
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownStatusError creates a non-retryable error for a status value
// outside the workflow enumeration.
func NewUnknownStatusError(status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownStatus,
		Message:   "Unknown application status",
		Details:   fmt.Sprintf("status: %s", status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateApplicationNumberError creates a retryable collision error.
// The processor retries number generation with a random suffix.
func NewDuplicateApplicationNumberError(number string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateApplicationNumber,
		Message:   "Application number already exists",
		Details:   fmt.Sprintf("applicationNumber: %s", number),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceFailedError creates a retryable infrastructure error. The
// underlying cause is logged server-side and never shown to the caller.
func NewPersistenceFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailed,
		Message:   "Unable to process the application at this time",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCRMSyncFailedError creates a retryable downstream sync error. Swallowed
// at the source, logged only.
func NewCRMSyncFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCRMSyncFailed,
		Message:   "CRM synchronization failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchIndexFailedError creates a retryable search indexing error.
func NewSearchIndexFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchIndexFailed,
		Message:   "Search index update failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ValidationErrors extracts the itemized error list from a validation error,
// or nil when the error does not carry one.
func ValidationErrors(err error) []string {
	stdErr, ok := err.(*StandardError)
	if !ok || stdErr.Metadata == nil {
		return nil
	}
	raw, ok := stdErr.Metadata["errors"]
	if !ok {
		return nil
	}
	if errs, ok := raw.([]string); ok {
		return errs
	}
	return nil
}
