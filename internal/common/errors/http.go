package errors

import "net/http"

// HTTPStatus maps a StandardError code to the status the action endpoint
// returns. Validation and envelope failures are client errors, auth failures
// are 401, illegal workflow edges are 409, everything infrastructural is a
// generic 500 with no internal detail leakage.
func HTTPStatus(err error) int {
	stdErr, ok := err.(*StandardError)
	if !ok {
		return http.StatusInternalServerError
	}

	switch stdErr.Code {
	case ErrCodeInvalidEnvelope, ErrCodeValidationFailed, ErrCodeUnknownStatus:
		return http.StatusBadRequest
	case ErrCodeAuthenticationRequired, ErrCodeTokenInvalid:
		return http.StatusUnauthorized
	case ErrCodeApplicationNotFound:
		return http.StatusNotFound
	case ErrCodeIllegalStatusTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to surface to the caller. Persistence
// and downstream failures collapse to the generic message; details stay in logs.
func PublicMessage(err error) string {
	stdErr, ok := err.(*StandardError)
	if !ok {
		return "Unable to process the request at this time"
	}

	switch stdErr.Code {
	case ErrCodePersistenceFailed, ErrCodeDuplicateApplicationNumber,
		ErrCodeCRMSyncFailed, ErrCodeNotificationSendFailed, ErrCodeSearchIndexFailed:
		return "Unable to process the request at this time"
	default:
		return stdErr.Message
	}
}
