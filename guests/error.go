package guests

import "fmt"

type ErrorReason string

const (
	REASON_FAILED_TO_TRANSLATE_TO_DB_MODEL ErrorReason = "FAILED_TO_TRANSLATE_TO_DB_MODEL"
	REASON_FAILED_TO_WRITE                 ErrorReason = "FAILED_TO_WRITE"
	REASON_FAILED_TO_FETCH                 ErrorReason = "FAILED_TO_FETCH"
	REASON_DUPLICATE_EMAIL                 ErrorReason = "DUPLICATE_EMAIL"
	REASON_INVALID_CURSOR                  ErrorReason = "INVALID_CURSOR"
	REASON_CORRUPTED_STORE                 ErrorReason = "CORRUPTED_STORE"
	REASON_TIMEOUT                         ErrorReason = "TIMEOUT"
)

type Error struct {
	Reason  ErrorReason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s. Cause: %s", e.Reason, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newGuestError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewFailedToWriteError(message string, cause error) *Error {
	return newGuestError(REASON_FAILED_TO_WRITE, message, cause)
}

func NewFailedToTranslateToDBModelError(message string, cause error) *Error {
	return newGuestError(REASON_FAILED_TO_TRANSLATE_TO_DB_MODEL, message, cause)
}

func NewFailedToFetchError(message string, cause error) *Error {
	return newGuestError(REASON_FAILED_TO_FETCH, message, cause)
}

func NewDuplicateEmailError(email string, cause error) *Error {
	return newGuestError(REASON_DUPLICATE_EMAIL, fmt.Sprintf("A guest with email %q is already registered", email), cause)
}

func NewInvalidCursorError(message string, cause error) *Error {
	return newGuestError(REASON_INVALID_CURSOR, message, cause)
}

func NewCorruptedStoreError(message string, cause error) *Error {
	return newGuestError(REASON_CORRUPTED_STORE, message, cause)
}

func NewTimeoutError(message string) *Error {
	return newGuestError(REASON_TIMEOUT, message, nil)
}
