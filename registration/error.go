package registration

import "fmt"

type ErrorReason string

const (
	REASON_INVALID_STEP          ErrorReason = "INVALID_STEP"
	REASON_INVALID_FIELD         ErrorReason = "INVALID_FIELD"
	REASON_DISPATCH_FAILED       ErrorReason = "DISPATCH_FAILED"
	REASON_INCORRECT_CODE        ErrorReason = "INCORRECT_CODE"
	REASON_MAX_ATTEMPTS_REACHED  ErrorReason = "MAX_ATTEMPTS_REACHED"
	REASON_DUPLICATE_EMAIL       ErrorReason = "DUPLICATE_EMAIL"
	REASON_FAILED_TO_SAVE        ErrorReason = "FAILED_TO_SAVE"
	REASON_FAILED_TO_SEND_EMAIL  ErrorReason = "FAILED_TO_SEND_EMAIL"
	REASON_FAILED_TO_RENDER_MAIL ErrorReason = "FAILED_TO_RENDER_MAIL"
)

type Field string

const (
	FIELD_NAME          Field = "name"
	FIELD_EMAIL         Field = "email"
	FIELD_DATE_OF_BIRTH Field = "dateOfBirth"
	FIELD_CITY          Field = "city"
	FIELD_STATE         Field = "state"
	FIELD_COUNTRY       Field = "country"
	FIELD_PROFESSION    Field = "profession"
)

type Error struct {
	Reason  ErrorReason
	Message string
	// Field is set for REASON_INVALID_FIELD.
	Field Field
	Cause error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s. Cause: %s", e.Reason, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s. Cause: %s", e.Reason, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newRegistrationError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewInvalidStepError(expected, actual Step) *Error {
	return newRegistrationError(REASON_INVALID_STEP, fmt.Sprintf("Session is %s, expected %s", actual, expected), nil)
}

func NewInvalidFieldError(field Field, message string) *Error {
	err := newRegistrationError(REASON_INVALID_FIELD, message, nil)
	err.Field = field
	return err
}

func NewDispatchFailedError(message string, cause error) *Error {
	return newRegistrationError(REASON_DISPATCH_FAILED, message, cause)
}

func NewIncorrectCodeError(remaining int) *Error {
	return newRegistrationError(REASON_INCORRECT_CODE, fmt.Sprintf("Invalid OTP. Attempts left: %d", remaining), nil)
}

func NewMaxAttemptsReachedError() *Error {
	return newRegistrationError(REASON_MAX_ATTEMPTS_REACHED, "Verification failed. Maximum attempts reached. Please register again.", nil)
}

func NewDuplicateEmailError(cause error) *Error {
	return newRegistrationError(REASON_DUPLICATE_EMAIL, "This email is already registered. Please use a different email address.", cause)
}

func NewFailedToSaveError(cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_SAVE, "Registration failed. Please try again.", cause)
}

func NewFailedToSendEmailError(message string, cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_SEND_EMAIL, message, cause)
}

func NewFailedToRenderMailError(message string, cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_RENDER_MAIL, message, cause)
}
