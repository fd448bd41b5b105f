package otp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"

	"github.com/aws/smithy-go"
)

type ErrorReason string

const (
	REASON_AUTHENTICATION_FAILED ErrorReason = "AUTHENTICATION_FAILED"
	REASON_CHANNEL_FAILURE       ErrorReason = "CHANNEL_FAILURE"
	REASON_UNKNOWN               ErrorReason = "UNKNOWN"
)

// Error is the dispatch failure reported by Issuer.Dispatch.
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

func newOTPError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewAuthenticationFailedError(message string, cause error) *Error {
	return newOTPError(REASON_AUTHENTICATION_FAILED, message, cause)
}

func NewChannelFailureError(message string, cause error) *Error {
	return newOTPError(REASON_CHANNEL_FAILURE, message, cause)
}

func NewUnknownError(message string, cause error) *Error {
	return newOTPError(REASON_UNKNOWN, message, cause)
}

var awsAuthErrorCodes = map[string]struct{}{
	"AccessDeniedException":       {},
	"ExpiredTokenException":       {},
	"IncompleteSignature":         {},
	"InvalidClientTokenId":        {},
	"MissingAuthenticationToken":  {},
	"SignatureDoesNotMatch":       {},
	"UnrecognizedClientException": {},
}

func classifySendError(err error) *Error {
	var smtpErr *textproto.Error
	if errors.As(err, &smtpErr) {
		switch smtpErr.Code {
		// 530 auth required, 534 mechanism too weak, 535 credentials rejected
		case 530, 534, 535:
			return NewAuthenticationFailedError("Mail relay rejected the credentials", err)
		}
		return NewChannelFailureError(fmt.Sprintf("Mail relay replied %d", smtpErr.Code), err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := awsAuthErrorCodes[apiErr.ErrorCode()]; ok {
			return NewAuthenticationFailedError("Email service rejected the credentials", err)
		}
		return NewChannelFailureError(fmt.Sprintf("Email service returned %s", apiErr.ErrorCode()), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewChannelFailureError("Network error talking to the email channel", err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewChannelFailureError("Email send did not finish", err)
	}

	return NewUnknownError("Failed to send email", err)
}
