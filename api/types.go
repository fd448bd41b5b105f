package api

import (
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

type ErrorCode string

const (
	InputValidationError ErrorCode = "InputValidationError"
	EmptyBody            ErrorCode = "EmptyBody"
	InvalidBody          ErrorCode = "InvalidBody"
	NotFound             ErrorCode = "NotFound"
	InvalidStep          ErrorCode = "InvalidStep"
	InvalidField         ErrorCode = "InvalidField"
	DispatchFailed       ErrorCode = "DispatchFailed"
	IncorrectCode        ErrorCode = "IncorrectCode"
	MaxAttemptsReached   ErrorCode = "MaxAttemptsReached"
	DuplicateEmail       ErrorCode = "DuplicateEmail"
	FailedToSave         ErrorCode = "FailedToSave"
	LimitOutOfBounds     ErrorCode = "LimitOutOfBounds"
	InvalidCursor        ErrorCode = "InvalidCursor"
	InternalError        ErrorCode = "InternalError"
)

type Error struct {
	Code              ErrorCode     `json:"code"`
	Message           string        `json:"message"`
	Field             *string       `json:"field,omitempty"`
	RemainingAttempts *int          `json:"remainingAttempts,omitempty"`
	Registration      *Registration `json:"registration,omitempty"`
	RequestId         *string       `json:"requestId,omitempty"`
}

type RegistrationStep string

const (
	Collecting  RegistrationStep = "Collecting"
	AwaitingOtp RegistrationStep = "AwaitingOtp"
	Completed   RegistrationStep = "Completed"
)

type RegistrationFields struct {
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	DateOfBirth *openapi_types.Date `json:"dateOfBirth,omitempty"`
	City        string              `json:"city"`
	State       string              `json:"state"`
	Country     string              `json:"country"`
	Profession  string              `json:"profession"`
}

type CodeSubmission struct {
	Code string `json:"code"`
}

type Guest struct {
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	DateOfBirth  openapi_types.Date `json:"dateOfBirth"`
	City         string             `json:"city"`
	State        string             `json:"state"`
	Country      string             `json:"country"`
	Profession   string             `json:"profession"`
	RegisteredAt time.Time          `json:"registeredAt"`
}

// Registration is the client's view of a session. The pending code is never
// part of it.
type Registration struct {
	Id                uuid.UUID           `json:"id"`
	Step              RegistrationStep    `json:"step"`
	Fields            *RegistrationFields `json:"fields,omitempty"`
	RemainingAttempts *int                `json:"remainingAttempts,omitempty"`
	CodeIssuedAt      *time.Time          `json:"codeIssuedAt,omitempty"`
	Guest             *Guest              `json:"guest,omitempty"`
}

type GuestList struct {
	Data        []Guest `json:"data"`
	Cursor      *string `json:"cursor,omitempty"`
	HasNextPage bool    `json:"hasNextPage"`
}
