package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/International-Combat-Archery-Alliance/guest-registration/ptr"
	"github.com/International-Combat-Archery-Alliance/guest-registration/registration"
	"github.com/International-Combat-Archery-Alliance/guest-registration/sessionstore"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

func (a *API) PostRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx, a.logger)

	session := registration.NewSession()
	if err := a.sessions.Save(ctx, session); err != nil {
		logger.ErrorContext(ctx, "Failed to save new session", slog.String("error", err.Error()))
		a.writeError(ctx, w, http.StatusInternalServerError, InternalError, "Failed to start registration")
		return
	}

	logger.InfoContext(ctx, "Registration started", slog.String("session-id", session.ID.String()))
	a.writeJSON(ctx, w, http.StatusCreated, sessionToApiRegistration(session))
}

func (a *API) GetRegistrationsId(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := a.sessionIdFromPath(w, r)
	if !ok {
		return
	}

	session, ok := a.loadSession(ctx, w, id)
	if !ok {
		return
	}

	a.writeJSON(ctx, w, http.StatusOK, sessionToApiRegistration(session))
}

func (a *API) PostRegistrationsIdFields(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := a.sessionIdFromPath(w, r)
	if !ok {
		return
	}

	var body RegistrationFields
	if err := decodeBody(r, &body); err != nil {
		a.writeDecodeError(ctx, w, err)
		return
	}

	a.transition(ctx, w, id, func(session registration.Session) (registration.Session, error) {
		return a.machine.SubmitFields(ctx, session, apiFieldsToFields(body))
	})
}

func (a *API) PostRegistrationsIdCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := a.sessionIdFromPath(w, r)
	if !ok {
		return
	}

	var body CodeSubmission
	if err := decodeBody(r, &body); err != nil {
		a.writeDecodeError(ctx, w, err)
		return
	}

	a.transition(ctx, w, id, func(session registration.Session) (registration.Session, error) {
		return a.machine.SubmitCode(ctx, session, body.Code)
	})
}

func (a *API) PostRegistrationsIdReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := a.sessionIdFromPath(w, r)
	if !ok {
		return
	}

	a.transition(ctx, w, id, func(session registration.Session) (registration.Session, error) {
		return a.machine.Reset(session), nil
	})
}

// transition runs fn on the stored session while holding the session's lock
// and stores whatever session fn returns, error or not.
func (a *API) transition(ctx context.Context, w http.ResponseWriter, id uuid.UUID, fn func(registration.Session) (registration.Session, error)) {
	logger := getLoggerFromCtx(ctx, a.logger)

	unlock := a.locks.lock(id)
	defer unlock()

	session, ok := a.loadSession(ctx, w, id)
	if !ok {
		return
	}

	next, transitionErr := fn(session)

	if err := a.sessions.Save(ctx, next); err != nil {
		logger.ErrorContext(ctx, "Failed to save session", slog.String("session-id", id.String()), slog.String("step", next.Step.String()), slog.String("error", err.Error()))

		// The guest of a completed session is already in the guest store.
		if transitionErr == nil && next.Step == registration.StepCompleted {
			a.writeJSON(ctx, w, http.StatusOK, sessionToApiRegistration(next))
			return
		}
		a.writeError(ctx, w, http.StatusInternalServerError, InternalError, "Failed to save registration progress")
		return
	}

	if transitionErr != nil {
		a.writeRegistrationError(ctx, w, transitionErr, next)
		return
	}

	a.writeJSON(ctx, w, http.StatusOK, sessionToApiRegistration(next))
}

func (a *API) writeRegistrationError(ctx context.Context, w http.ResponseWriter, err error, session registration.Session) {
	logger := getLoggerFromCtx(ctx, a.logger)
	view := sessionToApiRegistration(session)

	var regErr *registration.Error
	if !errors.As(err, &regErr) {
		logger.ErrorContext(ctx, "Unexpected registration error", slog.String("error", err.Error()))
		a.writeJSON(ctx, w, http.StatusInternalServerError, &Error{
			Code:         InternalError,
			Message:      "Internal server error",
			Registration: &view,
		})
		return
	}

	resp := Error{
		Message:      regErr.Message,
		Registration: &view,
	}

	var status int
	switch regErr.Reason {
	case registration.REASON_INVALID_FIELD:
		status = http.StatusBadRequest
		resp.Code = InvalidField
		resp.Field = ptr.String(string(regErr.Field))
	case registration.REASON_INVALID_STEP:
		status = http.StatusConflict
		resp.Code = InvalidStep
	case registration.REASON_DISPATCH_FAILED:
		status = http.StatusServiceUnavailable
		resp.Code = DispatchFailed
	case registration.REASON_INCORRECT_CODE:
		status = http.StatusUnprocessableEntity
		resp.Code = IncorrectCode
		resp.RemainingAttempts = ptr.Int(session.RemainingAttempts())
	case registration.REASON_MAX_ATTEMPTS_REACHED:
		status = http.StatusUnprocessableEntity
		resp.Code = MaxAttemptsReached
		resp.RemainingAttempts = ptr.Int(0)
	case registration.REASON_DUPLICATE_EMAIL:
		status = http.StatusConflict
		resp.Code = DuplicateEmail
	case registration.REASON_FAILED_TO_SAVE:
		status = http.StatusInternalServerError
		resp.Code = FailedToSave
	default:
		status = http.StatusInternalServerError
		resp.Code = InternalError
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "Registration step failed", slog.String("session-id", session.ID.String()), slog.String("error", err.Error()))
	} else {
		logger.InfoContext(ctx, "Registration step rejected", slog.String("session-id", session.ID.String()), slog.String("reason", string(regErr.Reason)))
	}

	a.writeJSON(ctx, w, status, &resp)
}

func (a *API) sessionIdFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		a.writeError(r.Context(), w, http.StatusBadRequest, InputValidationError, "Registration id must be a UUID")
		return uuid.UUID{}, false
	}
	return id, true
}

func (a *API) loadSession(ctx context.Context, w http.ResponseWriter, id uuid.UUID) (registration.Session, bool) {
	session, err := a.sessions.Get(ctx, id)
	if err == nil {
		return session, true
	}

	var sessionErr *sessionstore.Error
	if errors.As(err, &sessionErr) && sessionErr.Reason == sessionstore.REASON_SESSION_DOES_NOT_EXIST {
		a.writeError(ctx, w, http.StatusNotFound, NotFound, "Registration does not exist")
		return registration.Session{}, false
	}

	getLoggerFromCtx(ctx, a.logger).ErrorContext(ctx, "Failed to load session", slog.String("session-id", id.String()), slog.String("error", err.Error()))
	a.writeError(ctx, w, http.StatusInternalServerError, InternalError, "Failed to load registration")
	return registration.Session{}, false
}

func stepToApiStep(step registration.Step) RegistrationStep {
	switch step {
	case registration.StepCollecting:
		return Collecting
	case registration.StepAwaitingOtp:
		return AwaitingOtp
	case registration.StepCompleted:
		return Completed
	default:
		panic("unknown registration step")
	}
}

func sessionToApiRegistration(session registration.Session) Registration {
	view := Registration{
		Id:   session.ID,
		Step: stepToApiStep(session.Step),
	}

	if session.Step == registration.StepCollecting {
		return view
	}

	fields := fieldsToApiFields(session.Fields)
	view.Fields = &fields

	if session.Step == registration.StepAwaitingOtp {
		view.RemainingAttempts = ptr.Int(session.RemainingAttempts())
		issuedAt := session.CodeIssuedAt
		view.CodeIssuedAt = &issuedAt
	}

	if session.Guest != nil {
		guest := guestToApiGuest(*session.Guest)
		view.Guest = &guest
	}

	return view
}

func fieldsToApiFields(f registration.Fields) RegistrationFields {
	fields := RegistrationFields{
		Name:       f.Name,
		Email:      f.Email,
		City:       f.City,
		State:      f.State,
		Country:    f.Country,
		Profession: f.Profession,
	}
	if !f.DateOfBirth.IsZero() {
		fields.DateOfBirth = &openapi_types.Date{Time: f.DateOfBirth}
	}
	return fields
}

func apiFieldsToFields(f RegistrationFields) registration.Fields {
	fields := registration.Fields{
		Name:       f.Name,
		Email:      f.Email,
		City:       f.City,
		State:      f.State,
		Country:    f.Country,
		Profession: f.Profession,
	}
	if f.DateOfBirth != nil {
		fields.DateOfBirth = f.DateOfBirth.Time
	}
	return fields
}

func guestToApiGuest(g guests.Guest) Guest {
	return Guest{
		Name:         g.Name,
		Email:        g.Email,
		DateOfBirth:  openapi_types.Date{Time: g.DateOfBirth},
		City:         g.City,
		State:        g.State,
		Country:      g.Country,
		Profession:   g.Profession,
		RegisteredAt: g.RegisteredAt,
	}
}
