package registration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/International-Combat-Archery-Alliance/email"
	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/International-Combat-Archery-Alliance/guest-registration/metrics"
	"github.com/International-Combat-Archery-Alliance/guest-registration/otp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/International-Combat-Archery-Alliance/guest-registration/registration"

// Issuer creates one-time codes and delivers them to a registrant.
type Issuer interface {
	Generate() string
	Dispatch(ctx context.Context, recipient string, code string) error
}

var _ Issuer = &otp.Issuer{}

type confirmation struct {
	sender      email.Sender
	fromAddress string
	eventName   string
}

// Machine drives a Session from collected fields through OTP verification to
// a committed guest. It keeps no per-session state of its own.
type Machine struct {
	issuer  Issuer
	store   guests.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time

	dobMin time.Time
	dobMax time.Time

	confirmation *confirmation
}

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Machine) {
		m.metrics = metrics
	}
}

// WithDateOfBirthRange sets the inclusive range of accepted dates of birth.
func WithDateOfBirthRange(earliest, latest time.Time) Option {
	return func(m *Machine) {
		m.dobMin = earliest
		m.dobMax = latest
	}
}

// WithConfirmationEmail sends a confirmation to the guest after every commit.
func WithConfirmationEmail(sender email.Sender, fromAddress string, eventName string) Option {
	return func(m *Machine) {
		m.confirmation = &confirmation{
			sender:      sender,
			fromAddress: fromAddress,
			eventName:   eventName,
		}
	}
}

func NewMachine(issuer Issuer, store guests.Store, logger *slog.Logger, opts ...Option) *Machine {
	m := &Machine{
		issuer: issuer,
		store:  store,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		dobMin: DefaultDateOfBirthMin,
		dobMax: DefaultDateOfBirthMax,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SubmitFields validates the fields and, if they pass, issues a code to the
// given email. The session only moves to StepAwaitingOtp when the code was
// dispatched.
func (m *Machine) SubmitFields(ctx context.Context, session Session, fields Fields) (Session, error) {
	ctx, span := m.tracer.Start(ctx, "registration.SubmitFields", trace.WithAttributes(
		attribute.String("session.id", session.ID.String()),
	))
	defer span.End()

	if session.Step != StepCollecting {
		return session, m.fail(span, NewInvalidStepError(StepCollecting, session.Step))
	}

	fields = normalizeFields(fields)
	if err := validateFields(fields, m.dobMin, m.dobMax); err != nil {
		return session, m.fail(span, err)
	}

	code := m.issuer.Generate()
	if err := m.dispatch(ctx, fields.Email, code); err != nil {
		return session, m.fail(span, NewDispatchFailedError("Failed to send OTP. Please try again.", err))
	}

	session.Step = StepAwaitingOtp
	session.Fields = fields
	session.PendingCode = code
	session.AttemptsUsed = 0
	session.CodeIssuedAt = m.now().UTC()
	session.Guest = nil

	m.logger.InfoContext(ctx, "OTP sent", slog.String("session-id", session.ID.String()))

	return session, nil
}

// SubmitCode checks code against the pending one. A wrong code with attempts
// left issues a fresh code and reports REASON_INCORRECT_CODE alongside the
// still-awaiting session.
func (m *Machine) SubmitCode(ctx context.Context, session Session, code string) (Session, error) {
	ctx, span := m.tracer.Start(ctx, "registration.SubmitCode", trace.WithAttributes(
		attribute.String("session.id", session.ID.String()),
	))
	defer span.End()

	if session.Step != StepAwaitingOtp {
		return session, m.fail(span, NewInvalidStepError(StepAwaitingOtp, session.Step))
	}

	session.AttemptsUsed++
	span.SetAttributes(attribute.Int("session.attempts_used", session.AttemptsUsed))

	if code == session.PendingCode {
		m.metrics.IncrementCodeVerifications("correct")
		session.Step = StepCompleted
		return m.commit(ctx, span, session)
	}

	m.metrics.IncrementCodeVerifications("incorrect")

	if session.AttemptsUsed >= MaxAttempts {
		m.logger.InfoContext(ctx, "OTP attempts exhausted", slog.String("session-id", session.ID.String()))
		m.metrics.IncrementResets("max_attempts")
		return session.reset(), m.fail(span, NewMaxAttemptsReachedError())
	}

	newCode := m.issuer.Generate()
	if err := m.dispatch(ctx, session.Fields.Email, newCode); err != nil {
		m.metrics.IncrementResets("dispatch_failed")
		return session.reset(), m.fail(span, NewDispatchFailedError("Failed to send new OTP. Please try registering again.", err))
	}

	session.PendingCode = newCode
	session.CodeIssuedAt = m.now().UTC()

	return session, m.fail(span, NewIncorrectCodeError(session.RemainingAttempts()))
}

// Reset returns the session to StepCollecting with everything but its ID cleared.
func (m *Machine) Reset(session Session) Session {
	return session.reset()
}

func (m *Machine) commit(ctx context.Context, span trace.Span, session Session) (Session, error) {
	guest := guests.Guest{
		Name:         session.Fields.Name,
		Email:        session.Fields.Email,
		DateOfBirth:  session.Fields.DateOfBirth,
		City:         session.Fields.City,
		State:        session.Fields.State,
		Country:      session.Fields.Country,
		Profession:   session.Fields.Profession,
		RegisteredAt: m.now().UTC().Truncate(time.Second),
	}

	start := time.Now()
	err := m.store.Append(ctx, guest)
	m.metrics.ObserveStoreOperation("append", time.Since(start).Seconds())
	if err != nil {
		var guestErr *guests.Error
		if errors.As(err, &guestErr) && guestErr.Reason == guests.REASON_DUPLICATE_EMAIL {
			m.metrics.IncrementResets("duplicate_email")
			return session.reset(), m.fail(span, NewDuplicateEmailError(err))
		}

		m.logger.ErrorContext(ctx, "Failed to save guest", slog.String("error", err.Error()))
		m.metrics.IncrementResets("failed_to_save")
		return session.reset(), m.fail(span, NewFailedToSaveError(err))
	}

	session.PendingCode = ""
	session.Guest = &guest
	m.metrics.IncrementRegistrationsCompleted()
	m.logger.InfoContext(ctx, "Guest registered", slog.String("session-id", session.ID.String()))

	if m.confirmation != nil {
		err := SendConfirmationEmail(ctx, m.confirmation.sender, m.confirmation.fromAddress, m.confirmation.eventName, guest)
		if err != nil {
			m.logger.WarnContext(ctx, "Failed to send confirmation email", slog.String("error", err.Error()))
		}
	}

	return session, nil
}

func (m *Machine) dispatch(ctx context.Context, recipient string, code string) error {
	err := m.issuer.Dispatch(ctx, recipient, code)
	if err != nil {
		var otpErr *otp.Error
		if errors.As(err, &otpErr) {
			m.metrics.IncrementOTPDispatches(string(otpErr.Reason))
		} else {
			m.metrics.IncrementOTPDispatches(string(otp.REASON_UNKNOWN))
		}
		return err
	}
	m.metrics.IncrementOTPDispatches("ok")
	return nil
}

func (m *Machine) fail(span trace.Span, err *Error) error {
	span.SetAttributes(attribute.String("registration.reason", string(err.Reason)))
	span.SetStatus(codes.Error, err.Message)
	return err
}
