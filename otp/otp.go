package otp

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"text/template"

	"github.com/International-Combat-Archery-Alliance/email"
)

const (
	DefaultLength = 6

	subject = "Your OTP Code"
)

//go:embed templates
var templates embed.FS

// Generate returns length independent uniformly random digits. The codes are
// not meant to be cryptographically strong.
func Generate(length int) string {
	if length <= 0 {
		length = DefaultLength
	}

	var b strings.Builder
	b.Grow(length)
	for range length {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

// Issuer creates codes and sends them over an email.Sender. It holds no state
// about issued codes; those live with the registration session.
type Issuer struct {
	sender      email.Sender
	fromAddress string
	length      int
	logger      *slog.Logger
}

func NewIssuer(sender email.Sender, fromAddress string, length int, logger *slog.Logger) *Issuer {
	if length <= 0 {
		length = DefaultLength
	}

	return &Issuer{
		sender:      sender,
		fromAddress: fromAddress,
		length:      length,
		logger:      logger,
	}
}

func (i *Issuer) Generate() string {
	return Generate(i.length)
}

// Dispatch sends code to recipient. Every failure, including a panicking
// sender, is returned as an *Error.
func (i *Issuer) Dispatch(ctx context.Context, recipient string, code string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.ErrorContext(ctx, "Email sender panicked", slog.Any("panic", r))
			err = NewUnknownError("Email sender panicked", fmt.Errorf("panic: %v", r))
		}
	}()

	body, err := makeTextOnlyBody(code)
	if err != nil {
		return NewUnknownError("Failed to render OTP email", err)
	}

	err = i.sender.SendEmail(ctx, email.Email{
		FromAddress: i.fromAddress,
		ToAddresses: []string{recipient},
		Subject:     subject,
		TextBody:    body,
	})
	if err != nil {
		dispatchErr := classifySendError(err)
		i.logger.WarnContext(ctx, "Failed to send OTP email",
			slog.String("reason", string(dispatchErr.Reason)),
			slog.String("error", err.Error()),
		)
		return dispatchErr
	}

	return nil
}

func makeTextOnlyBody(code string) (string, error) {
	tmpl, err := template.ParseFS(templates, "templates/otp-code-textonly.tmpl")
	if err != nil {
		return "", fmt.Errorf("failed to parse email template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, map[string]any{
		"Code": code,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}

	return buf.String(), nil
}
