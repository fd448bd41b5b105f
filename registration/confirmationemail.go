package registration

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	texttemplate "text/template"
	"time"

	"github.com/International-Combat-Archery-Alliance/email"
	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
)

//go:embed templates
var templates embed.FS

func SendConfirmationEmail(ctx context.Context, emailSender email.Sender, fromAddress string, eventName string, guest guests.Guest) error {
	htmlBody, err := makeHtmlBody(eventName, guest)
	if err != nil {
		return NewFailedToRenderMailError("Failed to render confirmation email", err)
	}

	textOnlyBody, err := makeTextOnlyBody(eventName, guest)
	if err != nil {
		return NewFailedToRenderMailError("Failed to render confirmation email", err)
	}

	err = emailSender.SendEmail(ctx, email.Email{
		FromAddress: fromAddress,
		ToAddresses: []string{guest.Email},
		Subject:     fmt.Sprintf("Registration confirmed - %q", eventName),
		HTMLBody:    htmlBody,
		TextBody:    textOnlyBody,
	})
	if err != nil {
		return NewFailedToSendEmailError("Failed to send confirmation email", err)
	}
	return nil
}

func templateData(eventName string, guest guests.Guest) map[string]any {
	return map[string]any{
		"EventName":    eventName,
		"Guest":        guest,
		"DateOfBirth":  guest.DateOfBirth.Format(time.DateOnly),
		"RegisteredAt": guest.RegisteredAt.UTC().Format(guests.TimestampLayout),
	}
}

func makeHtmlBody(eventName string, guest guests.Guest) (string, error) {
	tmpl, err := template.ParseFS(templates, "templates/registration-confirmation.tmpl")
	if err != nil {
		return "", fmt.Errorf("failed to parse email template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, templateData(eventName, guest))
	if err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}

	return buf.String(), nil
}

func makeTextOnlyBody(eventName string, guest guests.Guest) (string, error) {
	tmpl, err := texttemplate.ParseFS(templates, "templates/registration-confirmation-textonly.tmpl")
	if err != nil {
		return "", fmt.Errorf("failed to parse email template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, templateData(eventName, guest))
	if err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}

	return buf.String(), nil
}
