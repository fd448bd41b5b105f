package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/International-Combat-Archery-Alliance/email"
	"github.com/International-Combat-Archery-Alliance/email/awsses"
	"github.com/International-Combat-Archery-Alliance/guest-registration/config"
	"github.com/International-Combat-Archery-Alliance/guest-registration/smtpmail"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

var _ email.Sender = &EmailLogger{}

// email.Sender that logs out the email contents for local dev
type EmailLogger struct {
	logger *slog.Logger
}

func NewEmailLogger(logger *slog.Logger) *EmailLogger {
	return &EmailLogger{logger: logger}
}

func (el *EmailLogger) SendEmail(ctx context.Context, e email.Email) error {
	el.logger.InfoContext(ctx, "email that would be sent",
		slog.String("from", e.FromAddress),
		slog.Any("to", e.ToAddresses),
		slog.String("subject", e.Subject),
		slog.String("body", e.TextBody),
	)

	return nil
}

type parameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// EmailSender builds the sender for the configured transport.
func EmailSender(ctx context.Context, cfg config.Config, logger *slog.Logger) (email.Sender, error) {
	switch cfg.Email.Transport {
	case config.EMAIL_TRANSPORT_LOG:
		return NewEmailLogger(logger), nil
	case config.EMAIL_TRANSPORT_SMTP:
		smtpSettings := cfg.Email.SMTP
		if smtpSettings.PasswordSSMParam != "" {
			awsCfg, err := AWSConfig(ctx, cfg)
			if err != nil {
				return nil, err
			}
			smtpSettings, err = resolveSMTPPassword(ctx, ssm.NewFromConfig(awsCfg), smtpSettings)
			if err != nil {
				return nil, err
			}
		}
		return createSMTPEmailSender(smtpSettings)
	case config.EMAIL_TRANSPORT_SES:
		return createProdAWSEmailSender(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown email transport %q", cfg.Email.Transport)
	}
}

func createSMTPEmailSender(s config.SMTPSettings) (*smtpmail.Sender, error) {
	return smtpmail.NewSender(smtpmail.Config{
		Host:       s.Host,
		Port:       s.Port,
		Username:   s.Username,
		Password:   s.Password,
		RequireTLS: true,
		Timeout:    10 * time.Second,
	})
}

func createProdAWSEmailSender(ctx context.Context, cfg config.Config) (*awsses.AWSSESSender, error) {
	awsCfg, err := AWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sesClient := sesv2.NewFromConfig(awsCfg)
	sender := awsses.NewAWSSESSender(sesClient)

	return sender, nil
}

// resolveSMTPPassword replaces the password with the value of the SSM
// parameter it names.
func resolveSMTPPassword(ctx context.Context, getter parameterGetter, s config.SMTPSettings) (config.SMTPSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := getter.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.PasswordSSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return s, fmt.Errorf("failed to get smtp password from ssm parameter %q: %w", s.PasswordSSMParam, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return s, errors.New("ssm parameter " + s.PasswordSSMParam + " is empty")
	}

	s.Password = aws.ToString(out.Parameter.Value)
	return s, nil
}
