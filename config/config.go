package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"
)

type Environment int

const (
	LOCAL Environment = iota
	PROD
)

func (e Environment) String() string {
	switch e {
	case LOCAL:
		return "LOCAL"
	case PROD:
		return "PROD"
	default:
		return fmt.Sprintf("Environment(%d)", int(e))
	}
}

func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToUpper(s) {
	case "LOCAL":
		return LOCAL, nil
	case "PROD":
		return PROD, nil
	default:
		return LOCAL, fmt.Errorf("unknown environment %q, expected LOCAL or PROD", s)
	}
}

type GuestStoreKind string

const (
	GUEST_STORE_FILE     GuestStoreKind = "file"
	GUEST_STORE_DYNAMO   GuestStoreKind = "dynamo"
	GUEST_STORE_POSTGRES GuestStoreKind = "postgres"
)

type EmailTransport string

const (
	EMAIL_TRANSPORT_LOG  EmailTransport = "log"
	EMAIL_TRANSPORT_SMTP EmailTransport = "smtp"
	EMAIL_TRANSPORT_SES  EmailTransport = "ses"
)

const defaultSenderName = "Moonlanding Org"

type ServerSettings struct {
	Host string
	Port string
	// CORSAllowedOrigins only applies in PROD; LOCAL allows every origin.
	CORSAllowedOrigins []string
}

type StoreSettings struct {
	Kind            GuestStoreKind
	GuestsFile      string
	DynamoTableName string
	DynamoEndpoint  string
	DatabaseURL     string
}

type SessionSettings struct {
	// RedisURL selects the Redis session repository when set; otherwise
	// sessions live in memory.
	RedisURL string
	TTL      time.Duration
}

type SMTPSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	// PasswordSSMParam names an SSM parameter holding the password. It is
	// resolved at startup and takes precedence over Password.
	PasswordSSMParam string
}

type EmailSettings struct {
	Transport   EmailTransport
	FromAddress string
	SMTP        SMTPSettings
}

type RegistrationSettings struct {
	EventName      string
	OTPLength      int
	DateOfBirthMin time.Time
	DateOfBirthMax time.Time
}

type Config struct {
	Env          Environment
	Server       ServerSettings
	Store        StoreSettings
	Sessions     SessionSettings
	Email        EmailSettings
	Registration RegistrationSettings
}

// FromEnv reads the configuration from environment variables. Every invalid
// value is reported in the returned error, not just the first.
func FromEnv() (Config, error) {
	var errs []error

	env, err := ParseEnvironment(getEnvOrDefault("ENV", "LOCAL"))
	errs = append(errs, err)

	cfg := Config{
		Env: env,
		Server: ServerSettings{
			Host:               getEnvOrDefault("HOST", "0.0.0.0"),
			Port:               getEnvOrDefault("PORT", "8080"),
			CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "")),
		},
		Store: StoreSettings{
			Kind:            GuestStoreKind(strings.ToLower(getEnvOrDefault("GUEST_STORE", string(GUEST_STORE_FILE)))),
			GuestsFile:      getEnvOrDefault("GUESTS_FILE", "registered_guests.json"),
			DynamoTableName: getEnvOrDefault("DYNAMO_TABLE_NAME", "GuestRegistration"),
			DynamoEndpoint:  getEnvOrDefault("DYNAMO_ENDPOINT", ""),
			DatabaseURL:     getEnvOrDefault("DATABASE_URL", ""),
		},
		Sessions: SessionSettings{
			RedisURL: getEnvOrDefault("REDIS_URL", ""),
		},
		Email: EmailSettings{
			Transport:   EmailTransport(strings.ToLower(getEnvOrDefault("EMAIL_TRANSPORT", string(EMAIL_TRANSPORT_LOG)))),
			FromAddress: getEnvOrDefault("EMAIL_FROM", ""),
			SMTP: SMTPSettings{
				Host:             getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
				Port:             getEnvOrDefault("SMTP_PORT", "587"),
				Username:         strings.Trim(getEnvOrDefault("SMTP_USERNAME", ""), `"`),
				Password:         strings.Trim(getEnvOrDefault("SMTP_PASSWORD", ""), `"`),
				PasswordSSMParam: getEnvOrDefault("SMTP_PASSWORD_SSM_PARAM", ""),
			},
		},
		Registration: RegistrationSettings{
			EventName: getEnvOrDefault("EVENT_NAME", "Moonlanding"),
		},
	}

	cfg.Sessions.TTL, err = parseDuration("SESSION_TTL", getEnvOrDefault("SESSION_TTL", "0s"))
	errs = append(errs, err)

	cfg.Registration.OTPLength, err = parsePositiveInt("OTP_LENGTH", getEnvOrDefault("OTP_LENGTH", "6"))
	errs = append(errs, err)

	cfg.Registration.DateOfBirthMin, err = parseDate("DOB_MIN", getEnvOrDefault("DOB_MIN", "1990-01-01"))
	errs = append(errs, err)

	cfg.Registration.DateOfBirthMax, err = parseDate("DOB_MAX", getEnvOrDefault("DOB_MAX", "2015-12-31"))
	errs = append(errs, err)

	errs = append(errs, cfg.validate())

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	if cfg.Email.FromAddress == "" && cfg.Email.SMTP.Username != "" {
		cfg.Email.FromAddress = (&mail.Address{Name: defaultSenderName, Address: cfg.Email.SMTP.Username}).String()
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	switch c.Store.Kind {
	case GUEST_STORE_FILE:
		if c.Store.GuestsFile == "" {
			errs = append(errs, errors.New("GUESTS_FILE must not be empty"))
		}
	case GUEST_STORE_DYNAMO:
		if c.Store.DynamoTableName == "" {
			errs = append(errs, errors.New("DYNAMO_TABLE_NAME must not be empty"))
		}
	case GUEST_STORE_POSTGRES:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when GUEST_STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GUEST_STORE %q, expected file, dynamo or postgres", c.Store.Kind))
	}

	switch c.Email.Transport {
	case EMAIL_TRANSPORT_LOG:
	case EMAIL_TRANSPORT_SMTP:
		if c.Email.SMTP.Username == "" {
			errs = append(errs, errors.New("SMTP_USERNAME is required when EMAIL_TRANSPORT=smtp"))
		}
		if c.Email.SMTP.Password == "" && c.Email.SMTP.PasswordSSMParam == "" {
			errs = append(errs, errors.New("SMTP_PASSWORD or SMTP_PASSWORD_SSM_PARAM is required when EMAIL_TRANSPORT=smtp"))
		}
	case EMAIL_TRANSPORT_SES:
		if c.Email.FromAddress == "" {
			errs = append(errs, errors.New("EMAIL_FROM is required when EMAIL_TRANSPORT=ses"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMAIL_TRANSPORT %q, expected log, smtp or ses", c.Email.Transport))
	}

	if c.Env == PROD {
		if c.Email.Transport == EMAIL_TRANSPORT_LOG {
			errs = append(errs, errors.New("EMAIL_TRANSPORT=log is only allowed with ENV=LOCAL"))
		}
		if len(c.Server.CORSAllowedOrigins) == 0 {
			errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS is required when ENV=PROD"))
		}
	}

	if !c.Registration.DateOfBirthMin.IsZero() && !c.Registration.DateOfBirthMax.IsZero() &&
		c.Registration.DateOfBirthMax.Before(c.Registration.DateOfBirthMin) {
		errs = append(errs, errors.New("DOB_MAX must not be before DOB_MIN"))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key string, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return defaultVal
}

func splitList(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func parseDuration(key string, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func parsePositiveInt(key string, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return n, nil
}

func parseDate(key string, s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}
