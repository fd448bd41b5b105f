// Package setup turns a config.Config into the running pieces of the
// service: the guest store, the session repository, the email sender and the
// registration machine.
package setup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/International-Combat-Archery-Alliance/email"
	"github.com/International-Combat-Archery-Alliance/guest-registration/config"
	"github.com/International-Combat-Archery-Alliance/guest-registration/dynamo"
	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/International-Combat-Archery-Alliance/guest-registration/jsonfile"
	"github.com/International-Combat-Archery-Alliance/guest-registration/metrics"
	"github.com/International-Combat-Archery-Alliance/guest-registration/otp"
	"github.com/International-Combat-Archery-Alliance/guest-registration/postgres"
	"github.com/International-Combat-Archery-Alliance/guest-registration/registration"
	"github.com/International-Combat-Archery-Alliance/guest-registration/sessionstore"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
)

// AWSConfig loads the default AWS config. Pointing DynamoDB at a local
// endpoint in LOCAL uses static dummy credentials.
func AWSConfig(ctx context.Context, cfg config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Env == config.LOCAL && cfg.Store.DynamoEndpoint != "" {
		opts = append(opts,
			awsconfig.WithRegion("localhost"),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")),
		)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to get aws config: %w", err)
	}
	return awsCfg, nil
}

// GuestStore opens the configured guest store. The returned func releases
// whatever connection the store holds.
func GuestStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (guests.Store, func(), error) {
	switch cfg.Store.Kind {
	case config.GUEST_STORE_FILE:
		return jsonfile.NewStore(cfg.Store.GuestsFile, logger), func() {}, nil
	case config.GUEST_STORE_DYNAMO:
		awsCfg, err := AWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}

		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Store.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Store.DynamoEndpoint)
			}
		})
		db := dynamo.NewDB(client, cfg.Store.DynamoTableName, logger)
		if cfg.Env == config.LOCAL && cfg.Store.DynamoEndpoint != "" {
			if err := db.EnsureTable(ctx); err != nil {
				return nil, nil, err
			}
		}
		return db, func() {}, nil
	case config.GUEST_STORE_POSTGRES:
		db, err := postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		store := postgres.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown guest store %q", cfg.Store.Kind)
	}
}

// SessionRepository returns a Redis repository when REDIS_URL is set and an
// in-memory one otherwise. SESSION_TTL of 0 means no expiry in Redis and
// sessionstore.DefaultMemoryTTL in memory.
func SessionRepository(ctx context.Context, cfg config.Config) (sessionstore.Repository, func(), error) {
	if cfg.Sessions.RedisURL == "" {
		return sessionstore.NewMemory(cfg.Sessions.TTL), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.Sessions.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return sessionstore.NewRedis(client, cfg.Sessions.TTL), func() { client.Close() }, nil
}

// Machine builds the registration machine, sending codes and confirmations
// through sender.
func Machine(cfg config.Config, sender email.Sender, store guests.Store, m *metrics.Metrics, logger *slog.Logger) *registration.Machine {
	issuer := otp.NewIssuer(sender, cfg.Email.FromAddress, cfg.Registration.OTPLength, logger)

	return registration.NewMachine(issuer, store, logger,
		registration.WithMetrics(m),
		registration.WithDateOfBirthRange(cfg.Registration.DateOfBirthMin, cfg.Registration.DateOfBirthMax),
		registration.WithConfirmationEmail(sender, cfg.Email.FromAddress, cfg.Registration.EventName),
	)
}
