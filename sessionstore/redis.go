package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/International-Combat-Archery-Alliance/guest-registration/registration"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "guest-registration:session:"

var _ Repository = &Redis{}

// Redis stores sessions as JSON documents, one key per session. A zero ttl
// keeps sessions until they are deleted.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
	}
}

type guestRedis struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	DateOfBirth  string    `json:"dateOfBirth"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Country      string    `json:"country"`
	Profession   string    `json:"profession"`
	RegisteredAt time.Time `json:"registeredAt"`
}

type sessionRedis struct {
	ID           uuid.UUID   `json:"id"`
	Step         string      `json:"step"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	DateOfBirth  string      `json:"dateOfBirth,omitempty"`
	City         string      `json:"city"`
	State        string      `json:"state"`
	Country      string      `json:"country"`
	Profession   string      `json:"profession"`
	PendingCode  string      `json:"pendingCode,omitempty"`
	AttemptsUsed int         `json:"attemptsUsed"`
	CodeIssuedAt time.Time   `json:"codeIssuedAt"`
	Guest        *guestRedis `json:"guest,omitempty"`
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(guests.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(guests.DateLayout, s)
}

func sessionToRedis(s registration.Session) sessionRedis {
	out := sessionRedis{
		ID:           s.ID,
		Step:         s.Step.String(),
		Name:         s.Fields.Name,
		Email:        s.Fields.Email,
		DateOfBirth:  formatDate(s.Fields.DateOfBirth),
		City:         s.Fields.City,
		State:        s.Fields.State,
		Country:      s.Fields.Country,
		Profession:   s.Fields.Profession,
		PendingCode:  s.PendingCode,
		AttemptsUsed: s.AttemptsUsed,
		CodeIssuedAt: s.CodeIssuedAt,
	}
	if s.Guest != nil {
		out.Guest = &guestRedis{
			Name:         s.Guest.Name,
			Email:        s.Guest.Email,
			DateOfBirth:  formatDate(s.Guest.DateOfBirth),
			City:         s.Guest.City,
			State:        s.Guest.State,
			Country:      s.Guest.Country,
			Profession:   s.Guest.Profession,
			RegisteredAt: s.Guest.RegisteredAt,
		}
	}
	return out
}

func redisToSession(s sessionRedis) (registration.Session, error) {
	step, ok := registration.ParseStep(s.Step)
	if !ok {
		return registration.Session{}, fmt.Errorf("unknown step %q", s.Step)
	}

	dob, err := parseDate(s.DateOfBirth)
	if err != nil {
		return registration.Session{}, fmt.Errorf("invalid date of birth: %w", err)
	}

	out := registration.Session{
		ID:   s.ID,
		Step: step,
		Fields: registration.Fields{
			Name:        s.Name,
			Email:       s.Email,
			DateOfBirth: dob,
			City:        s.City,
			State:       s.State,
			Country:     s.Country,
			Profession:  s.Profession,
		},
		PendingCode:  s.PendingCode,
		AttemptsUsed: s.AttemptsUsed,
		CodeIssuedAt: s.CodeIssuedAt,
	}

	if s.Guest != nil {
		guestDob, err := parseDate(s.Guest.DateOfBirth)
		if err != nil {
			return registration.Session{}, fmt.Errorf("invalid guest date of birth: %w", err)
		}
		out.Guest = &guests.Guest{
			Name:         s.Guest.Name,
			Email:        s.Guest.Email,
			DateOfBirth:  guestDob,
			City:         s.Guest.City,
			State:        s.Guest.State,
			Country:      s.Guest.Country,
			Profession:   s.Guest.Profession,
			RegisteredAt: s.Guest.RegisteredAt,
		}
	}

	return out, nil
}

func (r *Redis) Get(ctx context.Context, id uuid.UUID) (registration.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return registration.Session{}, NewSessionDoesNotExistError(fmt.Sprintf("Session %q does not exist", id), nil)
	}
	if err != nil {
		return registration.Session{}, NewFailedToFetchError(fmt.Sprintf("Failed to fetch session %q", id), err)
	}

	var stored sessionRedis
	if err := json.Unmarshal(data, &stored); err != nil {
		return registration.Session{}, NewFailedToTranslateToDBModelError("Failed to decode session", err)
	}

	session, err := redisToSession(stored)
	if err != nil {
		return registration.Session{}, NewFailedToTranslateToDBModelError("Failed to decode session", err)
	}
	return session, nil
}

func (r *Redis) Save(ctx context.Context, session registration.Session) error {
	data, err := json.Marshal(sessionToRedis(session))
	if err != nil {
		return NewFailedToTranslateToDBModelError("Failed to encode session", err)
	}

	if err := r.client.Set(ctx, sessionKey(session.ID), data, r.ttl).Err(); err != nil {
		return NewFailedToWriteError(fmt.Sprintf("Failed to save session %q", session.ID), err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return NewFailedToWriteError(fmt.Sprintf("Failed to delete session %q", id), err)
	}
	return nil
}
