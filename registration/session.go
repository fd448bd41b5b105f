package registration

import (
	"time"

	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/google/uuid"
)

const MaxAttempts = 3

// Fields are the candidate guest details entered by the registrant.
type Fields struct {
	Name        string
	Email       string
	DateOfBirth time.Time
	City        string
	State       string
	Country     string
	Profession  string
}

// Session is one registrant's progress through the flow. Transitions take a
// Session by value and return the new one.
type Session struct {
	ID           uuid.UUID
	Step         Step
	Fields       Fields
	PendingCode  string
	AttemptsUsed int
	CodeIssuedAt time.Time
	// Guest is the committed record, set only once Step is StepCompleted.
	Guest *guests.Guest
}

func NewSession() Session {
	return Session{
		ID:   uuid.New(),
		Step: StepCollecting,
	}
}

func (s Session) RemainingAttempts() int {
	return max(MaxAttempts-s.AttemptsUsed, 0)
}

func (s Session) reset() Session {
	return Session{
		ID:   s.ID,
		Step: StepCollecting,
	}
}
