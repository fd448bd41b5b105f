package sessionstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/International-Combat-Archery-Alliance/guest-registration/registration"
	"github.com/google/uuid"
)

var _ Repository = &Memory{}

// DefaultMemoryTTL applies when NewMemory is given no positive TTL. Memory
// holds everything in process, so its sessions always expire.
const DefaultMemoryTTL = 24 * time.Hour

type memoryEntry struct {
	session   registration.Session
	expiresAt time.Time
}

// Memory keeps sessions in a map. Each Save pushes the session's expiry out by
// the TTL; expired sessions read as missing and are swept out on later saves.
type Memory struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]memoryEntry
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

type MemoryOption func(*Memory)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}

	m := &Memory{
		sessions: make(map[uuid.UUID]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, id uuid.UUID) (registration.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if ok && !m.now().Before(entry.expiresAt) {
		delete(m.sessions, id)
		ok = false
	}
	if !ok {
		return registration.Session{}, NewSessionDoesNotExistError(fmt.Sprintf("Session %q does not exist", id), nil)
	}
	return entry.session, nil
}

func (m *Memory) Save(ctx context.Context, session registration.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	m.sessions[session.ID] = memoryEntry{session: session, expiresAt: now.Add(m.ttl)}
	return nil
}

func (m *Memory) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// sweep drops expired sessions, at most once per sweepInterval. Callers hold mu.
func (m *Memory) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}

	for id, entry := range m.sessions {
		if !now.Before(entry.expiresAt) {
			delete(m.sessions, id)
		}
	}
	m.nextSweep = now.Add(m.sweepInterval())
}

func (m *Memory) sweepInterval() time.Duration {
	return min(m.ttl, time.Minute)
}

// Len reports how many sessions are held, expired ones included until swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}
