package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/International-Combat-Archery-Alliance/guest-registration/config"
	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/International-Combat-Archery-Alliance/guest-registration/registration"
	"github.com/International-Combat-Archery-Alliance/guest-registration/sessionstore"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var noopLogger = slog.New(slog.DiscardHandler)

var _ Machine = &mockMachine{}

type mockMachine struct {
	SubmitFieldsFunc func(ctx context.Context, session registration.Session, fields registration.Fields) (registration.Session, error)
	SubmitCodeFunc   func(ctx context.Context, session registration.Session, code string) (registration.Session, error)
	ResetFunc        func(session registration.Session) registration.Session
}

func (m *mockMachine) SubmitFields(ctx context.Context, session registration.Session, fields registration.Fields) (registration.Session, error) {
	return m.SubmitFieldsFunc(ctx, session, fields)
}

func (m *mockMachine) SubmitCode(ctx context.Context, session registration.Session, code string) (registration.Session, error) {
	return m.SubmitCodeFunc(ctx, session, code)
}

func (m *mockMachine) Reset(session registration.Session) registration.Session {
	return m.ResetFunc(session)
}

var _ sessionstore.Repository = &mockSessions{}

// mockSessions delegates to an in-memory repository unless a func is set.
type mockSessions struct {
	GetFunc  func(ctx context.Context, id uuid.UUID) (registration.Session, error)
	SaveFunc func(ctx context.Context, session registration.Session) error

	memory *sessionstore.Memory
}

func newMockSessions() *mockSessions {
	return &mockSessions{memory: sessionstore.NewMemory(0)}
}

func (m *mockSessions) Get(ctx context.Context, id uuid.UUID) (registration.Session, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return m.memory.Get(ctx, id)
}

func (m *mockSessions) Save(ctx context.Context, session registration.Session) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, session)
	}
	return m.memory.Save(ctx, session)
}

func (m *mockSessions) Delete(ctx context.Context, id uuid.UUID) error {
	return m.memory.Delete(ctx, id)
}

var _ guests.Store = &mockGuestStore{}

type mockGuestStore struct {
	AppendFunc   func(ctx context.Context, guest guests.Guest) error
	ListAllFunc  func(ctx context.Context) ([]guests.Guest, error)
	ListPageFunc func(ctx context.Context, limit int32, cursor *string) (guests.ListResponse, error)
	SearchFunc   func(ctx context.Context, query string) ([]guests.Guest, error)
}

func (m *mockGuestStore) Append(ctx context.Context, guest guests.Guest) error {
	return m.AppendFunc(ctx, guest)
}

func (m *mockGuestStore) ListAll(ctx context.Context) ([]guests.Guest, error) {
	return m.ListAllFunc(ctx)
}

func (m *mockGuestStore) ListPage(ctx context.Context, limit int32, cursor *string) (guests.ListResponse, error) {
	return m.ListPageFunc(ctx, limit, cursor)
}

func (m *mockGuestStore) Search(ctx context.Context, query string) ([]guests.Guest, error) {
	return m.SearchFunc(ctx, query)
}

func newTestHandler(t *testing.T, api *API) http.Handler {
	t.Helper()
	h, err := api.Handler(prometheus.NewRegistry())
	require.NoError(t, err)
	return h
}

func newLocalAPI(machine Machine, sessions sessionstore.Repository, guestStore guests.Store) *API {
	return NewAPI(machine, sessions, guestStore, noopLogger, config.LOCAL, nil)
}

func doJSON(t *testing.T, h http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResp[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
