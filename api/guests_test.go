package api

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/International-Combat-Archery-Alliance/guest-registration/ptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGuests() []guests.Guest {
	return []guests.Guest{
		{
			Name:         "Ada Lovelace",
			Email:        "ada@example.com",
			DateOfBirth:  time.Date(2000, time.May, 5, 0, 0, 0, 0, time.UTC),
			City:         "London",
			State:        "Greater London",
			Country:      "UK",
			Profession:   "Mathematician",
			RegisteredAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
		},
		{
			Name:         "Grace Hopper",
			Email:        "grace@example.com",
			DateOfBirth:  time.Date(2001, time.December, 9, 0, 0, 0, 0, time.UTC),
			City:         "New York",
			State:        "NY",
			Country:      "USA",
			Profession:   "Rear Admiral",
			RegisteredAt: time.Date(2026, 10, 19, 9, 5, 0, 0, time.UTC),
		},
	}
}

func TestGetGuests(t *testing.T) {
	t.Run("default page", func(t *testing.T) {
		store := &mockGuestStore{
			ListPageFunc: func(ctx context.Context, limit int32, cursor *string) (guests.ListResponse, error) {
				assert.Equal(t, int32(defaultGuestPageLimit), limit)
				assert.Nil(t, cursor)
				return guests.ListResponse{
					Data:        testGuests(),
					Cursor:      ptr.String("next"),
					HasNextPage: true,
				}, nil
			},
		}
		h := newTestHandler(t, newLocalAPI(&mockMachine{}, newMockSessions(), store))

		rec := doJSON(t, h, http.MethodGet, "/guests", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeResp[GuestList](t, rec)
		require.Len(t, resp.Data, 2)
		assert.Equal(t, "Ada Lovelace", resp.Data[0].Name)
		assert.Equal(t, "2001-12-09", resp.Data[1].DateOfBirth.String())
		assert.True(t, resp.HasNextPage)
		assert.Equal(t, ptr.String("next"), resp.Cursor)
	})

	t.Run("limit and cursor are passed through", func(t *testing.T) {
		store := &mockGuestStore{
			ListPageFunc: func(ctx context.Context, limit int32, cursor *string) (guests.ListResponse, error) {
				assert.Equal(t, int32(25), limit)
				assert.Equal(t, ptr.String("abc"), cursor)
				return guests.ListResponse{Data: []guests.Guest{}}, nil
			},
		}
		h := newTestHandler(t, newLocalAPI(&mockMachine{}, newMockSessions(), store))

		rec := doJSON(t, h, http.MethodGet, "/guests?limit=25&cursor=abc", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decodeResp[GuestList](t, rec).Data)
	})

	t.Run("limit out of bounds", func(t *testing.T) {
		h := newTestHandler(t, newLocalAPI(&mockMachine{}, newMockSessions(), &mockGuestStore{}))

		for _, limit := range []string{"0", "51", "-3"} {
			rec := doJSON(t, h, http.MethodGet, "/guests?limit="+limit, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
			assert.Equal(t, LimitOutOfBounds, decodeResp[Error](t, rec).Code, limit)
		}
	})

	t.Run("invalid cursor", func(t *testing.T) {
		store := &mockGuestStore{
			ListPageFunc: func(ctx context.Context, limit int32, cursor *string) (guests.ListResponse, error) {
				return guests.ListResponse{}, guests.NewInvalidCursorError("Invalid cursor", errors.New("bad base64"))
			},
		}
		h := newTestHandler(t, newLocalAPI(&mockMachine{}, newMockSessions(), store))

		rec := doJSON(t, h, http.MethodGet, "/guests?cursor=zzz", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, InvalidCursor, decodeResp[Error](t, rec).Code)
	})

	t.Run("store failure", func(t *testing.T) {
		store := &mockGuestStore{
			ListPageFunc: func(ctx context.Context, limit int32, cursor *string) (guests.ListResponse, error) {
				return guests.ListResponse{}, guests.NewTimeoutError("ListPage timed out")
			},
		}
		h := newTestHandler(t, newLocalAPI(&mockMachine{}, newMockSessions(), store))

		rec := doJSON(t, h, http.MethodGet, "/guests", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, InternalError, decodeResp[Error](t, rec).Code)
	})

	t.Run("q switches to search", func(t *testing.T) {
		store := &mockGuestStore{
			SearchFunc: func(ctx context.Context, query string) ([]guests.Guest, error) {
				assert.Equal(t, "grace", query)
				return testGuests()[1:], nil
			},
		}
		h := newTestHandler(t, newLocalAPI(&mockMachine{}, newMockSessions(), store))

		rec := doJSON(t, h, http.MethodGet, "/guests?q=grace", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResp[GuestList](t, rec)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "grace@example.com", resp.Data[0].Email)
		assert.False(t, resp.HasNextPage)
		assert.Nil(t, resp.Cursor)
	})
}

func TestGetGuestsExport(t *testing.T) {
	t.Run("csv download", func(t *testing.T) {
		store := &mockGuestStore{
			SearchFunc: func(ctx context.Context, query string) ([]guests.Guest, error) {
				assert.Equal(t, "", query)
				return testGuests(), nil
			},
		}
		h := newTestHandler(t, newLocalAPI(&mockMachine{}, newMockSessions(), store))

		rec := doJSON(t, h, http.MethodGet, "/guests/export", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="guest_list.csv"`, rec.Header().Get("Content-Disposition"))

		records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "Name", records[0][0])
		assert.Equal(t, []string{"Ada Lovelace", "ada@example.com", "2000-05-05", "London", "Greater London", "UK", "Mathematician", "2026-10-19 09:00:00"}, records[1])
	})

	t.Run("store failure", func(t *testing.T) {
		store := &mockGuestStore{
			SearchFunc: func(ctx context.Context, query string) ([]guests.Guest, error) {
				return nil, errors.New("boom")
			},
		}
		h := newTestHandler(t, newLocalAPI(&mockMachine{}, newMockSessions(), store))

		rec := doJSON(t, h, http.MethodGet, "/guests/export?q=ada", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
