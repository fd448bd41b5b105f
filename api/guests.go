package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/International-Combat-Archery-Alliance/guest-registration/slices"
)

const (
	defaultGuestPageLimit = 10
	maxGuestPageLimit     = 50

	exportFileName = "guest_list.csv"
)

func (a *API) GetGuests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx, a.logger)
	params := r.URL.Query()

	if params.Has("q") {
		found, err := a.guests.Search(ctx, params.Get("q"))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to search guests", slog.String("error", err.Error()))
			a.writeError(ctx, w, http.StatusInternalServerError, InternalError, "Internal server error")
			return
		}

		a.writeJSON(ctx, w, http.StatusOK, GuestList{
			Data:        slices.Map(found, guestToApiGuest),
			HasNextPage: false,
		})
		return
	}

	limit := defaultGuestPageLimit
	if params.Has("limit") {
		userLimit, err := strconv.Atoi(params.Get("limit"))
		if err != nil || userLimit < 1 || userLimit > maxGuestPageLimit {
			a.writeError(ctx, w, http.StatusBadRequest, LimitOutOfBounds, "Limit must be between 1 and 50")
			return
		}
		limit = userLimit
	}

	var cursor *string
	if params.Has("cursor") {
		c := params.Get("cursor")
		cursor = &c
	}

	result, err := a.guests.ListPage(ctx, int32(limit), cursor)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to get guests from the store", slog.String("error", err.Error()))

		var guestErr *guests.Error
		if errors.As(err, &guestErr) {
			switch guestErr.Reason {
			case guests.REASON_INVALID_CURSOR:
				a.writeError(ctx, w, http.StatusBadRequest, InvalidCursor, "Passed in cursor is invalid")
				return
			}
		}

		a.writeError(ctx, w, http.StatusInternalServerError, InternalError, "Internal server error")
		return
	}

	a.writeJSON(ctx, w, http.StatusOK, GuestList{
		Data:        slices.Map(result.Data, guestToApiGuest),
		Cursor:      result.Cursor,
		HasNextPage: result.HasNextPage,
	})
}

// GetGuestsExport downloads the guests matching q, or all guests, as CSV.
func (a *API) GetGuestsExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := getLoggerFromCtx(ctx, a.logger)

	found, err := a.guests.Search(ctx, r.URL.Query().Get("q"))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load guests for export", slog.String("error", err.Error()))
		a.writeError(ctx, w, http.StatusInternalServerError, InternalError, "Failed to export guests")
		return
	}

	var buf bytes.Buffer
	if err := guests.WriteCSV(&buf, found); err != nil {
		logger.ErrorContext(ctx, "Failed to write guest csv", slog.String("error", err.Error()))
		a.writeError(ctx, w, http.StatusInternalServerError, InternalError, "Failed to export guests")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFileName+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
