package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/International-Combat-Archery-Alliance/guest-registration/ptr"
	"github.com/google/uuid"
)

var errEmptyBody = errors.New("empty body")

func (a *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	if e, ok := body.(*Error); ok && e.RequestId == nil {
		if requestId := getRequestIdFromCtx(ctx); requestId != uuid.Nil {
			e.RequestId = ptr.String(requestId.String())
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		getLoggerFromCtx(ctx, a.logger).ErrorContext(ctx, "Failed to marshal response", slog.String("error", err.Error()))
		status = http.StatusInternalServerError
		jsonBody = []byte(`{"message": "Internal server error", "code": "InternalError"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonBody)
}

func (a *API) writeError(ctx context.Context, w http.ResponseWriter, status int, code ErrorCode, message string) {
	a.writeJSON(ctx, w, status, &Error{
		Code:    code,
		Message: message,
	})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errEmptyBody
	}

	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	return err
}

// writeDecodeError answers a body that could not be decoded into the
// operation's request type.
func (a *API) writeDecodeError(ctx context.Context, w http.ResponseWriter, err error) {
	getLoggerFromCtx(ctx, a.logger).WarnContext(ctx, "Invalid request body", slog.String("error", err.Error()))

	if errors.Is(err, errEmptyBody) {
		a.writeError(ctx, w, http.StatusBadRequest, EmptyBody, "Must specify a JSON body in the request")
		return
	}
	a.writeError(ctx, w, http.StatusBadRequest, InvalidBody, "Invalid body")
}
