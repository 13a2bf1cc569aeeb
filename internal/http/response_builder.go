package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"clubledger/internal/core"
	"clubledger/internal/log"
)

var (
	errUnauthenticated = errors.New("missing member identity")
	errForbidden       = errors.New("operation not allowed for this member")
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrReportExists):
		return http.StatusConflict
	case core.IsStorage(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it as JSON. Internal errors are not
// echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}

	logger := log.FromContext(r.Context())
	switch {
	case status >= 500:
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err, log.FieldPath, r.URL.Path)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	default:
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldStatusCode, status)
	}
	writeJSON(w, status, body)
}
