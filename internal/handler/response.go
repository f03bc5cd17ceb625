package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// WHY HELPERS?
// Without helpers, every handler repeats the same boilerplate:
//   w.Header().Set("Content-Type", "application/json")
//   w.WriteHeader(statusCode)
//   json.NewEncoder(w).Encode(data)
//
// With helpers, handlers are cleaner and more consistent:
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, logger, err)
//
// ERROR SHAPES:
// Clients of this API expect two shapes, depending on the kind of error:
//   {"code": ["This field is required."]}               ← validation, per field
//   {"detail": "Authentication credentials were not provided."} ← everything else
// A missing resource is a bare 404 with no body at all.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-api/internal/apperror"
	"github.com/sakif/snippet-api/internal/serializer"
)

// MaxBodyBytes caps the size of any JSON request body.
const MaxBodyBytes = 1 << 20

// MsgServerError is the only thing a client learns about an unexpected failure.
const MsgServerError = "A server error occurred."

// DetailResponse is the {"detail": "..."} body used for non-field errors.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// You MUST set headers and status code BEFORE writing the body.
// Once you call w.Write() (which Encode does internally), the headers are sent.
// Any header changes after that are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// This is where domain errors (from the service layer) get translated to HTTP.
// The service layer should not know about HTTP status codes, so the mapping
// lives here and nowhere else:
//
//	validation   → 400 {"field": ["message", ...]}
//	bad request  → 400 {"detail": ...}
//	unauthorized → 401 {"detail": ...}
//	forbidden    → 403 {"detail": ...}
//	not found    → 404, empty body
//	conflict     → 409 {"detail": ...}
//	unavailable  → 503 {"detail": ...}
//	anything else → 500 with a generic message; the cause is logged
//
// errors.Is() walks the whole Unwrap chain, so a service can wrap an AppError
// with fmt.Errorf("...: %w", err) and the mapping still finds it.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if verrs, ok := apperror.FieldErrors(err); ok {
		writeJSON(w, http.StatusBadRequest, verrs)
		return
	}

	if errors.Is(err, apperror.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperror.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	var appErr *apperror.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		// NEVER expose internal error details to the client: the raw message
		// might contain SQL, file paths or other sensitive information.
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, DetailResponse{Detail: MsgServerError})
		return
	}

	writeJSON(w, status, DetailResponse{Detail: appErr.Message})
}

// readFields decodes the request body into a JSON object, bounded by
// MaxBodyBytes.
func readFields(w http.ResponseWriter, r *http.Request) (serializer.Fields, error) {
	return serializer.ParseObject(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
}
