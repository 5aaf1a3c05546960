package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

type errorResponse struct {
	Message string            `json:"message"`
	Errors  []core.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

// writeError maps domain errors to responses. Anything unrecognised is a
// server error whose detail only reaches the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: ve.Message, Errors: ve.Fields})
	case errors.Is(err, core.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Expense not found")
	case errors.Is(err, core.ErrUserExists):
		writeMessage(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, core.ErrInvalidCredentials):
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
	case errors.Is(err, core.ErrUnauthenticated):
		writeMessage(w, http.StatusUnauthorized, "Token is not valid")
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}

// errBodyTooLarge is answered with 413.
var errBodyTooLarge = errors.New("request body too large")

// readJSON decodes exactly one JSON value from a size-limited body into dst.
// Unknown fields and trailing data are rejected. Malformed input comes back
// as a *core.ValidationError.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &core.ValidationError{Message: "Request body must contain a single JSON object"}
	}
	return nil
}

func decodeError(err error) error {
	var (
		maxErr    *http.MaxBytesError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	invalid := func(field, msg string) error {
		return &core.ValidationError{
			Message: "Invalid request body",
			Fields:  []core.FieldError{{Field: field, Message: msg}},
		}
	}

	switch {
	case errors.As(err, &maxErr):
		return errBodyTooLarge
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return invalid(typeErr.Field, fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.Kind()))
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &core.ValidationError{Message: "Request body contains malformed JSON"}
	case errors.Is(err, io.EOF):
		return &core.ValidationError{Message: "Request body must not be empty"}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return invalid(field, "unknown field "+field)
	default:
		return &core.ValidationError{Message: "Invalid request body"}
	}
}

// writeDecodeError answers a failed readJSON.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	writeError(w, r, err)
}
