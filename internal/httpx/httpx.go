// Package httpx holds the JSON plumbing shared by the domain handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"inventoryapi/internal/apperr"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Envelope wraps every JSON response body.
type Envelope map[string]any

// WriteJSON encodes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(body, '\n'))
	return err
}

// ReadJSON decodes a single JSON object from the request body into dst.
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var typeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("%w: body contains badly-formed JSON (at character %d)", apperr.ErrInvalidInput, syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w: body contains badly-formed JSON", apperr.ErrInvalidInput)
		case errors.As(err, &typeError):
			if typeError.Field != "" {
				return fmt.Errorf("%w: body contains incorrect JSON type for field %q", apperr.ErrInvalidInput, typeError.Field)
			}
			return fmt.Errorf("%w: body contains incorrect JSON type (at character %d)", apperr.ErrInvalidInput, typeError.Offset)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: body must not be empty", apperr.ErrInvalidInput)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("%w: body contains unknown key %s", apperr.ErrInvalidInput, fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("%w: body must not be larger than %d bytes", apperr.ErrInvalidInput, maxBytesError.Limit)
		default:
			return fmt.Errorf("%w: %s", apperr.ErrInvalidInput, err.Error())
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must only contain a single JSON value", apperr.ErrInvalidInput)
	}

	return nil
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrAlreadyConnected):
		return http.StatusConflict
	case apperr.IsMissingReference(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error writes the error payload for err. Unexpected errors are logged and
// their detail is withheld from the client.
func Error(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := StatusFor(err)
	message := err.Error()

	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.Error(err),
		)
		message = "the server encountered a problem and could not process the request"
	}

	ErrorMessage(w, r, log, status, message)
}

// ErrorMessage writes {"error": message} with the given status.
func ErrorMessage(w http.ResponseWriter, r *http.Request, log *zap.Logger, status int, message any) {
	if err := WriteJSON(w, status, Envelope{"error": message}); err != nil {
		log.Error("failed to write error response", zap.String("url", r.URL.String()), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// FailedValidation writes the per-field validation errors.
func FailedValidation(w http.ResponseWriter, r *http.Request, log *zap.Logger, problems map[string]string) {
	ErrorMessage(w, r, log, http.StatusBadRequest, problems)
}

// IDParam reads a numeric chi URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a valid id", apperr.ErrInvalidInput, raw)
	}
	return id, nil
}

// QueryID reads a required numeric query parameter.
func QueryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", apperr.ErrInvalidInput, name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", apperr.ErrInvalidInput, name)
	}
	return id, nil
}
