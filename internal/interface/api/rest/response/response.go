// Package response writes JSON bodies and maps domain errors to HTTP status codes.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/pkg/logger"
)

const internalMessage = "internal server error"

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// StatusCode maps err to the HTTP status it should be reported with.
func StatusCode(err error) int {
	switch {
	// Status Bad Request.
	case errors.Is(err, errs.ErrInvalidRequest):
		return http.StatusBadRequest

	// Status Unauthorized.
	case errors.Is(err, errs.ErrUnauthorized) ||
		errors.Is(err, errs.ErrInvalidCredentials):
		return http.StatusUnauthorized

	// Status Forbidden.
	case errors.Is(err, errs.ErrAccessDenied):
		return http.StatusForbidden

	// Status Not Found.
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound

	// Status Conflict.
	case errors.Is(err, errs.ErrInvalidTransition) ||
		errors.Is(err, errs.ErrDataConflict):
		return http.StatusConflict

	// Status Too Many Requests.
	case errors.Is(err, errs.ErrRateLimit):
		return http.StatusTooManyRequests
	}

	return http.StatusInternalServerError
}

// ErrorHandler returns a handler which sends err in the JSON format.
// Details of internal errors are logged and never leave the server.
func ErrorHandler(l logger.Logger) func(w http.ResponseWriter, r *http.Request, err error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		code := StatusCode(err)
		errJSON := errs.JSON{Error: err.Error()}

		if code == http.StatusInternalServerError {
			l.With(r.Context()).Errorf("%s %s: %s", r.Method, r.URL.Path, err)
			errJSON.Error = internalMessage
		}

		if err = JSON(w, code, errJSON); err != nil {
			l.With(r.Context()).Errorf("write error response: %s", err)
		}
	}
}
