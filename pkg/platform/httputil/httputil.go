// Package httputil holds JSON response helpers shared by handlers.
package httputil

import (
	"encoding/json"
	"net/http"

	derrors "labcert/pkg/domain-errors"
)

// WriteJSON serializes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteError maps a domain error to an HTTP response. Internal errors
// deliberately omit the description so store and infra details never
// leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	status := statusFor(code)

	body := errorBody{Error: string(code)}
	if status < http.StatusInternalServerError {
		body.Description = derrors.MessageOf(err)
	}
	WriteJSON(w, status, body)
}

func statusFor(code derrors.Code) int {
	switch code {
	case derrors.CodeValidation:
		return http.StatusBadRequest
	case derrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case derrors.CodeForbidden:
		return http.StatusForbidden
	case derrors.CodeNotFound:
		return http.StatusNotFound
	case derrors.CodeConflict, derrors.CodeInvariantViolation:
		return http.StatusConflict
	case derrors.CodeExhausted:
		return http.StatusUnprocessableEntity
	case derrors.CodeRender:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
