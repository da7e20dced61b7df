// Package httputil renders JSON responses and the shared error envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"auditlog/pkg/platform/sentinel"
)

// Code is the machine-readable error code sent to clients.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeUnavailable  Code = "service_unavailable"
	CodeInternal     Code = "internal_error"
)

// Error is an error that carries its client-facing code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError builds a coded error.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

type errorResponse struct {
	Error       Code   `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto a status and the error envelope. Descriptions of
// internal errors are never sent to the client.
func WriteError(w http.ResponseWriter, err error) {
	code := CodeInternal
	desc := ""
	var coded *Error
	switch {
	case errors.As(err, &coded):
		code = coded.Code
		desc = coded.Message
	case errors.Is(err, sentinel.ErrUnavailable):
		code = CodeUnavailable
		desc = "dependency unavailable"
	}
	if code == CodeInternal {
		desc = ""
	}
	WriteJSON(w, statusOf(code), errorResponse{Error: code, Description: desc})
}

func statusOf(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
