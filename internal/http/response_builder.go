// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/importer"
	applog "fintrack/internal/log"
)

var (
	// errBadRequest marks a body that could not be decoded at all.
	errBadRequest = errors.New("malformed request")
	// errInvalidInput marks a decodable request with unacceptable values.
	errInvalidInput = errors.New("invalid input")
	errUnauthorized = errors.New("authentication required")
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}

// statusFor maps an error to its HTTP status and the message shown to the
// client. Unexpected errors are reported without detail.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errUnauthorized),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, auth.ErrAlreadyExists):
		return http.StatusConflict, err.Error()
	case isValidation(err):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func isValidation(err error) bool {
	for _, target := range []error{
		errInvalidInput,
		core.ErrInvalidAmount, core.ErrInvalidDate, core.ErrEmptyName,
		core.ErrEmptyCategory, core.ErrEmptySource, core.ErrNameTooLong,
		auth.ErrInvalidEmail, auth.ErrWeakPassword,
		importer.ErrUnknownColumn, importer.ErrEmptyTable, importer.ErrUnsupportedFormat,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeError logs err at a level matching its status and writes the mapped
// response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	logger := applog.FromContext(r.Context())

	switch {
	case status >= 500:
		s.events.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithErrorType(applog.ErrorTypeInternal).WithRequestID(requestID(r)))
	default:
		logger.DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldStatusCode, status,
			applog.FieldError, err.Error())
	}

	resp := ErrorResponse(status, msg)
	if status == http.StatusUnauthorized {
		resp.Header("WWW-Authenticate", `Bearer realm="fintrack"`)
	}
	resp.Write(w)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusNotFound, "not found").Write(w)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
}
