package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/importer"
)

func TestJSONResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusAccepted).Header("X-Test", "1").Body(map[string]int{"n": 1}).Write(rec)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Test"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"n":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	ErrorResponse(http.StatusTeapot, "short and stout").Write(rec)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.JSONEq(t, `{"error":"short and stout"}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: eof", errBadRequest), http.StatusBadRequest},
		{errUnauthorized, http.StatusUnauthorized},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("parse: %w", auth.ErrInvalidToken), http.StatusUnauthorized},
		{fmt.Errorf("expense 3: %w", core.ErrInvalidID), http.StatusNotFound},
		{auth.ErrAlreadyExists, http.StatusConflict},
		{core.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{core.ErrNameTooLong, http.StatusUnprocessableEntity},
		{auth.ErrWeakPassword, http.StatusUnprocessableEntity},
		{importer.ErrUnknownColumn, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: query", errInvalidInput), http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, msg := statusFor(tt.err)
			assert.Equal(t, tt.want, got)
			if got == http.StatusInternalServerError {
				assert.Equal(t, "internal error", msg)
			} else {
				assert.Equal(t, tt.err.Error(), msg)
			}
		})
	}
}
