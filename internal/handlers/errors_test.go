package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ampa/internal/service"
	"ampa/internal/validation"
)

func TestRespondWithErrorWritesStatusAndBody(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondWithError(recorder, 418, "Teapot", "", nil)

	if recorder.Code != 418 {
		t.Fatalf("expected status 418, got %d", recorder.Code)
	}

	body := strings.TrimSpace(recorder.Body.String())
	if body != `{"error":"Teapot"}` {
		t.Fatalf("expected JSON error body, got %q", body)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
}

func TestRespondWithErrorLogsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := log.Default()
	originalOutput := logger.Writer()
	logger.SetOutput(&buf)
	defer logger.SetOutput(originalOutput)

	recorder := httptest.NewRecorder()
	err := errors.New("boom")

	respondWithError(recorder, 500, "Internal server error", "", err)

	logOutput := buf.String()
	if !strings.Contains(logOutput, "Internal server error") {
		t.Fatalf("expected log to include user message, got %q", logOutput)
	}
	if !strings.Contains(logOutput, "boom") {
		t.Fatalf("expected log to include error, got %q", logOutput)
	}
}

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, ErrInvalidCredentials},
		{"unauthorized", service.ErrUnauthorized, http.StatusUnauthorized, ErrUnauthorized},
		{"not found", service.ErrNotFound, http.StatusNotFound, ErrNotFound},
		{"conflict", fmt.Errorf("%w: username taken", service.ErrConflict), http.StatusConflict, ErrConflict},
		{"self delete", service.ErrSelfDelete, http.StatusBadRequest, ErrSelfDelete},
		{"validation", validation.ValidationError{Field: "name", Message: "family name is required"}, http.StatusBadRequest, "family name is required"},
		{"summary", service.ErrSummaryUnavailable, http.StatusServiceUnavailable, ErrServiceUnavailable},
		{"storage", fmt.Errorf("%w: insert: database is locked", service.ErrStorageFault), http.StatusInternalServerError, ErrInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondWithServiceError(recorder, "test", tt.err)

			if recorder.Code != tt.code {
				t.Errorf("status = %d, want %d", recorder.Code, tt.code)
			}
			if !strings.Contains(recorder.Body.String(), `"error":"`+tt.body+`"`) {
				t.Errorf("body = %s, want tag %q", recorder.Body, tt.body)
			}
			if strings.Contains(recorder.Body.String(), "locked") {
				t.Error("storage detail leaked to the client")
			}
		})
	}
}
