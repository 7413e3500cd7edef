package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rollcall/internal/identity"
	"rollcall/internal/service"
	"rollcall/internal/validation"
)

func TestRespondWithErrorWritesStatusAndBody(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondWithError(recorder, 418, "Teapot", "Short and stout", "", nil)

	if recorder.Code != 418 {
		t.Fatalf("expected status 418, got %d", recorder.Code)
	}
	var body errorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "Teapot" || body.Message != "Short and stout" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRespondWithErrorLogsCause(t *testing.T) {
	var buf bytes.Buffer
	original := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(original)

	recorder := httptest.NewRecorder()
	respondWithError(recorder, 500, KindServerError, ErrInternalServerError, "", errors.New("boom"))

	logOutput := buf.String()
	if !strings.Contains(logOutput, ErrInternalServerError) {
		t.Fatalf("expected log to include user message, got %q", logOutput)
	}
	if !strings.Contains(logOutput, "boom") {
		t.Fatalf("expected log to include error, got %q", logOutput)
	}
	if strings.Contains(recorder.Body.String(), "boom") {
		t.Fatal("cause leaked to the client")
	}
}

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		kind     string
		contains string
	}{
		{"not found", service.ErrGroupNotFound, http.StatusNotFound, KindNotFound, "group not found"},
		{"forbidden", service.ErrNotGroupAdmin, http.StatusForbidden, KindForbidden, "admin"},
		{"invalid input", service.ErrNoUpdateFields, http.StatusBadRequest, KindInvalidInput, "no update fields"},
		{"validation", validation.Error{Field: "recurrenceRule", Message: "bad"}, http.StatusBadRequest, KindValidation, "recurrenceRule"},
		{"wrapped validation", fmt.Errorf("saving: %w", validation.Error{Field: "admins", Message: "empty"}), http.StatusBadRequest, KindValidation, "admins"},
		{"token", identity.ErrInvalidToken, http.StatusUnauthorized, KindUnauthorized, ErrUnauthorized},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, KindServerError, ErrInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondWithServiceError(recorder, httptest.NewRequest(http.MethodGet, "/x", nil), tt.err)

			if recorder.Code != tt.status {
				t.Errorf("status = %d, want %d", recorder.Code, tt.status)
			}
			var body errorResponse
			json.NewDecoder(recorder.Body).Decode(&body)
			if body.Error != tt.kind {
				t.Errorf("kind = %q, want %q", body.Error, tt.kind)
			}
			if !strings.Contains(body.Message, tt.contains) {
				t.Errorf("message = %q, want it to contain %q", body.Message, tt.contains)
			}
		})
	}
}
