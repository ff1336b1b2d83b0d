package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", NewValidationError("id", "required", nil), http.StatusBadRequest},
		{"not found", NewNotFoundError("device", "x"), http.StatusNotFound},
		{"already running", NewAlreadyRunningError("discovery"), http.StatusConflict},
		{"already connected", NewAlreadyConnectedError("h:1"), http.StatusConflict},
		{"not connected", NewNotConnectedError(""), http.StatusConflict},
		{"session active", NewAlreadySessionActiveError("s"), http.StatusConflict},
		{"connect failed", NewConnectError("h:1", nil), http.StatusBadGateway},
		{"discovery unavailable", NewDiscoveryUnavailableError("", nil), http.StatusServiceUnavailable},
		{"sentinel not found", ErrNotFound, http.StatusNotFound},
		{"sentinel timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"plain", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, got)
			}
		})
	}
}

func TestToHTTPError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		httpErr := ToHTTPError(nil, "trace")
		if httpErr.Status != http.StatusOK || httpErr.Code != CodeOK {
			t.Errorf("Unexpected result %+v", httpErr)
		}
	})

	t.Run("not found details", func(t *testing.T) {
		httpErr := ToHTTPError(NewNotFoundError("device", "abc"), "")
		if httpErr.Details["resource"] != "device" || httpErr.Details["id"] != "abc" {
			t.Errorf("Unexpected details %v", httpErr.Details)
		}
	})

	t.Run("plain error has no details", func(t *testing.T) {
		httpErr := ToHTTPError(errors.New("boom"), "")
		if httpErr.Code != CodeInternal || httpErr.Message != "boom" {
			t.Errorf("Unexpected result %+v", httpErr)
		}
		if httpErr.Details != nil {
			t.Errorf("Expected nil details, got %v", httpErr.Details)
		}
	})
}

func TestWriteHTTPError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTPError(rec, NewAlreadyConnectedError("10.0.0.2:9000"), "req-1")

	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var body HTTPError
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Code != CodeAlreadyConnected {
		t.Errorf("Expected code %q, got %q", CodeAlreadyConnected, body.Code)
	}
	if body.TraceID != "req-1" {
		t.Errorf("Expected trace id to be echoed, got %q", body.TraceID)
	}
	if body.Details["address"] != "10.0.0.2:9000" {
		t.Errorf("Expected address detail, got %v", body.Details)
	}
}
