package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found type", NewNotFoundError("device", "x"), IsNotFound, true},
		{"not found sentinel wrapped", fmt.Errorf("lookup: %w", ErrNotFound), IsNotFound, true},
		{"not found nil", nil, IsNotFound, false},
		{"validation", NewValidationError("f", "bad", nil), IsValidation, true},
		{"not connected sentinel", ErrNotConnected, IsNotConnected, true},
		{"not connected type", NewNotConnectedError("stream"), IsNotConnected, true},
		{"discovery unavailable", NewDiscoveryUnavailableError("mdns", errors.New("no iface")), IsDiscoveryUnavailable, true},
		{"already running", NewAlreadyRunningError("discovery"), IsAlreadyRunning, true},
		{"already running other", NewAlreadyConnectedError(""), IsAlreadyRunning, false},
		{"connect failed", NewConnectError("h:1", nil), IsConnectFailed, true},
		{"already connected", NewAlreadyConnectedError("h:1"), IsAlreadyConnected, true},
		{"session active", NewAlreadySessionActiveError("abc"), IsSessionActive, true},
		{"export failed", NewExportFailedError("", nil), IsExportFailed, true},
		{"transport", NewTransportError("send", errors.New("reset")), IsTransport, true},
		{"timeout sentinel", ErrTimeout, IsTimeout, true},
		{"timeout deadline", context.DeadlineExceeded, IsTimeout, true},
		{"timeout export", NewExportTimeoutError("5s"), IsTimeout, true},
		{"timeout plain export", NewExportFailedError("x", nil), IsTimeout, false},
		{"internal", NewInternalError("x", nil), IsInternal, true},
		{"internal plain", errors.New("x"), IsInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"export failure", NewExportFailedError("no data", nil), true},
		{"export timeout", NewExportTimeoutError("5s"), true},
		{"transport", NewTransportError("send", nil), false},
		{"connect", NewConnectError("h:1", nil), false},
		{"plain", errors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRetry(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, CodeOK},
		{"typed", NewAlreadyRunningError("discovery"), CodeAlreadyRunning},
		{"sentinel not found", ErrNotFound, CodeNotFound},
		{"sentinel not connected", ErrNotConnected, CodeNotConnected},
		{"sentinel invalid", ErrInvalidInput, CodeValidation},
		{"deadline", context.DeadlineExceeded, CodeTimeout},
		{"plain", errors.New("x"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	if GetErrorMessage(nil) != "" {
		t.Error("Expected empty message for nil")
	}
	if msg := GetErrorMessage(NewConnectError("h:1", errors.New("refused"))); msg != "connect to h:1 failed" {
		t.Errorf("Unexpected message %q", msg)
	}
	if msg := GetErrorMessage(errors.New("plain")); msg != "plain" {
		t.Errorf("Unexpected message %q", msg)
	}
}

func TestCause(t *testing.T) {
	root := errors.New("connection reset by peer")
	err := Wrap(NewTransportError("send frame", root), "session")
	if Cause(err) != root {
		t.Errorf("Expected root cause, got %v", Cause(err))
	}
}

func TestGetCategory(t *testing.T) {
	tests := []struct {
		code string
		want ErrorCategory
	}{
		{CodeNotFound, CategoryClient},
		{CodeAlreadyConnected, CategoryClient},
		{CodeTimeout, CategoryTimeout},
		{CodeTransport, CategoryNetwork},
		{CodeDiscoveryUnavailable, CategoryNetwork},
		{CodeExportFailed, CategoryServer},
		{"SOMETHING_ELSE", CategoryServer},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := GetCategory(tt.code); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
