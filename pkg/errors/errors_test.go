package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name          string
		field         string
		message       string
		value         interface{}
		expectedError string
	}{
		{
			name:          "with field",
			field:         "stream.target_fps",
			message:       "must be between 1 and 60",
			value:         90,
			expectedError: "validation error: stream.target_fps: must be between 1 and 60",
		},
		{
			name:          "without field",
			message:       "invalid input",
			expectedError: "validation error: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)
			if err.Error() != tt.expectedError {
				t.Errorf("Expected error %q, got %q", tt.expectedError, err.Error())
			}
			if err.Code() != CodeValidation {
				t.Errorf("Expected code %q, got %q", CodeValidation, err.Code())
			}
			if err.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, err.Field)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name          string
		resource      string
		id            string
		expectedError string
	}{
		{
			name:          "with ID",
			resource:      "device",
			id:            "Studio._visionpro_blender._tcp.local.",
			expectedError: "device with ID 'Studio._visionpro_blender._tcp.local.' not found",
		},
		{
			name:          "without ID",
			resource:      "device",
			expectedError: "device not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewNotFoundError(tt.resource, tt.id)
			if err.Error() != tt.expectedError {
				t.Errorf("Expected error %q, got %q", tt.expectedError, err.Error())
			}
			if err.Code() != CodeNotFound {
				t.Errorf("Expected code %q, got %q", CodeNotFound, err.Code())
			}
			if !errors.Is(err, ErrNotFound) {
				t.Error("Expected NotFoundError to match ErrNotFound")
			}
		})
	}
}

func TestConnectError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewConnectError("192.168.1.20:9000", cause)

	if err.Code() != CodeConnectFailed {
		t.Errorf("Expected code %q, got %q", CodeConnectFailed, err.Code())
	}
	if err.Address != "192.168.1.20:9000" {
		t.Errorf("Expected address to be kept, got %q", err.Address)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected ConnectError to unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Expected error message to mention cause, got %q", err.Error())
	}
}

func TestExportFailedError(t *testing.T) {
	t.Run("plain failure", func(t *testing.T) {
		err := NewExportFailedError("", errors.New("no active scene"))
		if err.Message() != "export failed" {
			t.Errorf("Expected default message, got %q", err.Message())
		}
		if err.TimedOut {
			t.Error("Expected TimedOut to be false")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		err := NewExportTimeoutError("5s")
		if !err.TimedOut {
			t.Error("Expected TimedOut to be true")
		}
		if !errors.Is(err, ErrTimeout) {
			t.Error("Expected export timeout to match ErrTimeout")
		}
		if err.Error() != "export timed out after 5s: operation timeout" {
			t.Errorf("Unexpected message %q", err.Error())
		}
	})
}

func TestNotConnectedError(t *testing.T) {
	err := NewNotConnectedError("start streaming")
	if err.Error() != "start streaming: not connected to a device" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrNotConnected) {
		t.Error("Expected NotConnectedError to match ErrNotConnected")
	}
}

func TestAlreadyConnectedError(t *testing.T) {
	if msg := NewAlreadyConnectedError("").Error(); msg != "already connected" {
		t.Errorf("Unexpected message %q", msg)
	}
	if msg := NewAlreadyConnectedError("10.0.0.2:9000").Error(); msg != "already connected to 10.0.0.2:9000" {
		t.Errorf("Unexpected message %q", msg)
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if Wrap(nil, "context") != nil {
			t.Error("Expected nil when wrapping nil")
		}
	})

	t.Run("preserves custom code", func(t *testing.T) {
		inner := NewTransportError("write frame", errors.New("broken pipe"))
		wrapped := Wrap(inner, "stream session")
		if GetErrorCode(wrapped) != CodeTransport {
			t.Errorf("Expected code %q, got %q", CodeTransport, GetErrorCode(wrapped))
		}
		if !IsTransport(wrapped) {
			t.Error("Expected wrapped error to still be a transport error")
		}
	})

	t.Run("standard error becomes internal", func(t *testing.T) {
		wrapped := Wrapf(fmt.Errorf("boom"), "cycle %d", 3)
		if !IsInternal(wrapped) {
			t.Error("Expected standard error to be wrapped as internal")
		}
		if wrapped.Error() != "cycle 3: boom" {
			t.Errorf("Unexpected message %q", wrapped.Error())
		}
	})
}

func TestStackTrace(t *testing.T) {
	err := NewInternalError("broken", nil)
	trace := err.StackTrace()
	if !strings.Contains(trace, "TestStackTrace") {
		t.Errorf("Expected stack trace to contain the test function, got:\n%s", trace)
	}
}
