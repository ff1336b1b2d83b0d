package errors

import (
	"context"
	"errors"
)

// as reports whether err's chain holds a *T.
func as[T any](err error) bool {
	var target *T
	return err != nil && errors.As(err, &target)
}

// IsNotFound checks if an error indicates a device or resource was not found.
func IsNotFound(err error) bool {
	return as[NotFoundError](err) || errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return as[ValidationError](err) || errors.Is(err, ErrInvalidInput)
}

// IsNotConnected checks if an error indicates there is no live connection.
func IsNotConnected(err error) bool {
	return as[NotConnectedError](err) || errors.Is(err, ErrNotConnected)
}

func IsDiscoveryUnavailable(err error) bool { return as[DiscoveryUnavailableError](err) }
func IsAlreadyRunning(err error) bool       { return as[AlreadyRunningError](err) }
func IsConnectFailed(err error) bool        { return as[ConnectError](err) }
func IsAlreadyConnected(err error) bool     { return as[AlreadyConnectedError](err) }
func IsSessionActive(err error) bool        { return as[AlreadySessionActiveError](err) }

// IsExportFailed checks for an export failure. These never end a session.
func IsExportFailed(err error) bool { return as[ExportFailedError](err) }

// IsTransport checks for a socket failure. These always end a session.
func IsTransport(err error) bool { return as[TransportError](err) }

// IsTimeout checks if an error indicates a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	var exportErr *ExportFailedError
	if errors.As(err, &exportErr) && exportErr.TimedOut {
		return true
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsInternal checks if an error is an internal error.
func IsInternal(err error) bool {
	return as[InternalError](err) || errors.Is(err, ErrInternal)
}

// ShouldRetry reports whether the next cycle may succeed where this one failed.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if IsTimeout(err) || IsExportFailed(err) {
		return true
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return IsRecoverable(customErr.Code())
	}

	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	if err == nil {
		return CodeOK
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Code()
	}

	switch {
	case IsNotFound(err):
		return CodeNotFound
	case IsNotConnected(err):
		return CodeNotConnected
	case IsValidation(err):
		return CodeValidation
	case IsTimeout(err):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// GetErrorMessage extracts a human-readable message from an error.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Message()
	}

	return err.Error()
}

// Cause follows single-error Unwrap links down to the root.
func Cause(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	return err
}
