package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Sentinels for callers that only care about the category.
var (
	ErrNotFound     = errors.New("not found")
	ErrNotConnected = errors.New("not connected")
	ErrTimeout      = errors.New("operation timeout")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// Error is implemented by every typed error in this package.
type Error interface {
	error
	Code() string
	Message() string
	Unwrap() error
}

// BaseError carries the code, message, cause and the call site that
// created it. Domain errors embed it.
type BaseError struct {
	code    string
	message string
	cause   error
	pcs     []uintptr
}

func (e *BaseError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *BaseError) Code() string    { return e.code }
func (e *BaseError) Message() string { return e.message }
func (e *BaseError) Unwrap() error   { return e.cause }

const maxStackDepth = 32

// callers records the stack above the constructor that called it.
func callers(skip int) []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	return pcs[:runtime.Callers(skip+2, pcs)]
}

// StackTrace renders the creation stack, runtime frames omitted.
func (e *BaseError) StackTrace() string {
	var buf strings.Builder
	frames := runtime.CallersFrames(e.pcs)
	for more := len(e.pcs) > 0; more; {
		var frame runtime.Frame
		frame, more = frames.Next()
		if strings.Contains(frame.File, "runtime/") {
			continue
		}
		fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
	}
	return buf.String()
}

func newBase(code, message string, cause error) *BaseError {
	return &BaseError{code: code, message: message, cause: cause, pcs: callers(2)}
}

// ValidationError represents an input validation error.
type ValidationError struct {
	*BaseError
	Field string
	Value any
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string, value any) *ValidationError {
	return &ValidationError{
		BaseError: newBase(CodeValidation, message, nil),
		Field:     field,
		Value:     value,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.message)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	*BaseError
	Resource string
	ID       string
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{
		BaseError: newBase(CodeNotFound, fmt.Sprintf("%s not found", resource), ErrNotFound),
		Resource:  resource,
		ID:        id,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// NotConnectedError is returned by operations that need the stream socket.
type NotConnectedError struct {
	*BaseError
	Operation string
}

// NewNotConnectedError creates a new not connected error.
func NewNotConnectedError(operation string) *NotConnectedError {
	return &NotConnectedError{
		BaseError: newBase(CodeNotConnected, "not connected to a device", ErrNotConnected),
		Operation: operation,
	}
}

// Error implements the error interface.
func (e *NotConnectedError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: not connected to a device", e.Operation)
	}
	return "not connected to a device"
}

// DiscoveryUnavailableError indicates the discovery backend could not be created.
type DiscoveryUnavailableError struct {
	*BaseError
	Backend string
}

// NewDiscoveryUnavailableError creates a new discovery unavailable error.
func NewDiscoveryUnavailableError(backend string, cause error) *DiscoveryUnavailableError {
	message := "service discovery unavailable"
	if backend != "" {
		message = fmt.Sprintf("service discovery unavailable (%s)", backend)
	}
	return &DiscoveryUnavailableError{
		BaseError: newBase(CodeDiscoveryUnavailable, message, cause),
		Backend:   backend,
	}
}

// AlreadyRunningError indicates a start was requested on something already running.
type AlreadyRunningError struct {
	*BaseError
	Resource string
}

// NewAlreadyRunningError creates a new already running error.
func NewAlreadyRunningError(resource string) *AlreadyRunningError {
	return &AlreadyRunningError{
		BaseError: newBase(CodeAlreadyRunning, fmt.Sprintf("%s already running", resource), nil),
		Resource:  resource,
	}
}

// ConnectError represents a failed dial: refused, unreachable or timed out.
type ConnectError struct {
	*BaseError
	Address string
}

// NewConnectError creates a new connect error.
func NewConnectError(address string, cause error) *ConnectError {
	return &ConnectError{
		BaseError: newBase(CodeConnectFailed, fmt.Sprintf("connect to %s failed", address), cause),
		Address:   address,
	}
}

// AlreadyConnectedError indicates the single connection slot is taken.
type AlreadyConnectedError struct {
	*BaseError
	Address string
}

// NewAlreadyConnectedError creates a new already connected error.
func NewAlreadyConnectedError(address string) *AlreadyConnectedError {
	message := "already connected"
	if address != "" {
		message = fmt.Sprintf("already connected to %s", address)
	}
	return &AlreadyConnectedError{
		BaseError: newBase(CodeAlreadyConnected, message, nil),
		Address:   address,
	}
}

// AlreadySessionActiveError indicates a stream session is already bound to the connection.
type AlreadySessionActiveError struct {
	*BaseError
	SessionID string
}

// NewAlreadySessionActiveError creates a new session active error.
func NewAlreadySessionActiveError(sessionID string) *AlreadySessionActiveError {
	return &AlreadySessionActiveError{
		BaseError: newBase(CodeSessionActive, fmt.Sprintf("stream session %s already active", sessionID), nil),
		SessionID: sessionID,
	}
}

// ExportFailedError represents a failed export cycle. It is never fatal to a session.
type ExportFailedError struct {
	*BaseError
	TimedOut bool
}

// NewExportFailedError creates a new export failure.
func NewExportFailedError(message string, cause error) *ExportFailedError {
	if message == "" {
		message = "export failed"
	}
	return &ExportFailedError{
		BaseError: newBase(CodeExportFailed, message, cause),
	}
}

// NewExportTimeoutError creates an export failure caused by the rendezvous timeout.
func NewExportTimeoutError(timeout string) *ExportFailedError {
	return &ExportFailedError{
		BaseError: newBase(CodeExportFailed, fmt.Sprintf("export timed out after %s", timeout), ErrTimeout),
		TimedOut:  true,
	}
}

// TransportError represents a socket failure while streaming, including peer resets.
type TransportError struct {
	*BaseError
	Operation string
}

// NewTransportError creates a new transport error.
func NewTransportError(operation string, cause error) *TransportError {
	return &TransportError{
		BaseError: newBase(CodeTransport, fmt.Sprintf("%s failed", operation), cause),
		Operation: operation,
	}
}

// InternalError represents an internal error.
type InternalError struct {
	*BaseError
	Operation string
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, cause error) *InternalError {
	if message == "" {
		message = "internal error"
	}
	return &InternalError{
		BaseError: newBase(CodeInternal, message, cause),
	}
}

// WithOperation sets the operation context.
func (e *InternalError) WithOperation(op string) *InternalError {
	e.Operation = op
	return e
}

// Wrap adds context to err. A typed error keeps its code so HTTP mapping
// and the Is* helpers still see it; anything else becomes an InternalError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	base := &BaseError{code: CodeInternal, message: message, cause: err, pcs: callers(1)}
	var typed Error
	if errors.As(err, &typed) {
		base.code = typed.Code()
		return base
	}
	return &InternalError{BaseError: base}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
