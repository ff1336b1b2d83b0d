package errors

// Error codes for categorizing errors.
// The gateway maps these onto HTTP status codes.
const (
	// CodeOK indicates success (not an error).
	CodeOK = "OK"

	// CodeInternal indicates internal errors.
	CodeInternal = "INTERNAL"

	// CodeValidation indicates input or configuration validation failed.
	CodeValidation = "VALIDATION_ERROR"

	// CodeNotFound indicates a resource (usually a discovered device) was not found.
	CodeNotFound = "NOT_FOUND"

	// CodeTimeout indicates an operation timed out.
	CodeTimeout = "TIMEOUT"

	// Domain-specific error codes

	// CodeDiscoveryUnavailable indicates the service discovery backend cannot be used.
	CodeDiscoveryUnavailable = "DISCOVERY_UNAVAILABLE"

	// CodeAlreadyRunning indicates discovery is already active.
	CodeAlreadyRunning = "ALREADY_RUNNING"

	// CodeConnectFailed indicates the TCP connection to a peer could not be established.
	CodeConnectFailed = "CONNECT_FAILED"

	// CodeAlreadyConnected indicates a connection already occupies the single slot.
	CodeAlreadyConnected = "ALREADY_CONNECTED"

	// CodeNotConnected indicates an operation needs a live connection.
	CodeNotConnected = "NOT_CONNECTED"

	// CodeSessionActive indicates a stream session is already bound to the connection.
	CodeSessionActive = "SESSION_ACTIVE"

	// CodeExportFailed indicates the host exporter failed, timed out or produced nothing.
	CodeExportFailed = "EXPORT_FAILED"

	// CodeTransport indicates a send/receive failure on the stream socket.
	CodeTransport = "TRANSPORT_ERROR"
)

// ErrorCategory represents a high-level error category.
type ErrorCategory string

const (
	// CategoryClient indicates the caller asked for something the current state forbids.
	CategoryClient ErrorCategory = "CLIENT_ERROR"

	// CategoryServer indicates an internal failure.
	CategoryServer ErrorCategory = "SERVER_ERROR"

	// CategoryNetwork indicates a network-related error.
	CategoryNetwork ErrorCategory = "NETWORK_ERROR"

	// CategoryTimeout indicates a timeout error.
	CategoryTimeout ErrorCategory = "TIMEOUT_ERROR"
)

// GetCategory returns the category for an error code.
func GetCategory(code string) ErrorCategory {
	switch code {
	case CodeValidation, CodeNotFound, CodeAlreadyRunning,
		CodeAlreadyConnected, CodeNotConnected, CodeSessionActive:
		return CategoryClient

	case CodeTimeout:
		return CategoryTimeout

	case CodeConnectFailed, CodeTransport, CodeDiscoveryUnavailable:
		return CategoryNetwork

	default:
		return CategoryServer
	}
}

// IsRecoverable reports whether the streaming loop may continue after an
// error with the given code. Only export failures are recovered in-loop.
func IsRecoverable(code string) bool {
	switch code {
	case CodeExportFailed, CodeTimeout:
		return true
	default:
		return false
	}
}
