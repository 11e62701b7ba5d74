package lifecycle

import "fmt"

type ErrorCode string

const (
	ErrCodeEphemeralProvision ErrorCode = "ephemeral_provision"
	ErrCodeDatabaseConnect    ErrorCode = "database_connect"
	ErrCodeListener           ErrorCode = "listener"
	ErrCodeOrdering           ErrorCode = "ordering"
	ErrCodeUnhandled          ErrorCode = "unhandled"
)

// LifecycleError is returned by the orchestrator's startup operations
type LifecycleError struct {
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *LifecycleError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *LifecycleError) Code() ErrorCode { return e.code }
func (e *LifecycleError) Unwrap() error   { return e.wrapped }

func newError(code ErrorCode, msg string) error {
	return &LifecycleError{code: code, message: msg}
}

func wrapError(code ErrorCode, err error, msg string) error {
	return &LifecycleError{code: code, message: msg, wrapped: err}
}
