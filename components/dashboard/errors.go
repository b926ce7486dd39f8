package dashboard

import (
	"errors"
	"fmt"
)

var (
	errMissingBackend   = errors.New("dashboard: backend not configured")
	errProcessorClosed  = errors.New("dashboard: processor closed")
	errProcessorStopped = errors.New("dashboard: processor not started")
	errNilCommand       = errors.New("dashboard: command is nil")
	errNoDashboard      = errors.New("dashboard: no dashboard loaded")
	errNilQuery         = errors.New("dashboard: query is nil")
)

// ErrorKind classifies command failures.
type ErrorKind string

const (
	// UserError marks invalid arguments: bad indexes, unknown ids, no-op requests.
	UserError ErrorKind = "USER_ERROR"
	// InternalError marks unexpected failures, including backend errors and panics.
	InternalError ErrorKind = "INTERNAL_ERROR"
)

// CommandError is the failure a handler reports. It is delivered to callers
// through a CommandFailed event.
type CommandError struct {
	Kind    ErrorKind      `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *CommandError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches structured details.
func (e *CommandError) WithDetails(details map[string]any) *CommandError {
	e.Details = details
	return e
}

// NewUserError builds a USER_ERROR.
func NewUserError(format string, args ...any) *CommandError {
	return &CommandError{Kind: UserError, Message: fmt.Sprintf(format, args...)}
}

// NewInternalError builds an INTERNAL_ERROR wrapping cause.
func NewInternalError(cause error, format string, args ...any) *CommandError {
	return &CommandError{Kind: InternalError, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// AsCommandError classifies any error. Command errors pass through unchanged,
// everything else becomes an INTERNAL_ERROR carrying the original as cause.
func AsCommandError(err error) *CommandError {
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return &CommandError{
			Kind:    InternalError,
			Message: backendErr.Error(),
			Details: map[string]any{"backendErrorKind": string(backendErr.Kind)},
			Cause:   err,
		}
	}
	return &CommandError{Kind: InternalError, Message: err.Error(), Cause: err}
}

// BackendErrorKind is the closed taxonomy of backend failures.
type BackendErrorKind string

const (
	BackendNoData             BackendErrorKind = "no-data"
	BackendDataTooLarge       BackendErrorKind = "data-too-large"
	BackendProtectedData      BackendErrorKind = "protected-data"
	BackendUnexpectedResponse BackendErrorKind = "unexpected-response"
	BackendUnexpected         BackendErrorKind = "unexpected"
	BackendNotSupported       BackendErrorKind = "not-supported"
	BackendNotImplemented     BackendErrorKind = "not-implemented"
	BackendNotAuthenticated   BackendErrorKind = "not-authenticated"
)

// BackendError is returned by backend collaborators.
type BackendError struct {
	Kind    BackendErrorKind `json:"kind"`
	Message string           `json:"message"`
	Cause   error            `json:"-"`
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("backend %s: %s", e.Kind, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// NewBackendError builds a backend error of the given kind.
func NewBackendError(kind BackendErrorKind, cause error, format string, args ...any) *BackendError {
	return &BackendError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// BackendErrorKindOf returns the backend kind found in err's chain.
func BackendErrorKindOf(err error) (BackendErrorKind, bool) {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Kind, true
	}
	return "", false
}
