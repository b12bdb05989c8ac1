package core

import "errors"

// Error codes for domain errors sent to clients.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeRateLimited  = "rate_limited"
)

var (
	// ErrUnauthorized means the presented session token resolved to no identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the identity may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput means the command payload was rejected, e.g. an empty body.
	ErrInvalidInput = errors.New("invalid input")
	// ErrHubClosed is returned once the hub has stopped.
	ErrHubClosed = errors.New("hub closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
