// Package errs defines the error kinds the service distinguishes at its
// HTTP boundary. Handlers map them to status codes with errors.As; batch
// pipelines wrap them into per-item error entries instead of failing whole
// requests.
package errs

import "fmt"

// UpstreamError reports that an external API or network call failed after
// retries. Surfaced as 502 to the caller.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown league, event or market reference.
// Surfaced as 404 to the caller.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ParseError reports that odds text could not be extracted from a source.
// Recorded per-source, never fatal to a batch.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a malformed request body. Surfaced as 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
