// Package apperrors provides a small typed-error wrapper used across the
// ingest pipeline so logs carry a consistent "type" field instead of bare
// error strings.
package apperrors

import "fmt"

// Type classifies the origin of an error for logging/metrics purposes.
type Type string

const (
	TypeValidation Type = "validation"
	TypeDatabase   Type = "database"
	TypeCache      Type = "cache"
	TypeBroker     Type = "broker"
	TypeParse      Type = "parse"
)

// AppError is a structured error carrying a Type, a human message, optional
// Details, and an optional wrapped Cause.
type AppError struct {
	Type    Type
	Message string
	Details string
	Cause   error
}

func New(t Type, message string) *AppError {
	return &AppError{Type: t, Message: message}
}

func Newf(t Type, format string, args ...interface{}) *AppError {
	return &AppError{Type: t, Message: fmt.Sprintf(format, args...)}
}

func Wrap(cause error, t Type, message string) *AppError {
	return &AppError{Type: t, Message: message, Cause: cause}
}

func Wrapf(cause error, t Type, format string, args ...interface{}) *AppError {
	return &AppError{Type: t, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}
