package serrors

import (
	"errors"
	"fmt"
)

// Error codes for the sync and repository layers. Row- and source-level
// codes are folded into run counters; only CONFIGURATION_ERROR propagates
// as a failed call.
const (
	CodeConfiguration       = "CONFIGURATION_ERROR"
	CodeSourceUnavailable   = "SOURCE_UNAVAILABLE"
	CodeValidation          = "VALIDATION_ERROR"
	CodeConflict            = "CONFLICT_ERROR"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeNotFound            = "NOT_FOUND"
)

type BaseError struct {
	Code    string
	Message string
}

func NewError(code, message string) *BaseError {
	return &BaseError{Code: code, Message: message}
}

func (e *BaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is makes two BaseErrors equal when both code and message match.
// Distinct sentinels may share a code; comparing the code alone would
// conflate them under errors.Is.
func (e *BaseError) Is(target error) bool {
	var be *BaseError
	if !errors.As(target, &be) {
		return false
	}
	return e.Code == be.Code && e.Message == be.Message
}

func NewConfigurationError(format string, args ...any) *BaseError {
	return NewError(CodeConfiguration, fmt.Sprintf(format, args...))
}

func NewValidationError(format string, args ...any) *BaseError {
	return NewError(CodeValidation, fmt.Sprintf(format, args...))
}

func NewConstraintViolation(format string, args ...any) *BaseError {
	return NewError(CodeConstraintViolation, fmt.Sprintf(format, args...))
}

// Code extracts the structured code from err, or "" when err carries none.
func Code(err error) string {
	var be *BaseError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func HasCode(err error, code string) bool {
	return Code(err) == code
}
