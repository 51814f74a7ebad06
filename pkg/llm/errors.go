package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies LLM API failures for retry decisions.
type ErrorType int8

const (
	// ErrorTypeRateLimit represents rate limiting (429, quota exceeded). Retryable.
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient failures (5xx, EOF, timeout). Retryable.
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents HTTP 200 with no content. Retryable.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth represents authentication failures (401/403). Not retryable.
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents malformed requests. Not retryable.
	ErrorTypeBadPrompt
	// ErrorTypeUnknown is the default for unclassified errors. Not retryable.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Retryable reports whether errors of this type should be retried.
func (et ErrorType) Retryable() bool {
	switch et {
	case ErrorTypeRateLimit, ErrorTypeTransient, ErrorTypeEmptyResponse:
		return true
	default:
		return false
	}
}

// Error is a classified LLM failure.
type Error struct {
	Type    ErrorType
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm: %s: %s", e.Type, e.Message)
}

// NewError creates a classified LLM error.
func NewError(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// IsRetryable reports whether err is a retryable LLM error.
func IsRetryable(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Type.Retryable()
	}
	return false
}

// classifyMessage maps a raw provider error message onto an ErrorType using
// the markers the SDKs put in their error strings.
func classifyMessage(message string) ErrorType {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "429"), strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "quota"), strings.Contains(lower, "overloaded"):
		return ErrorTypeRateLimit
	case strings.Contains(lower, "401"), strings.Contains(lower, "403"),
		strings.Contains(lower, "api key"), strings.Contains(lower, "authentication"):
		return ErrorTypeAuth
	case strings.Contains(lower, "500"), strings.Contains(lower, "502"),
		strings.Contains(lower, "503"), strings.Contains(lower, "504"),
		strings.Contains(lower, "timeout"), strings.Contains(lower, "eof"),
		strings.Contains(lower, "connection reset"):
		return ErrorTypeTransient
	case strings.Contains(lower, "400"), strings.Contains(lower, "too long"),
		strings.Contains(lower, "invalid request"):
		return ErrorTypeBadPrompt
	default:
		return ErrorTypeUnknown
	}
}
