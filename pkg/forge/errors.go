package forge

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies forge API failures for retry and containment decisions.
type Kind int8

const (
	// KindOther is the default for unclassified failures.
	KindOther Kind = iota
	// KindNotFound represents 404 responses.
	KindNotFound
	// KindAuth represents 401/403 authorization failures.
	KindAuth
	// KindRateLimited represents rate-limit exhaustion; ResetAt carries the
	// reported reset time.
	KindRateLimited
	// KindTransient represents retryable server-side failures (5xx, network).
	KindTransient
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindOther:
		return "other"
	default:
		return "invalid"
	}
}

// Error is the typed error returned by all forge operations.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	ResetAt    time.Time // Only set for KindRateLimited.
}

func (e *Error) Error() string {
	if e.Kind == KindRateLimited && !e.ResetAt.IsZero() {
		return fmt.Sprintf("forge: %s (status %d): %s (resets %s)",
			e.Kind, e.StatusCode, e.Message, e.ResetAt.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("forge: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// NewError creates a typed forge error.
func NewError(kind Kind, statusCode int, message string) *Error {
	return &Error{Kind: kind, StatusCode: statusCode, Message: message}
}

// IsKind reports whether err is a forge error of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// RateLimitReset extracts the reset time from a rate-limited error, if any.
func RateLimitReset(err error) (time.Time, bool) {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindRateLimited {
		return fe.ResetAt, true
	}
	return time.Time{}, false
}
