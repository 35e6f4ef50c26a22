package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for client operations
var (
	// ErrUnauthorized is a raw 401 from the service. The gateway turns it into
	// ErrAuthExpired or ErrAuthRejected before it reaches callers.
	ErrUnauthorized = errors.New("credential is invalid or expired")

	// ErrAuthExpired means refreshing the session failed; the session was
	// cleared and the user must authenticate again
	ErrAuthExpired = errors.New("session expired, please log in again")

	// ErrAuthRejected means the retried call was still unauthorized
	ErrAuthRejected = errors.New("request rejected after token refresh")

	// ErrNetwork indicates the service is unreachable or the call timed out
	ErrNetwork = errors.New("contact service is unreachable")

	// ErrValidation indicates the service or the client rejected a request body
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = errors.New("not found")

	// ErrServer indicates an unexpected response from the service
	ErrServer = errors.New("unexpected response from contact service")

	// ErrImportParseSkip marks a card block that could not be used
	ErrImportParseSkip = errors.New("card skipped")

	// ErrImportDedupSkip marks a card matching an existing contact
	ErrImportDedupSkip = errors.New("duplicate contact skipped")

	// ErrImportCreate marks a card whose create call failed
	ErrImportCreate = errors.New("contact create failed")
)

// ValidationError carries the field-level reason for a rejected request
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Kind is the outcome class of an error
type Kind string

const (
	KindNone         Kind = ""
	KindAuthExpired  Kind = "auth_expired"
	KindAuthRejected Kind = "auth_rejected"
	KindNetwork      Kind = "network"
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindParseSkip    Kind = "parse_skip"
	KindDedupSkip    Kind = "dedup_skip"
	KindCreate       Kind = "create_failure"
	KindUnknown      Kind = "unknown"
)

// Classify maps an error to its outcome kind. Only sentinels and wrapped
// context errors are consulted, never message text.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrAuthExpired):
		return KindAuthExpired
	// a raw 401 that escaped the gateway is reported as a rejection
	case errors.Is(err, ErrAuthRejected), errors.Is(err, ErrUnauthorized):
		return KindAuthRejected
	case errors.Is(err, ErrNetwork),
		errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrImportParseSkip):
		return KindParseSkip
	case errors.Is(err, ErrImportDedupSkip):
		return KindDedupSkip
	case errors.Is(err, ErrImportCreate):
		return KindCreate
	default:
		return KindUnknown
	}
}

// ValidateName rejects blank contact names before they reach the service
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	return nil
}
