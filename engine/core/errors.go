package core

import (
	"errors"
	"fmt"
)

// Error codes shared across the pipeline stages.
const (
	ErrCodeExtractionFailure    = "EXTRACTION_FAILURE"
	ErrCodeValidationDrop       = "VALIDATION_DROP"
	ErrCodeOwnerUnresolved      = "OWNER_UNRESOLVED"
	ErrCodeRouterInconsistency  = "ROUTER_INCONSISTENCY"
	ErrCodeRoutingFailure       = "ROUTING_FAILURE"
	ErrCodeNotificationFailure  = "NOTIFICATION_FAILURE"
	ErrCodePersistenceFailure   = "PERSISTENCE_FAILURE"
	ErrCodeInvalidSubmission    = "INVALID_SUBMISSION"
	ErrCodeCancelled            = "CANCELLED"
	ErrCodeIndexUnavailable     = "INDEX_UNAVAILABLE"
	ErrCodeTrackerUnavailable   = "TRACKER_UNAVAILABLE"
	ErrCodeDirectoryUnavailable = "DIRECTORY_UNAVAILABLE"
)

// Sentinel errors for the failure taxonomy. Stage errors wrap these.
var (
	ErrExtractionFailure   = errors.New("extraction failure")
	ErrValidationDrop      = errors.New("proposal dropped by validation")
	ErrOwnerUnresolved     = errors.New("owner unresolved")
	ErrRouterInconsistency = errors.New("router inconsistency: ticket created but index not updated")
	ErrNotificationFailure = errors.New("notification failure")
	ErrInvalidSubmission   = errors.New("invalid submission")
)

// Error carries a machine-readable code and details alongside the cause.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func NewError(err error, code string, details map[string]any) *Error {
	msg := code
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    code,
		Message: msg,
		Details: details,
		Err:     err,
	}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CodeOf returns the code of the first *Error in the chain, or fallback.
func CodeOf(err error, fallback string) string {
	var coreErr *Error
	if errors.As(err, &coreErr) && coreErr.Code != "" {
		return coreErr.Code
	}
	return fallback
}
