package router

import (
	"errors"
	"net/http"

	"github.com/minutemate/minutemate/engine/core"
)

// Error codes
const (
	ErrInternalCode           = "INTERNAL_ERROR"
	ErrBadRequestCode         = "BAD_REQUEST"
	ErrNotFoundCode           = "NOT_FOUND"
	ErrConflictCode           = "CONFLICT"
	ErrPayloadTooLargeCode    = "PAYLOAD_TOO_LARGE"
	ErrServiceUnavailableCode = "SERVICE_UNAVAILABLE"
	ErrBadGatewayCode         = "BAD_GATEWAY"
	ErrTooManyRequestsCode    = "TOO_MANY_REQUESTS"
)

// Error messages
const (
	ErrMsgAppStateNotInitialized = "application state not initialized"
)

// RequestError represents errors that can occur during request handling
type RequestError struct {
	Code       string
	Reason     string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Reason
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a new RequestError. The code defaults to the
// one matching the status.
func NewRequestError(statusCode int, reason string, err error) *RequestError {
	return &RequestError{
		Code:       codeForStatus(statusCode),
		StatusCode: statusCode,
		Reason:     reason,
		Err:        err,
	}
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// GetErrorInfo extracts error information for the standardized response
func (e *RequestError) GetErrorInfo() *ErrorInfo {
	var details string
	if e.Err != nil {
		details = e.Err.Error()
	}
	return &ErrorInfo{
		Code:    e.Code,
		Message: e.Reason,
		Details: details,
	}
}

// FromDomainError maps a pipeline error onto an HTTP status, keeping the
// domain code when the error carries one.
func FromDomainError(reason string, err error) *RequestError {
	status := http.StatusInternalServerError
	switch core.CodeOf(err, "") {
	case core.ErrCodeInvalidSubmission:
		status = http.StatusBadRequest
	case core.ErrCodeRoutingFailure, core.ErrCodeTrackerUnavailable, core.ErrCodeNotificationFailure:
		status = http.StatusBadGateway
	case core.ErrCodeDirectoryUnavailable, core.ErrCodeIndexUnavailable:
		status = http.StatusServiceUnavailable
	}
	if errors.Is(err, core.ErrInvalidSubmission) {
		status = http.StatusBadRequest
	}
	reqErr := NewRequestError(status, reason, err)
	reqErr.Code = core.CodeOf(err, reqErr.Code)
	return reqErr
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrBadRequestCode
	case http.StatusNotFound:
		return ErrNotFoundCode
	case http.StatusConflict:
		return ErrConflictCode
	case http.StatusRequestEntityTooLarge:
		return ErrPayloadTooLargeCode
	case http.StatusTooManyRequests:
		return ErrTooManyRequestsCode
	case http.StatusServiceUnavailable:
		return ErrServiceUnavailableCode
	case http.StatusBadGateway:
		return ErrBadGatewayCode
	default:
		return ErrInternalCode
	}
}
