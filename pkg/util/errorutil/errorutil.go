package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced to API clients.
const (
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeThrottleExceeded  = "THROTTLE_EXCEEDED"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeStorageFailure    = "STORAGE_FAILURE"
	CodeTimeout           = "TIMEOUT"
	CodeTooManyAttempts   = "TOO_MANY_ATTEMPTS"
	CodeUnavailable       = "SERVICE_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewThrottleExceeded reports that an identity already has the maximum number of pending requests.
func NewThrottleExceeded(details map[string]any, err error) error {
	return &DomainError{
		Code:       CodeThrottleExceeded,
		Message:    "maximum number of pending requests reached",
		HTTPStatus: http.StatusTooManyRequests,
		Details:    details,
		Err:        err,
	}
}

// NewInvalidTransition reports a decision on an unknown or already decided request.
func NewInvalidTransition(details map[string]any, err error) error {
	return &DomainError{
		Code:       CodeInvalidTransition,
		Message:    "request is not pending",
		HTTPStatus: http.StatusConflict,
		Details:    details,
		Err:        err,
	}
}

// NewStorageFailure reports a transient infrastructure fault; callers may retry.
func NewStorageFailure(err error) error {
	return &DomainError{
		Code:       CodeStorageFailure,
		Message:    "storage temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewTimeout reports that a wait ended before the watched condition held.
func NewTimeout(message string, details map[string]any) error {
	return NewDomainError(CodeTimeout, message, http.StatusRequestTimeout, details)
}

func NewTooManyAttempts(message string) error {
	return NewDomainError(CodeTooManyAttempts, message, http.StatusTooManyRequests, nil)
}

func NewUnavailable(message string) error {
	return NewDomainError(CodeUnavailable, message, http.StatusServiceUnavailable, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &DomainError{
			Code:       strings.ToUpper(strings.ReplaceAll(http.StatusText(fiberErr.Code), " ", "_")),
			Message:    fiberErr.Message,
			HTTPStatus: fiberErr.Code,
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
