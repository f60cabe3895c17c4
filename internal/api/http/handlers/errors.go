package handlers

import (
	"context"
	"errors"

	"github.com/accessgate/access-gate/internal/service"
	apperrors "github.com/accessgate/access-gate/pkg/util/errorutil"
)

// mapServiceError translates service failures into API errors.
func mapServiceError(err error) error {
	var admissionErr *service.AdmissionError
	var approvalErr *service.ApprovalError

	switch {
	case errors.Is(err, service.ErrThrottleExceeded):
		details := map[string]any{}
		if errors.As(err, &admissionErr) {
			details["first_name"] = admissionErr.FirstName
			details["last_name"] = admissionErr.LastName
		}
		return apperrors.NewThrottleExceeded(details, err)
	case errors.Is(err, service.ErrInvalidTransition):
		details := map[string]any{}
		if errors.As(err, &approvalErr) {
			details["id"] = approvalErr.RequestID
			details["action"] = string(approvalErr.Action)
		}
		return apperrors.NewInvalidTransition(details, err)
	case errors.Is(err, service.ErrInvalidAction):
		return apperrors.NewValidationError("invalid action", map[string]any{"allowed": []string{"approve", "reject"}})
	case errors.Is(err, service.ErrRequestNotFound):
		return apperrors.NewNotFound("access request", nil)
	case errors.Is(err, service.ErrTooManyAttempts):
		return apperrors.NewTooManyAttempts("too many login attempts, try again later")
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorized("invalid credentials")
	case errors.Is(err, service.ErrStorageFailure):
		return apperrors.NewStorageFailure(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeout("request timed out", nil)
	default:
		return apperrors.MapError(err)
	}
}
