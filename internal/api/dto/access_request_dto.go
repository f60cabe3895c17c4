package dto

import (
	"time"

	"github.com/accessgate/access-gate/internal/domain"
)

// SubmitAccessRequest payload. Either name may be blank.
type SubmitAccessRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SubmitAccessResponse is returned after admission.
type SubmitAccessResponse struct {
	ID               string    `json:"id"`
	VerificationCode string    `json:"verification_code"`
	Status           string    `json:"status"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// StatusResponse reports where a request is in its lifecycle.
type StatusResponse struct {
	ID       string               `json:"id"`
	Status   domain.RequestStatus `json:"status"`
	Decided  bool                 `json:"decided"`
	Approved bool                 `json:"approved"`
}

// DecisionRequest payload for operator decisions.
type DecisionRequest struct {
	Action string `json:"action"`
}

// AccessRequestResponse is the operator's view of a request.
type AccessRequestResponse struct {
	ID               string               `json:"id"`
	FirstName        string               `json:"first_name"`
	LastName         string               `json:"last_name"`
	VerificationCode string               `json:"verification_code"`
	Status           domain.RequestStatus `json:"status"`
	SubmittedAt      time.Time            `json:"submitted_at"`
	DecidedAt        *time.Time           `json:"decided_at,omitempty"`
	DecidedBy        *string              `json:"decided_by,omitempty"`
}

// NewStatusResponse builds a StatusResponse.
func NewStatusResponse(id string, status domain.RequestStatus) StatusResponse {
	return StatusResponse{
		ID:       id,
		Status:   status,
		Decided:  status.IsTerminal(),
		Approved: status == domain.RequestStatusApproved,
	}
}

// NewAccessRequestResponse maps the domain record.
func NewAccessRequestResponse(req *domain.AccessRequest) AccessRequestResponse {
	return AccessRequestResponse{
		ID:               req.ID,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		VerificationCode: req.VerificationCode,
		Status:           req.Status,
		SubmittedAt:      req.SubmittedAt,
		DecidedAt:        req.DecidedAt,
		DecidedBy:        req.DecidedBy,
	}
}
