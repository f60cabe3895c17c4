package domain

import "time"

// RequestStatus enumerates lifecycle states for access requests.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// IsTerminal reports whether no further transition is possible.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	}
	return false
}

// AccessRequest is the aggregate for a requester asking to be let in.
type AccessRequest struct {
	ID               string
	FirstName        string
	LastName         string
	VerificationCode string
	Status           RequestStatus
	SubmittedAt      time.Time
	DecidedAt        *time.Time
	DecidedBy        *string
}
