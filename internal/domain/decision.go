package domain

import (
	"fmt"
	"strings"
)

// DecisionAction is what an operator does with a pending request.
type DecisionAction string

const (
	DecisionApprove DecisionAction = "approve"
	DecisionReject  DecisionAction = "reject"
)

// ParseDecisionAction normalizes raw input into a DecisionAction.
func ParseDecisionAction(raw string) (DecisionAction, error) {
	switch DecisionAction(strings.ToLower(strings.TrimSpace(raw))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	}
	return "", fmt.Errorf("invalid action %q", raw)
}

// TargetStatus returns the status the action moves a pending request to.
func (a DecisionAction) TargetStatus() RequestStatus {
	if a == DecisionApprove {
		return RequestStatusApproved
	}
	return RequestStatusRejected
}
