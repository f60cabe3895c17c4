package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/accessgate/access-gate/internal/domain"
	"github.com/accessgate/access-gate/internal/events"
	"github.com/accessgate/access-gate/internal/observability"
	"github.com/accessgate/access-gate/internal/repository"
)

// ApprovalService applies operator decisions to pending requests. The store's
// compare-and-set is the only guard against concurrent decisions on one id.
type ApprovalService struct {
	requests   repository.AccessRequestRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// ApprovalDependencies bundles collaborators for the approval service.
type ApprovalDependencies struct {
	Requests   repository.AccessRequestRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewApprovalService constructs the service.
func NewApprovalService(deps ApprovalDependencies) *ApprovalService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		requests:   deps.Requests,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// Decide moves a pending request to approved or rejected. Deciding an unknown
// or already decided request fails with ErrInvalidTransition, including a
// repeat of the decision that was already applied.
func (s *ApprovalService) Decide(ctx context.Context, id string, action domain.DecisionAction, operator string) (*domain.AccessRequest, error) {
	if action != domain.DecisionApprove && action != domain.DecisionReject {
		return nil, &ApprovalError{RequestID: id, Action: action, Err: ErrInvalidAction}
	}

	var decidedBy *string
	if operator != "" {
		decidedBy = &operator
	}

	next := action.TargetStatus()
	updated, err := s.requests.UpdateStatus(ctx, id, domain.RequestStatusPending, next, decidedBy)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrStatusConflict) {
			s.metrics.RecordDecision(string(action), "invalid_transition")
			s.logger.Info("decision rejected",
				zap.String("request_id", id), zap.String("action", string(action)), zap.Error(err))
			return nil, &ApprovalError{RequestID: id, Action: action, Err: errors.Join(ErrInvalidTransition, err)}
		}
		s.metrics.RecordDecision(string(action), "storage_failure")
		s.logger.Error("update status failed",
			zap.String("request_id", id), zap.String("action", string(action)), zap.Error(err))
		return nil, &ApprovalError{RequestID: id, Action: action, Err: storageFailure(err)}
	}

	s.metrics.RecordDecision(string(action), "ok")
	s.logger.Info("access request decided",
		zap.String("request_id", id),
		zap.String("status", string(updated.Status)),
		zap.String("operator", operator))

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventAccessRequestDecided,
		RequestID: updated.ID,
		Actor:     operatorActor(decidedBy),
		Payload: events.AccessRequestDecidedPayload{
			OldStatus:        domain.RequestStatusPending,
			NewStatus:        updated.Status,
			VerificationCode: updated.VerificationCode,
		},
	})
	return updated, nil
}
