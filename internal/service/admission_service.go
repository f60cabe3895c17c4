package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/accessgate/access-gate/internal/config"
	"github.com/accessgate/access-gate/internal/domain"
	"github.com/accessgate/access-gate/internal/events"
	"github.com/accessgate/access-gate/internal/observability"
	"github.com/accessgate/access-gate/internal/repository"
)

const defaultMaxPendingPerIdentity = 3

// AdmissionService admits new access requests subject to the per-identity
// pending throttle.
type AdmissionService struct {
	requests     repository.AccessRequestRepository
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	metrics      *observability.Metrics
	generateCode CodeGenerator
	now          func() time.Time
	maxPending   int
	placeholder  [2]string
	locks        *identityLocks
}

// AdmissionDependencies bundles collaborators for the admission service.
type AdmissionDependencies struct {
	Requests     repository.AccessRequestRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	GenerateCode CodeGenerator
	Now          func() time.Time
}

// AdmissionResult is what the requester receives after a successful submit.
type AdmissionResult struct {
	ID               string
	VerificationCode string
	SubmittedAt      time.Time
}

// NewAdmissionService constructs the service.
func NewAdmissionService(cfg config.AdmissionConfig, deps AdmissionDependencies) *AdmissionService {
	s := &AdmissionService{
		requests:     deps.Requests,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		generateCode: deps.GenerateCode,
		now:          deps.Now,
		maxPending:   cfg.MaxPendingPerIdentity,
		placeholder:  [2]string{cfg.PlaceholderFirstName, cfg.PlaceholderLastName},
		locks:        newIdentityLocks(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.generateCode == nil {
		s.generateCode = GenerateVerificationCode
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.maxPending <= 0 {
		s.maxPending = defaultMaxPendingPerIdentity
	}
	return s
}

// Submit admits a request for (firstName, lastName). Blank names are replaced
// with the configured placeholder identity rather than rejected.
func (s *AdmissionService) Submit(ctx context.Context, firstName, lastName string) (*AdmissionResult, error) {
	first, last := s.ResolveIdentity(firstName, lastName)

	unlock := s.locks.lock(identityKey(first, last))
	defer unlock()

	pending, err := s.requests.CountPending(ctx, first, last)
	if err != nil {
		s.metrics.RecordAdmission("storage_failure")
		s.logger.Error("count pending requests failed",
			zap.String("first_name", first), zap.String("last_name", last), zap.Error(err))
		return nil, &AdmissionError{FirstName: first, LastName: last, Err: storageFailure(err)}
	}
	if pending >= s.maxPending {
		s.metrics.RecordAdmission("throttled")
		s.logger.Info("access request throttled",
			zap.String("first_name", first), zap.String("last_name", last), zap.Int("pending", pending))
		return nil, &AdmissionError{FirstName: first, LastName: last, Err: ErrThrottleExceeded}
	}

	req := &domain.AccessRequest{
		FirstName:        first,
		LastName:         last,
		VerificationCode: s.generateCode(),
		Status:           domain.RequestStatusPending,
		SubmittedAt:      s.now(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		s.metrics.RecordAdmission("storage_failure")
		s.logger.Error("insert access request failed",
			zap.String("first_name", first), zap.String("last_name", last), zap.Error(err))
		return nil, &AdmissionError{FirstName: first, LastName: last, Err: storageFailure(err)}
	}

	s.metrics.RecordAdmission("admitted")
	s.logger.Info("access request submitted",
		zap.String("request_id", req.ID), zap.Int("pending_before", pending))

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventAccessRequestSubmitted,
		RequestID: req.ID,
		Payload: events.AccessRequestSubmittedPayload{
			FirstName:        req.FirstName,
			LastName:         req.LastName,
			VerificationCode: req.VerificationCode,
		},
	})

	return &AdmissionResult{
		ID:               req.ID,
		VerificationCode: req.VerificationCode,
		SubmittedAt:      req.SubmittedAt,
	}, nil
}

// ResolveIdentity applies the placeholder identity policy.
func (s *AdmissionService) ResolveIdentity(firstName, lastName string) (string, string) {
	first := strings.TrimSpace(firstName)
	last := strings.TrimSpace(lastName)
	if first == "" {
		first = s.placeholder[0]
	}
	if last == "" {
		last = s.placeholder[1]
	}
	return first, last
}
