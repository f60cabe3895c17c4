// Package memory holds an in-process AccessRequestRepository used by tests
// and by STORE_DRIVER=memory for local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/accessgate/access-gate/internal/domain"
	"github.com/accessgate/access-gate/internal/repository"
)

// AccessRequestStore keeps records in a map guarded by a single mutex, which
// makes UpdateStatus a true compare-and-set.
type AccessRequestStore struct {
	mu      sync.RWMutex
	records map[string]domain.AccessRequest
	now     func() time.Time
}

// Option customizes the store.
type Option func(*AccessRequestStore)

// WithClock overrides the time source used for SubmittedAt and DecidedAt.
func WithClock(now func() time.Time) Option {
	return func(s *AccessRequestStore) { s.now = now }
}

func NewAccessRequestStore(opts ...Option) *AccessRequestStore {
	s := &AccessRequestStore{
		records: make(map[string]domain.AccessRequest),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repository.AccessRequestRepository = (*AccessRequestStore)(nil)

func (s *AccessRequestStore) CountPending(_ context.Context, firstName, lastName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.records {
		if rec.FirstName == firstName && rec.LastName == lastName && rec.Status == domain.RequestStatusPending {
			count++
		}
	}
	return count, nil
}

func (s *AccessRequestStore) Create(_ context.Context, req *domain.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = s.now()
	}
	s.records[req.ID] = cloneRequest(*req)
	return nil
}

func (s *AccessRequestStore) GetByID(_ context.Context, id string) (*domain.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneRequest(rec)
	return &out, nil
}

func (s *AccessRequestStore) GetByCode(_ context.Context, code string) (*domain.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.AccessRequest
	for _, rec := range s.records {
		if rec.VerificationCode != code {
			continue
		}
		if latest == nil || rec.SubmittedAt.After(latest.SubmittedAt) {
			r := rec
			latest = &r
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	out := cloneRequest(*latest)
	return &out, nil
}

func (s *AccessRequestStore) UpdateStatus(_ context.Context, id string, expected, next domain.RequestStatus, decidedBy *string) (*domain.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if rec.Status != expected {
		return nil, repository.ErrStatusConflict
	}
	now := s.now()
	rec.Status = next
	rec.DecidedAt = &now
	if decidedBy != nil {
		by := *decidedBy
		rec.DecidedBy = &by
	}
	s.records[id] = rec
	out := cloneRequest(rec)
	return &out, nil
}

func (s *AccessRequestStore) ListByStatus(_ context.Context, status domain.RequestStatus) ([]domain.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.AccessRequest{}
	for _, rec := range s.records {
		if rec.Status == status {
			out = append(out, cloneRequest(rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

// Len returns the number of stored records. Test-only helper.
func (s *AccessRequestStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneRequest(rec domain.AccessRequest) domain.AccessRequest {
	if rec.DecidedAt != nil {
		t := *rec.DecidedAt
		rec.DecidedAt = &t
	}
	if rec.DecidedBy != nil {
		by := *rec.DecidedBy
		rec.DecidedBy = &by
	}
	return rec
}
