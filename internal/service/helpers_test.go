package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/accessgate/access-gate/internal/config"
	"github.com/accessgate/access-gate/internal/domain"
	"github.com/accessgate/access-gate/internal/repository/memory"
)

var errStoreDown = errors.New("connection refused")

// flakyStore wraps the memory store and fails selected calls.
type flakyStore struct {
	*memory.AccessRequestStore

	mu          sync.Mutex
	failCount   bool
	failCreate  bool
	failUpdate  bool
	failList    bool
	getFailures int
	getCalls    atomic.Int32
}

func newFlakyStore() *flakyStore {
	return &flakyStore{AccessRequestStore: memory.NewAccessRequestStore()}
}

func (s *flakyStore) CountPending(ctx context.Context, first, last string) (int, error) {
	s.mu.Lock()
	fail := s.failCount
	s.mu.Unlock()
	if fail {
		return 0, errStoreDown
	}
	return s.AccessRequestStore.CountPending(ctx, first, last)
}

func (s *flakyStore) Create(ctx context.Context, req *domain.AccessRequest) error {
	s.mu.Lock()
	fail := s.failCreate
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.AccessRequestStore.Create(ctx, req)
}

func (s *flakyStore) GetByID(ctx context.Context, id string) (*domain.AccessRequest, error) {
	s.getCalls.Add(1)
	s.mu.Lock()
	if s.getFailures > 0 {
		s.getFailures--
		s.mu.Unlock()
		return nil, errStoreDown
	}
	s.mu.Unlock()
	return s.AccessRequestStore.GetByID(ctx, id)
}

func (s *flakyStore) UpdateStatus(ctx context.Context, id string, expected, next domain.RequestStatus, by *string) (*domain.AccessRequest, error) {
	s.mu.Lock()
	fail := s.failUpdate
	s.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return s.AccessRequestStore.UpdateStatus(ctx, id, expected, next, by)
}

func (s *flakyStore) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.AccessRequest, error) {
	s.mu.Lock()
	fail := s.failList
	s.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return s.AccessRequestStore.ListByStatus(ctx, status)
}

func testAdmissionConfig() config.AdmissionConfig {
	return config.AdmissionConfig{
		MaxPendingPerIdentity: 3,
		PlaceholderFirstName:  "ავტომატური",
		PlaceholderLastName:   "მოთხოვნა",
	}
}

// sequenceCodes returns a generator cycling through codes.
func sequenceCodes(codes ...string) CodeGenerator {
	var i atomic.Int32
	return func() string {
		n := int(i.Add(1)) - 1
		return codes[n%len(codes)]
	}
}

// steppingClock returns strictly increasing times one millisecond apart.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Millisecond)
		return current
	}
}
