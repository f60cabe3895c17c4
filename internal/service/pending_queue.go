package service

import (
	"context"

	"github.com/accessgate/access-gate/internal/domain"
	"github.com/accessgate/access-gate/internal/repository"
)

// PendingQueue is the operator's view of undecided requests.
type PendingQueue struct {
	requests repository.AccessRequestRepository
}

func NewPendingQueue(requests repository.AccessRequestRepository) *PendingQueue {
	return &PendingQueue{requests: requests}
}

// ListPending returns pending requests oldest first. Every call reads the store.
func (q *PendingQueue) ListPending(ctx context.Context) ([]domain.AccessRequest, error) {
	items, err := q.requests.ListByStatus(ctx, domain.RequestStatusPending)
	if err != nil {
		return nil, storageFailure(err)
	}
	return items, nil
}
