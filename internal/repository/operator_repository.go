package repository

import (
	"context"
	"sort"

	"github.com/accessgate/access-gate/internal/domain"
)

// OperatorRepository looks up operators allowed to decide requests.
type OperatorRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.Operator, error)
	List(ctx context.Context) ([]domain.Operator, error)
}

type staticOperatorRepository struct {
	operators map[string]domain.Operator
}

// NewStaticOperatorRepository serves operators from configuration, keyed by
// username with bcrypt hashes as values.
func NewStaticOperatorRepository(hashes map[string]string) OperatorRepository {
	operators := make(map[string]domain.Operator, len(hashes))
	for username, hash := range hashes {
		operators[username] = domain.Operator{Username: username, PasswordHash: hash}
	}
	return &staticOperatorRepository{operators: operators}
}

func (r *staticOperatorRepository) GetByUsername(_ context.Context, username string) (*domain.Operator, error) {
	op, ok := r.operators[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &op, nil
}

func (r *staticOperatorRepository) List(_ context.Context) ([]domain.Operator, error) {
	out := make([]domain.Operator, 0, len(r.operators))
	for _, op := range r.operators {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
