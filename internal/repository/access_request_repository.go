package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accessgate/access-gate/internal/domain"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict is returned by UpdateStatus when the stored status
	// differs from the expected one.
	ErrStatusConflict = errors.New("access request status conflict")
)

// AccessRequestRepository encapsulates access request persistence.
type AccessRequestRepository interface {
	CountPending(ctx context.Context, firstName, lastName string) (int, error)
	Create(ctx context.Context, req *domain.AccessRequest) error
	GetByID(ctx context.Context, id string) (*domain.AccessRequest, error)
	GetByCode(ctx context.Context, code string) (*domain.AccessRequest, error)
	// UpdateStatus moves the record from expected to next atomically and
	// returns the updated record.
	UpdateStatus(ctx context.Context, id string, expected, next domain.RequestStatus, decidedBy *string) (*domain.AccessRequest, error)
	// ListByStatus returns matching records ordered by submitted_at ascending.
	ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.AccessRequest, error)
}

type accessRequestRepository struct {
	pool *pgxpool.Pool
}

// NewAccessRequestRepository returns a Postgres-backed implementation.
func NewAccessRequestRepository(pool *pgxpool.Pool) AccessRequestRepository {
	return &accessRequestRepository{pool: pool}
}

const accessRequestColumns = `id, first_name, last_name, verification_code, status, submitted_at, decided_at, decided_by`

func (r *accessRequestRepository) CountPending(ctx context.Context, firstName, lastName string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM access_requests
        WHERE first_name=$1 AND last_name=$2 AND status=$3`
	var count int
	if err := r.pool.QueryRow(ctx, query, firstName, lastName, domain.RequestStatusPending).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return count, nil
}

func (r *accessRequestRepository) Create(ctx context.Context, req *domain.AccessRequest) error {
	const query = `
        INSERT INTO access_requests (first_name, last_name, verification_code, status, submitted_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, submitted_at`
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}
	if err := r.pool.QueryRow(ctx, query,
		req.FirstName,
		req.LastName,
		req.VerificationCode,
		req.Status,
		req.SubmittedAt,
	).Scan(&req.ID, &req.SubmittedAt); err != nil {
		return fmt.Errorf("insert access request: %w", err)
	}
	return nil
}

func (r *accessRequestRepository) GetByID(ctx context.Context, id string) (*domain.AccessRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + accessRequestColumns + ` FROM access_requests WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *accessRequestRepository) GetByCode(ctx context.Context, code string) (*domain.AccessRequest, error) {
	query := `SELECT ` + accessRequestColumns + ` FROM access_requests
        WHERE verification_code=$1 ORDER BY submitted_at DESC LIMIT 1`
	return r.fetchSingle(ctx, query, code)
}

func (r *accessRequestRepository) UpdateStatus(ctx context.Context, id string, expected, next domain.RequestStatus, decidedBy *string) (*domain.AccessRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `
        UPDATE access_requests SET status=$1, decided_at=NOW(), decided_by=$2
        WHERE id=$3 AND status=$4
        RETURNING ` + accessRequestColumns
	req, err := scanAccessRequest(r.pool.QueryRow(ctx, query, next, decidedBy, id, expected))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update status: %w", err)
	}
	// Zero rows: either the id is unknown or another decision won.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrStatusConflict
}

func (r *accessRequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.AccessRequest, error) {
	query := `SELECT ` + accessRequestColumns + ` FROM access_requests
        WHERE status=$1 ORDER BY submitted_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	defer rows.Close()

	result := []domain.AccessRequest{}
	for rows.Next() {
		req, err := scanAccessRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access request: %w", err)
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func (r *accessRequestRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.AccessRequest, error) {
	req, err := scanAccessRequest(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch access request: %w", err)
	}
	return req, nil
}

func scanAccessRequest(row pgx.Row) (*domain.AccessRequest, error) {
	var req domain.AccessRequest
	if err := row.Scan(
		&req.ID,
		&req.FirstName,
		&req.LastName,
		&req.VerificationCode,
		&req.Status,
		&req.SubmittedAt,
		&req.DecidedAt,
		&req.DecidedBy,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
