package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/accessgate/access-gate/internal/domain"
	"github.com/accessgate/access-gate/internal/repository"
)

// AccessRequestStore persists access requests in SQLite. Timestamps are kept
// as unix milliseconds.
type AccessRequestStore struct {
	db *sql.DB
}

func NewAccessRequestStore(db *sql.DB) *AccessRequestStore {
	return &AccessRequestStore{db: db}
}

var _ repository.AccessRequestRepository = (*AccessRequestStore)(nil)

const columns = `id, first_name, last_name, verification_code, status, submitted_at_ms, decided_at_ms, decided_by`

func (s *AccessRequestStore) CountPending(ctx context.Context, firstName, lastName string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM access_requests
WHERE first_name = ? AND last_name = ? AND status = ?;
`, firstName, lastName, string(domain.RequestStatusPending)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("CountPending: %w", err)
	}
	return count, nil
}

func (s *AccessRequestStore) Create(ctx context.Context, req *domain.AccessRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}
	// Round-trip precision is milliseconds; keep the caller's copy consistent.
	req.SubmittedAt = time.UnixMilli(req.SubmittedAt.UnixMilli()).UTC()

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO access_requests(id, first_name, last_name, verification_code, status, submitted_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`,
		req.ID, req.FirstName, req.LastName, req.VerificationCode,
		string(req.Status), req.SubmittedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("Create insert: %w", err)
	}
	return nil
}

func (s *AccessRequestStore) GetByID(ctx context.Context, id string) (*domain.AccessRequest, error) {
	return getOne(ctx, s.db, `SELECT `+columns+` FROM access_requests WHERE id = ?;`, id)
}

func (s *AccessRequestStore) GetByCode(ctx context.Context, code string) (*domain.AccessRequest, error) {
	return getOne(ctx, s.db, `
SELECT `+columns+` FROM access_requests
WHERE verification_code = ?
ORDER BY submitted_at_ms DESC LIMIT 1;
`, code)
}

func (s *AccessRequestStore) UpdateStatus(ctx context.Context, id string, expected, next domain.RequestStatus, decidedBy *string) (*domain.AccessRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("UpdateStatus begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var by any
	if decidedBy != nil {
		by = *decidedBy
	}
	res, err := tx.ExecContext(ctx, `
UPDATE access_requests SET status = ?, decided_at_ms = ?, decided_by = ?
WHERE id = ? AND status = ?;
`, string(next), time.Now().UTC().UnixMilli(), by, id, string(expected))
	if err != nil {
		return nil, fmt.Errorf("UpdateStatus update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("UpdateStatus rows affected: %w", err)
	}

	rec, err := getOne(ctx, tx, `SELECT `+columns+` FROM access_requests WHERE id = ?;`, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, repository.ErrStatusConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("UpdateStatus commit: %w", err)
	}
	return rec, nil
}

func (s *AccessRequestStore) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.AccessRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+columns+` FROM access_requests
WHERE status = ?
ORDER BY submitted_at_ms ASC, id ASC;
`, string(status))
	if err != nil {
		return nil, fmt.Errorf("ListByStatus: %w", err)
	}
	defer rows.Close()

	out := []domain.AccessRequest{}
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByStatus scan: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getOne(ctx context.Context, q queryer, query string, arg any) (*domain.AccessRequest, error) {
	rec, err := scan(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get access request: %w", err)
	}
	return rec, nil
}

func scan(row scanner) (*domain.AccessRequest, error) {
	var (
		rec         domain.AccessRequest
		status      string
		submittedMs int64
		decidedMs   sql.NullInt64
		decidedBy   sql.NullString
	)
	if err := row.Scan(
		&rec.ID, &rec.FirstName, &rec.LastName, &rec.VerificationCode,
		&status, &submittedMs, &decidedMs, &decidedBy,
	); err != nil {
		return nil, err
	}
	rec.Status = domain.RequestStatus(status)
	if !rec.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q for %s", status, rec.ID)
	}
	rec.SubmittedAt = time.UnixMilli(submittedMs).UTC()
	if decidedMs.Valid {
		t := time.UnixMilli(decidedMs.Int64).UTC()
		rec.DecidedAt = &t
	}
	if decidedBy.Valid {
		by := decidedBy.String
		rec.DecidedBy = &by
	}
	return &rec, nil
}
