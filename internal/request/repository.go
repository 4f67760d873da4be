package request

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proxyward/proxyward/internal/user"
)

var (
	// ErrNotFound indicates the referenced request does not exist.
	ErrNotFound = errors.New("request not found")

	// ErrAlreadyProcessed indicates the request already left pending.
	// This is the normal outcome of the finalization race, not a fault.
	ErrAlreadyProcessed = errors.New("request already processed")
)

// Repository persists access requests. Insert and Transition are the two
// atomic single-row operations the whole approval flow's concurrency
// safety rests on.
type Repository interface {
	// Insert stores a new pending request. It reports false without
	// inserting when the owner already has a pending request; the
	// uniqueness is enforced by the store, not by a prior read.
	Insert(ctx context.Context, req Request) (bool, error)
	Get(ctx context.Context, id string) (Request, error)
	// GetDetail fetches a request joined with its owner's attributes.
	GetDetail(ctx context.Context, id string) (Detail, error)
	// PendingFor returns the owner's open request, if any.
	PendingFor(ctx context.Context, userID int64) (Request, error)
	// Transition moves a request out of pending. It fails with
	// ErrAlreadyProcessed, mutating nothing, when the stored status is no
	// longer pending; the first concurrent caller to commit wins.
	Transition(ctx context.Context, id string, to Status) error
	// ListPending returns open requests with owner attributes, oldest first.
	ListPending(ctx context.Context) ([]Detail, error)
	CountByStatus(ctx context.Context, status Status) (int, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed request repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert performs the conditional insert against the partial unique index
// on (user_id) WHERE status = 'pending'.
func (r *PostgresRepository) Insert(ctx context.Context, req Request) (bool, error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return false, err
	}
	cmd, err := r.db.Exec(ctx, `INSERT INTO requests (id, user_id, status, created_at)
		VALUES ($1, $2, 'pending', $3)
		ON CONFLICT (user_id) WHERE status = 'pending' DO NOTHING`,
		id, req.UserID, req.CreatedAt.UTC())
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// Get fetches a request by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Request, error) {
	reqID, err := uuid.Parse(id)
	if err != nil {
		return Request{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, user_id, status, created_at FROM requests WHERE id = $1`, reqID)
	return scanRequest(row)
}

// GetDetail fetches a request joined with its owner.
func (r *PostgresRepository) GetDetail(ctx context.Context, id string) (Detail, error) {
	reqID, err := uuid.Parse(id)
	if err != nil {
		return Detail{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT r.id, r.user_id, r.status, r.created_at,
			u.id, u.username, u.first_name, u.last_name, u.status, u.device_limit,
			u.devices_used, u.expires_at, COALESCE(u.menu_message_id, 0), u.created_at, u.updated_at
		FROM requests r JOIN users u ON u.id = r.user_id WHERE r.id = $1`, reqID)
	return scanDetail(row)
}

// PendingFor returns the open request for a user.
func (r *PostgresRepository) PendingFor(ctx context.Context, userID int64) (Request, error) {
	row := r.db.QueryRow(ctx, `SELECT id, user_id, status, created_at FROM requests
		WHERE user_id = $1 AND status = 'pending'`, userID)
	return scanRequest(row)
}

// Transition is the conditional update gating request finalization.
func (r *PostgresRepository) Transition(ctx context.Context, id string, to Status) error {
	reqID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE requests SET status = $1 WHERE id = $2 AND status = 'pending'`,
		string(to), reqID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	// Zero rows: either absent or already terminal.
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyProcessed
}

// ListPending returns open requests joined with owners, oldest first.
func (r *PostgresRepository) ListPending(ctx context.Context) ([]Detail, error) {
	rows, err := r.db.Query(ctx, `SELECT r.id, r.user_id, r.status, r.created_at,
			u.id, u.username, u.first_name, u.last_name, u.status, u.device_limit,
			u.devices_used, u.expires_at, COALESCE(u.menu_message_id, 0), u.created_at, u.updated_at
		FROM requests r JOIN users u ON u.id = r.user_id
		WHERE r.status = 'pending' ORDER BY r.created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// CountByStatus counts requests in the given status.
func (r *PostgresRepository) CountByStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM requests WHERE status = $1`, string(status)).Scan(&n)
	return n, err
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req    Request
		id     uuid.UUID
		status string
	)
	if err := row.Scan(&id, &req.UserID, &status, &req.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	parsed, err := ParseStatus(status)
	if err != nil {
		return Request{}, err
	}
	req.ID = id.String()
	req.Status = parsed
	req.CreatedAt = req.CreatedAt.UTC()
	return req, nil
}

func scanDetail(row pgx.Row) (Detail, error) {
	var (
		d          Detail
		reqID      uuid.UUID
		reqStatus  string
		userStatus string
		expiresAt  *time.Time
	)
	if err := row.Scan(&reqID, &d.UserID, &reqStatus, &d.CreatedAt,
		&d.User.ID, &d.User.Username, &d.User.FirstName, &d.User.LastName, &userStatus,
		&d.User.DeviceLimit, &d.User.DevicesUsed, &expiresAt, &d.User.MenuMessageID,
		&d.User.CreatedAt, &d.User.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, ErrNotFound
		}
		return Detail{}, err
	}
	rs, err := ParseStatus(reqStatus)
	if err != nil {
		return Detail{}, err
	}
	us, err := user.ParseStatus(userStatus)
	if err != nil {
		return Detail{}, err
	}
	d.ID = reqID.String()
	d.Status = rs
	d.User.Status = us
	d.CreatedAt = d.CreatedAt.UTC()
	if expiresAt != nil {
		t := expiresAt.UTC()
		d.User.ExpiresAt = &t
	}
	return d, nil
}
