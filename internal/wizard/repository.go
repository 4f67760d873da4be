package wizard

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no session exists for the request.
var ErrNotFound = errors.New("wizard session not found")

// Repository persists wizard sessions. Save is a whole-row upsert: session
// updates are last-write-wins per request id.
type Repository interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, requestID string) (Session, error)
	// Delete removes the session. Absent sessions are not an error.
	Delete(ctx context.Context, requestID string) error
	// DeleteOlderThan reaps sessions untouched since the cutoff and
	// returns how many were removed. It never touches requests.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed session repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save upserts the session, re-stamping updated_at.
func (r *PostgresRepository) Save(ctx context.Context, s Session) error {
	reqID, err := uuid.Parse(s.RequestID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = r.db.Exec(ctx, `INSERT INTO wizard_sessions
			(request_id, operator_id, device_limit, expires_days, step, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (request_id) DO UPDATE SET
			operator_id = excluded.operator_id,
			device_limit = excluded.device_limit,
			expires_days = excluded.expires_days,
			step = excluded.step,
			updated_at = excluded.updated_at`,
		reqID, s.OperatorID, s.DeviceLimit, s.ExpiresDays, string(s.Step), now)
	return err
}

// Get fetches the session for a request.
func (r *PostgresRepository) Get(ctx context.Context, requestID string) (Session, error) {
	reqID, err := uuid.Parse(requestID)
	if err != nil {
		return Session{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT request_id, operator_id, device_limit, expires_days, step,
		created_at, updated_at FROM wizard_sessions WHERE request_id = $1`, reqID)

	var (
		s    Session
		id   uuid.UUID
		step string
	)
	if err := row.Scan(&id, &s.OperatorID, &s.DeviceLimit, &s.ExpiresDays, &step, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	parsed, err := ParseStep(step)
	if err != nil {
		return Session{}, err
	}
	s.RequestID = id.String()
	s.Step = parsed
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// Delete removes the session if present.
func (r *PostgresRepository) Delete(ctx context.Context, requestID string) error {
	reqID, err := uuid.Parse(requestID)
	if err != nil {
		return nil
	}
	_, err = r.db.Exec(ctx, `DELETE FROM wizard_sessions WHERE request_id = $1`, reqID)
	return err
}

// DeleteOlderThan reaps stale sessions by updated_at.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM wizard_sessions WHERE updated_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
