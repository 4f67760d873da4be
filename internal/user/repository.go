package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the referenced user does not exist.
var ErrNotFound = errors.New("user not found")

// Repository persists users. Mutations are single-row atomic operations;
// there is no in-process locking anywhere above this interface.
type Repository interface {
	// Upsert inserts the user or refreshes its identity fields. Status and
	// grant fields are untouched on conflict.
	Upsert(ctx context.Context, profile Profile) error
	Get(ctx context.Context, id int64) (User, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	// SetGrant marks the user approved with the given limit and expiry.
	// DevicesUsed is deliberately left alone: a re-grant keeps prior usage.
	SetGrant(ctx context.Context, id int64, deviceLimit int, expiresAt *time.Time) error
	SetDeviceLimit(ctx context.Context, id int64, deviceLimit int) error
	// MarkActivated bumps devices_used from 0 to 1 and reports whether this
	// call performed the bump. Any other starting value is a no-op.
	MarkActivated(ctx context.Context, id int64) (bool, error)

	// MenuMessage returns the recorded live menu message id, zero when none.
	MenuMessage(ctx context.Context, id int64) (int64, error)
	SetMenuMessage(ctx context.Context, id, messageID int64) error
	ClearMenuMessage(ctx context.Context, id int64) error

	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status Status) (int, error)
	CountExpiringWithin(ctx context.Context, now time.Time, window time.Duration) (int, error)
	// ListApproved returns approved users ordered by most recent update.
	ListApproved(ctx context.Context, limit, offset int) ([]User, error)
	// ListRecent returns the most recently active users regardless of status.
	ListRecent(ctx context.Context, limit int) ([]User, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed user repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, username, first_name, last_name, status, device_limit,
	devices_used, expires_at, COALESCE(menu_message_id, 0), created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var (
		u         User
		status    string
		expiresAt *time.Time
	)
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &status,
		&u.DeviceLimit, &u.DevicesUsed, &expiresAt, &u.MenuMessageID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	parsed, err := ParseStatus(status)
	if err != nil {
		return User{}, err
	}
	u.Status = parsed
	if expiresAt != nil {
		t := expiresAt.UTC()
		u.ExpiresAt = &t
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

// Upsert inserts the user or refreshes identity fields on conflict.
func (r *PostgresRepository) Upsert(ctx context.Context, profile Profile) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `INSERT INTO users (id, username, first_name, last_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'new', $5, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			updated_at = excluded.updated_at`,
		profile.ID, profile.Username, profile.FirstName, profile.LastName, now)
	return err
}

// Get fetches a user by id.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// SetStatus updates the lifecycle status.
func (r *PostgresRepository) SetStatus(ctx context.Context, id int64, status Status) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetGrant applies an approval with device limit and expiry.
func (r *PostgresRepository) SetGrant(ctx context.Context, id int64, deviceLimit int, expiresAt *time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET status = 'approved', device_limit = $1,
		expires_at = $2, updated_at = $3 WHERE id = $4`,
		deviceLimit, expiresAt, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDeviceLimit adjusts the device limit without touching anything else.
func (r *PostgresRepository) SetDeviceLimit(ctx context.Context, id int64, deviceLimit int) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET device_limit = $1, updated_at = $2 WHERE id = $3`,
		deviceLimit, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkActivated performs the one-shot 0 to 1 activation bump.
func (r *PostgresRepository) MarkActivated(ctx context.Context, id int64) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET devices_used = 1, updated_at = $1
		WHERE id = $2 AND devices_used = 0`, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// MenuMessage returns the live menu message id for a user.
func (r *PostgresRepository) MenuMessage(ctx context.Context, id int64) (int64, error) {
	var messageID int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(menu_message_id, 0) FROM users WHERE id = $1`, id).Scan(&messageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return messageID, err
}

// SetMenuMessage records the live menu message id.
func (r *PostgresRepository) SetMenuMessage(ctx context.Context, id, messageID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET menu_message_id = $1, updated_at = $2 WHERE id = $3`,
		messageID, time.Now().UTC(), id)
	return err
}

// ClearMenuMessage forgets the live menu message id.
func (r *PostgresRepository) ClearMenuMessage(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET menu_message_id = NULL, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	return err
}

// Count returns the total number of users.
func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// CountByStatus returns the number of users in the given status.
func (r *PostgresRepository) CountByStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE status = $1`, string(status)).Scan(&n)
	return n, err
}

// CountExpiringWithin counts approved users whose grant lapses inside the window.
func (r *PostgresRepository) CountExpiringWithin(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users
		WHERE status = 'approved' AND expires_at > $1 AND expires_at < $2`,
		now.UTC(), now.UTC().Add(window)).Scan(&n)
	return n, err
}

// ListApproved pages through approved users, most recently updated first.
func (r *PostgresRepository) ListApproved(ctx context.Context, limit, offset int) ([]User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users
		WHERE status = 'approved' ORDER BY updated_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListRecent returns the most recently active users.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users
		ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
