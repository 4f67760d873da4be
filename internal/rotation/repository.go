package rotation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the last shown variant index per (user, stage).
type Repository interface {
	LastIndex(ctx context.Context, userID int64, stage string) (int, bool, error)
	SetLastIndex(ctx context.Context, userID int64, stage string, idx int) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed rotation state repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// LastIndex returns the stored index and whether a prior choice exists.
func (r *PostgresRepository) LastIndex(ctx context.Context, userID int64, stage string) (int, bool, error) {
	var idx int
	err := r.db.QueryRow(ctx, `SELECT last_index FROM rotation_state WHERE user_id = $1 AND stage = $2`,
		userID, stage).Scan(&idx)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return idx, true, nil
}

// SetLastIndex upserts the stored index.
func (r *PostgresRepository) SetLastIndex(ctx context.Context, userID int64, stage string, idx int) error {
	_, err := r.db.Exec(ctx, `INSERT INTO rotation_state (user_id, stage, last_index, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, stage) DO UPDATE SET
			last_index = excluded.last_index,
			updated_at = excluded.updated_at`,
		userID, stage, idx, time.Now().UTC())
	return err
}

type memoryKey struct {
	userID int64
	stage  string
}

type memoryRepository struct {
	mu    sync.Mutex
	state map[memoryKey]int
}

// NewMemoryRepository builds an in-memory rotation store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{state: make(map[memoryKey]int)}
}

func (r *memoryRepository) LastIndex(_ context.Context, userID int64, stage string) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.state[memoryKey{userID, stage}]
	return idx, ok, nil
}

func (r *memoryRepository) SetLastIndex(_ context.Context, userID int64, stage string, idx int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[memoryKey{userID, stage}] = idx
	return nil
}
