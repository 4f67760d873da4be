package request

import (
	"context"
	"sort"
	"sync"

	"github.com/proxyward/proxyward/internal/user"
)

type memoryRepository struct {
	mu       sync.Mutex
	requests map[string]Request
	users    user.Repository
}

// NewMemoryRepository builds an in-memory request store for testing. The
// user repository supplies owner attributes for joined reads. The mutex is
// held across check-and-insert so pending uniqueness is as atomic as the
// partial unique index in Postgres.
func NewMemoryRepository(users user.Repository) Repository {
	return &memoryRepository{requests: make(map[string]Request), users: users}
}

func (r *memoryRepository) Insert(_ context.Context, req Request) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.requests {
		if existing.UserID == req.UserID && existing.Status == StatusPending {
			return false, nil
		}
	}
	req.Status = StatusPending
	r.requests[req.ID] = req
	return true, nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

func (r *memoryRepository) GetDetail(ctx context.Context, id string) (Detail, error) {
	req, err := r.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	owner, err := r.users.Get(ctx, req.UserID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Request: req, User: owner}, nil
}

func (r *memoryRepository) PendingFor(_ context.Context, userID int64) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.UserID == userID && req.Status == StatusPending {
			return req, nil
		}
	}
	return Request{}, ErrNotFound
}

func (r *memoryRepository) Transition(_ context.Context, id string, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return ErrNotFound
	}
	if req.Status != StatusPending {
		return ErrAlreadyProcessed
	}
	req.Status = to
	r.requests[id] = req
	return nil
}

func (r *memoryRepository) ListPending(ctx context.Context) ([]Detail, error) {
	r.mu.Lock()
	var pending []Request
	for _, req := range r.requests {
		if req.Status == StatusPending {
			pending = append(pending, req)
		}
	}
	r.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	details := make([]Detail, 0, len(pending))
	for _, req := range pending {
		owner, err := r.users.Get(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		details = append(details, Detail{Request: req, User: owner})
	}
	return details, nil
}

func (r *memoryRepository) CountByStatus(_ context.Context, status Status) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.requests {
		if req.Status == status {
			n++
		}
	}
	return n, nil
}
