package request

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/proxyward/proxyward/internal/user"
)

// Service drives the request lifecycle. Requests leave pending exactly
// once; the repository's conditional operations provide the atomicity.
type Service struct {
	repo  Repository
	users user.Repository
}

// NewService builds a request lifecycle service.
func NewService(repo Repository, users user.Repository) *Service {
	return &Service{repo: repo, users: users}
}

// Create opens a pending request for the user and marks the user pending.
// If the user already has a pending request that request is returned with
// created=false; no duplicate is ever inserted, even under concurrent taps.
func (s *Service) Create(ctx context.Context, userID int64) (Request, bool, error) {
	req := Request{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	inserted, err := s.repo.Insert(ctx, req)
	if err != nil {
		return Request{}, false, err
	}
	if !inserted {
		existing, err := s.repo.PendingFor(ctx, userID)
		if err != nil {
			return Request{}, false, err
		}
		return existing, false, nil
	}
	if err := s.users.SetStatus(ctx, userID, user.StatusPending); err != nil {
		return Request{}, false, err
	}
	return req, true, nil
}

// Get fetches a request by id.
func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	return s.repo.Get(ctx, id)
}

// Detail fetches a request joined with owner attributes.
func (s *Service) Detail(ctx context.Context, id string) (Detail, error) {
	return s.repo.GetDetail(ctx, id)
}

// Transition finalizes a pending request. The first concurrent caller
// wins; later callers get ErrAlreadyProcessed and mutate nothing.
func (s *Service) Transition(ctx context.Context, id string, to Status) error {
	return s.repo.Transition(ctx, id, to)
}

// Reopen supersedes a stale pending request and opens a fresh one for the
// same user. The superseded request never mutates again.
func (s *Service) Reopen(ctx context.Context, id string) (Request, error) {
	old, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if err := s.repo.Transition(ctx, id, StatusSuperseded); err != nil {
		return Request{}, err
	}
	fresh, _, err := s.Create(ctx, old.UserID)
	return fresh, err
}

// Pending lists open requests with owner attributes, oldest first.
func (s *Service) Pending(ctx context.Context) ([]Detail, error) {
	return s.repo.ListPending(ctx)
}

// SplitStuck partitions pending requests into stuck (older than the
// threshold) and fresh.
func SplitStuck(details []Detail, now time.Time, threshold time.Duration) (stuck, fresh []Detail) {
	for _, d := range details {
		if d.Age(now) > threshold {
			stuck = append(stuck, d)
		} else {
			fresh = append(fresh, d)
		}
	}
	return stuck, fresh
}
