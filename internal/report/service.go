// Package report aggregates operator-facing statistics and client listings.
package report

import (
	"context"
	"time"

	"github.com/proxyward/proxyward/internal/request"
	"github.com/proxyward/proxyward/internal/user"
)

// ClientsPageSize bounds how many clients one listing page shows.
const ClientsPageSize = 8

// ExpiryWindow is the lookahead used for the expiring-soon counter.
const ExpiryWindow = 7 * 24 * time.Hour

// Stats is a snapshot of the user base and open workload.
type Stats struct {
	TotalUsers      int
	Approved        int
	Denied          int
	Banned          int
	PendingRequests int
	ExpiringSoon    int
}

// ClientsPage is one page of approved clients plus paging metadata.
type ClientsPage struct {
	Clients []Client
	Page    int
	HasPrev bool
	HasNext bool
	Total   int
}

// Client describes one approved user for the listing view.
type Client struct {
	User    user.User
	Expired bool
}

// Service computes reports over the user and request stores.
type Service struct {
	users    user.Repository
	requests request.Repository
	now      func() time.Time
}

// NewService returns a report service over the given stores.
func NewService(users user.Repository, requests request.Repository) *Service {
	return &Service{users: users, requests: requests, now: time.Now}
}

// Stats gathers the counters shown on the operator dashboard.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var (
		out Stats
		err error
	)
	if out.TotalUsers, err = s.users.Count(ctx); err != nil {
		return Stats{}, err
	}
	if out.Approved, err = s.users.CountByStatus(ctx, user.StatusApproved); err != nil {
		return Stats{}, err
	}
	if out.Denied, err = s.users.CountByStatus(ctx, user.StatusDenied); err != nil {
		return Stats{}, err
	}
	if out.Banned, err = s.users.CountByStatus(ctx, user.StatusBanned); err != nil {
		return Stats{}, err
	}
	if out.PendingRequests, err = s.requests.CountByStatus(ctx, request.StatusPending); err != nil {
		return Stats{}, err
	}
	if out.ExpiringSoon, err = s.users.CountExpiringWithin(ctx, s.now().UTC(), ExpiryWindow); err != nil {
		return Stats{}, err
	}
	return out, nil
}

// Clients returns one page of approved clients. Pages are zero-based and
// out-of-range pages are clamped to the nearest valid one.
func (s *Service) Clients(ctx context.Context, page int) (ClientsPage, error) {
	total, err := s.users.CountByStatus(ctx, user.StatusApproved)
	if err != nil {
		return ClientsPage{}, err
	}
	last := 0
	if total > 0 {
		last = (total - 1) / ClientsPageSize
	}
	if page < 0 {
		page = 0
	}
	if page > last {
		page = last
	}

	rows, err := s.users.ListApproved(ctx, ClientsPageSize, page*ClientsPageSize)
	if err != nil {
		return ClientsPage{}, err
	}

	now := s.now().UTC()
	clients := make([]Client, 0, len(rows))
	for _, u := range rows {
		clients = append(clients, Client{
			User:    u,
			Expired: u.ExpiresAt != nil && now.After(*u.ExpiresAt),
		})
	}
	return ClientsPage{
		Clients: clients,
		Page:    page,
		HasPrev: page > 0,
		HasNext: page < last,
		Total:   total,
	}, nil
}
