package report

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/proxyward/proxyward/internal/request"
	"github.com/proxyward/proxyward/internal/user"
)

func newFixture() (*Service, user.Repository, request.Repository) {
	users := user.NewMemoryRepository()
	requests := request.NewMemoryRepository(users)
	return NewService(users, requests), users, requests
}

func seedUser(t *testing.T, users user.Repository, id int64, status user.Status) {
	t.Helper()
	ctx := context.Background()
	if err := users.Upsert(ctx, user.Profile{ID: id, Username: fmt.Sprintf("u%d", id)}); err != nil {
		t.Fatalf("upsert %d: %v", id, err)
	}
	if err := users.SetStatus(ctx, id, status); err != nil {
		t.Fatalf("set status %d: %v", id, err)
	}
}

func TestStatsCounters(t *testing.T) {
	svc, users, requests := newFixture()
	ctx := context.Background()

	seedUser(t, users, 1, user.StatusApproved)
	seedUser(t, users, 2, user.StatusApproved)
	seedUser(t, users, 3, user.StatusDenied)
	seedUser(t, users, 4, user.StatusBanned)
	seedUser(t, users, 5, user.StatusPending)

	soon := time.Now().UTC().Add(48 * time.Hour)
	if err := users.SetGrant(ctx, 1, 5, &soon); err != nil {
		t.Fatalf("set grant: %v", err)
	}
	far := time.Now().UTC().Add(30 * 24 * time.Hour)
	if err := users.SetGrant(ctx, 2, 5, &far); err != nil {
		t.Fatalf("set grant: %v", err)
	}

	if _, err := requests.Insert(ctx, request.Request{ID: "r1", UserID: 5, Status: request.StatusPending, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("insert request: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalUsers != 5 {
		t.Fatalf("total = %d", stats.TotalUsers)
	}
	if stats.Approved != 2 || stats.Denied != 1 || stats.Banned != 1 {
		t.Fatalf("status counters = %+v", stats)
	}
	if stats.PendingRequests != 1 {
		t.Fatalf("pending = %d", stats.PendingRequests)
	}
	if stats.ExpiringSoon != 1 {
		t.Fatalf("expiring soon = %d, want only the 48h grant", stats.ExpiringSoon)
	}
}

func TestClientsPaging(t *testing.T) {
	svc, users, _ := newFixture()
	ctx := context.Background()

	for i := int64(1); i <= 11; i++ {
		seedUser(t, users, i, user.StatusApproved)
	}

	first, err := svc.Clients(ctx, 0)
	if err != nil {
		t.Fatalf("clients page 0: %v", err)
	}
	if len(first.Clients) != ClientsPageSize {
		t.Fatalf("page 0 size = %d", len(first.Clients))
	}
	if first.HasPrev || !first.HasNext || first.Total != 11 {
		t.Fatalf("page 0 meta = %+v", first)
	}

	second, err := svc.Clients(ctx, 1)
	if err != nil {
		t.Fatalf("clients page 1: %v", err)
	}
	if len(second.Clients) != 3 {
		t.Fatalf("page 1 size = %d", len(second.Clients))
	}
	if !second.HasPrev || second.HasNext {
		t.Fatalf("page 1 meta = %+v", second)
	}

	clamped, err := svc.Clients(ctx, 99)
	if err != nil {
		t.Fatalf("clients page 99: %v", err)
	}
	if clamped.Page != 1 {
		t.Fatalf("out-of-range page clamped to %d", clamped.Page)
	}
}

func TestClientsMarksExpired(t *testing.T) {
	svc, users, _ := newFixture()
	ctx := context.Background()

	seedUser(t, users, 1, user.StatusApproved)
	seedUser(t, users, 2, user.StatusApproved)
	past := time.Now().UTC().Add(-time.Hour)
	if err := users.SetGrant(ctx, 1, 5, &past); err != nil {
		t.Fatalf("set grant: %v", err)
	}

	page, err := svc.Clients(ctx, 0)
	if err != nil {
		t.Fatalf("clients: %v", err)
	}
	byID := map[int64]bool{}
	for _, c := range page.Clients {
		byID[c.User.ID] = c.Expired
	}
	if !byID[1] || byID[2] {
		t.Fatalf("expired flags = %v", byID)
	}
}

func TestClientsEmpty(t *testing.T) {
	svc, _, _ := newFixture()

	page, err := svc.Clients(context.Background(), 0)
	if err != nil {
		t.Fatalf("clients: %v", err)
	}
	if len(page.Clients) != 0 || page.HasPrev || page.HasNext || page.Total != 0 {
		t.Fatalf("empty page = %+v", page)
	}
}
