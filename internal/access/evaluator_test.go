package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/proxyward/proxyward/internal/user"
)

const operatorID = int64(99)

func seedUser(t *testing.T, repo user.Repository, id int64) {
	t.Helper()
	if err := repo.Upsert(context.Background(), user.Profile{ID: id, FirstName: "Test"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestIsApprovedExpiryBoundary(t *testing.T) {
	repo := user.NewMemoryRepository()
	eval := NewEvaluator(repo, operatorID)
	ctx := context.Background()

	seedUser(t, repo, 1)
	expiresAt := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := eval.Grant(ctx, 1, 2, &expiresAt); err != nil {
		t.Fatalf("grant: %v", err)
	}
	u, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if !eval.IsApproved(u, expiresAt.Add(-time.Hour)) {
		t.Fatal("expected approved before expiry")
	}
	if !eval.IsApproved(u, expiresAt) {
		t.Fatal("expected approved exactly at expiry")
	}
	if eval.IsApproved(u, expiresAt.Add(time.Second)) {
		t.Fatal("expected not approved after expiry")
	}
}

func TestIsApprovedOperatorAndBanned(t *testing.T) {
	repo := user.NewMemoryRepository()
	eval := NewEvaluator(repo, operatorID)
	ctx := context.Background()
	now := time.Now().UTC()

	seedUser(t, repo, operatorID)
	op, _ := repo.Get(ctx, operatorID)
	if !eval.IsApproved(op, now) {
		t.Fatal("operator must always be approved")
	}

	seedUser(t, repo, 2)
	if err := eval.Grant(ctx, 2, 0, nil); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := eval.Ban(ctx, 2); err != nil {
		t.Fatalf("ban: %v", err)
	}
	banned, _ := repo.Get(ctx, 2)
	if eval.IsApproved(banned, now) {
		t.Fatal("banned user must never be approved")
	}
}

func TestAuthorizeActivationAndLimit(t *testing.T) {
	repo := user.NewMemoryRepository()
	eval := NewEvaluator(repo, operatorID)
	ctx := context.Background()
	now := time.Now().UTC()

	seedUser(t, repo, 3)
	if err := eval.Grant(ctx, 3, 5, nil); err != nil {
		t.Fatalf("grant: %v", err)
	}

	u, _ := repo.Get(ctx, 3)
	if u.DevicesUsed != 0 {
		t.Fatalf("devices used should start at 0, got %d", u.DevicesUsed)
	}

	// First privileged action activates.
	if err := eval.Authorize(ctx, u, now); err != nil {
		t.Fatalf("first authorize: %v", err)
	}
	u, _ = repo.Get(ctx, 3)
	if u.DevicesUsed != 1 {
		t.Fatalf("expected devices_used 1 after activation, got %d", u.DevicesUsed)
	}

	// Second action still fits under the limit and does not bump again.
	if err := eval.Authorize(ctx, u, now); err != nil {
		t.Fatalf("second authorize: %v", err)
	}
	u, _ = repo.Get(ctx, 3)
	if u.DevicesUsed != 1 {
		t.Fatalf("activation must be one-shot, got %d", u.DevicesUsed)
	}

	// Operator tightens the limit below current usage.
	if err := repo.SetDeviceLimit(ctx, 3, 1); err != nil {
		t.Fatalf("set device limit: %v", err)
	}
	u, _ = repo.Get(ctx, 3)
	if err := eval.Authorize(ctx, u, now); !errors.Is(err, ErrDeviceLimitExceeded) {
		t.Fatalf("expected ErrDeviceLimitExceeded, got %v", err)
	}
	u, _ = repo.Get(ctx, 3)
	if u.DevicesUsed != 1 {
		t.Fatalf("failed authorize must not mutate, got %d", u.DevicesUsed)
	}
}

func TestAuthorizeUnlimited(t *testing.T) {
	repo := user.NewMemoryRepository()
	eval := NewEvaluator(repo, operatorID)
	ctx := context.Background()
	now := time.Now().UTC()

	seedUser(t, repo, 4)
	if err := eval.Grant(ctx, 4, 0, nil); err != nil {
		t.Fatalf("grant: %v", err)
	}
	u, _ := repo.Get(ctx, 4)
	for i := 0; i < 3; i++ {
		if err := eval.Authorize(ctx, u, now); err != nil {
			t.Fatalf("authorize %d: %v", i, err)
		}
		u, _ = repo.Get(ctx, 4)
	}
	if u.DevicesUsed != 1 {
		t.Fatalf("expected devices_used 1, got %d", u.DevicesUsed)
	}
}

func TestRegrantPreservesUsage(t *testing.T) {
	repo := user.NewMemoryRepository()
	eval := NewEvaluator(repo, operatorID)
	ctx := context.Background()
	now := time.Now().UTC()

	seedUser(t, repo, 5)
	if err := eval.Grant(ctx, 5, 2, nil); err != nil {
		t.Fatalf("grant: %v", err)
	}
	u, _ := repo.Get(ctx, 5)
	if err := eval.Authorize(ctx, u, now); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	if err := eval.Grant(ctx, 5, 10, nil); err != nil {
		t.Fatalf("re-grant: %v", err)
	}
	u, _ = repo.Get(ctx, 5)
	if u.DevicesUsed != 1 {
		t.Fatalf("re-grant must preserve devices_used, got %d", u.DevicesUsed)
	}
	if u.DeviceLimit != 10 {
		t.Fatalf("re-grant limit not applied, got %d", u.DeviceLimit)
	}
}

func TestRevoke(t *testing.T) {
	repo := user.NewMemoryRepository()
	eval := NewEvaluator(repo, operatorID)
	ctx := context.Background()
	now := time.Now().UTC()

	seedUser(t, repo, 6)
	if err := eval.Grant(ctx, 6, 0, nil); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := eval.Revoke(ctx, 6); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	u, _ := repo.Get(ctx, 6)
	if eval.IsApproved(u, now) {
		t.Fatal("revoked user must not be approved")
	}
	if err := eval.Authorize(ctx, u, now); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
}
