// Package access decides current entitlement: it applies grants, answers
// the single authority check gating every privileged action, and accounts
// for one-shot device activation.
package access

import (
	"context"
	"errors"
	"time"

	"github.com/proxyward/proxyward/internal/user"
)

var (
	// ErrNotApproved indicates the user holds no valid grant: never
	// approved, expired, revoked, denied or banned.
	ErrNotApproved = errors.New("access expired or absent")

	// ErrDeviceLimitExceeded indicates the user's device allowance is
	// used up. No state is mutated when this is returned.
	ErrDeviceLimitExceeded = errors.New("device limit exceeded")
)

// Evaluator owns grant application and entitlement checks.
type Evaluator struct {
	users      user.Repository
	operatorID int64
}

// NewEvaluator builds the evaluator. The operator account is always
// considered approved and is exempt from device accounting.
func NewEvaluator(users user.Repository, operatorID int64) *Evaluator {
	return &Evaluator{users: users, operatorID: operatorID}
}

// Grant marks the user approved with the given device limit and expiry.
// A limit of zero means unlimited devices; a nil expiry never lapses.
// DevicesUsed survives re-grants: prior activation is not forgiven.
func (e *Evaluator) Grant(ctx context.Context, userID int64, deviceLimit int, expiresAt *time.Time) error {
	return e.users.SetGrant(ctx, userID, deviceLimit, expiresAt)
}

// Revoke withdraws an existing grant.
func (e *Evaluator) Revoke(ctx context.Context, userID int64) error {
	return e.users.SetStatus(ctx, userID, user.StatusRevoked)
}

// Ban closes the account permanently. Banned is absorbing: nothing in the
// system transitions a user out of it.
func (e *Evaluator) Ban(ctx context.Context, userID int64) error {
	return e.users.SetStatus(ctx, userID, user.StatusBanned)
}

// IsApproved reports whether the user currently holds a valid grant at the
// given instant. The operator is always approved; a banned user never is.
func (e *Evaluator) IsApproved(u user.User, now time.Time) bool {
	if u.ID == e.operatorID {
		return true
	}
	if u.Status != user.StatusApproved {
		return false
	}
	if u.ExpiresAt != nil && now.After(*u.ExpiresAt) {
		return false
	}
	return true
}

// Authorize gates one privileged action. It verifies the grant, enforces
// the device limit and performs the lazy one-time activation bump on first
// use. On any failure nothing is mutated. The operator bypasses device
// accounting entirely.
func (e *Evaluator) Authorize(ctx context.Context, u user.User, now time.Time) error {
	if !e.IsApproved(u, now) {
		return ErrNotApproved
	}
	if u.ID == e.operatorID {
		return nil
	}
	if u.DeviceLimit > 0 && u.DevicesUsed >= u.DeviceLimit {
		return ErrDeviceLimitExceeded
	}
	if u.DevicesUsed == 0 {
		if _, err := e.users.MarkActivated(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}
