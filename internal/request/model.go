package request

import (
	"fmt"
	"time"

	"github.com/proxyward/proxyward/internal/user"
)

// Status is the closed set of request states. A request leaves pending
// exactly once; every non-pending state is terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusDenied     Status = "denied"
	StatusBanned     Status = "banned"
	StatusSuperseded Status = "superseded"
)

// ParseStatus validates a stored request status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusDenied, StatusBanned, StatusSuperseded:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown request status %q", s)
	}
}

// Request is one access request owned by a user.
type Request struct {
	ID        string
	UserID    int64
	Status    Status
	CreatedAt time.Time
}

// Detail joins a request with its owner's attributes for display.
type Detail struct {
	Request
	User user.User
}

// Age returns how long the request has been open at the given instant.
func (r Request) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}
