package user

import (
	"fmt"
	"time"
)

// Status is the closed set of user lifecycle states. Values read back from
// storage are validated through ParseStatus so an unknown value surfaces at
// the boundary instead of leaking into handler logic.
type Status string

const (
	StatusNew      Status = "new"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusBanned   Status = "banned"
	StatusRevoked  Status = "revoked"
)

// ParseStatus validates a stored status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNew, StatusPending, StatusApproved, StatusDenied, StatusBanned, StatusRevoked:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown user status %q", s)
	}
}

// User is one end user of the gated resource.
//
// DeviceLimit zero means unlimited. DevicesUsed is a one-shot activation
// counter: it moves 0 to 1 on first privileged use and never decrements.
// ExpiresAt nil means the grant does not expire. MenuMessageID references
// the single live menu message, zero when none is recorded.
type User struct {
	ID            int64
	Username      string
	FirstName     string
	LastName      string
	Status        Status
	DeviceLimit   int
	DevicesUsed   int
	ExpiresAt     *time.Time
	MenuMessageID int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Profile carries the identity fields refreshed on every inbound event.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName renders the best human-readable identity for a user.
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("id:%d", u.ID)
}

// Handle renders the username form, falling back to the numeric id.
func (u User) Handle() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("id:%d", u.ID)
}
