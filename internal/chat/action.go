package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Update is one inbound event from the transport: either a slash command or
// a button press carrying an opaque action token.
type Update struct {
	UserID    int64
	ChatID    int64
	Username  string
	FirstName string
	LastName  string

	// Command is the slash command name without the slash; empty for
	// button presses.
	Command string

	// CallbackID and Token are set for button presses only.
	CallbackID string
	Token      string
}

// IsCallback reports whether the update is a button press.
func (u Update) IsCallback() bool {
	return u.CallbackID != ""
}

// ErrUnknownToken indicates a callback token that no action recognises,
// typically a button from a retired layout.
var ErrUnknownToken = errors.New("unknown action token")

// Action is a decoded button press. Tokens are parsed into a closed set of
// variants at the transport boundary so the handlers dispatch over types,
// not string prefixes.
type Action interface {
	// Token encodes the action back into its wire form for keyboards.
	Token() string
}

// ProfileMode selects which connection profile a user asked for.
type ProfileMode string

const (
	ProfileTurbo  ProfileMode = "turbo"
	ProfileStable ProfileMode = "stable"
	ProfileBoth   ProfileMode = "both"
)

// User-side actions.
type (
	// ShowMenu returns to the main menu screen.
	ShowMenu struct{}
	// RequestAccess asks the operator for an entitlement.
	RequestAccess struct{}
	// ShowGuide opens the connection how-to screen.
	ShowGuide struct{}
	// GetProfile fetches connection links for an approved user.
	GetProfile struct{ Mode ProfileMode }
)

// Operator-side actions. All carry the request they act on where relevant.
type (
	OperatorMenu  struct{}
	ListRequests  struct{}
	StuckRequests struct{}
	ShowStats     struct{}
	ShowUserIndex struct{}
	ListClients   struct{ Page int }

	ViewRequest  struct{ RequestID string }
	ViewStuck    struct{ RequestID string }
	ViewProfile  struct{ RequestID string }
	QuickGrant   struct{ RequestID string }
	StartGrant   struct{ RequestID string }
	SetDevices   struct {
		RequestID string
		Limit     int
	}
	BackToDevices struct{ RequestID string }
	SetExpiry     struct {
		RequestID string
		Days      int
	}
	BackToExpiry  struct{ RequestID string }
	ConfirmGrant  struct{ RequestID string }
	CancelGrant   struct{ RequestID string }
	DenyRequest   struct{ RequestID string }
	BanRequest    struct{ RequestID string }
	ReopenRequest struct{ RequestID string }
	RevokeAccess  struct{ RequestID string }
)

func (ShowMenu) Token() string      { return "menu" }
func (RequestAccess) Token() string { return "req_access" }
func (ShowGuide) Token() string     { return "howto" }
func (a GetProfile) Token() string {
	switch a.Mode {
	case ProfileTurbo:
		return "get_turbo"
	case ProfileStable:
		return "get_stable"
	default:
		return "get_profiles"
	}
}

func (OperatorMenu) Token() string  { return "op_menu" }
func (ListRequests) Token() string  { return "op_requests" }
func (StuckRequests) Token() string { return "op_stuck" }
func (ShowStats) Token() string     { return "op_stats" }
func (ShowUserIndex) Token() string { return "op_user_index" }
func (a ListClients) Token() string { return fmt.Sprintf("op_clients:%d", a.Page) }

func (a ViewRequest) Token() string   { return "op_view:" + a.RequestID }
func (a ViewStuck) Token() string     { return "op_stuck_view:" + a.RequestID }
func (a ViewProfile) Token() string   { return "op_profile:" + a.RequestID }
func (a QuickGrant) Token() string    { return "op_quickgrant:" + a.RequestID }
func (a StartGrant) Token() string    { return "op_grant:" + a.RequestID }
func (a SetDevices) Token() string    { return fmt.Sprintf("op_setdev:%s:%d", a.RequestID, a.Limit) }
func (a BackToDevices) Token() string { return "op_back_dev:" + a.RequestID }
func (a SetExpiry) Token() string     { return fmt.Sprintf("op_setexp:%s:%d", a.RequestID, a.Days) }
func (a BackToExpiry) Token() string  { return "op_back_exp:" + a.RequestID }
func (a ConfirmGrant) Token() string  { return "op_confirm:" + a.RequestID }
func (a CancelGrant) Token() string   { return "op_cancel:" + a.RequestID }
func (a DenyRequest) Token() string   { return "op_deny:" + a.RequestID }
func (a BanRequest) Token() string    { return "op_ban:" + a.RequestID }
func (a ReopenRequest) Token() string { return "op_reopen:" + a.RequestID }
func (a RevokeAccess) Token() string  { return "op_revoke:" + a.RequestID }

// ParseToken decodes a raw callback token into its Action variant.
func ParseToken(token string) (Action, error) {
	switch token {
	case "menu":
		return ShowMenu{}, nil
	case "req_access":
		return RequestAccess{}, nil
	case "howto":
		return ShowGuide{}, nil
	case "get_turbo":
		return GetProfile{Mode: ProfileTurbo}, nil
	case "get_stable":
		return GetProfile{Mode: ProfileStable}, nil
	case "get_profiles":
		return GetProfile{Mode: ProfileBoth}, nil
	case "op_menu":
		return OperatorMenu{}, nil
	case "op_requests":
		return ListRequests{}, nil
	case "op_stuck":
		return StuckRequests{}, nil
	case "op_stats":
		return ShowStats{}, nil
	case "op_user_index":
		return ShowUserIndex{}, nil
	}

	name, rest, ok := strings.Cut(token, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownToken, token)
	}

	switch name {
	case "op_clients":
		page, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownToken, token)
		}
		return ListClients{Page: page}, nil
	case "op_view":
		return ViewRequest{RequestID: rest}, nil
	case "op_stuck_view":
		return ViewStuck{RequestID: rest}, nil
	case "op_profile":
		return ViewProfile{RequestID: rest}, nil
	case "op_quickgrant":
		return QuickGrant{RequestID: rest}, nil
	case "op_grant":
		return StartGrant{RequestID: rest}, nil
	case "op_back_dev":
		return BackToDevices{RequestID: rest}, nil
	case "op_back_exp":
		return BackToExpiry{RequestID: rest}, nil
	case "op_confirm":
		return ConfirmGrant{RequestID: rest}, nil
	case "op_cancel":
		return CancelGrant{RequestID: rest}, nil
	case "op_deny":
		return DenyRequest{RequestID: rest}, nil
	case "op_ban":
		return BanRequest{RequestID: rest}, nil
	case "op_reopen":
		return ReopenRequest{RequestID: rest}, nil
	case "op_revoke":
		return RevokeAccess{RequestID: rest}, nil
	case "op_setdev", "op_setexp":
		id, arg, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownToken, token)
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownToken, token)
		}
		if name == "op_setdev" {
			return SetDevices{RequestID: id, Limit: n}, nil
		}
		return SetExpiry{RequestID: id, Days: n}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownToken, token)
}
