package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/proxyward/proxyward/internal/report"
	"github.com/proxyward/proxyward/internal/request"
	"github.com/proxyward/proxyward/internal/user"
	"github.com/proxyward/proxyward/internal/wizard"
)

// Rotation stages for the user-facing notifications. Each stage keeps its
// own no-immediate-repeat history per user.
const (
	rotationStageStart = "start"
	rotationStageEnd   = "end"
)

// grantedVariants are rotated when a user's access begins.
var grantedVariants = []string{
	"Access granted. Your connection profiles are ready below.",
	"You're in. Grab a connection profile below and you're good to go.",
	"Request approved. Pick a profile below to connect.",
}

// endedVariants are rotated when a user's access is denied or ends.
var endedVariants = []string{
	"Your access request was not approved this time.",
	"The operator declined your request. You can ask again later.",
	"Request closed without a grant. Feel free to reach out again.",
}

const (
	welcomeText = "Welcome to Proxyward.\n\n" +
		"This bot hands out access to a private proxy. " +
		"Request access below and the operator will review it."

	guideText = "How to connect:\n\n" +
		"1. Request access and wait for approval.\n" +
		"2. Once approved, open a connection profile below.\n" +
		"3. Tap the link on each device you want to connect.\n\n" +
		"TURBO is the low-latency endpoint, STABLE is the conservative one. " +
		"If TURBO misbehaves on your network, switch to STABLE."

	requestSentText = "Request sent. The operator has been notified and " +
		"you'll get a message here once it's reviewed."

	requestPendingText = "Your request is already in the queue. " +
		"The operator was nudged again."

	bannedText = "Access to this bot is closed for your account."

	notApprovedText = "You don't have active access. " +
		"Request it below and wait for the operator."

	expiredText = "Your access has expired. Send a new request to renew it."

	deviceLimitText = "All device slots for your grant are in use. " +
		"Ask the operator to raise the limit."

	linksUnavailableText = "Connection links are temporarily unavailable. " +
		"Try again in a minute."

	operatorOnlyText = "This action is for the operator."

	staleButtonText = "This button is from an old screen. Open the menu again."

	alreadyProcessedText = "This request was already processed."

	sessionExpiredText = "The granting session expired. Start the grant again."

	requestGoneText = "This request no longer exists."

	reopenedText = "Your request is back in the operator's queue."
)

func mainMenuText(u user.User, approved bool) string {
	var b strings.Builder
	b.WriteString(welcomeText)
	b.WriteString("\n\n")
	switch {
	case approved:
		b.WriteString("Status: access active")
		if u.ExpiresAt != nil {
			b.WriteString(fmt.Sprintf(" until %s", u.ExpiresAt.UTC().Format("2006-01-02")))
		}
		b.WriteString(".")
		if u.DeviceLimit > 0 {
			b.WriteString(fmt.Sprintf(" Devices: %d of %d in use.", u.DevicesUsed, u.DeviceLimit))
		}
	case u.Status == user.StatusPending:
		b.WriteString("Status: request pending review.")
	case u.Status == user.StatusApproved:
		b.WriteString("Status: access expired.")
	case u.Status == user.StatusDenied:
		b.WriteString("Status: last request was declined.")
	default:
		b.WriteString("Status: no access yet.")
	}
	return b.String()
}

func profileText(turbo, stable string, mode profileScope) string {
	var b strings.Builder
	b.WriteString("Your connection profiles. Tap a link on each device:\n")
	if mode != scopeStable {
		b.WriteString("\nTURBO (fast): " + turbo)
	}
	if mode != scopeTurbo {
		b.WriteString("\nSTABLE (reliable): " + stable)
	}
	b.WriteString("\n\nLinks are personal. Don't share them.")
	return b.String()
}

func diagText(u user.User, approved bool, recommended string) string {
	expiry := "none"
	if u.ExpiresAt != nil {
		expiry = u.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf(
		"id: %d\nstatus: %s\naccess: %t\ndevices: %d/%d\nexpiry: %s\nrecommended: %s",
		u.ID, u.Status, approved, u.DevicesUsed, u.DeviceLimit, expiry, recommended,
	)
}

func operatorMenuText(pending int) string {
	return fmt.Sprintf("Operator console.\n\nOpen requests: %d", pending)
}

func requestListText(fresh, stuck int) string {
	if fresh == 0 && stuck == 0 {
		return "No open requests."
	}
	text := fmt.Sprintf("Open requests: %d.", fresh+stuck)
	if stuck > 0 {
		text += fmt.Sprintf(" %d of them have been waiting over an hour.", stuck)
	}
	return text + " Pick one:"
}

func stuckListText(n int) string {
	if n == 0 {
		return "No stuck requests. The queue is healthy."
	}
	return fmt.Sprintf("%d request(s) waiting too long:", n)
}

func requestCardText(d request.Detail, now time.Time) string {
	return fmt.Sprintf(
		"Request %s\n\nFrom: %s (%s)\nWaiting: %s\nCurrent status: %s",
		shortID(d.ID), d.User.DisplayName(), d.User.Handle(),
		formatAge(d.Age(now)), d.Status,
	)
}

func profileCardText(u user.User) string {
	expiry := "no expiry"
	if u.ExpiresAt != nil {
		expiry = "until " + u.ExpiresAt.UTC().Format("2006-01-02")
	}
	return fmt.Sprintf(
		"Client %s (%s)\n\nStatus: %s\nDevices: %d/%d\nAccess: %s",
		u.DisplayName(), u.Handle(), u.Status, u.DevicesUsed, u.DeviceLimit, expiry,
	)
}

func wizardDevicesText(d request.Detail) string {
	return fmt.Sprintf("Granting access to %s.\n\nHow many devices?", d.User.DisplayName())
}

func wizardExpiryText(d request.Detail, s wizard.Session) string {
	return fmt.Sprintf(
		"Granting access to %s.\n\nDevices: %s.\nFor how long?",
		d.User.DisplayName(), formatDevices(s.DeviceLimit),
	)
}

func wizardConfirmText(d request.Detail, s wizard.Session) string {
	return fmt.Sprintf(
		"Confirm grant for %s:\n\nDevices: %s\nDuration: %s",
		d.User.DisplayName(), formatDevices(s.DeviceLimit), formatDays(s.ExpiresDays),
	)
}

func grantDoneText(d request.Detail, g wizard.Grant) string {
	expiry := "no expiry"
	if g.ExpiresAt != nil {
		expiry = "until " + g.ExpiresAt.UTC().Format("2006-01-02")
	}
	return fmt.Sprintf(
		"Granted. %s now has access: %s devices, %s.",
		d.User.DisplayName(), formatDevices(g.DeviceLimit), expiry,
	)
}

func statsText(s report.Stats) string {
	return fmt.Sprintf(
		"Stats\n\nUsers: %d\nActive clients: %d\nOpen requests: %d\n"+
			"Denied: %d\nBanned: %d\nExpiring within 7 days: %d",
		s.TotalUsers, s.Approved, s.PendingRequests,
		s.Denied, s.Banned, s.ExpiringSoon,
	)
}

func clientsText(p report.ClientsPage) string {
	if p.Total == 0 {
		return "No active clients yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Clients %d, page %d:\n", p.Total, p.Page+1)
	for _, c := range p.Clients {
		mark := ""
		if c.Expired {
			mark = " [expired]"
		}
		fmt.Fprintf(&b, "\n%s (%s) %d/%d%s",
			c.User.DisplayName(), c.User.Handle(),
			c.User.DevicesUsed, c.User.DeviceLimit, mark)
	}
	return b.String()
}

func newRequestNotice(d request.Detail, repeat bool) string {
	if repeat {
		return fmt.Sprintf("%s pinged about their pending request %s.",
			d.User.DisplayName(), shortID(d.ID))
	}
	return fmt.Sprintf("New access request %s from %s (%s).",
		shortID(d.ID), d.User.DisplayName(), d.User.Handle())
}

func formatDevices(n int) string {
	if n == 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}

func formatDays(d int) string {
	if d == 0 {
		return "no expiry"
	}
	return fmt.Sprintf("%d days", d)
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "under a minute"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
