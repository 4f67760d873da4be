package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/proxyward/proxyward/internal/access"
	"github.com/proxyward/proxyward/internal/chat"
	"github.com/proxyward/proxyward/internal/logging"
	"github.com/proxyward/proxyward/internal/menu"
	"github.com/proxyward/proxyward/internal/proxy"
	"github.com/proxyward/proxyward/internal/report"
	"github.com/proxyward/proxyward/internal/request"
	"github.com/proxyward/proxyward/internal/rotation"
	"github.com/proxyward/proxyward/internal/user"
	"github.com/proxyward/proxyward/internal/wizard"
)

const operatorID = int64(1000)

type fixture struct {
	bot       *Bot
	transport *chat.Fake
	users     user.Repository
	requests  *request.Service
}

func newBotFixture(t *testing.T) *fixture {
	t.Helper()
	transport := chat.NewFake()
	users := user.NewMemoryRepository()
	requestRepo := request.NewMemoryRepository(users)
	requests := request.NewService(requestRepo, users)
	evaluator := access.NewEvaluator(users, operatorID)
	wizardSvc := wizard.NewService(wizard.NewMemoryRepository(), requests, evaluator, 5, 0)
	logger := logging.Discard()

	b := New(Deps{
		Transport:  transport,
		Menu:       menu.NewRenderer(transport, users, logger),
		Users:      users,
		Requests:   requests,
		Wizard:     wizardSvc,
		Access:     evaluator,
		Reports:    report.NewService(users, requestRepo),
		Rotation:   rotation.NewPicker(rotation.NewMemoryRepository()),
		Links:      proxy.NewLinks("proxy.example.com", "8443", "443", "ee42"),
		OperatorID: operatorID,
		StuckAfter: time.Hour,
		Logger:     logger,
	})
	return &fixture{bot: b, transport: transport, users: users, requests: requests}
}

func userCommand(id int64, command string) chat.Update {
	return chat.Update{
		UserID: id, ChatID: id,
		Username: fmt.Sprintf("user%d", id), FirstName: "Test",
		Command: command,
	}
}

func press(id int64, token string) chat.Update {
	return chat.Update{
		UserID: id, ChatID: id,
		Username:   fmt.Sprintf("user%d", id),
		CallbackID: fmt.Sprintf("cb-%d-%s", id, token),
		Token:      token,
	}
}

func (f *fixture) liveText(t *testing.T, chatID int64) string {
	t.Helper()
	msgs := f.transport.LiveIn(chatID)
	if len(msgs) == 0 {
		t.Fatalf("no live message in chat %d", chatID)
	}
	return msgs[len(msgs)-1].Text
}

// pendingRequestID walks the queue for the user's open request.
func (f *fixture) pendingRequestID(t *testing.T, userID int64) string {
	t.Helper()
	pending, err := f.requests.Pending(context.Background())
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	for _, d := range pending {
		if d.UserID == userID {
			return d.ID
		}
	}
	t.Fatalf("no pending request for user %d", userID)
	return ""
}

func TestStartShowsMenuAndKeepsOneLiveMessage(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, userCommand(1, "start"))
	f.bot.HandleUpdate(ctx, userCommand(1, "start"))
	f.bot.HandleUpdate(ctx, press(1, chat.ShowGuide{}.Token()))

	if got := len(f.transport.LiveIn(1)); got != 1 {
		t.Fatalf("live messages in user chat = %d, want 1", got)
	}
	if !strings.Contains(f.liveText(t, 1), "How to connect") {
		t.Fatalf("guide not shown: %q", f.liveText(t, 1))
	}
}

func TestRequestAccessNotifiesOperatorOnce(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, press(1, chat.RequestAccess{}.Token()))
	if got := f.liveText(t, 1); !strings.Contains(got, "Request sent") {
		t.Fatalf("first press text = %q", got)
	}
	if got := len(f.transport.LiveIn(operatorID)); got != 1 {
		t.Fatalf("operator notices = %d, want 1", got)
	}

	// A second tap reuses the pending request and nudges the operator.
	f.bot.HandleUpdate(ctx, press(1, chat.RequestAccess{}.Token()))
	if got := f.liveText(t, 1); !strings.Contains(got, "already in the queue") {
		t.Fatalf("repeat press text = %q", got)
	}
	notices := f.transport.LiveIn(operatorID)
	if len(notices) != 2 {
		t.Fatalf("operator notices = %d, want 2", len(notices))
	}
	if !strings.Contains(notices[1].Text, "pinged") {
		t.Fatalf("second notice = %q", notices[1].Text)
	}

	pending, err := f.requests.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending requests = %d, want 1", len(pending))
	}
}

func TestWizardGrantEndToEnd(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, press(7, chat.RequestAccess{}.Token()))
	id := f.pendingRequestID(t, 7)

	f.bot.HandleUpdate(ctx, press(operatorID, chat.ViewRequest{RequestID: id}.Token()))
	f.bot.HandleUpdate(ctx, press(operatorID, chat.StartGrant{RequestID: id}.Token()))
	if !strings.Contains(f.liveText(t, operatorID), "How many devices") {
		t.Fatalf("devices step not shown: %q", f.liveText(t, operatorID))
	}

	f.bot.HandleUpdate(ctx, press(operatorID, chat.SetDevices{RequestID: id, Limit: 3}.Token()))
	if !strings.Contains(f.liveText(t, operatorID), "For how long") {
		t.Fatalf("expiry step not shown: %q", f.liveText(t, operatorID))
	}

	f.bot.HandleUpdate(ctx, press(operatorID, chat.SetExpiry{RequestID: id, Days: 30}.Token()))
	if !strings.Contains(f.liveText(t, operatorID), "Confirm grant") {
		t.Fatalf("confirm step not shown: %q", f.liveText(t, operatorID))
	}

	f.bot.HandleUpdate(ctx, press(operatorID, chat.ConfirmGrant{RequestID: id}.Token()))
	if !strings.Contains(f.liveText(t, operatorID), "Granted") {
		t.Fatalf("grant summary not shown: %q", f.liveText(t, operatorID))
	}

	granted, err := f.users.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if granted.Status != user.StatusApproved || granted.DeviceLimit != 3 {
		t.Fatalf("user after grant = %+v", granted)
	}
	if granted.ExpiresAt == nil {
		t.Fatal("expiry not set")
	}

	req, err := f.requests.Get(ctx, id)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if req.Status != request.StatusApproved {
		t.Fatalf("request status = %s", req.Status)
	}

	// The user's live screen carries the grant announcement.
	if got := len(f.transport.LiveIn(7)); got != 1 {
		t.Fatalf("user live messages = %d, want 1", got)
	}
}

func TestQuickGrantDefaults(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, press(7, chat.RequestAccess{}.Token()))
	id := f.pendingRequestID(t, 7)

	f.bot.HandleUpdate(ctx, press(operatorID, chat.QuickGrant{RequestID: id}.Token()))

	granted, err := f.users.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if granted.Status != user.StatusApproved || granted.DeviceLimit != 5 || granted.ExpiresAt != nil {
		t.Fatalf("user after quick grant = %+v", granted)
	}
}

func TestOperatorActionsRejectedForUsers(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, press(7, chat.RequestAccess{}.Token()))
	id := f.pendingRequestID(t, 7)

	f.bot.HandleUpdate(ctx, press(7, chat.QuickGrant{RequestID: id}.Token()))

	u, err := f.users.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Status != user.StatusPending {
		t.Fatalf("self-grant must not work, status = %s", u.Status)
	}
	acks := f.transport.Acks
	if len(acks) == 0 || !strings.Contains(acks[len(acks)-1], operatorOnlyText) {
		t.Fatalf("expected operator-only alert, acks = %v", acks)
	}
}

func TestStaleConfirmAfterDeny(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, press(7, chat.RequestAccess{}.Token()))
	id := f.pendingRequestID(t, 7)

	f.bot.HandleUpdate(ctx, press(operatorID, chat.StartGrant{RequestID: id}.Token()))
	f.bot.HandleUpdate(ctx, press(operatorID, chat.DenyRequest{RequestID: id}.Token()))

	u, err := f.users.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Status != user.StatusDenied {
		t.Fatalf("status after deny = %s", u.Status)
	}

	// A confirm from the abandoned wizard screen must bounce off.
	f.bot.HandleUpdate(ctx, press(operatorID, chat.ConfirmGrant{RequestID: id}.Token()))
	acks := f.transport.Acks
	last := acks[len(acks)-1]
	if !strings.Contains(last, sessionExpiredText) && !strings.Contains(last, alreadyProcessedText) {
		t.Fatalf("stale confirm ack = %q", last)
	}
	u, _ = f.users.Get(ctx, 7)
	if u.Status != user.StatusDenied {
		t.Fatalf("stale confirm mutated user: %s", u.Status)
	}
}

func TestBanShortCircuitsFurtherUpdates(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, press(7, chat.RequestAccess{}.Token()))
	id := f.pendingRequestID(t, 7)

	f.bot.HandleUpdate(ctx, press(operatorID, chat.BanRequest{RequestID: id}.Token()))

	u, err := f.users.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Status != user.StatusBanned {
		t.Fatalf("status after ban = %s", u.Status)
	}

	f.bot.HandleUpdate(ctx, press(7, chat.RequestAccess{}.Token()))
	pending, _ := f.requests.Pending(ctx)
	if len(pending) != 0 {
		t.Fatalf("banned user opened a request: %d pending", len(pending))
	}
	acks := f.transport.Acks
	if !strings.Contains(acks[len(acks)-1], bannedText) {
		t.Fatalf("banned ack = %q", acks[len(acks)-1])
	}
}

func TestReopenSupersedesAndCreatesFresh(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, press(7, chat.RequestAccess{}.Token()))
	id := f.pendingRequestID(t, 7)

	f.bot.HandleUpdate(ctx, press(operatorID, chat.DenyRequest{RequestID: id}.Token()))
	f.bot.HandleUpdate(ctx, press(operatorID, chat.ReopenRequest{RequestID: id}.Token()))

	fresh := f.pendingRequestID(t, 7)
	if fresh == id {
		t.Fatal("reopen must mint a new request id")
	}
	old, err := f.requests.Get(ctx, id)
	if err != nil {
		t.Fatalf("get old request: %v", err)
	}
	if old.Status != request.StatusDenied {
		t.Fatalf("denied request mutated on reopen: %s", old.Status)
	}

	u, _ := f.users.Get(ctx, 7)
	if u.Status != user.StatusPending {
		t.Fatalf("user status after reopen = %s", u.Status)
	}
}

func TestProfilesRequireApproval(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, press(3, chat.GetProfile{Mode: chat.ProfileBoth}.Token()))
	if got := f.liveText(t, 3); !strings.Contains(got, "don't have active access") {
		t.Fatalf("unapproved profile text = %q", got)
	}

	f.bot.HandleUpdate(ctx, press(3, chat.RequestAccess{}.Token()))
	id := f.pendingRequestID(t, 3)
	f.bot.HandleUpdate(ctx, press(operatorID, chat.QuickGrant{RequestID: id}.Token()))

	f.bot.HandleUpdate(ctx, press(3, chat.GetProfile{Mode: chat.ProfileTurbo}.Token()))
	got := f.liveText(t, 3)
	if !strings.Contains(got, "TURBO") || !strings.Contains(got, "t.me/proxy") {
		t.Fatalf("turbo profile text = %q", got)
	}
	if strings.Contains(got, "STABLE") {
		t.Fatalf("turbo scope leaked stable link: %q", got)
	}

	// Fetching a profile consumes the first device slot.
	u, _ := f.users.Get(ctx, 3)
	if u.DevicesUsed != 1 {
		t.Fatalf("devices used = %d, want 1", u.DevicesUsed)
	}
}

func TestUnknownTokenAcksStaleButton(t *testing.T) {
	f := newBotFixture(t)

	f.bot.HandleUpdate(context.Background(), press(1, "legacy_button:42"))
	acks := f.transport.Acks
	if len(acks) != 1 || !strings.Contains(acks[0], staleButtonText) {
		t.Fatalf("acks = %v", acks)
	}
}

func TestRevokeWithdrawsAccess(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, press(7, chat.RequestAccess{}.Token()))
	id := f.pendingRequestID(t, 7)
	f.bot.HandleUpdate(ctx, press(operatorID, chat.QuickGrant{RequestID: id}.Token()))

	f.bot.HandleUpdate(ctx, press(operatorID, chat.RevokeAccess{RequestID: id}.Token()))

	u, err := f.users.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Status != user.StatusRevoked {
		t.Fatalf("status after revoke = %s", u.Status)
	}

	f.bot.HandleUpdate(ctx, press(7, chat.GetProfile{Mode: chat.ProfileBoth}.Token()))
	if got := f.liveText(t, 7); !strings.Contains(got, "don't have active access") {
		t.Fatalf("revoked user profile text = %q", got)
	}
}

func TestStatsAndClientsScreens(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, press(7, chat.RequestAccess{}.Token()))
	id := f.pendingRequestID(t, 7)
	f.bot.HandleUpdate(ctx, press(operatorID, chat.QuickGrant{RequestID: id}.Token()))

	f.bot.HandleUpdate(ctx, userCommand(operatorID, "stats"))
	if got := f.liveText(t, operatorID); !strings.Contains(got, "Active clients: 1") {
		t.Fatalf("stats text = %q", got)
	}

	f.bot.HandleUpdate(ctx, userCommand(operatorID, "clients"))
	if got := f.liveText(t, operatorID); !strings.Contains(got, "user7") {
		t.Fatalf("clients text = %q", got)
	}
}
