// Package bot wires inbound chat events to the domain services. Every
// event is handled independently; a failure is answered on the pressed
// button and never stops the bot.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/proxyward/proxyward/internal/access"
	"github.com/proxyward/proxyward/internal/chat"
	"github.com/proxyward/proxyward/internal/menu"
	"github.com/proxyward/proxyward/internal/proxy"
	"github.com/proxyward/proxyward/internal/report"
	"github.com/proxyward/proxyward/internal/request"
	"github.com/proxyward/proxyward/internal/rotation"
	"github.com/proxyward/proxyward/internal/user"
	"github.com/proxyward/proxyward/internal/wizard"
)

var (
	errOperatorOnly = errors.New("operator-only action")
	errBanned       = errors.New("account is banned")
)

// Bot dispatches chat updates to handlers over the domain services.
type Bot struct {
	transport chat.Transport
	menu      *menu.Renderer
	users     user.Repository
	requests  *request.Service
	wizard    *wizard.Service
	access    *access.Evaluator
	reports   *report.Service
	rotation  *rotation.Picker
	links     *proxy.Links

	operatorID int64
	stuckAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// Deps bundles the collaborators a Bot needs.
type Deps struct {
	Transport chat.Transport
	Menu      *menu.Renderer
	Users     user.Repository
	Requests  *request.Service
	Wizard    *wizard.Service
	Access    *access.Evaluator
	Reports   *report.Service
	Rotation  *rotation.Picker
	Links     *proxy.Links

	OperatorID int64
	StuckAfter time.Duration
	Logger     *slog.Logger
}

// New builds a Bot from its dependencies.
func New(d Deps) *Bot {
	return &Bot{
		transport:  d.Transport,
		menu:       d.Menu,
		users:      d.Users,
		requests:   d.Requests,
		wizard:     d.Wizard,
		access:     d.Access,
		reports:    d.Reports,
		rotation:   d.Rotation,
		links:      d.Links,
		operatorID: d.OperatorID,
		stuckAfter: d.StuckAfter,
		logger:     d.Logger,
		now:        time.Now,
	}
}

// HandleUpdate processes one inbound event end to end. Callback presses
// are always answered so the client spinner never hangs; failures are
// reported on the button instead of being returned.
func (b *Bot) HandleUpdate(ctx context.Context, upd chat.Update) {
	err := b.dispatch(ctx, upd)

	if upd.IsCallback() {
		text, alert := ackFor(err)
		if ackErr := b.transport.AcknowledgeCallback(ctx, upd.CallbackID, text, alert); ackErr != nil && !chat.Expected(ackErr) {
			b.logger.Warn("callback ack failed", "user_id", upd.UserID, "error", ackErr)
		}
	}

	if err != nil && !isDomainRejection(err) && !chat.Expected(err) {
		b.logger.Error("update failed",
			"user_id", upd.UserID, "command", upd.Command,
			"token", upd.Token, "error", err)
	}
}

func (b *Bot) dispatch(ctx context.Context, upd chat.Update) error {
	if err := b.users.Upsert(ctx, user.Profile{
		ID:        upd.UserID,
		Username:  upd.Username,
		FirstName: upd.FirstName,
		LastName:  upd.LastName,
	}); err != nil {
		return err
	}

	u, err := b.users.Get(ctx, upd.UserID)
	if err != nil {
		return err
	}

	// Banned accounts see nothing but the closed door.
	if u.Status == user.StatusBanned && !b.isOperator(upd.UserID) {
		if upd.IsCallback() {
			return errBanned
		}
		_, err := b.menu.Render(ctx, u.ID, upd.ChatID, chat.Content{Text: bannedText})
		return err
	}

	if upd.Command != "" {
		return b.dispatchCommand(ctx, upd, u)
	}

	action, err := chat.ParseToken(upd.Token)
	if err != nil {
		return err
	}
	return b.dispatchAction(ctx, upd, u, action)
}

func (b *Bot) dispatchCommand(ctx context.Context, upd chat.Update, u user.User) error {
	switch upd.Command {
	case "start":
		return b.showMainMenu(ctx, upd, u)
	case "help":
		return b.showGuide(ctx, upd)
	case "turbo":
		return b.showProfiles(ctx, upd, u, scopeTurbo)
	case "stable", "safe":
		return b.showProfiles(ctx, upd, u, scopeStable)
	case "diag":
		return b.showDiag(ctx, upd, u)
	case "admin":
		if err := b.requireOperator(upd); err != nil {
			return err
		}
		return b.showOperatorMenu(ctx, upd)
	case "stats":
		if err := b.requireOperator(upd); err != nil {
			return err
		}
		return b.showStats(ctx, upd)
	case "clients":
		if err := b.requireOperator(upd); err != nil {
			return err
		}
		return b.showClients(ctx, upd, 0)
	default:
		return b.showMainMenu(ctx, upd, u)
	}
}

func (b *Bot) dispatchAction(ctx context.Context, upd chat.Update, u user.User, action chat.Action) error {
	// User-side actions first; everything else is operator territory.
	switch a := action.(type) {
	case chat.ShowMenu:
		return b.showMainMenu(ctx, upd, u)
	case chat.RequestAccess:
		return b.handleRequestAccess(ctx, upd, u)
	case chat.ShowGuide:
		return b.showGuide(ctx, upd)
	case chat.GetProfile:
		return b.showProfiles(ctx, upd, u, scopeFor(a.Mode))
	}

	if err := b.requireOperator(upd); err != nil {
		return err
	}

	switch a := action.(type) {
	case chat.OperatorMenu:
		return b.showOperatorMenu(ctx, upd)
	case chat.ListRequests:
		return b.showRequestList(ctx, upd)
	case chat.StuckRequests:
		return b.showStuckList(ctx, upd)
	case chat.ShowStats:
		return b.showStats(ctx, upd)
	case chat.ShowUserIndex:
		return b.showUserIndex(ctx, upd)
	case chat.ListClients:
		return b.showClients(ctx, upd, a.Page)
	case chat.ViewRequest:
		return b.showRequestCard(ctx, upd, a.RequestID)
	case chat.ViewStuck:
		return b.showRequestCard(ctx, upd, a.RequestID)
	case chat.ViewProfile:
		return b.showProfileCard(ctx, upd, a.RequestID)
	case chat.QuickGrant:
		return b.handleQuickGrant(ctx, upd, a.RequestID)
	case chat.StartGrant:
		return b.handleStartGrant(ctx, upd, a.RequestID)
	case chat.SetDevices:
		return b.handleSetDevices(ctx, upd, a.RequestID, a.Limit)
	case chat.BackToDevices:
		return b.handleBackToDevices(ctx, upd, a.RequestID)
	case chat.SetExpiry:
		return b.handleSetExpiry(ctx, upd, a.RequestID, a.Days)
	case chat.BackToExpiry:
		return b.handleBackToExpiry(ctx, upd, a.RequestID)
	case chat.ConfirmGrant:
		return b.handleConfirmGrant(ctx, upd, a.RequestID)
	case chat.CancelGrant:
		return b.handleCancelGrant(ctx, upd, a.RequestID)
	case chat.DenyRequest:
		return b.handleDeny(ctx, upd, a.RequestID)
	case chat.BanRequest:
		return b.handleBan(ctx, upd, a.RequestID)
	case chat.ReopenRequest:
		return b.handleReopen(ctx, upd, a.RequestID)
	case chat.RevokeAccess:
		return b.handleRevoke(ctx, upd, a.RequestID)
	default:
		return chat.ErrUnknownToken
	}
}

func (b *Bot) isOperator(userID int64) bool {
	return userID == b.operatorID
}

func (b *Bot) requireOperator(upd chat.Update) error {
	if !b.isOperator(upd.UserID) {
		return errOperatorOnly
	}
	return nil
}

func scopeFor(mode chat.ProfileMode) profileScope {
	switch mode {
	case chat.ProfileTurbo:
		return scopeTurbo
	case chat.ProfileStable:
		return scopeStable
	default:
		return scopeBoth
	}
}

// ackFor maps a handler outcome to the callback answer. Domain rejections
// surface as alerts; anything else dismisses the spinner quietly.
func ackFor(err error) (string, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, request.ErrAlreadyProcessed):
		return alreadyProcessedText, true
	case errors.Is(err, request.ErrNotFound):
		return requestGoneText, true
	case errors.Is(err, wizard.ErrSessionExpired):
		return sessionExpiredText, true
	case errors.Is(err, wizard.ErrInvalidStep), errors.Is(err, wizard.ErrInvalidChoice):
		return staleButtonText, true
	case errors.Is(err, chat.ErrUnknownToken):
		return staleButtonText, true
	case errors.Is(err, errOperatorOnly):
		return operatorOnlyText, true
	case errors.Is(err, errBanned):
		return bannedText, true
	case chat.Expected(err):
		return "", false
	default:
		return "Something went wrong. Try again.", true
	}
}

func isDomainRejection(err error) bool {
	return errors.Is(err, request.ErrAlreadyProcessed) ||
		errors.Is(err, request.ErrNotFound) ||
		errors.Is(err, wizard.ErrSessionExpired) ||
		errors.Is(err, wizard.ErrInvalidStep) ||
		errors.Is(err, wizard.ErrInvalidChoice) ||
		errors.Is(err, chat.ErrUnknownToken) ||
		errors.Is(err, errOperatorOnly) ||
		errors.Is(err, errBanned)
}
