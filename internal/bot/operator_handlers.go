package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/proxyward/proxyward/internal/chat"
	"github.com/proxyward/proxyward/internal/request"
	"github.com/proxyward/proxyward/internal/user"
	"github.com/proxyward/proxyward/internal/wizard"
)

func (b *Bot) render(ctx context.Context, upd chat.Update, content chat.Content) error {
	_, err := b.menu.Render(ctx, upd.UserID, upd.ChatID, content)
	return err
}

func (b *Bot) showOperatorMenu(ctx context.Context, upd chat.Update) error {
	pending, err := b.requests.Pending(ctx)
	if err != nil {
		return err
	}
	return b.render(ctx, upd, chat.Content{
		Text:     operatorMenuText(len(pending)),
		Keyboard: operatorMenuKeyboard(),
	})
}

func (b *Bot) showRequestList(ctx context.Context, upd chat.Update) error {
	pending, err := b.requests.Pending(ctx)
	if err != nil {
		return err
	}
	stuck, fresh := request.SplitStuck(pending, b.now().UTC(), b.stuckAfter)
	return b.render(ctx, upd, chat.Content{
		Text:     requestListText(len(fresh), len(stuck)),
		Keyboard: requestListKeyboard(fresh, stuck),
	})
}

func (b *Bot) showStuckList(ctx context.Context, upd chat.Update) error {
	pending, err := b.requests.Pending(ctx)
	if err != nil {
		return err
	}
	now := b.now().UTC()
	stuck, _ := request.SplitStuck(pending, now, b.stuckAfter)
	return b.render(ctx, upd, chat.Content{
		Text:     stuckListText(len(stuck)),
		Keyboard: stuckListKeyboard(stuck, now),
	})
}

func (b *Bot) showRequestCard(ctx context.Context, upd chat.Update, requestID string) error {
	d, err := b.requests.Detail(ctx, requestID)
	if err != nil {
		return err
	}
	return b.render(ctx, upd, chat.Content{
		Text:     requestCardText(d, b.now().UTC()),
		Keyboard: requestCardKeyboard(d.ID, d.Status == request.StatusPending),
	})
}

func (b *Bot) showProfileCard(ctx context.Context, upd chat.Update, requestID string) error {
	d, err := b.requests.Detail(ctx, requestID)
	if err != nil {
		return err
	}
	return b.render(ctx, upd, chat.Content{
		Text:     profileCardText(d.User),
		Keyboard: profileCardKeyboard(d.ID, d.User.Status == user.StatusApproved),
	})
}

func (b *Bot) handleRevoke(ctx context.Context, upd chat.Update, requestID string) error {
	req, err := b.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if err := b.access.Revoke(ctx, req.UserID); err != nil {
		return err
	}
	b.notifyAccessEnded(ctx, req.UserID)
	return b.showProfileCard(ctx, upd, requestID)
}

func (b *Bot) showStats(ctx context.Context, upd chat.Update) error {
	stats, err := b.reports.Stats(ctx)
	if err != nil {
		return err
	}
	return b.render(ctx, upd, chat.Content{
		Text:     statsText(stats),
		Keyboard: statsKeyboard(),
	})
}

func (b *Bot) showClients(ctx context.Context, upd chat.Update, page int) error {
	clients, err := b.reports.Clients(ctx, page)
	if err != nil {
		return err
	}
	return b.render(ctx, upd, chat.Content{
		Text:     clientsText(clients),
		Keyboard: clientsKeyboard(clients),
	})
}

func (b *Bot) showUserIndex(ctx context.Context, upd chat.Update) error {
	recent, err := b.users.ListRecent(ctx, 8)
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString("Recently active users:")
	if len(recent) == 0 {
		sb.WriteString("\n\nnobody yet")
	}
	for _, u := range recent {
		fmt.Fprintf(&sb, "\n%s (%s): %s", u.DisplayName(), u.Handle(), u.Status)
	}
	return b.render(ctx, upd, chat.Content{
		Text:     sb.String(),
		Keyboard: statsKeyboard(),
	})
}

func (b *Bot) handleQuickGrant(ctx context.Context, upd chat.Update, requestID string) error {
	grant, err := b.wizard.QuickGrant(ctx, requestID)
	if err != nil {
		return err
	}
	b.notifyAccessGranted(ctx, grant.UserID)

	d, err := b.requests.Detail(ctx, requestID)
	if err != nil {
		return err
	}
	return b.render(ctx, upd, chat.Content{
		Text:     grantDoneText(d, grant),
		Keyboard: grantDoneKeyboard(),
	})
}

func (b *Bot) handleStartGrant(ctx context.Context, upd chat.Update, requestID string) error {
	if _, err := b.wizard.Start(ctx, requestID, upd.UserID); err != nil {
		return err
	}
	return b.renderDevicesStep(ctx, upd, requestID)
}

func (b *Bot) handleSetDevices(ctx context.Context, upd chat.Update, requestID string, limit int) error {
	if _, err := b.wizard.SetDevices(ctx, requestID, upd.UserID, limit); err != nil {
		return err
	}
	return b.renderExpiryStep(ctx, upd, requestID)
}

func (b *Bot) handleBackToDevices(ctx context.Context, upd chat.Update, requestID string) error {
	if _, err := b.wizard.BackToDevices(ctx, requestID); err != nil {
		return err
	}
	return b.renderDevicesStep(ctx, upd, requestID)
}

func (b *Bot) handleSetExpiry(ctx context.Context, upd chat.Update, requestID string, days int) error {
	if _, err := b.wizard.SetExpiry(ctx, requestID, upd.UserID, days); err != nil {
		return err
	}
	return b.renderConfirmStep(ctx, upd, requestID)
}

func (b *Bot) handleBackToExpiry(ctx context.Context, upd chat.Update, requestID string) error {
	if _, err := b.wizard.BackToExpiry(ctx, requestID); err != nil {
		return err
	}
	return b.renderExpiryStep(ctx, upd, requestID)
}

func (b *Bot) handleConfirmGrant(ctx context.Context, upd chat.Update, requestID string) error {
	grant, err := b.wizard.Confirm(ctx, requestID)
	if err != nil {
		return err
	}
	b.notifyAccessGranted(ctx, grant.UserID)

	d, err := b.requests.Detail(ctx, requestID)
	if err != nil {
		return err
	}
	return b.render(ctx, upd, chat.Content{
		Text:     grantDoneText(d, grant),
		Keyboard: grantDoneKeyboard(),
	})
}

func (b *Bot) handleCancelGrant(ctx context.Context, upd chat.Update, requestID string) error {
	if err := b.wizard.Cancel(ctx, requestID); err != nil {
		return err
	}
	return b.showRequestCard(ctx, upd, requestID)
}

func (b *Bot) handleDeny(ctx context.Context, upd chat.Update, requestID string) error {
	req, err := b.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if err := b.requests.Transition(ctx, requestID, request.StatusDenied); err != nil {
		return err
	}
	if err := b.users.SetStatus(ctx, req.UserID, user.StatusDenied); err != nil {
		return err
	}
	if err := b.wizard.Cancel(ctx, requestID); err != nil {
		return err
	}
	b.notifyAccessEnded(ctx, req.UserID)
	return b.showRequestCard(ctx, upd, requestID)
}

func (b *Bot) handleBan(ctx context.Context, upd chat.Update, requestID string) error {
	req, err := b.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if err := b.requests.Transition(ctx, requestID, request.StatusBanned); err != nil {
		return err
	}
	if err := b.access.Ban(ctx, req.UserID); err != nil {
		return err
	}
	if err := b.wizard.Cancel(ctx, requestID); err != nil {
		return err
	}
	b.notifyScreen(ctx, req.UserID, chat.Content{Text: bannedText})
	return b.showRequestCard(ctx, upd, requestID)
}

func (b *Bot) handleReopen(ctx context.Context, upd chat.Update, requestID string) error {
	if err := b.wizard.Cancel(ctx, requestID); err != nil {
		return err
	}
	reopened, err := b.requests.Reopen(ctx, requestID)
	if err != nil {
		return err
	}
	b.notifyScreen(ctx, reopened.UserID, chat.Content{
		Text:     reopenedText,
		Keyboard: backToMenuKeyboard(),
	})
	return b.showRequestCard(ctx, upd, reopened.ID)
}

func (b *Bot) renderDevicesStep(ctx context.Context, upd chat.Update, requestID string) error {
	d, err := b.requests.Detail(ctx, requestID)
	if err != nil {
		return err
	}
	return b.render(ctx, upd, chat.Content{
		Text:     wizardDevicesText(d),
		Keyboard: wizardDevicesKeyboard(requestID),
	})
}

func (b *Bot) renderExpiryStep(ctx context.Context, upd chat.Update, requestID string) error {
	d, session, err := b.detailWithSession(ctx, requestID)
	if err != nil {
		return err
	}
	return b.render(ctx, upd, chat.Content{
		Text:     wizardExpiryText(d, session),
		Keyboard: wizardExpiryKeyboard(requestID),
	})
}

func (b *Bot) renderConfirmStep(ctx context.Context, upd chat.Update, requestID string) error {
	d, session, err := b.detailWithSession(ctx, requestID)
	if err != nil {
		return err
	}
	return b.render(ctx, upd, chat.Content{
		Text:     wizardConfirmText(d, session),
		Keyboard: wizardConfirmKeyboard(requestID),
	})
}

func (b *Bot) detailWithSession(ctx context.Context, requestID string) (request.Detail, wizard.Session, error) {
	d, err := b.requests.Detail(ctx, requestID)
	if err != nil {
		return request.Detail{}, wizard.Session{}, err
	}
	session, err := b.wizard.Session(ctx, requestID)
	if err != nil {
		return request.Detail{}, wizard.Session{}, err
	}
	return d, session, nil
}
