package bot

import (
	"context"
	"errors"

	"github.com/proxyward/proxyward/internal/access"
	"github.com/proxyward/proxyward/internal/chat"
	"github.com/proxyward/proxyward/internal/proxy"
	"github.com/proxyward/proxyward/internal/user"
)

func (b *Bot) showMainMenu(ctx context.Context, upd chat.Update, u user.User) error {
	now := b.now().UTC()
	approved := b.access.IsApproved(u, now)
	content := chat.Content{
		Text:     mainMenuText(u, approved),
		Keyboard: mainMenuKeyboard(approved, b.isOperator(u.ID)),
	}
	_, err := b.menu.Render(ctx, u.ID, upd.ChatID, content)
	return err
}

func (b *Bot) showGuide(ctx context.Context, upd chat.Update) error {
	_, err := b.menu.Render(ctx, upd.UserID, upd.ChatID, chat.Content{
		Text:     guideText,
		Keyboard: backToMenuKeyboard(),
	})
	return err
}

func (b *Bot) handleRequestAccess(ctx context.Context, upd chat.Update, u user.User) error {
	if b.access.IsApproved(u, b.now().UTC()) {
		return b.showMainMenu(ctx, upd, u)
	}

	req, created, err := b.requests.Create(ctx, u.ID)
	if err != nil {
		return err
	}

	b.notifyOperator(ctx, req.ID, !created)

	text := requestSentText
	if !created {
		text = requestPendingText
	}
	_, err = b.menu.Render(ctx, u.ID, upd.ChatID, chat.Content{
		Text:     text,
		Keyboard: backToMenuKeyboard(),
	})
	return err
}

// notifyOperator pings the operator about a new or re-pinged request. The
// notice is a standalone message so it survives operator menu navigation;
// delivery failures never fail the user's flow.
func (b *Bot) notifyOperator(ctx context.Context, requestID string, repeat bool) {
	d, err := b.requests.Detail(ctx, requestID)
	if err != nil {
		b.logger.Warn("operator notice skipped", "request_id", requestID, "error", err)
		return
	}
	_, err = b.transport.SendMessage(ctx, b.operatorID,
		newRequestNotice(d, repeat), operatorNoticeKeyboard(requestID))
	if err != nil && !chat.Expected(err) {
		b.logger.Warn("operator notice failed", "request_id", requestID, "error", err)
	}
}

func (b *Bot) showProfiles(ctx context.Context, upd chat.Update, u user.User, scope profileScope) error {
	now := b.now().UTC()

	err := b.access.Authorize(ctx, u, now)
	switch {
	case errors.Is(err, access.ErrNotApproved):
		text := notApprovedText
		if u.Status == user.StatusApproved {
			text = expiredText
		}
		_, rerr := b.menu.Render(ctx, u.ID, upd.ChatID, chat.Content{
			Text:     text,
			Keyboard: mainMenuKeyboard(false, b.isOperator(u.ID)),
		})
		return rerr
	case errors.Is(err, access.ErrDeviceLimitExceeded):
		_, rerr := b.menu.Render(ctx, u.ID, upd.ChatID, chat.Content{
			Text:     deviceLimitText,
			Keyboard: backToMenuKeyboard(),
		})
		return rerr
	case err != nil:
		return err
	}

	turbo, terr := b.links.Turbo()
	stable, serr := b.links.Stable()
	if terr != nil || serr != nil {
		if errors.Is(terr, proxy.ErrNotConfigured) || errors.Is(serr, proxy.ErrNotConfigured) {
			b.logger.Warn("proxy links not configured")
			_, rerr := b.menu.Render(ctx, u.ID, upd.ChatID, chat.Content{
				Text:     linksUnavailableText,
				Keyboard: backToMenuKeyboard(),
			})
			return rerr
		}
		if terr != nil {
			return terr
		}
		return serr
	}

	_, err = b.menu.Render(ctx, u.ID, upd.ChatID, chat.Content{
		Text:     profileText(turbo, stable, scope),
		Keyboard: profileKeyboard(turbo, stable, scope),
	})
	return err
}

func (b *Bot) showDiag(ctx context.Context, upd chat.Update, u user.User) error {
	approved := b.access.IsApproved(u, b.now().UTC())
	_, err := b.menu.Render(ctx, u.ID, upd.ChatID, chat.Content{
		Text:     diagText(u, approved, b.links.Recommended()),
		Keyboard: backToMenuKeyboard(),
	})
	return err
}

// notifyScreen best-effort renders content on a user's own chat.
func (b *Bot) notifyScreen(ctx context.Context, userID int64, content chat.Content) {
	if _, err := b.menu.Render(ctx, userID, userID, content); err != nil && !chat.Expected(err) {
		b.logger.Warn("user notice failed", "user_id", userID, "error", err)
	}
}

// notifyAccessGranted refreshes the user's live screen with a rotated
// grant announcement and their connection profiles.
func (b *Bot) notifyAccessGranted(ctx context.Context, userID int64) {
	text, err := b.rotation.Pick(ctx, userID, rotationStageStart, grantedVariants)
	if err != nil {
		b.logger.Warn("rotation pick failed", "user_id", userID, "error", err)
		text = grantedVariants[0]
	}

	b.notifyScreen(ctx, userID, chat.Content{
		Text:     text,
		Keyboard: mainMenuKeyboard(true, false),
	})
}

// notifyAccessEnded tells the user their request was closed without access.
func (b *Bot) notifyAccessEnded(ctx context.Context, userID int64) {
	text, err := b.rotation.Pick(ctx, userID, rotationStageEnd, endedVariants)
	if err != nil {
		b.logger.Warn("rotation pick failed", "user_id", userID, "error", err)
		text = endedVariants[0]
	}

	b.notifyScreen(ctx, userID, chat.Content{
		Text:     text,
		Keyboard: mainMenuKeyboard(false, false),
	})
}
