// Package menu keeps each user's chat down to a single evolving screen.
// One live message id is recorded per user; every render edits it in place
// and only falls back to sending a fresh message when the old one is gone.
package menu

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/proxyward/proxyward/internal/chat"
)

// Store persists the live message reference per user.
type Store interface {
	MenuMessage(ctx context.Context, userID int64) (int64, error)
	SetMenuMessage(ctx context.Context, userID, messageID int64) error
	ClearMenuMessage(ctx context.Context, userID int64) error
}

// Renderer upholds the one-live-message invariant. Callers hand it content
// and never reason about message identity themselves.
type Renderer struct {
	transport chat.Transport
	store     Store
	logger    *slog.Logger
}

// NewRenderer builds a renderer over the given transport and store.
func NewRenderer(transport chat.Transport, store Store, logger *slog.Logger) *Renderer {
	return &Renderer{transport: transport, store: store, logger: logger}
}

// Render shows content on the user's live message, replacing whatever was
// there. Any edit failure means "message no longer editable": the stale
// message is deleted best-effort, the reference cleared, and a fresh
// message sent and recorded. Returns the resulting live message id.
func (r *Renderer) Render(ctx context.Context, userID, chatID int64, content chat.Content) (int64, error) {
	liveID, err := r.store.MenuMessage(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load live message: %w", err)
	}

	if liveID != 0 {
		err := r.transport.EditMessageText(ctx, chatID, liveID, content.Text, content.Keyboard)
		if err == nil {
			return liveID, nil
		}
		if !chat.Expected(err) {
			r.logger.Warn("menu edit failed", "user_id", userID, "message_id", liveID, "error", err)
		}
		// The old screen is unrecoverable; drop it and start over.
		_ = r.transport.DeleteMessage(ctx, chatID, liveID)
		if err := r.store.ClearMenuMessage(ctx, userID); err != nil {
			return 0, fmt.Errorf("clear live message: %w", err)
		}
	}

	sentID, err := r.transport.SendMessage(ctx, chatID, content.Text, content.Keyboard)
	if err != nil {
		return 0, err
	}
	if err := r.store.SetMenuMessage(ctx, userID, sentID); err != nil {
		return 0, fmt.Errorf("record live message: %w", err)
	}
	return sentID, nil
}
