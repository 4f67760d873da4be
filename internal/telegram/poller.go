package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/proxyward/proxyward/internal/chat"
)

// pollTimeout is the long-poll window requested from getUpdates.
const pollTimeout = 30 * time.Second

// Handler consumes one normalized inbound event.
type Handler interface {
	HandleUpdate(ctx context.Context, upd chat.Update)
}

type wireUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string   `json:"text"`
		From wireUser `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
	CallbackQuery *struct {
		ID      string   `json:"id"`
		Data    string   `json:"data"`
		From    wireUser `json:"from"`
		Message *struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

type wireUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Poller drains getUpdates and feeds each event to the handler. Events run
// in their own goroutines; ordering guarantees live in the storage layer's
// conditional updates, not here.
type Poller struct {
	client  *Client
	handler Handler
	logger  *slog.Logger
	offset  int64
}

// NewPoller builds a long-poller over the given client.
func NewPoller(client *Client, handler Handler, logger *slog.Logger) *Poller {
	return &Poller{client: client, handler: handler, logger: logger}
}

// Run polls until the context is cancelled. Transport errors are logged
// and retried after a short pause; a failing handler never stops the loop.
func (p *Poller) Run(ctx context.Context) error {
	for {
		updates, err := p.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("poll failed", "error", err)
			select {
			case <-time.After(3 * time.Second):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for _, w := range updates {
			p.offset = w.UpdateID + 1
			if upd, ok := normalize(w); ok {
				go p.handler.HandleUpdate(ctx, upd)
			}
		}
	}
}

func (p *Poller) fetch(ctx context.Context) ([]wireUpdate, error) {
	payload := map[string]any{
		"offset":          p.offset,
		"timeout":         int(pollTimeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}
	var raw json.RawMessage
	if err := p.client.call(ctx, "getUpdates", payload, &raw); err != nil {
		return nil, err
	}
	var updates []wireUpdate
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, errors.New("malformed getUpdates result")
	}
	return updates, nil
}

// normalize maps a wire update onto the chat boundary's shape. Plain text
// that is not a command lands on the main menu.
func normalize(w wireUpdate) (chat.Update, bool) {
	switch {
	case w.CallbackQuery != nil:
		cb := w.CallbackQuery
		chatID := cb.From.ID
		if cb.Message != nil {
			chatID = cb.Message.Chat.ID
		}
		return chat.Update{
			UserID:     cb.From.ID,
			ChatID:     chatID,
			Username:   cb.From.Username,
			FirstName:  cb.From.FirstName,
			LastName:   cb.From.LastName,
			CallbackID: cb.ID,
			Token:      cb.Data,
		}, true
	case w.Message != nil:
		m := w.Message
		return chat.Update{
			UserID:    m.From.ID,
			ChatID:    m.Chat.ID,
			Username:  m.From.Username,
			FirstName: m.From.FirstName,
			LastName:  m.From.LastName,
			Command:   commandOf(m.Text),
		}, true
	default:
		return chat.Update{}, false
	}
}

// commandOf extracts the command name from message text. Non-command text
// maps to "menu" so stray messages re-render the main screen.
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return "menu"
	}
	cmd := strings.Fields(text)[0]
	cmd = strings.TrimPrefix(cmd, "/")
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}
