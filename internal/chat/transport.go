// Package chat defines the boundary to the chat transport: the outbound
// message operations the bot consumes, the inbound events it receives, and
// the classification of delivery failures. Everything behind this boundary
// is replaceable; the state machines never import a concrete transport.
package chat

import "context"

// Button is a single inline keyboard button. Exactly one of Token or URL is
// set: Token buttons come back as callback events, URL buttons open a link.
type Button struct {
	Label string
	Token string
	URL   string
}

// Keyboard is an inline keyboard layout, row-major.
type Keyboard struct {
	Rows [][]Button
}

// Content is one renderable screen.
type Content struct {
	Text     string
	Keyboard Keyboard
}

// Transport exposes the chat operations the bot depends on.
type Transport interface {
	// SendMessage delivers a new message and returns its identifier.
	SendMessage(ctx context.Context, chatID int64, text string, kb Keyboard) (int64, error)
	// EditMessageText replaces the text and keyboard of an existing message.
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, kb Keyboard) error
	// DeleteMessage removes a message.
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	// AcknowledgeCallback answers a button press. An empty text dismisses the
	// spinner; alert pops a modal.
	AcknowledgeCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// Row is a convenience constructor for a keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Callback builds a callback button.
func Callback(label, token string) Button {
	return Button{Label: label, Token: token}
}

// Link builds a URL button.
func Link(label, url string) Button {
	return Button{Label: label, URL: url}
}
