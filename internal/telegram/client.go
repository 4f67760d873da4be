// Package telegram is the Bot API binding behind the chat boundary. It
// speaks plain HTTPS to api.telegram.org and surfaces API failure
// descriptions verbatim so callers can classify them.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/proxyward/proxyward/internal/chat"
)

const defaultBaseURL = "https://api.telegram.org"

// Client implements chat.Transport over the Telegram Bot API.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient builds a Bot API client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 35 * time.Second},
	}
}

// NewClientWithBase builds a client against a custom API endpoint,
// used by tests and local Bot API servers.
func NewClientWithBase(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = baseURL
	return c
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type inlineMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

func markupFor(kb chat.Keyboard) *inlineMarkup {
	if len(kb.Rows) == 0 {
		return nil
	}
	markup := &inlineMarkup{InlineKeyboard: make([][]inlineButton, 0, len(kb.Rows))}
	for _, row := range kb.Rows {
		buttons := make([]inlineButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, inlineButton{
				Text:         b.Label,
				CallbackData: b.Token,
				URL:          b.URL,
			})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}

// SendMessage delivers a new message and returns its Telegram message id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, kb chat.Keyboard) (int64, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if markup := markupFor(kb); markup != nil {
		payload["reply_markup"] = markup
	}
	var sent sentMessage
	if err := c.call(ctx, "sendMessage", payload, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessageText replaces an existing message's text and keyboard.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, kb chat.Keyboard) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if markup := markupFor(kb); markup != nil {
		payload["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

// AcknowledgeCallback answers a callback query.
func (c *Client) AcknowledgeCallback(ctx context.Context, callbackID, text string, alert bool) error {
	payload := map[string]any{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
		payload["show_alert"] = alert
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// call posts one Bot API method. API-level failures come back as errors
// carrying the API description, which is what the failure allow-list in
// the chat package matches on.
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !api.OK {
		return fmt.Errorf("%s: %s", method, api.Description)
	}
	if out != nil && len(api.Result) > 0 {
		if err := json.Unmarshal(api.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
