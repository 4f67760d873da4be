package chat

import (
	"context"
	"errors"
	"sync"
)

// SentMessage records one message currently held by the fake transport.
type SentMessage struct {
	ChatID   int64
	ID       int64
	Text     string
	Keyboard Keyboard
}

// Fake is an in-memory Transport for tests. It hands out sequential message
// ids and keeps every live message so tests can assert on the last rendered
// content. Edits of unknown messages fail the way a real transport does.
type Fake struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64]*SentMessage

	// FailEdits forces every edit to fail with an expected error,
	// simulating messages that fell out of the edit window.
	FailEdits bool

	Sends   int
	Edits   int
	Deletes int
	Acks    []string
}

// NewFake builds an empty fake transport.
func NewFake() *Fake {
	return &Fake{messages: make(map[int64]*SentMessage)}
}

var errEditNotFound = errors.New("Bad Request: message to edit not found")

func (f *Fake) SendMessage(_ context.Context, chatID int64, text string, kb Keyboard) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.Sends++
	f.messages[f.nextID] = &SentMessage{ChatID: chatID, ID: f.nextID, Text: text, Keyboard: kb}
	return f.nextID, nil
}

func (f *Fake) EditMessageText(_ context.Context, chatID, messageID int64, text string, kb Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edits++
	msg, ok := f.messages[messageID]
	if !ok || msg.ChatID != chatID || f.FailEdits {
		return errEditNotFound
	}
	msg.Text = text
	msg.Keyboard = kb
	return nil
}

func (f *Fake) DeleteMessage(_ context.Context, chatID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deletes++
	msg, ok := f.messages[messageID]
	if !ok || msg.ChatID != chatID {
		return errors.New("Bad Request: message to delete not found")
	}
	delete(f.messages, messageID)
	return nil
}

func (f *Fake) AcknowledgeCallback(_ context.Context, callbackID, text string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Acks = append(f.Acks, callbackID+":"+text)
	return nil
}

// Message returns the recorded message by id, if it is still live.
func (f *Fake) Message(id int64) (SentMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return SentMessage{}, false
	}
	return *msg, true
}

// Live returns how many messages the fake currently holds.
func (f *Fake) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// LiveIn returns the live messages in one chat, in send order.
func (f *Fake) LiveIn(chatID int64) []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentMessage
	for id := int64(1); id <= f.nextID; id++ {
		if msg, ok := f.messages[id]; ok && msg.ChatID == chatID {
			out = append(out, *msg)
		}
	}
	return out
}
