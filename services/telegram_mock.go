package services

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SentTelegramMessage records one MockMessenger delivery
type SentTelegramMessage struct {
	ChatID string
	Text   string
	Opts   SendOptions
}

// MockMessenger records outgoing messages instead of calling Telegram
type MockMessenger struct {
	mu     sync.Mutex
	sent   []SentTelegramMessage
	nextID int

	// Err, when set, fails every send
	Err error
}

// NewMockMessenger creates a messenger whose message ids start at 1000
func NewMockMessenger() *MockMessenger {
	return &MockMessenger{nextID: 1000}
}

func (m *MockMessenger) SendMessage(ctx context.Context, chatID string, text string, opts SendOptions) (*tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	m.nextID++
	m.sent = append(m.sent, SentTelegramMessage{ChatID: chatID, Text: text, Opts: opts})
	return &tgbotapi.Message{
		MessageID: m.nextID,
		Chat:      &tgbotapi.Chat{Type: "private"},
		Date:      int(time.Now().Unix()),
		Text:      text,
	}, nil
}

// Sent returns a copy of every delivered message
func (m *MockMessenger) Sent() []SentTelegramMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SentTelegramMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Last returns the most recent delivery
func (m *MockMessenger) Last() (SentTelegramMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sent) == 0 {
		return SentTelegramMessage{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// LastMessageID returns the id assigned to the most recent delivery
func (m *MockMessenger) LastMessageID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(m.nextID)
}
