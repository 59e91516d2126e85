package services

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/primesmshub/sms-hub-api/config"
)

// IncomingMessage returns the message carried by an update, if any.
// Channel posts are treated like chat messages.
func IncomingMessage(update tgbotapi.Update) *tgbotapi.Message {
	if update.Message != nil {
		return update.Message
	}
	return update.ChannelPost
}

// SendOptions tune a sendMessage call
type SendOptions struct {
	ParseMode        string
	ReplyToMessageID int
}

// Markdown sends text with legacy Markdown formatting
var Markdown = SendOptions{ParseMode: tgbotapi.ModeMarkdown}

// EscapeMarkdown makes user-supplied text safe inside a Markdown message
func EscapeMarkdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// Messenger delivers text to a chat on the messaging platform
type Messenger interface {
	SendMessage(ctx context.Context, chatID string, text string, opts SendOptions) (*tgbotapi.Message, error)
}

// TelegramClient calls the Telegram Bot API
type TelegramClient struct {
	api *tgbotapi.BotAPI
}

// NewTelegramClient creates a Bot API client from configuration.
// It does not contact Telegram, so a missing token only fails on first use.
func NewTelegramClient(cfg *config.Config) *TelegramClient {
	api := &tgbotapi.BotAPI{
		Token:  cfg.TelegramBotToken,
		Client: &http.Client{Timeout: 10 * time.Second},
		Buffer: 100,
	}
	api.SetAPIEndpoint(strings.TrimRight(cfg.TelegramAPIURL, "/") + "/bot%s/%s")
	return &TelegramClient{api: api}
}

// SendMessage posts text to chatID and returns the created message.
// Numeric ids address chats and channels; anything else is sent as a channel username.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID string, text string, opts SendOptions) (*tgbotapi.Message, error) {
	if chatID == "" {
		return nil, NewValidationError("chat id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, NewGatewayError("Telegram request cancelled", err)
	}

	msg := newMessageConfig(chatID, text)
	msg.ParseMode = opts.ParseMode
	msg.ReplyToMessageID = opts.ReplyToMessageID

	sent, err := c.api.Send(msg)
	if err != nil {
		return nil, telegramError("sendMessage", err)
	}
	return &sent, nil
}

// SetWebhook points Telegram update delivery at url
func (c *TelegramClient) SetWebhook(ctx context.Context, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return NewValidationError("invalid webhook url")
	}
	if err := ctx.Err(); err != nil {
		return NewGatewayError("Telegram request cancelled", err)
	}
	if _, err := c.api.Request(wh); err != nil {
		return telegramError("setWebhook", err)
	}
	return nil
}

func newMessageConfig(chatID, text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	return tgbotapi.NewMessageToChannel(chatID, text)
}

func telegramError(method string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return NewGatewayError(apiErr.Message, err)
	}
	return NewGatewayError("Telegram API unreachable", errors.New("telegram "+method+": "+err.Error()))
}
