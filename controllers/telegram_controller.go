package controllers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/primesmshub/sms-hub-api/bot"
	"github.com/primesmshub/sms-hub-api/relay"
	"github.com/primesmshub/sms-hub-api/services"
)

// TelegramController receives Bot API webhook updates
type TelegramController struct {
	router *relay.Router
	bot    *bot.Bot
	botID  int64
	logger *slog.Logger
}

// NewTelegramController wires the webhook. botID is the bot's own user id,
// used to recognise replies to its notifications.
func NewTelegramController(router *relay.Router, commands *bot.Bot, botID int64, logger *slog.Logger) *TelegramController {
	return &TelegramController{router: router, bot: commands, botID: botID, logger: logger}
}

// Webhook handles POST /bot<token>. It always answers 200 so Telegram never
// redelivers an update we could not use.
func (tc *TelegramController) Webhook(c *gin.Context) {
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		tc.logger.Warn("unreadable telegram update", "error", err)
		c.Status(http.StatusOK)
		return
	}

	msg := services.IncomingMessage(update)
	if msg == nil || msg.Chat == nil {
		c.Status(http.StatusOK)
		return
	}

	ctx := c.Request.Context()
	if quoted := msg.ReplyToMessage; quoted != nil {
		outcome := tc.router.HandleOperatorReply(ctx, relay.OperatorReply{
			ChatID:          strconv.FormatInt(msg.Chat.ID, 10),
			Text:            msg.Text,
			FromBot:         msg.From != nil && msg.From.IsBot,
			QuotedMessageID: int64(quoted.MessageID),
			QuotedText:      quoted.Text,
			QuotedByBot:     tc.postedByBot(msg.Chat, quoted),
		})
		tc.logger.Debug("operator reply handled", "update_id", update.UpdateID, "outcome", outcome.String())
	} else if tc.bot != nil {
		tc.bot.Handle(ctx, msg.Chat.ID, msg.Text)
	}

	c.Status(http.StatusOK)
}

// postedByBot reports whether quoted was sent by this bot. In a channel the
// bot posts as the channel itself, so an unsigned post of the same channel counts.
func (tc *TelegramController) postedByBot(chat *tgbotapi.Chat, quoted *tgbotapi.Message) bool {
	if quoted.From != nil {
		if tc.botID != 0 {
			return quoted.From.ID == tc.botID
		}
		return quoted.From.IsBot
	}
	return chat.IsChannel() && quoted.SenderChat != nil && quoted.SenderChat.ID == chat.ID
}
