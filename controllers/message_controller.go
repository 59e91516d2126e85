package controllers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/relay"
	"github.com/primesmshub/sms-hub-api/services"
)

// chatID accepts both "123" and 123 in request bodies
type chatID string

func (id *chatID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = chatID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = chatID(n.String())
	return nil
}

// SendRequest is the body of POST /api/send
type SendRequest struct {
	ChatID chatID `json:"chatId"`
	Text   string `json:"text"`
}

// MessageController exposes the relay history and direct Telegram sends
type MessageController struct {
	router    *relay.Router
	messenger services.Messenger
	logger    *slog.Logger
}

func NewMessageController(router *relay.Router, messenger services.Messenger, logger *slog.Logger) *MessageController {
	return &MessageController{router: router, messenger: messenger, logger: logger}
}

// ListMessages handles GET /api/messages[?connectionId=]
func (mc *MessageController) ListMessages(c *gin.Context) {
	msgs, err := mc.router.History(c.Request.Context(), c.Query("connectionId"))
	if err != nil {
		mc.logger.Error("failed to read message log", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":       false,
			"messages": []interface{}{},
			"error":    "Failed to load messages",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"messages": msgs,
		"count":    len(msgs),
	})
}

// Send handles POST /api/send - relays text to any Telegram chat
func (mc *MessageController) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChatID == "" || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "chatId and text required"})
		return
	}

	result, err := mc.messenger.SendMessage(c.Request.Context(), string(req.ChatID), req.Text, services.SendOptions{})
	if err != nil {
		status := http.StatusBadGateway
		message := "Failed to send message"
		if appErr, ok := services.AsAppError(err); ok {
			message = appErr.Message
			if appErr.Kind != services.KindUpstream {
				status = appErr.Status()
			}
		}
		c.JSON(status, gin.H{"ok": false, "error": message})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}
