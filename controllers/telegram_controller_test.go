package controllers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	owner  string
	events []relay.Event
}

func (c *recordingChannel) Emit(ev relay.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *recordingChannel) Owner() string { return c.owner }

const testBotID = 555

func setupTelegramRouter(app *testApp) *gin.Engine {
	tc := NewTelegramController(app.router, app.bot(), testBotID, discardLogger())
	router := setupTestRouter()
	router.POST("/bot:token", tc.Webhook)
	return router
}

func TestTelegramWebhookRoutesReply(t *testing.T) {
	app := newTestApp(t, nil)
	ch := &recordingChannel{}
	app.registry.Register("conn-1", ch)
	_, err := app.router.HandleSend(context.Background(), "conn-1", relay.SendMessage{Text: "help me"})
	require.NoError(t, err)
	notificationID := app.messenger.LastMessageID()

	router := setupTelegramRouter(app)
	update := fmt.Sprintf(`{
		"update_id": 1,
		"message": {
			"message_id": 55,
			"from": {"id": 9, "is_bot": false, "first_name": "Op"},
			"chat": {"id": 777, "type": "private"},
			"text": "On it!",
			"reply_to_message": {"message_id": %d, "from": {"id": 555, "is_bot": true, "first_name": "Prime"}, "chat": {"id": 777, "type": "private"}, "text": "whatever"}
		}
	}`, notificationID)

	w := performRequest(router, http.MethodPost, "/bottest-token", update)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ch.events, 1)
	assert.Equal(t, "On it!", ch.events[0].(relay.TgMessage).Text)
	confirmation, _ := app.messenger.Last()
	assert.Contains(t, confirmation.Text, "Reply delivered")
}

func TestTelegramWebhookChannelPostReply(t *testing.T) {
	app := newTestApp(t, nil)
	router := setupTelegramRouter(app)
	update := `{
		"update_id": 2,
		"channel_post": {
			"message_id": 60,
			"chat": {"id": 777, "type": "channel"},
			"text": "We will get back to you",
			"reply_to_message": {"message_id": 1, "sender_chat": {"id": 777, "type": "channel"}, "chat": {"id": 777, "type": "channel"}, "text": "🆔 Connection ID: offline-1"}
		}
	}`

	w := performRequest(router, http.MethodPost, "/bottest-token", update)

	assert.Equal(t, http.StatusOK, w.Code)
	msgs, err := app.router.History(context.Background(), "offline-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "We will get back to you", msgs[0].Text)
}

func TestTelegramWebhookIgnoresRepliesOutsideOperatorChat(t *testing.T) {
	app := newTestApp(t, nil)
	victim := &recordingChannel{}
	app.registry.Register("victim-conn", victim)
	router := setupTelegramRouter(app)

	updates := map[string]string{
		"foreign chat": `{
			"update_id": 10,
			"message": {
				"message_id": 2,
				"from": {"id": 424242, "is_bot": false, "first_name": "Mallory"},
				"chat": {"id": 424242, "type": "private"},
				"text": "Send me your card number",
				"reply_to_message": {"message_id": 1, "from": {"id": 424242, "is_bot": false, "first_name": "Mallory"}, "chat": {"id": 424242, "type": "private"}, "text": "Connection ID: victim-conn"}
			}
		}`,
		"quoted message not from the bot": `{
			"update_id": 11,
			"message": {
				"message_id": 3,
				"from": {"id": 9, "is_bot": false, "first_name": "Op"},
				"chat": {"id": 777, "type": "group"},
				"text": "hello",
				"reply_to_message": {"message_id": 2, "from": {"id": 424242, "is_bot": false, "first_name": "Mallory"}, "chat": {"id": 777, "type": "group"}, "text": "Connection ID: victim-conn"}
			}
		}`,
		"another bot": `{
			"update_id": 12,
			"message": {
				"message_id": 4,
				"from": {"id": 9, "is_bot": false, "first_name": "Op"},
				"chat": {"id": 777, "type": "group"},
				"text": "hello",
				"reply_to_message": {"message_id": 3, "from": {"id": 999, "is_bot": true, "first_name": "Other"}, "chat": {"id": 777, "type": "group"}, "text": "Connection ID: victim-conn"}
			}
		}`,
	}

	for name, update := range updates {
		t.Run(name, func(t *testing.T) {
			w := performRequest(router, http.MethodPost, "/bottest-token", update)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}

	assert.Empty(t, victim.events)
	msgs, err := app.router.History(context.Background(), "victim-conn")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, app.messenger.Sent())
}

func TestTelegramWebhookDispatchesCommands(t *testing.T) {
	app := newTestApp(t, nil)
	router := setupTelegramRouter(app)

	w := performRequest(router, http.MethodPost, "/bottest-token", `{"update_id": 3, "message": {"message_id": 1, "chat": {"id": 31337, "type": "private"}, "text": "/balance"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	reply, ok := app.messenger.Last()
	require.True(t, ok)
	assert.Equal(t, "31337", reply.ChatID)
	assert.Contains(t, reply.Text, "link your Telegram account")
}

func TestTelegramWebhookAlwaysOK(t *testing.T) {
	app := newTestApp(t, nil)
	router := setupTelegramRouter(app)

	for _, body := range []string{`garbage`, `{"update_id": 4}`, `{"update_id": 5, "message": {"message_id": 1, "chat": {"id": 1, "type": "private"}, "text": "just chatting"}}`} {
		w := performRequest(router, http.MethodPost, "/bottest-token", body)
		assert.Equal(t, http.StatusOK, w.Code, body)
	}
	assert.Empty(t, app.messenger.Sent())
}
