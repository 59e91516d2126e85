package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/services"
)

var (
	// ErrEmptyMessage rejects whitespace-only browser messages
	ErrEmptyMessage = &services.AppError{Kind: services.KindValidation, Code: "EMPTY_MESSAGE", Message: emptyText}
	// ErrDeliveryFailed reports that the operator notification could not be sent; the message is still logged
	ErrDeliveryFailed = errors.New("relay: operator delivery failed")
)

// ReplyOutcome says what happened to an operator reply
type ReplyOutcome int

const (
	ReplyIgnored ReplyOutcome = iota
	ReplyDelivered
	ReplyStored
)

func (o ReplyOutcome) String() string {
	switch o {
	case ReplyDelivered:
		return "delivered"
	case ReplyStored:
		return "stored"
	default:
		return "ignored"
	}
}

// OperatorReply is an operator message that answers an earlier notification.
// QuotedByBot is true when the quoted message was posted by this bot
// (or is a post of the channel itself).
type OperatorReply struct {
	ChatID          string
	Text            string
	FromBot         bool
	QuotedMessageID int64
	QuotedText      string
	QuotedByBot     bool
}

// RouterDeps are the collaborators of a Router
type RouterDeps struct {
	Registry       *Registry
	Log            services.MessageLog
	Messenger      services.Messenger
	Correlations   services.CorrelationStore
	OperatorChatID string
	Logger         *slog.Logger
}

// Router correlates browser messages with operator replies
type Router struct {
	registry       *Registry
	log            services.MessageLog
	messenger      services.Messenger
	correlations   services.CorrelationStore
	operatorChatID string
	logger         *slog.Logger
	now            func() time.Time
}

func NewRouter(deps RouterDeps) *Router {
	return &Router{
		registry:       deps.Registry,
		log:            deps.Log,
		messenger:      deps.Messenger,
		correlations:   deps.Correlations,
		operatorChatID: deps.OperatorChatID,
		logger:         deps.Logger,
		now:            time.Now,
	}
}

// HandleSend forwards a browser message to the operator and logs it.
// The log write and the notification are independent; a failed notification
// yields ErrDeliveryFailed alongside a negative acknowledgement.
func (r *Router) HandleSend(ctx context.Context, connectionID string, msg SendMessage) (MessageSent, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return MessageSent{OK: false, Error: emptyText}, ErrEmptyMessage
	}
	details := msg.Details()

	notification := ComposeNotification(connectionID, text, details)
	sent, sendErr := r.messenger.SendMessage(ctx, r.operatorChatID, notification, services.Markdown)

	entry := models.RelayMessage{
		ConnectionID:   connectionID,
		Author:         models.AuthorWebUser,
		Text:           text,
		Timestamp:      r.now().UnixMilli(),
		ContactDetails: details,
	}
	if err := r.log.Append(ctx, entry); err != nil {
		r.logger.Error("failed to log relay message", "connection_id", connectionID, "error", err)
	}

	if sendErr != nil {
		r.logger.Warn("operator notification failed", "connection_id", connectionID, "error", sendErr)
		return MessageSent{OK: false, Error: undelivered}, fmt.Errorf("%w: %v", ErrDeliveryFailed, sendErr)
	}

	if r.correlations != nil && sent != nil && sent.MessageID != 0 {
		if err := r.correlations.Remember(ctx, int64(sent.MessageID), connectionID); err != nil {
			r.logger.Warn("failed to remember correlation", "connection_id", connectionID, "message_id", sent.MessageID, "error", err)
		}
	}

	return MessageSent{OK: true, Message: sentAckText}, nil
}

// HandleOperatorReply routes a reply back to the browser it answers.
// Only replies posted in the operator chat to one of the bot's notifications count.
// Without a configured operator chat every reply is ignored.
func (r *Router) HandleOperatorReply(ctx context.Context, reply OperatorReply) ReplyOutcome {
	text := strings.TrimSpace(reply.Text)
	if reply.FromBot || text == "" {
		return ReplyIgnored
	}
	if reply.ChatID != r.operatorChatID || r.operatorChatID == "" {
		r.logger.Warn("reply from outside the operator chat ignored", "chat_id", reply.ChatID)
		return ReplyIgnored
	}
	if !reply.QuotedByBot {
		return ReplyIgnored
	}

	connectionID, ok := r.resolve(ctx, reply)
	if !ok {
		return ReplyIgnored
	}

	entry := models.RelayMessage{
		ReplyToConnectionID: connectionID,
		Author:              models.AuthorSupport,
		Text:                text,
		Timestamp:           r.now().UnixMilli(),
	}
	if err := r.log.Append(ctx, entry); err != nil {
		r.logger.Error("failed to log support reply", "connection_id", connectionID, "error", err)
	}

	// the connection may have closed while we were logging
	if ch, found := r.registry.Lookup(connectionID); found {
		err := ch.Emit(TgMessage{Text: text, From: supportAuthor, Timestamp: r.now().UTC().Format(time.RFC3339)})
		if err == nil {
			r.confirm(ctx, reply.ChatID, deliveredText)
			return ReplyDelivered
		}
		r.logger.Warn("live delivery failed, falling back to history", "connection_id", connectionID, "error", err)
	}

	r.confirm(ctx, reply.ChatID, offlineText)
	return ReplyStored
}

func (r *Router) resolve(ctx context.Context, reply OperatorReply) (string, bool) {
	if r.correlations != nil && reply.QuotedMessageID != 0 {
		id, err := r.correlations.Resolve(ctx, reply.QuotedMessageID)
		if err != nil {
			r.logger.Warn("correlation lookup failed", "message_id", reply.QuotedMessageID, "error", err)
		}
		if id != "" {
			return id, true
		}
	}
	return ExtractConnectionID(reply.QuotedText)
}

func (r *Router) confirm(ctx context.Context, chatID, text string) {
	if chatID == "" {
		chatID = r.operatorChatID
	}
	if _, err := r.messenger.SendMessage(ctx, chatID, text, services.SendOptions{}); err != nil {
		r.logger.Warn("failed to notify operator", "chat_id", chatID, "error", err)
	}
}

// Welcome greets a new connection and logs the greeting as a System entry so
// history replays can tell it apart from real conversation.
func (r *Router) Welcome(ctx context.Context, connectionID string, ch Channel) {
	now := r.now()
	if err := ch.Emit(TgMessage{Text: welcomeText, From: supportAuthor, Timestamp: now.UTC().Format(time.RFC3339)}); err != nil {
		r.logger.Debug("welcome not delivered", "connection_id", connectionID, "error", err)
	}
	if r.operatorChatID != "" {
		_ = ch.Emit(DefaultChat{ChatID: r.operatorChatID})
	}

	entry := models.RelayMessage{
		ConnectionID: connectionID,
		Author:       models.AuthorSystem,
		Text:         welcomeText,
		Timestamp:    now.UnixMilli(),
	}
	if err := r.log.Append(ctx, entry); err != nil {
		r.logger.Warn("failed to log welcome", "connection_id", connectionID, "error", err)
	}
}

// History returns the log newest first, filtered to connectionID when it is set
func (r *Router) History(ctx context.Context, connectionID string) ([]models.RelayMessage, error) {
	msgs, err := r.log.List(ctx)
	if err != nil {
		return nil, err
	}
	if connectionID == "" {
		return msgs, nil
	}
	return services.FilterByConnection(msgs, connectionID), nil
}
