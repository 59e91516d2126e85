package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/services"
)

// EventType names a socket frame
type EventType string

const (
	EventSendMessage  EventType = "send_message"
	EventPollSMS      EventType = "poll_sms"
	EventStopPolling  EventType = "stop_polling"
	EventMessageSent  EventType = "message_sent"
	EventTgMessage    EventType = "tg_message"
	EventDefaultChat  EventType = "default_chat"
	EventError        EventType = "error"
	EventSMSUpdate    EventType = "sms_update"
	EventSMSReceived  EventType = "sms_received"
	EventSMSTimeout   EventType = "sms_timeout"
	EventWalletUpdate EventType = "wallet_update"
)

// Envelope is the wire shape of every frame: {"type": ..., "data": {...}}
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is one of the fixed frame variants below
type Event interface {
	Type() EventType
}

// SendMessage is a browser message for the operator
type SendMessage struct {
	Text           string                 `json:"text"`
	ContactDetails *models.ContactDetails `json:"contactDetails,omitempty"`
	// UserDetails is the older field name some clients still send
	UserDetails *models.ContactDetails `json:"userDetails,omitempty"`
}

// Details returns whichever contact block the client supplied
func (m SendMessage) Details() *models.ContactDetails {
	if !m.ContactDetails.IsEmpty() {
		return m.ContactDetails
	}
	if !m.UserDetails.IsEmpty() {
		return m.UserDetails
	}
	return nil
}

// PollSMS asks the server to watch an order for its code
type PollSMS struct {
	OrderID string `json:"orderId"`
}

// StopPolling halts the connection's active poll
type StopPolling struct{}

// MessageSent acknowledges a SendMessage
type MessageSent struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TgMessage carries support text to a browser
type TgMessage struct {
	Text      string `json:"text"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
}

// DefaultChat tells the client which operator chat it is talking to
type DefaultChat struct {
	ChatID string `json:"chatId"`
}

// ErrorEvent reports a rejected inbound frame
type ErrorEvent struct {
	Message string `json:"message"`
}

// SMSUpdate is emitted after every poll attempt
type SMSUpdate struct {
	OrderID string             `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
	SMS     string             `json:"sms,omitempty"`
	Code    string             `json:"code,omitempty"`
	Attempt int                `json:"attempt"`
}

// SMSReceived ends a poll with a code
type SMSReceived struct {
	OrderID string `json:"orderId"`
	SMS     string `json:"sms"`
	Code    string `json:"code"`
}

// SMSTimeout ends a poll without a code
type SMSTimeout struct {
	OrderID string             `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
	Message string             `json:"message"`
}

// WalletUpdate pushes a new balance after a top-up
type WalletUpdate services.WalletUpdate

func (SendMessage) Type() EventType  { return EventSendMessage }
func (PollSMS) Type() EventType      { return EventPollSMS }
func (StopPolling) Type() EventType  { return EventStopPolling }
func (MessageSent) Type() EventType  { return EventMessageSent }
func (TgMessage) Type() EventType    { return EventTgMessage }
func (DefaultChat) Type() EventType  { return EventDefaultChat }
func (ErrorEvent) Type() EventType   { return EventError }
func (SMSUpdate) Type() EventType    { return EventSMSUpdate }
func (SMSReceived) Type() EventType  { return EventSMSReceived }
func (SMSTimeout) Type() EventType   { return EventSMSTimeout }
func (WalletUpdate) Type() EventType { return EventWalletUpdate }

// Encode wraps ev in its envelope
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: ev.Type(), Data: data})
}

// DecodeInbound parses a client frame into one of the inbound variants
func DecodeInbound(frame []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch env.Type {
	case EventSendMessage:
		var m SendMessage
		if err := decodeData(env.Data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case EventPollSMS:
		var m PollSMS
		if err := decodeData(env.Data, &m); err != nil {
			return nil, err
		}
		m.OrderID = strings.TrimSpace(m.OrderID)
		if m.OrderID == "" {
			return nil, fmt.Errorf("poll_sms requires orderId")
		}
		return m, nil
	case EventStopPolling:
		return StopPolling{}, nil
	default:
		return nil, fmt.Errorf("unsupported event %q", env.Type)
	}
}

func decodeData(data json.RawMessage, out interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed data: %w", err)
	}
	return nil
}
