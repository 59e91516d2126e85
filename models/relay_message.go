package models

// Author identifies who produced a relay message
type Author string

const (
	AuthorWebUser Author = "WebUser"
	AuthorSupport Author = "Support"
	AuthorSystem  Author = "System"
)

// ContactDetails are optional self-reported details a web user attaches to a message
type ContactDetails struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// IsEmpty reports whether no detail was supplied
func (d *ContactDetails) IsEmpty() bool {
	return d == nil || (d.Name == "" && d.Email == "" && d.Phone == "")
}

// RelayMessage is one entry of the support relay history.
// Web user and system entries carry ConnectionID; support replies carry ReplyToConnectionID.
type RelayMessage struct {
	ConnectionID        string          `json:"connectionId,omitempty"`
	ReplyToConnectionID string          `json:"replyToConnectionId,omitempty"`
	Text                string          `json:"text"`
	Author              Author          `json:"author"`
	Timestamp           int64           `json:"timestamp"` // epoch milliseconds
	ContactDetails      *ContactDetails `json:"contactDetails,omitempty"`
}

// RoutingKey returns the connection this entry belongs to, whichever direction it travelled
func (m RelayMessage) RoutingKey() string {
	if m.Author == AuthorSupport {
		return m.ReplyToConnectionID
	}
	return m.ConnectionID
}

// BelongsTo reports whether the entry is part of the conversation with connectionID
func (m RelayMessage) BelongsTo(connectionID string) bool {
	return m.ConnectionID == connectionID || m.ReplyToConnectionID == connectionID
}
