package relay

import (
	"regexp"
	"strings"

	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/services"
)

const (
	welcomeText   = "👋 Hello! Welcome to PrimeSmsHub. How can we help you today?"
	deliveredText = "✅ Reply delivered to user in browser!"
	offlineText   = "⌛ User is currently offline. They will see your message when they return."
	sentAckText   = "Your message has been sent to our support team!"
	emptyText     = "Message cannot be empty"
	undelivered   = "Failed to send message"

	supportAuthor = "Support"
)

// connectionIDPattern finds the id in a quoted notification. Telegram strips the
// Markdown markers from quoted text, so the backticks and bold stars are optional.
var connectionIDPattern = regexp.MustCompile("(?:Connection|Socket) ID:\\*{0,2}\\s*`?([a-zA-Z0-9._-]+)`?")

// ComposeNotification renders the operator-side text for a browser message
func ComposeNotification(connectionID, text string, details *models.ContactDetails) string {
	from := connectionID
	if !details.IsEmpty() {
		if details.Name != "" {
			from = details.Name
		} else if details.Email != "" {
			from = details.Email
		}
	}

	var b strings.Builder
	b.WriteString("🌐 *NEW MESSAGE FROM WEB SUPPORT*\n")
	b.WriteString("━━━━━━━━━━━━━━━━━━━━\n")
	b.WriteString("👤 *From:* " + services.EscapeMarkdown(from) + "\n")
	if details != nil && details.Email != "" {
		b.WriteString("📧 *Email:* `" + stripBackticks(details.Email) + "`\n")
	}
	if details != nil && details.Phone != "" {
		b.WriteString("📱 *Phone:* `" + stripBackticks(details.Phone) + "`\n")
	}
	b.WriteString("🆔 *Connection ID:* `" + connectionID + "`\n")
	b.WriteString("💬 *Message:* " + services.EscapeMarkdown(text) + "\n")
	b.WriteString("━━━━━━━━━━━━━━━━━━━━\n")
	b.WriteString("_Reply to this message to answer the user._")
	return b.String()
}

// ExtractConnectionID recovers the id embedded by ComposeNotification
func ExtractConnectionID(quoted string) (string, bool) {
	m := connectionIDPattern.FindStringSubmatch(quoted)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

func stripBackticks(s string) string {
	return strings.ReplaceAll(s, "`", "")
}
