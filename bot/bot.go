package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/services"
	"github.com/primesmshub/sms-hub-api/utils"
)

const (
	notLinkedText = "❌ Please link your Telegram account first."
	unknownText   = "❓ Unknown command. Type /start to see what I can do."
	usageText     = "❌ Usage: /%s <orderId>"
	recentLimit   = 10
)

// Users resolves a Telegram chat to its linked account
type Users interface {
	FindByTelegramChat(ctx context.Context, chatID int64) (*models.User, error)
}

// Orders is the subset of the order service the bot drives
type Orders interface {
	CheckSMS(ctx context.Context, ownerID uint, orderID string) (*models.Order, error)
	Cancel(ctx context.Context, ownerID uint, orderID string) (*services.CancelResult, error)
	Finish(ctx context.Context, ownerID uint, orderID string) (*models.Order, error)
	ListForUser(ctx context.Context, ownerID uint) ([]models.Order, error)
}

// Wallets reports balances
type Wallets interface {
	Balance(ctx context.Context, userID uint) (utils.Cents, error)
}

// Command is a parsed slash command
type Command struct {
	Name string
	Arg  string
}

// ParseCommand splits "/name@bot arg" into its parts
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}
	head, arg, _ := strings.Cut(text[1:], " ")
	name, _, _ := strings.Cut(head, "@")
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Arg: strings.TrimSpace(arg)}, true
}

// Bot answers slash commands sent to the Telegram bot
type Bot struct {
	messenger    services.Messenger
	users        Users
	orders       Orders
	wallets      Wallets
	dashboardURL string
	logger       *slog.Logger
}

func New(messenger services.Messenger, users Users, orders Orders, wallets Wallets, dashboardURL string, logger *slog.Logger) *Bot {
	return &Bot{
		messenger:    messenger,
		users:        users,
		orders:       orders,
		wallets:      wallets,
		dashboardURL: dashboardURL,
		logger:       logger,
	}
}

// Handle runs the command in text and replies in chatID.
// It reports false when text is not a command.
func (b *Bot) Handle(ctx context.Context, chatID int64, text string) bool {
	cmd, ok := ParseCommand(text)
	if !ok {
		return false
	}

	reply, opts := b.run(ctx, chatID, cmd)
	if _, err := b.messenger.SendMessage(ctx, strconv.FormatInt(chatID, 10), reply, opts); err != nil {
		b.logger.Warn("bot reply failed", "chat_id", chatID, "command", cmd.Name, "error", err)
	}
	return true
}

func (b *Bot) run(ctx context.Context, chatID int64, cmd Command) (string, services.SendOptions) {
	switch cmd.Name {
	case "start", "help":
		return b.startText(), services.Markdown
	case "balance", "sms", "cancel", "finish", "transactions":
	default:
		return unknownText, services.SendOptions{}
	}

	user, err := b.users.FindByTelegramChat(ctx, chatID)
	if err != nil {
		if services.IsKind(err, services.KindNotFound) {
			return notLinkedText, services.SendOptions{}
		}
		return errorText(err), services.SendOptions{}
	}

	switch cmd.Name {
	case "balance":
		return b.balance(ctx, user)
	case "transactions":
		return b.transactions(ctx, user)
	}

	if cmd.Arg == "" {
		return fmt.Sprintf(usageText, cmd.Name), services.SendOptions{}
	}
	switch cmd.Name {
	case "sms":
		return b.sms(ctx, user, cmd.Arg)
	case "cancel":
		return b.cancel(ctx, user, cmd.Arg)
	default:
		return b.finish(ctx, user, cmd.Arg)
	}
}

func (b *Bot) startText() string {
	var sb strings.Builder
	sb.WriteString("🤖 Welcome to Prime SMS Hub Bot!\n\n")
	sb.WriteString("Manage your virtual numbers and wallet right from Telegram.\n\n")
	sb.WriteString("📋 *Available Commands:*\n")
	sb.WriteString("/balance - Check your wallet balance\n")
	sb.WriteString("/sms <orderId> - Get the OTP for an order\n")
	sb.WriteString("/cancel <orderId> - Cancel an order\n")
	sb.WriteString("/finish <orderId> - Mark an order as completed\n")
	sb.WriteString("/transactions - View your recent orders\n\n")
	sb.WriteString("⚠️ *Note:* link your Telegram account in the web dashboard first.")
	if b.dashboardURL != "" {
		sb.WriteString("\nVisit: " + b.dashboardURL)
	}
	return sb.String()
}

func (b *Bot) balance(ctx context.Context, user *models.User) (string, services.SendOptions) {
	balance, err := b.wallets.Balance(ctx, user.ID)
	if err != nil {
		return errorText(err), services.SendOptions{}
	}
	return fmt.Sprintf("💰 *Your Wallet Balance*\n\nBalance: $%s USD", balance), services.Markdown
}

func (b *Bot) sms(ctx context.Context, user *models.User, orderID string) (string, services.SendOptions) {
	order, err := b.orders.CheckSMS(ctx, user.ID, orderID)
	if err != nil {
		return errorText(err), services.SendOptions{}
	}

	status := "⏳ " + string(order.Status)
	if order.Status == models.OrderReceived {
		status = "✅ SMS Received"
	}
	code := "Waiting for SMS..."
	if order.OTPCode != "" {
		code = "Code: `" + order.OTPCode + "`"
	}
	text := fmt.Sprintf("📱 *Order Details*\n\nPhone: %s\nService: %s\nCountry: %s\nStatus: %s\n%s",
		services.EscapeMarkdown(order.PhoneNumber), services.EscapeMarkdown(order.Service), services.EscapeMarkdown(order.Country), status, code)
	return text, services.Markdown
}

func (b *Bot) cancel(ctx context.Context, user *models.User, orderID string) (string, services.SendOptions) {
	result, err := b.orders.Cancel(ctx, user.ID, orderID)
	if err != nil {
		return errorText(err), services.SendOptions{}
	}
	return fmt.Sprintf("✅ Order cancelled successfully. $%s refunded to your wallet.", result.Refund), services.SendOptions{}
}

func (b *Bot) finish(ctx context.Context, user *models.User, orderID string) (string, services.SendOptions) {
	if _, err := b.orders.Finish(ctx, user.ID, orderID); err != nil {
		return errorText(err), services.SendOptions{}
	}
	return "✅ Order marked as completed", services.SendOptions{}
}

func (b *Bot) transactions(ctx context.Context, user *models.User) (string, services.SendOptions) {
	orders, err := b.orders.ListForUser(ctx, user.ID)
	if err != nil {
		return errorText(err), services.SendOptions{}
	}
	if len(orders) == 0 {
		return "📋 No transactions yet", services.SendOptions{}
	}
	if len(orders) > recentLimit {
		orders = orders[:recentLimit]
	}

	var sb strings.Builder
	sb.WriteString("📋 *Your Recent Transactions*\n\n")
	for i, o := range orders {
		fmt.Fprintf(&sb, "%d. %s (%s) - $%s\n", i+1, services.EscapeMarkdown(o.Service), services.EscapeMarkdown(o.Country), o.Price)
		fmt.Fprintf(&sb, "   Status: %s | Phone: %s\n\n", o.Status, services.EscapeMarkdown(o.PhoneNumber))
	}
	return sb.String(), services.Markdown
}

func errorText(err error) string {
	if appErr, ok := services.AsAppError(err); ok {
		if appErr.Kind == services.KindOwnership {
			return "❌ You do not own this order"
		}
		if appErr.Kind != services.KindInternal {
			return "❌ " + appErr.Message
		}
	}
	return "❌ Something went wrong, please try again later."
}
