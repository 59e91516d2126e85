package models

import (
	"time"

	"github.com/primesmshub/sms-hub-api/utils"
	"gorm.io/gorm"
)

// User represents an account holder with a prepaid wallet
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Auth0ID        string         `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name           string         `gorm:"not null" json:"name"`
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`
	Wallet         utils.Cents    `gorm:"column:wallet_cents;not null;default:0" json:"wallet"`
	TelegramChatID *int64         `gorm:"uniqueIndex" json:"telegram_chat_id,omitempty"` // set by /api/auth/link-telegram
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}
