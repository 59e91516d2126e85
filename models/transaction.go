package models

import (
	"time"

	"github.com/primesmshub/sms-hub-api/utils"
)

// TransactionType distinguishes wallet movements
type TransactionType string

const (
	TransactionTopUp    TransactionType = "wallet_topup"
	TransactionPurchase TransactionType = "number_purchase"
	TransactionRefund   TransactionType = "refund"
)

// TransactionStatus tracks a wallet movement from intent to settlement
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"   // top-up initialized, not yet paid
	TransactionReserved  TransactionStatus = "reserved"  // purchase hold taken from the wallet
	TransactionCompleted TransactionStatus = "completed" // settled
	TransactionReleased  TransactionStatus = "released"  // hold returned to the wallet
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is one wallet ledger entry owned by a user.
// Purchases link to the order they paid for.
type Transaction struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	UserID           uint              `gorm:"not null;index" json:"user_id"`
	Type             TransactionType   `gorm:"type:varchar(20);not null;index" json:"type"`
	Amount           utils.Cents       `gorm:"column:amount_cents;not null" json:"amount"`
	Currency         string            `gorm:"type:varchar(8);not null;default:'USD'" json:"currency"`
	Status           TransactionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Reference        *string           `gorm:"uniqueIndex" json:"reference,omitempty"`
	AuthorizationURL string            `json:"authorization_url,omitempty"`
	OrderID          *string           `gorm:"type:varchar(36);index" json:"order_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// TableName specifies the table name for the Transaction model
func (Transaction) TableName() string {
	return "transactions"
}
