package models

import (
	"time"

	"github.com/primesmshub/sms-hub-api/utils"
)

// OrderStatus is the lifecycle state of a purchased virtual number
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderReceived  OrderStatus = "received"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderTimeout   OrderStatus = "timeout"
)

// IsTerminal reports whether no further automated transition is allowed
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderCompleted, OrderCancelled, OrderTimeout:
		return true
	}
	return false
}

// ActiveStatuses are the statuses polling may still move forward
var ActiveStatuses = []OrderStatus{OrderPending, OrderReceived}

// Order represents one purchased virtual number
type Order struct {
	ID            string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	VendorOrderID string      `gorm:"not null;index" json:"vendor_order_id"`
	PhoneNumber   string      `gorm:"not null" json:"phone_number"`
	Service       string      `gorm:"not null" json:"service"`
	Country       string      `gorm:"not null" json:"country"`
	Price         utils.Cents `gorm:"column:price_cents;not null" json:"price"`
	Status        OrderStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"` // pending, received, completed, cancelled, timeout
	SMSText       string      `gorm:"type:text" json:"sms"`
	OTPCode       string      `gorm:"not null;default:''" json:"code"`
	ExpiresAt     *time.Time  `json:"expires_at"`
	UserID        uint        `gorm:"not null;index" json:"user_id"` // owner
	User          User        `gorm:"foreignKey:UserID" json:"-"`
	ReceivedAt    *time.Time  `json:"received_at,omitempty"`
	CancelledAt   *time.Time  `json:"cancelled_at,omitempty"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}
