package models

import "time"

// PaymentEvent stores a payment provider webhook delivery for idempotent processing
type PaymentEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;uniqueIndex:ux_payment_events_provider_event,priority:1" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_payment_events_provider_event,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Reference       string     `gorm:"type:varchar(191);index" json:"reference"`
	PayloadJSON     string     `gorm:"type:text;not null" json:"payload_json"`
	ArchiveKey      string     `json:"archive_key,omitempty"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the PaymentEvent model
func (PaymentEvent) TableName() string {
	return "payment_events"
}
