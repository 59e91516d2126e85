package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewPaymentReference builds a unique top-up reference of the form PSH-<uid>-<ms>-<hex>
func NewPaymentReference(userID uint, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("PSH-%d-%d-%s", userID, now.UnixMilli(), suffix)
}

// NewConnectionID returns a process-unique identifier for a duplex connection
func NewConnectionID() string {
	return uuid.NewString()
}

// NewOrderID returns the public identifier for an order
func NewOrderID() string {
	return uuid.NewString()
}
