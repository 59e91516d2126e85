package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/utils"
	"gorm.io/gorm"
)

// OrderOptions are the pricing knobs of the purchase flow
type OrderOptions struct {
	HoldAmount  utils.Cents // reserved before the vendor is called
	RefundRatio float64     // share of the price returned on cancel
}

// OrderService runs the purchase and lifecycle of virtual numbers
type OrderService struct {
	db     *gorm.DB
	vendor NumberVendor
	opts   OrderOptions
	logger *slog.Logger
	now    func() time.Time
}

func NewOrderService(db *gorm.DB, vendor NumberVendor, opts OrderOptions, logger *slog.Logger) *OrderService {
	return &OrderService{db: db, vendor: vendor, opts: opts, logger: logger, now: time.Now}
}

// CancelResult reports a cancelled order and the amount returned to the wallet
type CancelResult struct {
	Order  *models.Order
	Refund utils.Cents
}

// Purchase reserves the hold, buys from the vendor, then settles the wallet against the real price.
// The vendor is never called unless the hold was taken.
func (s *OrderService) Purchase(ctx context.Context, ownerID uint, country, service string) (*models.Order, error) {
	country = strings.TrimSpace(country)
	service = strings.TrimSpace(service)
	if country == "" || service == "" {
		return nil, NewValidationError("Country and service are required")
	}

	db := s.db.WithContext(ctx)
	hold := s.opts.HoldAmount

	reservation := models.Transaction{
		UserID:   ownerID,
		Type:     models.TransactionPurchase,
		Amount:   hold,
		Currency: "USD",
		Status:   models.TransactionReserved,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := debitWallet(tx, ownerID, hold); err != nil {
			return err
		}
		return tx.Create(&reservation).Error
	})
	if err != nil {
		if appErr, ok := AsAppError(err); ok {
			return nil, appErr
		}
		return nil, NewInternalError("failed to reserve funds", err)
	}

	bought, err := s.vendor.Buy(ctx, country, service)
	if err != nil {
		s.release(ctx, &reservation)
		return nil, err
	}

	order := &models.Order{
		ID:            utils.NewOrderID(),
		VendorOrderID: bought.ID,
		PhoneNumber:   bought.PhoneNumber,
		Service:       bought.Service,
		Country:       bought.Country,
		Price:         bought.Price,
		Status:        models.OrderPending,
		ExpiresAt:     bought.ExpiresAt,
		UserID:        ownerID,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		diff := hold - bought.Price
		switch {
		case diff < 0:
			if err := debitWallet(tx, ownerID, -diff); err != nil {
				return err
			}
		case diff > 0:
			if err := creditWallet(tx, ownerID, diff); err != nil {
				return err
			}
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		return tx.Model(&reservation).Updates(map[string]interface{}{
			"status":       models.TransactionCompleted,
			"amount_cents": bought.Price,
			"order_id":     order.ID,
		}).Error
	})
	if err != nil {
		// the number is allocated but cannot be paid for; hand it back
		if cancelErr := s.vendor.Cancel(ctx, bought.ID); cancelErr != nil {
			s.logger.Error("failed to cancel unpaid vendor order", "vendor_order_id", bought.ID, "error", cancelErr)
		}
		s.release(ctx, &reservation)
		if appErr, ok := AsAppError(err); ok {
			return nil, appErr
		}
		return nil, NewInternalError("Failed to save order", err)
	}

	s.logger.Info("number purchased", "order_id", order.ID, "vendor_order_id", order.VendorOrderID, "price", order.Price.String(), "user_id", ownerID)
	return order, nil
}

// release returns a reserved hold to the wallet
func (s *OrderService) release(ctx context.Context, reservation *models.Transaction) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(reservation).
			Where("status = ?", models.TransactionReserved).
			Update("status", models.TransactionReleased)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		return creditWallet(tx, reservation.UserID, reservation.Amount)
	})
	if err != nil {
		s.logger.Error("failed to release purchase hold", "transaction_id", reservation.ID, "user_id", reservation.UserID, "error", err)
	}
}

// Get loads an order and checks that ownerID owns it
func (s *OrderService) Get(ctx context.Context, ownerID uint, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &AppError{Kind: KindNotFound, Code: "ORDER_NOT_FOUND", Message: "Order not found"}
		}
		return nil, NewInternalError("failed to load order", err)
	}
	if order.UserID != ownerID {
		return nil, NewOwnershipError("Unauthorized")
	}
	return &order, nil
}

// CheckSMS asks the vendor for news on an active order and persists what it learns.
// Terminal orders are returned as stored without a vendor call.
func (s *OrderService) CheckSMS(ctx context.Context, ownerID uint, orderID string) (*models.Order, error) {
	order, err := s.Get(ctx, ownerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return order, nil
	}

	check, err := s.vendor.Check(ctx, order.VendorOrderID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	now := s.now()

	switch check.Status {
	case models.OrderReceived:
		if check.Code == "" {
			break
		}
		// otp_code = '' makes the first code stick
		result := db.Model(&models.Order{}).
			Where("id = ? AND otp_code = '' AND status IN ?", order.ID, models.ActiveStatuses).
			Updates(map[string]interface{}{
				"status":      models.OrderReceived,
				"sms_text":    check.SMS,
				"otp_code":    check.Code,
				"received_at": now,
			})
		if result.Error != nil {
			return nil, NewInternalError("failed to store sms", result.Error)
		}
		if result.RowsAffected > 0 {
			s.logger.Info("sms received", "order_id", order.ID, "vendor_order_id", order.VendorOrderID)
		}
	case models.OrderTimeout, models.OrderCancelled, models.OrderCompleted:
		updates := map[string]interface{}{"status": check.Status}
		if check.Status == models.OrderCancelled {
			updates["cancelled_at"] = now
		}
		if check.Status == models.OrderCompleted {
			updates["completed_at"] = now
		}
		if err := db.Model(&models.Order{}).
			Where("id = ? AND status IN ?", order.ID, models.ActiveStatuses).
			Updates(updates).Error; err != nil {
			return nil, NewInternalError("failed to update order", err)
		}
	}

	return s.Get(ctx, ownerID, orderID)
}

// Cancel releases the number at the vendor and refunds part of the price
func (s *OrderService) Cancel(ctx context.Context, ownerID uint, orderID string) (*CancelResult, error) {
	order, err := s.Get(ctx, ownerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, NewConflictError(fmt.Sprintf("Order is already %s", order.Status))
	}

	if err := s.vendor.Cancel(ctx, order.VendorOrderID); err != nil {
		return nil, err
	}

	refund := order.Price.Scale(s.opts.RefundRatio)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status IN ?", order.ID, models.ActiveStatuses).
			Updates(map[string]interface{}{"status": models.OrderCancelled, "cancelled_at": s.now()})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NewConflictError("Order is no longer active")
		}
		if refund <= 0 {
			return nil
		}
		if err := creditWallet(tx, ownerID, refund); err != nil {
			return err
		}
		orderRef := order.ID
		return tx.Create(&models.Transaction{
			UserID:   ownerID,
			Type:     models.TransactionRefund,
			Amount:   refund,
			Currency: "USD",
			Status:   models.TransactionCompleted,
			OrderID:  &orderRef,
		}).Error
	})
	if err != nil {
		if appErr, ok := AsAppError(err); ok {
			return nil, appErr
		}
		return nil, NewInternalError("failed to cancel order", err)
	}

	s.logger.Info("order cancelled", "order_id", order.ID, "refund", refund.String())
	cancelled, err := s.Get(ctx, ownerID, orderID)
	if err != nil {
		return nil, err
	}
	return &CancelResult{Order: cancelled, Refund: refund}, nil
}

// Finish closes the order at the vendor once the code has been used
func (s *OrderService) Finish(ctx context.Context, ownerID uint, orderID string) (*models.Order, error) {
	order, err := s.Get(ctx, ownerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, NewConflictError(fmt.Sprintf("Order is already %s", order.Status))
	}

	if err := s.vendor.Finish(ctx, order.VendorOrderID); err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", order.ID, models.ActiveStatuses).
		Updates(map[string]interface{}{"status": models.OrderCompleted, "completed_at": s.now()})
	if result.Error != nil {
		return nil, NewInternalError("failed to finish order", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, NewConflictError("Order is no longer active")
	}

	return s.Get(ctx, ownerID, orderID)
}

// ListForUser returns every order of ownerID, newest first
func (s *OrderService) ListForUser(ctx context.Context, ownerID uint) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, NewInternalError("failed to load orders", err)
	}
	return orders, nil
}

// Products lists what the vendor currently sells in country
func (s *OrderService) Products(ctx context.Context, country string) (map[string]VendorProduct, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return nil, NewValidationError("Country is required")
	}
	return s.vendor.Products(ctx, country)
}
