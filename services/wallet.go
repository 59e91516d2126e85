package services

import (
	"context"
	"errors"

	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/utils"
	"gorm.io/gorm"
)

// WalletUpdate is pushed to a user's live connections after a credit
type WalletUpdate struct {
	Balance utils.Cents `json:"balance"`
	Amount  utils.Cents `json:"amount"`
	Message string      `json:"message"`
}

// WalletPublisher fans a wallet change out to the owner's connections
type WalletPublisher interface {
	PublishWalletUpdate(auth0ID string, update WalletUpdate)
}

// debitWallet subtracts amount only when the balance covers it
func debitWallet(tx *gorm.DB, userID uint, amount utils.Cents) error {
	result := tx.Model(&models.User{}).
		Where("id = ? AND wallet_cents >= ?", userID, int64(amount)).
		Update("wallet_cents", gorm.Expr("wallet_cents - ?", int64(amount)))
	if result.Error != nil {
		return NewInternalError("failed to update wallet", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func creditWallet(tx *gorm.DB, userID uint, amount utils.Cents) error {
	result := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("wallet_cents", gorm.Expr("wallet_cents + ?", int64(amount)))
	if result.Error != nil {
		return NewInternalError("failed to update wallet", result.Error)
	}
	if result.RowsAffected == 0 {
		return NewNotFoundError("User not found")
	}
	return nil
}

func walletBalance(tx *gorm.DB, userID uint) (utils.Cents, error) {
	var user models.User
	if err := tx.Select("wallet_cents").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, NewNotFoundError("User not found")
		}
		return 0, NewInternalError("failed to load wallet", err)
	}
	return user.Wallet, nil
}

// WalletService answers balance and ledger queries
type WalletService struct {
	db *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{db: db}
}

// Balance returns the wallet of userID
func (s *WalletService) Balance(ctx context.Context, userID uint) (utils.Cents, error) {
	return walletBalance(s.db.WithContext(ctx), userID)
}

// Transactions returns the ledger of userID, newest first
func (s *WalletService) Transactions(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&txs).Error; err != nil {
		return nil, NewInternalError("failed to load transactions", err)
	}
	return txs, nil
}
