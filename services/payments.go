package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/utils"
	"gorm.io/gorm"
)

const (
	minTopUp utils.Cents = 100
	maxTopUp utils.Cents = 10_000_000

	paystackProvider = "paystack"
)

// TopUp is a started wallet funding checkout
type TopUp struct {
	Reference        string      `json:"reference"`
	AuthorizationURL string      `json:"authorizationUrl"`
	AccessCode       string      `json:"accessCode"`
	Amount           utils.Cents `json:"amount"`
}

// TopUpResult is the outcome of verifying a top-up
type TopUpResult struct {
	Reference       string      `json:"reference"`
	Amount          utils.Cents `json:"amount"`
	NewBalance      utils.Cents `json:"newBalance"`
	AlreadyCredited bool        `json:"alreadyCredited"`
}

// PaymentDeps are the collaborators of PaymentService; Archive and Publisher are optional
type PaymentDeps struct {
	Gateway        PaymentGateway
	Archive        PayloadArchive
	Messenger      Messenger
	OperatorChatID string
	Publisher      WalletPublisher
}

// PaymentService funds wallets through the payment gateway
type PaymentService struct {
	db     *gorm.DB
	deps   PaymentDeps
	logger *slog.Logger
	now    func() time.Time
}

func NewPaymentService(db *gorm.DB, deps PaymentDeps, logger *slog.Logger) *PaymentService {
	return &PaymentService{db: db, deps: deps, logger: logger, now: time.Now}
}

// InitializeTopUp opens a checkout for amount, in major units, and records it as a pending transaction
func (s *PaymentService) InitializeTopUp(ctx context.Context, user *models.User, major float64) (*TopUp, error) {
	amount := utils.ToCents(major)
	if amount < minTopUp || amount > maxTopUp {
		return nil, NewValidationError("Invalid amount")
	}

	reference := utils.NewPaymentReference(user.ID, s.now())
	init, err := s.deps.Gateway.Initialize(ctx, user.Email, int64(amount), reference)
	if err != nil {
		return nil, err
	}

	txn := models.Transaction{
		UserID:           user.ID,
		Type:             models.TransactionTopUp,
		Amount:           amount,
		Currency:         "USD",
		Status:           models.TransactionPending,
		Reference:        &reference,
		AuthorizationURL: init.AuthorizationURL,
	}
	if err := s.db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, NewInternalError("failed to record transaction", err)
	}

	return &TopUp{
		Reference:        reference,
		AuthorizationURL: init.AuthorizationURL,
		AccessCode:       init.AccessCode,
		Amount:           amount,
	}, nil
}

// VerifyTopUp confirms a checkout with the gateway and credits the wallet once
func (s *PaymentService) VerifyTopUp(ctx context.Context, user *models.User, reference string) (*TopUpResult, error) {
	if reference == "" {
		return nil, NewValidationError("Reference required")
	}

	txn, err := s.findTopUp(ctx, reference)
	if err != nil {
		return nil, err
	}
	if txn.UserID != user.ID {
		return nil, NewOwnershipError("Unauthorized")
	}

	if txn.Status == models.TransactionCompleted {
		balance, err := walletBalance(s.db.WithContext(ctx), user.ID)
		if err != nil {
			return nil, err
		}
		return &TopUpResult{Reference: reference, Amount: txn.Amount, NewBalance: balance, AlreadyCredited: true}, nil
	}

	verification, err := s.deps.Gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !verification.Succeeded() {
		if verification.Status == "failed" {
			s.db.WithContext(ctx).Model(txn).Where("status = ?", models.TransactionPending).Update("status", models.TransactionFailed)
		}
		return nil, NewUpstreamError("Payment verification failed", nil)
	}

	credited, err := s.settle(ctx, txn, verification.Amount)
	if err != nil {
		return nil, err
	}
	balance, err := walletBalance(s.db.WithContext(ctx), user.ID)
	if err != nil {
		return nil, err
	}
	if credited {
		s.publish(user.Auth0ID, balance, verification.Amount)
	}

	return &TopUpResult{Reference: reference, Amount: verification.Amount, NewBalance: balance, AlreadyCredited: !credited}, nil
}

type paystackEvent struct {
	Event string         `json:"event"`
	Data  PaystackCharge `json:"data"`
}

// HandleWebhook processes one signed gateway delivery. Redelivered events are acknowledged without effect.
func (s *PaymentService) HandleWebhook(ctx context.Context, signature string, payload []byte) error {
	if !s.deps.Gateway.VerifySignature(payload, signature) {
		return &AppError{Kind: KindAuth, Code: "INVALID_SIGNATURE", Message: "Invalid webhook signature"}
	}

	var event paystackEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return NewValidationError("Invalid webhook payload")
	}

	eventID := event.Event + ":" + event.Data.Reference
	if event.Data.ID != 0 {
		eventID = event.Event + ":" + strconv.FormatInt(event.Data.ID, 10)
	}

	db := s.db.WithContext(ctx)
	var record models.PaymentEvent
	err := db.Where("provider = ? AND provider_event_id = ?", paystackProvider, eventID).First(&record).Error
	switch {
	case err == nil && record.ProcessedAt != nil:
		s.logger.Info("duplicate payment webhook ignored", "event_id", eventID)
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = models.PaymentEvent{
			Provider:        paystackProvider,
			ProviderEventID: eventID,
			EventType:       event.Event,
			Reference:       event.Data.Reference,
			PayloadJSON:     string(payload),
		}
		if err := db.Create(&record).Error; err != nil {
			if isUniqueViolation(err) {
				return nil
			}
			return NewInternalError("failed to record payment event", err)
		}
	case err != nil:
		return NewInternalError("failed to load payment event", err)
	}

	if s.deps.Archive != nil && event.Data.Reference != "" {
		key := PaymentArchiveKey(paystackProvider, event.Data.Reference)
		if err := s.deps.Archive.Put(ctx, key, payload, "application/json"); err != nil {
			s.logger.Warn("failed to archive payment webhook", "reference", event.Data.Reference, "error", err)
		} else {
			record.ArchiveKey = key
		}
	}

	processErr := s.applyEvent(ctx, event)

	now := s.now()
	record.ProcessedAt = &now
	record.ProcessingError = ""
	if processErr != nil {
		record.ProcessingError = processErr.Error()
		if IsKind(processErr, KindInternal) {
			// leave unprocessed so the gateway retry is not deduplicated
			record.ProcessedAt = nil
		}
	}
	if err := db.Save(&record).Error; err != nil {
		s.logger.Error("failed to update payment event", "event_id", eventID, "error", err)
	}

	if processErr != nil && IsKind(processErr, KindInternal) {
		return processErr
	}
	if processErr != nil {
		s.logger.Warn("payment webhook not applied", "event_id", eventID, "error", processErr)
	}
	return nil
}

func (s *PaymentService) applyEvent(ctx context.Context, event paystackEvent) error {
	if event.Event != "charge.success" || event.Data.Status != "success" {
		return nil
	}

	txn, err := s.findTopUp(ctx, event.Data.Reference)
	if err != nil {
		return err
	}

	amount := utils.Cents(event.Data.Amount)
	credited, err := s.settle(ctx, txn, amount)
	if err != nil {
		return err
	}
	if !credited {
		return nil
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, txn.UserID).Error; err != nil {
		return NewInternalError("failed to load user", err)
	}
	s.publish(user.Auth0ID, user.Wallet, amount)
	s.notifyOperator(ctx, event.Data, amount)
	return nil
}

// settle flips a pending top-up to completed and credits the wallet; false means it was already settled
func (s *PaymentService) settle(ctx context.Context, txn *models.Transaction, amount utils.Cents) (bool, error) {
	credited := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", txn.ID, models.TransactionPending).
			Updates(map[string]interface{}{"status": models.TransactionCompleted, "amount_cents": int64(amount)})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		credited = true
		return creditWallet(tx, txn.UserID, amount)
	})
	if err != nil {
		if appErr, ok := AsAppError(err); ok {
			return false, appErr
		}
		return false, NewInternalError("failed to credit wallet", err)
	}
	if credited {
		s.logger.Info("wallet credited", "user_id", txn.UserID, "amount", amount.String(), "reference", derefString(txn.Reference))
	}
	return credited, nil
}

func (s *PaymentService) findTopUp(ctx context.Context, reference string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.WithContext(ctx).
		Where("reference = ? AND type = ?", reference, models.TransactionTopUp).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &AppError{Kind: KindNotFound, Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found"}
	}
	if err != nil {
		return nil, NewInternalError("failed to load transaction", err)
	}
	return &txn, nil
}

func (s *PaymentService) publish(auth0ID string, balance, amount utils.Cents) {
	if s.deps.Publisher == nil {
		return
	}
	s.deps.Publisher.PublishWalletUpdate(auth0ID, WalletUpdate{
		Balance: balance,
		Amount:  amount,
		Message: "Wallet updated!",
	})
}

func (s *PaymentService) notifyOperator(ctx context.Context, charge PaystackCharge, amount utils.Cents) {
	if s.deps.Messenger == nil || s.deps.OperatorChatID == "" {
		return
	}
	name := fmt.Sprintf("%s %s", charge.Customer.FirstName, charge.Customer.LastName)
	if charge.Customer.FirstName == "" && charge.Customer.LastName == "" {
		name = "Unknown"
	}
	text := fmt.Sprintf("💰 *NEW PAYMENT VERIFIED*\n💵 Amount: $%s\n📧 Email: %s\n👤 Customer: %s\n🆔 Transaction: `%s`",
		amount.String(), charge.Customer.Email, name, charge.Reference)
	if _, err := s.deps.Messenger.SendMessage(ctx, s.deps.OperatorChatID, text, Markdown); err != nil {
		s.logger.Warn("failed to notify operator of payment", "reference", charge.Reference, "error", err)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
