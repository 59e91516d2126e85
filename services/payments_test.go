package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu      sync.Mutex
	updates map[string][]WalletUpdate
}

func (p *recordingPublisher) PublishWalletUpdate(auth0ID string, update WalletUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updates == nil {
		p.updates = make(map[string][]WalletUpdate)
	}
	p.updates[auth0ID] = append(p.updates[auth0ID], update)
}

type paymentFixture struct {
	db        *gorm.DB
	svc       *PaymentService
	gateway   *MockPaymentGateway
	archive   *MemoryArchive
	messenger *MockMessenger
	publisher *recordingPublisher
	user      *models.User
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	db := setupTestDB(t)
	f := &paymentFixture{
		db:        db,
		gateway:   NewMockPaymentGateway("sk_test"),
		archive:   NewMemoryArchive(),
		messenger: NewMockMessenger(),
		publisher: &recordingPublisher{},
		user:      createTestUser(t, db, "auth0|payer", 0),
	}
	f.svc = NewPaymentService(db, PaymentDeps{
		Gateway:        f.gateway,
		Archive:        f.archive,
		Messenger:      f.messenger,
		OperatorChatID: "777",
		Publisher:      f.publisher,
	}, discardLogger())
	return f
}

func TestInitializeTopUp(t *testing.T) {
	f := newPaymentFixture(t)

	topUp, err := f.svc.InitializeTopUp(context.Background(), f.user, 25)
	require.NoError(t, err)
	assert.Contains(t, topUp.Reference, "PSH-")
	assert.Equal(t, "https://checkout.paystack.com/"+topUp.Reference, topUp.AuthorizationURL)

	var txn models.Transaction
	require.NoError(t, f.db.First(&txn).Error)
	assert.Equal(t, models.TransactionPending, txn.Status)
	assert.Equal(t, models.TransactionTopUp, txn.Type)
	assert.Equal(t, utils.ToCents(25.0), txn.Amount)
}

func TestInitializeTopUpRejectsAmounts(t *testing.T) {
	f := newPaymentFixture(t)
	for _, amount := range []float64{0, 0.5, 100001} {
		_, err := f.svc.InitializeTopUp(context.Background(), f.user, amount)
		assert.True(t, IsKind(err, KindValidation), "amount %v", amount)
	}
}

func TestVerifyTopUpCreditsOnce(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	topUp, err := f.svc.InitializeTopUp(ctx, f.user, 10)
	require.NoError(t, err)

	_, err = f.svc.VerifyTopUp(ctx, f.user, topUp.Reference)
	assert.True(t, IsKind(err, KindUpstream), "unpaid checkout must not verify")

	f.gateway.Settle(topUp.Reference)
	result, err := f.svc.VerifyTopUp(ctx, f.user, topUp.Reference)
	require.NoError(t, err)
	assert.Equal(t, utils.Cents(1000), result.NewBalance)
	assert.False(t, result.AlreadyCredited)

	again, err := f.svc.VerifyTopUp(ctx, f.user, topUp.Reference)
	require.NoError(t, err)
	assert.True(t, again.AlreadyCredited)
	assert.Equal(t, utils.ToCents(10.0), reloadUser(t, f.db, f.user.ID).Wallet)
	assert.Len(t, f.publisher.updates[f.user.Auth0ID], 1)
}

func TestVerifyTopUpErrors(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyTopUp(ctx, f.user, "")
	assert.True(t, IsKind(err, KindValidation))

	_, err = f.svc.VerifyTopUp(ctx, f.user, "PSH-missing")
	assert.True(t, IsKind(err, KindNotFound))

	topUp, err := f.svc.InitializeTopUp(ctx, f.user, 10)
	require.NoError(t, err)
	other := createTestUser(t, f.db, "auth0|other", 0)
	_, err = f.svc.VerifyTopUp(ctx, other, topUp.Reference)
	assert.True(t, IsKind(err, KindOwnership))
}

func chargeSuccessPayload(t *testing.T, id int64, reference string, amountMinor int64) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data": map[string]interface{}{
			"id":        id,
			"reference": reference,
			"status":    "success",
			"amount":    amountMinor,
			"currency":  "USD",
			"customer":  map[string]string{"email": "payer@example.com", "first_name": "Pat"},
		},
	})
	require.NoError(t, err)
	return b
}

func TestHandleWebhookCreditsArchivesAndNotifies(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	topUp, err := f.svc.InitializeTopUp(ctx, f.user, 15)
	require.NoError(t, err)

	payload := chargeSuccessPayload(t, 991, topUp.Reference, 1500)
	require.NoError(t, f.svc.HandleWebhook(ctx, f.gateway.Sign(payload), payload))

	assert.Equal(t, utils.ToCents(15.0), reloadUser(t, f.db, f.user.ID).Wallet)

	archived, ok := f.archive.Get("paystack/" + topUp.Reference + ".json")
	require.True(t, ok)
	assert.JSONEq(t, string(payload), string(archived))

	last, ok := f.messenger.Last()
	require.True(t, ok)
	assert.Equal(t, "777", last.ChatID)
	assert.Contains(t, last.Text, "NEW PAYMENT VERIFIED")
	assert.Contains(t, last.Text, "$15.00")

	updates := f.publisher.updates[f.user.Auth0ID]
	require.Len(t, updates, 1)
	assert.Equal(t, utils.Cents(1500), updates[0].Balance)

	var event models.PaymentEvent
	require.NoError(t, f.db.First(&event).Error)
	assert.NotNil(t, event.ProcessedAt)
	assert.Equal(t, "charge.success:991", event.ProviderEventID)
}

func TestHandleWebhookDeduplicates(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	topUp, err := f.svc.InitializeTopUp(ctx, f.user, 15)
	require.NoError(t, err)
	payload := chargeSuccessPayload(t, 5, topUp.Reference, 1500)
	sig := f.gateway.Sign(payload)

	require.NoError(t, f.svc.HandleWebhook(ctx, sig, payload))
	require.NoError(t, f.svc.HandleWebhook(ctx, sig, payload))

	assert.Equal(t, utils.ToCents(15.0), reloadUser(t, f.db, f.user.ID).Wallet)
	assert.Len(t, f.messenger.Sent(), 1)

	var count int64
	f.db.Model(&models.PaymentEvent{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	f := newPaymentFixture(t)
	payload := chargeSuccessPayload(t, 1, "PSH-x", 100)

	err := f.svc.HandleWebhook(context.Background(), "deadbeef", payload)
	assert.True(t, IsKind(err, KindAuth))

	var count int64
	f.db.Model(&models.PaymentEvent{}).Count(&count)
	assert.Zero(t, count)
}

func TestHandleWebhookUnknownReferenceIsAcknowledged(t *testing.T) {
	f := newPaymentFixture(t)
	payload := chargeSuccessPayload(t, 2, "PSH-unknown", 100)

	require.NoError(t, f.svc.HandleWebhook(context.Background(), f.gateway.Sign(payload), payload))

	var event models.PaymentEvent
	require.NoError(t, f.db.First(&event).Error)
	assert.Contains(t, event.ProcessingError, "Transaction not found")
	assert.Empty(t, f.messenger.Sent())
}
