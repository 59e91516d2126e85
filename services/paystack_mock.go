package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/primesmshub/sms-hub-api/utils"
)

// MockPaymentGateway settles charges from an in-memory table
type MockPaymentGateway struct {
	mu      sync.Mutex
	secret  string
	charges map[string]*PaymentVerification

	InitErr     error
	VerifyCalls int
}

// NewMockPaymentGateway creates a gateway that signs webhooks with secret
func NewMockPaymentGateway(secret string) *MockPaymentGateway {
	return &MockPaymentGateway{secret: secret, charges: make(map[string]*PaymentVerification)}
}

func (m *MockPaymentGateway) Initialize(ctx context.Context, email string, amountMinor int64, reference string) (*PaymentInit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InitErr != nil {
		return nil, m.InitErr
	}
	m.charges[reference] = &PaymentVerification{
		Reference: reference,
		Status:    "abandoned",
		Amount:    utils.Cents(amountMinor),
		Currency:  "USD",
		Email:     email,
	}
	return &PaymentInit{
		AuthorizationURL: "https://checkout.paystack.com/" + reference,
		AccessCode:       "access_" + reference,
		Reference:        reference,
	}, nil
}

func (m *MockPaymentGateway) Verify(ctx context.Context, reference string) (*PaymentVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.VerifyCalls++
	charge, ok := m.charges[reference]
	if !ok {
		return nil, NewUpstreamError("Transaction reference not found", fmt.Errorf("unknown reference %s", reference))
	}
	v := *charge
	return &v, nil
}

func (m *MockPaymentGateway) VerifySignature(payload []byte, signature string) bool {
	return VerifyHMACSHA512(m.secret, payload, signature)
}

// Settle marks a previously initialized charge as paid
func (m *MockPaymentGateway) Settle(reference string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if charge, ok := m.charges[reference]; ok {
		charge.Status = "success"
	}
}

// Sign produces the signature header value for payload
func (m *MockPaymentGateway) Sign(payload []byte) string {
	return SignHMACSHA512(m.secret, payload)
}
