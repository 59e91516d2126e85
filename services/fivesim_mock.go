package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/utils"
)

// MockNumberVendor is an in-memory NumberVendor for tests
type MockNumberVendor struct {
	mu sync.Mutex

	// BuyResult is returned by Buy; BuyErr takes precedence
	BuyResult *VendorOrder
	BuyErr    error
	// Checks are returned by successive Check calls; the last one repeats
	Checks    []VendorCheck
	CheckErr  error
	CancelErr error
	FinishErr error
	// ProfileResult and ProductsResult back the catalogue calls
	ProfileResult  *VendorProfile
	ProfileErr     error
	ProductsResult map[string]VendorProduct
	ProductsErr    error

	BuyCalls    int
	CheckCalls  int
	CancelCalls int
	FinishCalls int
}

// NewMockNumberVendor creates a vendor that sells one number at price
func NewMockNumberVendor(price float64) *MockNumberVendor {
	return &MockNumberVendor{
		BuyResult:      &VendorOrder{ID: "100200300", PhoneNumber: "+15550001111", Price: utils.ToCents(price), Status: models.OrderPending},
		Checks:         []VendorCheck{{Status: models.OrderPending}},
		ProfileResult:  &VendorProfile{Email: "reseller@example.com", Balance: 10},
		ProductsResult: map[string]VendorProduct{"telegram": {Category: "activation", Qty: 10, Price: utils.ToCents(price)}},
	}
}

func (m *MockNumberVendor) Buy(ctx context.Context, country, service string) (*VendorOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BuyCalls++
	if m.BuyErr != nil {
		return nil, m.BuyErr
	}
	order := *m.BuyResult
	order.Country = country
	order.Service = service
	return &order, nil
}

func (m *MockNumberVendor) Check(ctx context.Context, vendorOrderID string) (*VendorCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckCalls++
	if m.CheckErr != nil {
		return nil, m.CheckErr
	}
	if len(m.Checks) == 0 {
		return nil, fmt.Errorf("mock vendor: no check configured")
	}
	idx := m.CheckCalls - 1
	if idx >= len(m.Checks) {
		idx = len(m.Checks) - 1
	}
	check := m.Checks[idx]
	return &check, nil
}

func (m *MockNumberVendor) Cancel(ctx context.Context, vendorOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelCalls++
	return m.CancelErr
}

func (m *MockNumberVendor) Finish(ctx context.Context, vendorOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FinishCalls++
	return m.FinishErr
}

func (m *MockNumberVendor) Profile(ctx context.Context) (*VendorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	profile := *m.ProfileResult
	return &profile, nil
}

func (m *MockNumberVendor) Products(ctx context.Context, country string) (map[string]VendorProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProductsErr != nil {
		return nil, m.ProductsErr
	}
	products := make(map[string]VendorProduct, len(m.ProductsResult))
	for name, p := range m.ProductsResult {
		products[name] = p
	}
	return products, nil
}

// Calls returns a snapshot of the call counters as buy, check, cancel, finish
func (m *MockNumberVendor) Calls() (int, int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.BuyCalls, m.CheckCalls, m.CancelCalls, m.FinishCalls
}
