package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/primesmshub/sms-hub-api/config"
	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/utils"
)

// VendorOrder is the allocation returned by a successful purchase
type VendorOrder struct {
	ID          string
	PhoneNumber string
	Service     string
	Country     string
	Price       utils.Cents
	Status      models.OrderStatus
	ExpiresAt   *time.Time
}

// VendorCheck is the result of one status check
type VendorCheck struct {
	Status    models.OrderStatus
	SMS       string
	Code      string
	ExpiresAt *time.Time
}

// VendorProfile is the reseller account on the vendor side
type VendorProfile struct {
	Email   string  `json:"email"`
	Balance float64 `json:"balance"`
	Rating  float64 `json:"rating"`
}

// VendorProduct is one purchasable service in a country
type VendorProduct struct {
	Category string      `json:"Category"`
	Qty      int         `json:"Qty"`
	Price    utils.Cents `json:"Price"`
}

// NumberVendor is the virtual-number provider used for purchases and OTP checks
type NumberVendor interface {
	Buy(ctx context.Context, country, service string) (*VendorOrder, error)
	Check(ctx context.Context, vendorOrderID string) (*VendorCheck, error)
	Cancel(ctx context.Context, vendorOrderID string) error
	Finish(ctx context.Context, vendorOrderID string) error
	Profile(ctx context.Context) (*VendorProfile, error)
	Products(ctx context.Context, country string) (map[string]VendorProduct, error)
}

// FiveSimClient talks to the 5sim.net reseller API
type FiveSimClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewFiveSimClient creates a vendor client from configuration
func NewFiveSimClient(cfg *config.Config) *FiveSimClient {
	return &FiveSimClient{
		baseURL: strings.TrimRight(cfg.FiveSimBaseURL, "/"),
		apiKey:  cfg.FiveSimAPIKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// fiveSimOrder covers the fields 5sim returns for buy and check calls
type fiveSimOrder struct {
	ID      json.Number     `json:"id"`
	Phone   string          `json:"phone"`
	Product string          `json:"product"`
	Service string          `json:"service"`
	Country string          `json:"country"`
	Price   float64         `json:"price"`
	Cost    float64         `json:"cost"`
	Status  string          `json:"status"`
	Expires string          `json:"expires"`
	SMS     json.RawMessage `json:"sms"`
}

type fiveSimSMS struct {
	Text string `json:"text"`
	Code string `json:"code"`
}

// Buy allocates a number for service in country on any operator
func (c *FiveSimClient) Buy(ctx context.Context, country, service string) (*VendorOrder, error) {
	path := fmt.Sprintf("/user/buy/activation/%s/any/%s", url.PathEscape(country), url.PathEscape(service))

	var order fiveSimOrder
	if err := c.do(ctx, http.MethodGet, path, &order); err != nil {
		return nil, err
	}
	if order.ID.String() == "" || order.Phone == "" {
		return nil, NewUpstreamError("Invalid response from 5sim", nil)
	}

	price := order.Cost
	if price == 0 {
		price = order.Price
	}
	svc := order.Product
	if svc == "" {
		svc = order.Service
	}
	if svc == "" {
		svc = service
	}
	ctry := order.Country
	if ctry == "" {
		ctry = country
	}

	return &VendorOrder{
		ID:          order.ID.String(),
		PhoneNumber: order.Phone,
		Service:     svc,
		Country:     ctry,
		Price:       utils.ToCents(price),
		Status:      normalizeVendorStatus(order.Status),
		ExpiresAt:   parseVendorTime(order.Expires),
	}, nil
}

// Check fetches the current state of a vendor order
func (c *FiveSimClient) Check(ctx context.Context, vendorOrderID string) (*VendorCheck, error) {
	var order fiveSimOrder
	if err := c.do(ctx, http.MethodGet, "/user/check/"+url.PathEscape(vendorOrderID), &order); err != nil {
		return nil, err
	}

	sms, code := decodeVendorSMS(order.SMS)
	return &VendorCheck{
		Status:    normalizeVendorStatus(order.Status),
		SMS:       sms,
		Code:      code,
		ExpiresAt: parseVendorTime(order.Expires),
	}, nil
}

// Cancel releases the number on the vendor side
func (c *FiveSimClient) Cancel(ctx context.Context, vendorOrderID string) error {
	return c.do(ctx, http.MethodGet, "/user/cancel/"+url.PathEscape(vendorOrderID), nil)
}

// Finish marks the vendor order as done
func (c *FiveSimClient) Finish(ctx context.Context, vendorOrderID string) error {
	return c.do(ctx, http.MethodGet, "/user/finish/"+url.PathEscape(vendorOrderID), nil)
}

// Profile returns the reseller account balance
func (c *FiveSimClient) Profile(ctx context.Context) (*VendorProfile, error) {
	var profile VendorProfile
	if err := c.do(ctx, http.MethodGet, "/user/profile", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Products lists the services available in a country on any operator
func (c *FiveSimClient) Products(ctx context.Context, country string) (map[string]VendorProduct, error) {
	products := map[string]VendorProduct{}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guest/products/%s/any", url.PathEscape(country)), &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *FiveSimClient) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return NewInternalError("failed to create vendor request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewUpstreamError(err.Error(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewUpstreamError("Failed to read response from 5sim", fmt.Errorf("5sim %s: %w", path, err))
	}

	if resp.StatusCode != http.StatusOK {
		return NewUpstreamError(vendorMessage(body, resp.StatusCode), fmt.Errorf("5sim %s returned status %d", path, resp.StatusCode))
	}

	// 5sim answers some failures with 200 and a plain-text reason such as "no free phones"
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && trimmed[0] != '{' && trimmed[0] != '[' {
		return NewUpstreamError(trimmed, nil)
	}

	if out == nil || trimmed == "" {
		return nil
	}

	// some deployments wrap the payload in {"data": ...}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 && envelope.Data[0] == '{' {
		body = envelope.Data
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewUpstreamError("Invalid response from 5sim", fmt.Errorf("failed to decode json: %w body=%q", err, trimmed))
	}
	return nil
}

func vendorMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		return text
	}
	return fmt.Sprintf("vendor returned status %d", status)
}

// decodeVendorSMS accepts either a list of {text, code} or a bare string
func decodeVendorSMS(raw json.RawMessage) (string, string) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", ""
	}

	var list []fiveSimSMS
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", ""
		}
		latest := list[len(list)-1]
		code := latest.Code
		if code == "" {
			code = utils.ExtractCode(latest.Text)
		}
		return latest.Text, code
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, utils.ExtractCode(text)
	}
	return "", ""
}

func normalizeVendorStatus(status string) models.OrderStatus {
	switch strings.ToLower(status) {
	case "received":
		return models.OrderReceived
	case "cancelled", "canceled", "banned":
		return models.OrderCancelled
	case "timeout":
		return models.OrderTimeout
	case "finished", "completed":
		return models.OrderCompleted
	default:
		return models.OrderPending
	}
}

func parseVendorTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}
