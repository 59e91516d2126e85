package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/primesmshub/sms-hub-api/config"
	"github.com/primesmshub/sms-hub-api/utils"
)

// PaymentInit is the checkout session created for a top-up
type PaymentInit struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// PaymentVerification is the settled state of a charge
type PaymentVerification struct {
	Reference string
	Status    string
	Amount    utils.Cents
	Currency  string
	Email     string
}

// Succeeded reports whether the charge was captured
func (v *PaymentVerification) Succeeded() bool {
	return v != nil && v.Status == "success"
}

// PaymentGateway is the card payment provider used for wallet top-ups
type PaymentGateway interface {
	Initialize(ctx context.Context, email string, amountMinor int64, reference string) (*PaymentInit, error)
	Verify(ctx context.Context, reference string) (*PaymentVerification, error)
	VerifySignature(payload []byte, signature string) bool
}

// PaystackClient calls the Paystack REST API
type PaystackClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewPaystackClient creates a gateway client from configuration
func NewPaystackClient(cfg *config.Config) *PaystackClient {
	return &PaystackClient{
		baseURL:   strings.TrimRight(cfg.PaystackBaseURL, "/"),
		secretKey: cfg.PaystackSecretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// PaystackCharge is the transaction object shared by verify responses and webhook events
type PaystackCharge struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"` // minor units
	Currency  string `json:"currency"`
	Customer  struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"customer"`
}

// Initialize opens a checkout for amountMinor under reference
func (c *PaystackClient) Initialize(ctx context.Context, email string, amountMinor int64, reference string) (*PaymentInit, error) {
	body := map[string]interface{}{
		"email":     email,
		"amount":    amountMinor,
		"reference": reference,
	}

	var init PaymentInit
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &init); err != nil {
		return nil, err
	}
	if init.Reference == "" {
		init.Reference = reference
	}
	return &init, nil
}

// Verify fetches the charge behind reference
func (c *PaystackClient) Verify(ctx context.Context, reference string) (*PaymentVerification, error) {
	var charge PaystackCharge
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &charge); err != nil {
		return nil, err
	}
	return charge.Verification(), nil
}

// Verification converts a charge into the gateway-neutral shape
func (ch PaystackCharge) Verification() *PaymentVerification {
	return &PaymentVerification{
		Reference: ch.Reference,
		Status:    ch.Status,
		Amount:    utils.Cents(ch.Amount),
		Currency:  ch.Currency,
		Email:     ch.Customer.Email,
	}
}

// VerifySignature checks the x-paystack-signature header, an HMAC-SHA512 of the raw body
func (c *PaystackClient) VerifySignature(payload []byte, signature string) bool {
	return VerifyHMACSHA512(c.secretKey, payload, signature)
}

// VerifyHMACSHA512 compares a hex signature against the HMAC-SHA512 of payload under secret
func VerifyHMACSHA512(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// SignHMACSHA512 returns the hex HMAC-SHA512 of payload under secret
func SignHMACSHA512(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *PaystackClient) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return NewInternalError("failed to encode payment request", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return NewInternalError("failed to create payment request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewUpstreamError(err.Error(), err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var env paystackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return NewUpstreamError("Invalid response from payment gateway", fmt.Errorf("status %d body=%q: %w", resp.StatusCode, string(body), err))
	}
	if resp.StatusCode != http.StatusOK || !env.Status {
		message := env.Message
		if message == "" {
			message = fmt.Sprintf("payment gateway returned status %d", resp.StatusCode)
		}
		return NewUpstreamError(message, nil)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return NewUpstreamError("Invalid response from payment gateway", err)
		}
	}
	return nil
}
