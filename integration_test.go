package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/primesmshub/sms-hub-api/config"
	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHealthEndpointIntegration tests the /health endpoint with full routing
func TestHealthEndpointIntegration(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Prime SMS Hub API is running", body["message"])
}

// TestHealthEndpointMethod tests that only GET is routed
func TestHealthEndpointMethod(t *testing.T) {
	h := newHarness(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		w := h.do(method, "/health", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code, method+" should not be allowed")
	}
}

func TestDependencyStatus(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/health/dependencies", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["connections"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Equal(t, "ok", deps["database"])
	assert.Equal(t, "disabled", deps["redis"])
	assert.Equal(t, map[string]interface{}{"status": "ok", "balance": float64(10)}, deps["vendor"])
}

func TestDependencyStatusVendorDown(t *testing.T) {
	h := newHarness(t)
	h.vendor.ProfileErr = services.NewGatewayError("5sim unreachable", nil)

	w := h.do(http.MethodGet, "/health/dependencies", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	deps := decodeBody(t, w)["dependencies"].(map[string]interface{})
	assert.Equal(t, "unreachable", deps["vendor"].(map[string]interface{})["status"])
}

func TestProductsRoute(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/number/products/usa", "auth0|browser", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	products := decodeBody(t, w)["products"].(map[string]interface{})
	assert.Contains(t, products, "telegram")
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	h := newHarness(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/users/me"},
		{http.MethodPost, "/api/number/buy"},
		{http.MethodGet, "/api/number/sms/abc"},
		{http.MethodGet, "/api/number/products/usa"},
		{http.MethodGet, "/api/dashboard"},
		{http.MethodGet, "/api/wallet"},
		{http.MethodPost, "/api/funds/add"},
		{http.MethodGet, "/api/ws"},
	}
	for _, r := range routes {
		w := h.do(r.method, r.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, r.path)
	}
}

func TestPublicRoutesSkipAuth(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/messages", "", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/funds/public-key", "", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/bot"+testBotToken, "", `{"update_id": 1}`).Code)
}

func TestSendRequiresAPIKey(t *testing.T) {
	h := newHarness(t)
	body := `{"chatId": "42", "text": "hello"}`

	w := h.do(http.MethodPost, "/api/send", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/send", nil)
	req.Header.Set("x-api-key", "wrong")
	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", "prime-key")
	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sent, ok := h.messenger.Last()
	require.True(t, ok)
	assert.Equal(t, "42", sent.ChatID)
}

func TestSendOpenWithoutConfiguredKey(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.PrimeAPIKey = "" })

	w := h.do(http.MethodPost, "/api/send", "", `{"chatId": 42, "text": "hello"}`)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitedAPI(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.RateLimitPerMinute = 2 })

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/messages", "", "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/messages", "", "").Code)
	w := h.do(http.MethodGet, "/api/messages", "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// health checks sit outside the limited group
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health", "", "").Code)
}

func TestUserSignupAndLink(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/users", "auth0|new", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/api/auth/link-telegram", "auth0|new", `{"chatId": 5150}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/bot"+testBotToken, "", `{"update_id": 2, "message": {"message_id": 1, "chat": {"id": 5150, "type": "private"}, "text": "/balance"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	reply, ok := h.messenger.Last()
	require.True(t, ok)
	assert.Equal(t, "5150", reply.ChatID)
	assert.Contains(t, reply.Text, "0.00")
}

func TestOrderLifecycleThroughRouter(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "auth0|buyer", 5)
	h.vendor.Checks = []services.VendorCheck{
		{Status: models.OrderPending},
		{Status: models.OrderReceived, SMS: "Your code is 482913", Code: "482913"},
	}

	w := h.do(http.MethodPost, "/api/number/buy", "auth0|buyer", `{"country": "usa", "service": "telegram"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	orderID := decodeBody(t, w)["orderId"].(string)

	w = h.do(http.MethodGet, "/api/number/sms/"+orderID, "auth0|buyer", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", decodeBody(t, w)["status"])

	w = h.do(http.MethodGet, "/api/number/sms/"+orderID, "auth0|buyer", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "received", body["status"])
	assert.Equal(t, "482913", body["code"])

	w = h.do(http.MethodGet, "/api/number/sms/"+orderID, "auth0|someone-else", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "unknown account")

	w = h.do(http.MethodPost, "/api/number/finish/"+orderID, "auth0|buyer", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodGet, "/api/dashboard", "auth0|buyer", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, 4.25, body["wallet"])
	assert.Equal(t, float64(0), body["activeNumbersCount"])
	assert.Equal(t, float64(1), body["totalOrdersCount"])
}

func TestWebhookTopUpThroughRouter(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "auth0|payer", 0)

	w := h.do(http.MethodPost, "/api/funds/add", "auth0|payer", `{"amount": 15}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reference := decodeBody(t, w)["reference"].(string)

	payload := fmt.Sprintf(`{"event":"charge.success","data":{"id":7,"reference":%q,"status":"success","amount":1500}}`, reference)
	req := httptest.NewRequest(http.MethodPost, "/paystack/webhook", strings.NewReader(payload))
	req.Header.Set("x-paystack-signature", h.gateway.Sign([]byte(payload)))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w = h.do(http.MethodGet, "/api/wallet", "auth0|payer", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(15), decodeBody(t, w)["balance"])
}
