package controllers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAccountRouter(app *testApp, auth0ID string) *gin.Engine {
	ac := NewAccountController(app.users, app.orders, app.wallets)
	oc := NewOrderController(app.users, app.orders)
	router := setupTestRouter()
	api := router.Group("/api", mockAuthMiddleware(auth0ID, ""))
	api.GET("/dashboard", ac.Dashboard)
	api.GET("/transactions", ac.Transactions)
	api.GET("/wallet", ac.Wallet)
	api.POST("/number/buy", oc.BuyNumber)
	api.POST("/number/finish/:orderId", oc.FinishOrder)
	return router
}

func TestDashboard(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser(t, "auth0|dash", 10)
	router := setupAccountRouter(app, "auth0|dash")

	first := buyNumber(t, router)
	buyNumber(t, router)
	w := performRequest(router, http.MethodPost, "/api/number/finish/"+first, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, http.MethodGet, "/api/dashboard", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 8.5, body["wallet"])
	assert.Equal(t, 1.5, body["totalSpent"])
	assert.Equal(t, float64(1), body["activeNumbersCount"])
	assert.Equal(t, float64(2), body["totalOrdersCount"])
	assert.Len(t, body["activeNumbers"], 1)
	assert.Len(t, body["recentTransactions"], 2)
}

func TestDashboardNewUser(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser(t, "auth0|fresh", 0)
	router := setupAccountRouter(app, "auth0|fresh")

	w := performRequest(router, http.MethodGet, "/api/dashboard", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, float64(0), body["totalOrdersCount"])
	assert.Empty(t, body["activeNumbers"])
	assert.Empty(t, body["recentTransactions"])
}

func TestTransactions(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser(t, "auth0|ledger", 5)
	app.createUser(t, "auth0|other", 5)
	router := setupAccountRouter(app, "auth0|ledger")
	buyNumber(t, router)
	buyNumber(t, setupAccountRouter(app, "auth0|other"))

	w := performRequest(router, http.MethodGet, "/api/transactions", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, float64(1), body["count"])
	tx := body["transactions"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "number_purchase", tx["type"])
	assert.Equal(t, "completed", tx["status"])
	assert.Equal(t, 0.75, tx["amount"])
}

func TestWallet(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser(t, "auth0|wallet", 12.3456)
	router := setupAccountRouter(app, "auth0|wallet")

	w := performRequest(router, http.MethodGet, "/api/wallet", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 12.35, decodeJSON(t, w)["balance"])
}

func TestAccountUnknownUser(t *testing.T) {
	app := newTestApp(t, nil)
	router := setupAccountRouter(app, "auth0|ghost")

	for _, path := range []string{"/api/dashboard", "/api/transactions", "/api/wallet"} {
		w := performRequest(router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
