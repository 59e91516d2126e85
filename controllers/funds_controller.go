package controllers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/services"
)

const maxWebhookBody = 1 << 20

// AddFundsRequest starts a wallet top-up
type AddFundsRequest struct {
	Amount float64 `json:"amount"`
}

// VerifyFundsRequest confirms a top-up
type VerifyFundsRequest struct {
	Reference string `json:"reference"`
}

// FundsController serves wallet funding and the payment webhook
type FundsController struct {
	users     UserLookup
	payments  *services.PaymentService
	publicKey string
}

func NewFundsController(users UserLookup, payments *services.PaymentService, publicKey string) *FundsController {
	return &FundsController{users: users, payments: payments, publicKey: publicKey}
}

// AddFunds handles POST /api/funds/add
func (fc *FundsController) AddFunds(c *gin.Context) {
	user, ok := currentUser(c, fc.users)
	if !ok {
		return
	}

	var req AddFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid amount")
		return
	}

	topUp, err := fc.payments.InitializeTopUp(c.Request.Context(), user, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"authorizationUrl": topUp.AuthorizationURL,
		"accessCode":       topUp.AccessCode,
		"reference":        topUp.Reference,
		"amount":           topUp.Amount,
		"message":          "Payment initialized. Redirecting to Paystack...",
	})
}

// VerifyFunds handles POST /api/funds/verify
func (fc *FundsController) VerifyFunds(c *gin.Context) {
	user, ok := currentUser(c, fc.users)
	if !ok {
		return
	}

	var req VerifyFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reference == "" {
		respondValidation(c, "Reference required")
		return
	}

	result, err := fc.payments.VerifyTopUp(c.Request.Context(), user, req.Reference)
	if err != nil {
		respondError(c, err)
		return
	}

	message := fmt.Sprintf("Wallet topped up with $%s", result.Amount)
	if result.AlreadyCredited {
		message = "Payment already credited"
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    message,
		"newBalance": result.NewBalance,
		"amount":     result.Amount,
		"reference":  result.Reference,
	})
}

// PublicKey handles GET /api/funds/public-key
func (fc *FundsController) PublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"publicKey": fc.publicKey,
		"message":   "Paystack public key",
	})
}

// Webhook handles POST /paystack/webhook. The raw body is needed for the signature check.
func (fc *FundsController) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondValidation(c, "Invalid webhook payload")
		return
	}

	if err := fc.payments.HandleWebhook(c.Request.Context(), c.GetHeader("x-paystack-signature"), payload); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
