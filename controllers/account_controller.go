package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/services"
	"github.com/primesmshub/sms-hub-api/utils"
)

const recentTransactionsLimit = 5

// AccountController serves wallet and dashboard summaries
type AccountController struct {
	users   UserLookup
	orders  *services.OrderService
	wallets *services.WalletService
}

func NewAccountController(users UserLookup, orders *services.OrderService, wallets *services.WalletService) *AccountController {
	return &AccountController{users: users, orders: orders, wallets: wallets}
}

// Dashboard handles GET /api/dashboard
func (ac *AccountController) Dashboard(c *gin.Context) {
	user, ok := currentUser(c, ac.users)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	orders, err := ac.orders.ListForUser(ctx, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	recent, err := ac.wallets.Transactions(ctx, user.ID, recentTransactionsLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	active := make([]models.Order, 0)
	var totalSpent utils.Cents
	for _, o := range orders {
		if !o.Status.IsTerminal() {
			active = append(active, o)
		}
		totalSpent += o.Price
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"wallet":             user.Wallet,
		"totalSpent":         totalSpent,
		"activeNumbersCount": len(active),
		"totalOrdersCount":   len(orders),
		"activeNumbers":      active,
		"recentTransactions": recent,
	})
}

// Transactions handles GET /api/transactions
func (ac *AccountController) Transactions(c *gin.Context) {
	user, ok := currentUser(c, ac.users)
	if !ok {
		return
	}

	txs, err := ac.wallets.Transactions(c.Request.Context(), user.ID, 0)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": txs,
		"count":        len(txs),
	})
}

// Wallet handles GET /api/wallet
func (ac *AccountController) Wallet(c *gin.Context) {
	user, ok := currentUser(c, ac.users)
	if !ok {
		return
	}

	balance, err := ac.wallets.Balance(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}
