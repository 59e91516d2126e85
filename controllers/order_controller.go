package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/services"
)

// BuyNumberRequest represents the request body for buying a number
type BuyNumberRequest struct {
	Country string `json:"country"`
	Service string `json:"service"`
}

// OrderController serves the virtual number routes
type OrderController struct {
	users  UserLookup
	orders *services.OrderService
}

func NewOrderController(users UserLookup, orders *services.OrderService) *OrderController {
	return &OrderController{users: users, orders: orders}
}

// BuyNumber handles POST /api/number/buy
func (oc *OrderController) BuyNumber(c *gin.Context) {
	user, ok := currentUser(c, oc.users)
	if !ok {
		return
	}

	var req BuyNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Country == "" || req.Service == "" {
		respondValidation(c, "Country and service required")
		return
	}

	order, err := oc.orders.Purchase(c.Request.Context(), user.ID, req.Country, req.Service)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"orderId":     order.ID,
		"phoneNumber": order.PhoneNumber,
		"service":     order.Service,
		"country":     order.Country,
		"price":       order.Price,
		"expiresAt":   order.ExpiresAt,
		"message":     "Number purchased: " + order.PhoneNumber,
	})
}

// CheckSMS handles GET /api/number/sms/:orderId
func (oc *OrderController) CheckSMS(c *gin.Context) {
	user, ok := currentUser(c, oc.users)
	if !ok {
		return
	}

	order, err := oc.orders.CheckSMS(c.Request.Context(), user.ID, c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Status: " + string(order.Status)
	if order.Status == models.OrderReceived {
		message = "SMS received"
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  order.Status,
		"sms":     order.SMSText,
		"code":    order.OTPCode,
		"message": message,
	})
}

// CancelOrder handles POST /api/number/cancel/:orderId
func (oc *OrderController) CancelOrder(c *gin.Context) {
	user, ok := currentUser(c, oc.users)
	if !ok {
		return
	}

	result, err := oc.orders.Cancel(c.Request.Context(), user.ID, c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Order cancelled",
		"refunded": result.Refund,
	})
}

// FinishOrder handles POST /api/number/finish/:orderId
func (oc *OrderController) FinishOrder(c *gin.Context) {
	user, ok := currentUser(c, oc.users)
	if !ok {
		return
	}

	if _, err := oc.orders.Finish(c.Request.Context(), user.ID, c.Param("orderId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order completed",
	})
}

// Products handles GET /api/number/products/:country
func (oc *OrderController) Products(c *gin.Context) {
	country := c.Param("country")
	products, err := oc.orders.Products(c.Request.Context(), country)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"country":  country,
		"products": products,
	})
}

// ListOrders handles GET /api/number/orders
func (oc *OrderController) ListOrders(c *gin.Context) {
	user, ok := currentUser(c, oc.users)
	if !ok {
		return
	}

	orders, err := oc.orders.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orders":  orders,
		"count":   len(orders),
	})
}
