package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/middleware"
	"github.com/primesmshub/sms-hub-api/services"
)

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name  string `json:"name" binding:"omitempty"`
	Email string `json:"email" binding:"omitempty,email"`
}

// LinkTelegramRequest links a Telegram chat to the caller
type LinkTelegramRequest struct {
	ChatID int64 `json:"chatId" binding:"required"`
}

// UserController serves the caller's profile
type UserController struct {
	users *services.UserService
}

func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

// CreateUser handles POST /api/users - creates the caller's profile from Auth0 userinfo
func (uc *UserController) CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, services.NewAuthError("Could not extract user ID from token"))
		return
	}

	// userinfo needs the caller's own access token
	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Access token not found",
			"code":    "MISSING_TOKEN",
		})
		return
	}

	user, err := uc.users.CreateFromToken(c.Request.Context(), auth0ID, accessToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    user,
	})
}

// GetCurrentUser handles GET /api/users/me
func (uc *UserController) GetCurrentUser(c *gin.Context) {
	user, ok := currentUser(c, uc.users)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// UpdateCurrentUser handles PUT /api/users/me
func (uc *UserController) UpdateCurrentUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, services.NewAuthError("Could not extract user information"))
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request data")
		return
	}

	user, err := uc.users.UpdateProfile(c.Request.Context(), auth0ID, req.Name, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// LinkTelegram handles POST /api/auth/link-telegram so bot commands act on the caller's account
func (uc *UserController) LinkTelegram(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, services.NewAuthError("Could not extract user information"))
		return
	}

	var req LinkTelegramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "chatId is required")
		return
	}

	user, err := uc.users.LinkTelegram(c.Request.Context(), auth0ID, req.ChatID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Telegram account linked",
		"data":    user,
	})
}
