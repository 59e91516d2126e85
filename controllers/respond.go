package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/config"
	"github.com/primesmshub/sms-hub-api/middleware"
	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/services"
)

// respondError renders err as {"success": false, "error": ..., "code": ...}.
// Internal failures only expose their cause outside production.
func respondError(c *gin.Context, err error) {
	appErr, ok := services.AsAppError(err)
	if !ok {
		appErr = services.NewInternalError("Internal server error", err)
	}

	message := appErr.Message
	if appErr.Kind == services.KindInternal {
		if cfg := config.GetConfig(); cfg != nil && !cfg.IsProduction() && appErr.Err != nil {
			message = appErr.Message + ": " + appErr.Err.Error()
		}
	}

	c.JSON(appErr.Status(), gin.H{
		"success": false,
		"error":   message,
		"code":    appErr.Code,
	})
}

func respondValidation(c *gin.Context, message string) {
	respondError(c, services.NewValidationError(message))
}

// UserLookup loads the account behind a token subject
type UserLookup interface {
	FindByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error)
}

// currentUser resolves the authenticated caller, writing the error response when it cannot
func currentUser(c *gin.Context, users UserLookup) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Could not extract user information",
			"code":    "UNAUTHORIZED",
		})
		return nil, false
	}

	user, err := users.FindByAuth0ID(c.Request.Context(), auth0ID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return user, true
}
