package testutil

import (
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/middleware"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{},
	}
}

// SetMockAuthContext sets the context values EnsureValidToken would set
func SetMockAuthContext(c *gin.Context, userID, accessToken string) {
	c.Set("user_id", userID)
	c.Set("access_token", accessToken)
	c.Set("validated_claims", MockValidatedClaims(userID, "https://test.auth0.com/"))
}

// MockAuthMiddleware authenticates every request as userID
func MockAuthMiddleware(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetMockAuthContext(c, userID, "mock-token")
		c.Next()
	}
}
