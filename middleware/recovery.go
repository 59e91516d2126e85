package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/config"
)

// Recovery turns panics into the JSON error envelope. The stack is only
// returned to the client outside production.
func Recovery(cfg *config.Config, logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		stack := string(debug.Stack())
		logger.Error("panic recovered", "path", c.Request.URL.Path, "panic", recovered, "stack", stack)

		body := gin.H{
			"success": false,
			"error":   "Internal server error",
			"code":    "INTERNAL_ERROR",
		}
		if !cfg.IsProduction() {
			body["error"] = fmt.Sprint(recovered)
			body["stack"] = stack
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	})
}
