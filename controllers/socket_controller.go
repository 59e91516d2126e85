package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/middleware"
	"github.com/primesmshub/sms-hub-api/relay"
	"github.com/primesmshub/sms-hub-api/services"
)

// SocketController upgrades browser connections onto the relay hub
type SocketController struct {
	hub *relay.Hub
}

func NewSocketController(hub *relay.Hub) *SocketController {
	return &SocketController{hub: hub}
}

// Anonymous handles GET /ws for visitors of the support chat
func (sc *SocketController) Anonymous(c *gin.Context) {
	sc.hub.Serve(c.Writer, c.Request, "")
}

// Authenticated handles GET /api/ws; the caller may poll their orders
func (sc *SocketController) Authenticated(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, services.NewAuthError("Authentication required"))
		return
	}
	sc.hub.Serve(c.Writer, c.Request, userID)
}
