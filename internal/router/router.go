package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mixtura/petube/internal/auth"
	"github.com/mixtura/petube/internal/handler"
	"github.com/mixtura/petube/internal/middleware"
	"github.com/mixtura/petube/pkg/constants"
)

// New builds the HTTP router.
func New(
	deviceHandler *handler.DeviceHandler,
	roomWS *handler.RoomWSHandler,
	health *handler.HealthHandler,
	gate *auth.Gate,
) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())

	r.GET(constants.PathHealth, health.Health)
	r.GET(constants.PathReady, health.Ready)

	// Device pairing registry (bearer auth).
	authed := r.Group("/", middleware.Auth(gate))
	{
		authed.POST("/devices/register", deviceHandler.Register)
		authed.GET("/devices/my", deviceHandler.List)
		authed.POST("/generate-qr", deviceHandler.GenerateInvite)
		authed.POST("/pair-device", deviceHandler.RedeemInvite)
		authed.POST("/leave-group", deviceHandler.LeaveGroup)
		authed.GET("/my-group", deviceHandler.ActiveGroup)
	}

	// Stream room WebSocket; auth happens inside the handler so the reject
	// path can distinguish 401 from 426.
	r.GET("/room/:room_id", roomWS.ServeWS)

	return r
}
