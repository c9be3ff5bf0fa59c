package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mixtura/petube/internal/auth"
	"github.com/mixtura/petube/internal/service"
)

// RoomWSHandler handles WebSocket upgrades for /room/:room_id.
type RoomWSHandler struct {
	coordinator *service.RoomCoordinator
	gate        *auth.Gate
	upgrader    websocket.Upgrader
	maxMsgSize  int64
	logger      *zap.Logger
}

// NewRoomWSHandler creates the room WebSocket handler.
func NewRoomWSHandler(coordinator *service.RoomCoordinator, gate *auth.Gate, readBuf, writeBuf int, maxMsgSize int64, logger *zap.Logger) *RoomWSHandler {
	return &RoomWSHandler{
		coordinator: coordinator,
		gate:        gate,
		maxMsgSize:  maxMsgSize,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS authenticates and upgrades the request, then runs the frame loop.
// Auth failure rejects with 401 before any session state exists; a plain
// HTTP request gets 426.
func (h *RoomWSHandler) ServeWS(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID == "" {
		c.String(http.StatusBadRequest, "room id required")
		return
	}

	token, err := auth.TokenFromRequest(c.Request)
	if err != nil {
		c.String(http.StatusUnauthorized, err.Error())
		return
	}
	claims, err := h.gate.Verify(token)
	if err != nil {
		c.String(http.StatusUnauthorized, err.Error())
		return
	}

	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.String(http.StatusUpgradeRequired, "websocket upgrade required")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	if h.maxMsgSize > 0 {
		conn.SetReadLimit(h.maxMsgSize)
	}

	connID, err := h.coordinator.Attach(roomID, conn)
	if err != nil {
		h.logger.Error("attach failed", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	h.logger.Info("room socket open",
		zap.String("room_id", roomID),
		zap.String("subject", claims.ID()))

	defer func() {
		if err := h.coordinator.Detach(roomID, connID); err != nil {
			h.logger.Warn("detach failed", zap.String("conn_id", connID), zap.Error(err))
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("read error", zap.Error(err))
			}
			return
		}
		if err := h.coordinator.HandleFrame(roomID, connID, data); err != nil {
			h.logger.Warn("frame handling failed",
				zap.String("conn_id", connID), zap.Error(err))
			return
		}
	}
}
