package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mixtura/petube/internal/errs"
	"github.com/mixtura/petube/internal/middleware"
	"github.com/mixtura/petube/internal/model"
	"github.com/mixtura/petube/internal/service"
)

// DeviceHandler exposes the device pairing registry over JSON HTTP.
type DeviceHandler struct {
	registry *service.PairingRegistry
	logger   *zap.Logger
}

// NewDeviceHandler creates the device registry handler.
func NewDeviceHandler(registry *service.PairingRegistry, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{registry: registry, logger: logger}
}

// Register handles POST /devices/register.
func (h *DeviceHandler) Register(c *gin.Context) {
	var req model.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dev, err := h.registry.RegisterDevice(middleware.OwnerID(c), req.DeviceName, req.DeviceType, req.DeviceIdentifier)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.DeviceToView(dev))
}

// List handles GET /devices/my.
func (h *DeviceHandler) List(c *gin.Context) {
	devices, err := h.registry.ListDevices(middleware.OwnerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]model.DeviceView, 0, len(devices))
	for i := range devices {
		views = append(views, model.DeviceToView(&devices[i]))
	}
	c.JSON(http.StatusOK, views)
}

// GenerateInvite handles POST /generate-qr.
func (h *DeviceHandler) GenerateInvite(c *gin.Context) {
	var req model.GenerateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	invite, err := h.registry.GenerateInvite(req.DeviceID, middleware.OwnerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, invite)
}

// RedeemInvite handles POST /pair-device.
func (h *DeviceHandler) RedeemInvite(c *gin.Context) {
	var req model.RedeemInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	group, err := h.registry.RedeemInvite(req.SessionID, req.DeviceID, middleware.OwnerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// LeaveGroup handles POST /leave-group.
func (h *DeviceHandler) LeaveGroup(c *gin.Context) {
	var req model.LeaveGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.registry.LeaveGroup(req.DeviceID, middleware.OwnerID(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ActiveGroup handles GET /my-group?device_id=...
func (h *DeviceHandler) ActiveGroup(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id required"})
		return
	}
	group, err := h.registry.GetActiveGroup(deviceID, middleware.OwnerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// fail maps domain errors to HTTP responses. Expired sessions are reported
// the same way as unknown ones.
func (h *DeviceHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrDeviceNotFound),
		errors.Is(err, errs.ErrGroupNotFound),
		errors.Is(err, errs.ErrSessionNotFound),
		errors.Is(err, errs.ErrSessionExpired):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("registry operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
