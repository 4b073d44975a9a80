package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleettrack/internal/service"
)

// DeviceHandler handles HTTP requests for terminals.
type DeviceHandler struct {
	deviceService *service.DeviceService
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(deviceService *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService}
}

// PresenceResponse reports when a terminal last tapped.
type PresenceResponse struct {
	DeviceID   string `json:"device_id"`
	LastSeenAt string `json:"last_seen_at,omitempty"`
}

// GetPresence handles GET /v1/devices/:id/presence
func (h *DeviceHandler) GetPresence(c *gin.Context) {
	presence, err := h.deviceService.Presence(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, PresenceResponse{
		DeviceID:   presence.DeviceID,
		LastSeenAt: formatTime(presence.LastSeenAt),
	})
}

// ListOnlineResponse lists devices heard from recently.
type ListOnlineResponse struct {
	Devices []PresenceResponse `json:"devices"`
}

// ListOnline handles GET /v1/devices/online?within=5m
func (h *DeviceHandler) ListOnline(c *gin.Context) {
	within := 5 * time.Minute
	if raw := c.Query("within"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			respondBadRequest(c, service.ErrInvalidDuration, "within must be a duration such as 5m")
			return
		}
		within = d
	}

	seen, err := h.deviceService.SeenWithin(c.Request.Context(), within)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]PresenceResponse, 0, len(seen))
	for _, p := range seen {
		out = append(out, PresenceResponse{DeviceID: p.DeviceID, LastSeenAt: formatTime(p.LastSeenAt)})
	}

	respondJSON(c, http.StatusOK, ListOnlineResponse{Devices: out})
}
