package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleettrack/internal/domain"
	"fleettrack/internal/service"
)

// TapHandler handles HTTP requests from RFID terminals.
type TapHandler struct {
	sessionService  *service.SessionService
	boardingService *service.BoardingService
}

// NewTapHandler creates a new TapHandler.
func NewTapHandler(sessionService *service.SessionService, boardingService *service.BoardingService) *TapHandler {
	return &TapHandler{
		sessionService:  sessionService,
		boardingService: boardingService,
	}
}

// TapRequest is the body sent by a terminal for a card tap.
type TapRequest struct {
	RFIDCode string `json:"rfid_code" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
}

// TapResponse is the HTTP response for a driver tap.
type TapResponse struct {
	Action  string          `json:"action"`
	Session SessionResponse `json:"session"`
}

// BoardingResponse is the HTTP response for a passenger boarding.
type BoardingResponse struct {
	EventID        string `json:"event_id"`
	SessionID      string `json:"session_id"`
	VehicleID      string `json:"vehicle_id"`
	PassengerCount int    `json:"passenger_count"`
	CreatedAt      string `json:"created_at"`
}

// HandleTap handles POST /v1/taps
func (h *TapHandler) HandleTap(c *gin.Context) {
	var req TapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidTap(c, req)
		return
	}

	result, err := h.sessionService.HandleTap(c.Request.Context(), req.RFIDCode, req.DeviceID)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if result.Action == domain.TapActionStarted {
		status = http.StatusCreated
	}

	respondJSON(c, status, TapResponse{
		Action:  string(result.Action),
		Session: newSessionResponse(result.Session),
	})
}

// RecordBoarding handles POST /v1/boardings
func (h *TapHandler) RecordBoarding(c *gin.Context) {
	var req TapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidTap(c, req)
		return
	}

	boarding, err := h.boardingService.RecordBoarding(c.Request.Context(), req.RFIDCode, req.DeviceID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, BoardingResponse{
		EventID:        boarding.Event.ID,
		SessionID:      boarding.Event.SessionID,
		VehicleID:      boarding.VehicleID,
		PassengerCount: boarding.PassengerCount,
		CreatedAt:      formatTime(boarding.Event.CreatedAt),
	})
}

// respondInvalidTap names the field that failed binding. Decoding fills the
// request before validation runs, so empty fields identify the culprit.
func respondInvalidTap(c *gin.Context, req TapRequest) {
	if req.RFIDCode != "" && req.DeviceID == "" {
		respondBadRequest(c, service.ErrInvalidDeviceID, "device_id is required")
		return
	}
	respondBadRequest(c, service.ErrInvalidRFIDCode, "rfid_code and device_id are required")
}
