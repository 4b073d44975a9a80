package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleettrack/internal/service"
)

// SessionHandler handles HTTP requests for work sessions.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// StartSessionRequest is the body for an explicit session start.
type StartSessionRequest struct {
	DriverID  string `json:"driver_id" binding:"required"`
	VehicleID string `json:"vehicle_id" binding:"required"`
}

// ListSessionsResponse wraps a list of sessions.
type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// StartSession handles POST /v1/sessions
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, service.ErrInvalidDriverID, "driver_id and vehicle_id are required")
		return
	}

	session, err := h.sessionService.StartSession(c.Request.Context(), req.DriverID, req.VehicleID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, newSessionResponse(session))
}

// EndSession handles POST /v1/sessions/:id/end
func (h *SessionHandler) EndSession(c *gin.Context) {
	session, err := h.sessionService.EndSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newSessionResponse(session))
}

// GetSession handles GET /v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.sessionService.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newSessionResponse(session))
}

// ListActiveSessions handles GET /v1/sessions?state=active
func (h *SessionHandler) ListActiveSessions(c *gin.Context) {
	if state := c.DefaultQuery("state", "active"); state != "active" {
		respondJSON(c, http.StatusBadRequest, ErrorResponse{Code: "INVALID_STATE", Message: "only state=active is supported"})
		return
	}

	sessions, err := h.sessionService.ListActiveSessions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, newSessionResponse(s))
	}

	respondJSON(c, http.StatusOK, ListSessionsResponse{Sessions: out})
}
