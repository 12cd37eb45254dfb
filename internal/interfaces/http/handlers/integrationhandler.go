package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mingle/internal/application/integration"
	"mingle/internal/shared/constants"
	"mingle/internal/shared/logger"
	"mingle/internal/shared/utils"
)

type IntegrationHandler struct {
	service *integration.Service
	logger  logger.Interface
}

func NewIntegrationHandler(service *integration.Service, logger logger.Interface) *IntegrationHandler {
	return &IntegrationHandler{
		service: service,
		logger:  logger,
	}
}

type ConnectRequest struct {
	FeedURL string `json:"feedUrl" validate:"required,url"`
}

type DisconnectRequest struct {
	DeleteEvents bool `json:"deleteEvents"`
}

type ToggleMirrorRequest struct {
	MirrorEnabled *bool  `json:"mirrorEnabled" binding:"required"`
	CalendarID    string `json:"calendarId"`
}

// Connect stores a validated calendar feed URL and starts the first sync.
func (h *IntegrationHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "feedUrl is required")
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	status, err := h.service.Connect(c.Request.Context(), h.uid(c), req.FeedURL)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "calendar feed connected", status)
}

// SyncNow triggers an immediate sync cycle for the caller.
func (h *IntegrationHandler) SyncNow(c *gin.Context) {
	result, err := h.service.SyncNow(c.Request.Context(), h.uid(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "sync completed", result)
}

// Disconnect removes the integration, optionally purging stored events.
func (h *IntegrationHandler) Disconnect(c *gin.Context) {
	var req DisconnectRequest
	// Body is optional; an empty body means keep events.
	_ = c.ShouldBindJSON(&req)

	if err := h.service.Disconnect(c.Request.Context(), h.uid(c), req.DeleteEvents); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "integration disconnected", nil)
}

// Status reports the caller's connection and sync state.
func (h *IntegrationHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), h.uid(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", status)
}

// Events lists the caller's active synced meetings.
func (h *IntegrationHandler) Events(c *gin.Context) {
	meetings, err := h.service.ListMeetings(c.Request.Context(), h.uid(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", meetings)
}

// ToggleMirror switches Google Calendar mirroring on or off.
func (h *IntegrationHandler) ToggleMirror(c *gin.Context) {
	var req ToggleMirrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "mirrorEnabled is required")
		return
	}

	status, err := h.service.ToggleMirror(c.Request.Context(), h.uid(c), *req.MirrorEnabled, req.CalendarID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "mirror configuration updated", status)
}

// AuthorizeCalendly returns the provider URL starting the PKCE flow.
func (h *IntegrationHandler) AuthorizeCalendly(c *gin.Context) {
	result, err := h.service.AuthorizeCalendly(c.Request.Context(), h.uid(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// CalendlyCallback completes the PKCE flow. The provider redirects here
// without our bearer token; the single-use state binds the request to
// the user who started the flow.
func (h *IntegrationHandler) CalendlyCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "state and code are required")
		return
	}

	if err := h.service.HandleCalendlyCallback(c.Request.Context(), state, code); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "calendly account connected", nil)
}

// AuthorizeGoogle returns the provider URL for linking a mirror calendar.
func (h *IntegrationHandler) AuthorizeGoogle(c *gin.Context) {
	result, err := h.service.AuthorizeGoogle(c.Request.Context(), h.uid(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// GoogleCallback completes the Google authorization flow.
func (h *IntegrationHandler) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "state and code are required")
		return
	}

	if err := h.service.HandleGoogleCallback(c.Request.Context(), state, code); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "google account connected", nil)
}

func (h *IntegrationHandler) uid(c *gin.Context) string {
	return c.GetString(constants.ContextKeyUserUID)
}
