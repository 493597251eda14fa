package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/preceptly/backend/internal/application/services"
	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/errors"
)

// AnalyticsHandler accepts client-side funnel events. Fire-and-forget by
// contract: the endpoint always accepts, the sink catches up when it can.
type AnalyticsHandler struct {
	analytics *services.AnalyticsService
}

// NewAnalyticsHandler creates the handler
func NewAnalyticsHandler(analytics *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// trackRequest is the client event payload
type trackRequest struct {
	SessionID string                 `json:"session_id"`
	EventKind string                 `json:"event_kind"`
	Step      string                 `json:"step"`
	Timestamp *time.Time             `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Track accepts one client event. Best-effort: an unparseable body is
// dropped, not rejected, so the endpoint never blocks the caller.
// POST /api/analytics/track
func (h *AnalyticsHandler) Track(c *gin.Context) {
	principal := GetPrincipalFromContext(c)
	if principal == nil {
		RespondAppError(c, errors.NewUnauthorizedError("not authenticated"))
		return
	}

	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.EventKind == "" {
		c.JSON(http.StatusAccepted, gin.H{"accepted": true})
		return
	}

	event := &models.AnalyticsEvent{
		PrincipalID: principal.ID,
		SessionID:   req.SessionID,
		EventKind:   constants.EventKind(req.EventKind),
		Step:        constants.StepID(req.Step),
		Metadata:    req.Metadata,
	}
	if req.Timestamp != nil {
		event.Timestamp = *req.Timestamp
	}
	h.analytics.Emit(event)

	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}
