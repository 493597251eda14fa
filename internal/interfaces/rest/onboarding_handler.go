package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/preceptly/backend/internal/application/services"
	"github.com/preceptly/backend/internal/domain/models"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/errors"
)

// OnboardingHandler exposes the onboarding wizard API
type OnboardingHandler struct {
	onboarding *services.OnboardingService
	finalizer  *services.FinalizerService
}

// NewOnboardingHandler creates the handler
func NewOnboardingHandler(onboarding *services.OnboardingService, finalizer *services.FinalizerService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding, finalizer: finalizer}
}

// submitStepRequest is the POST step payload
type submitStepRequest struct {
	Step string          `json:"step" binding:"required"`
	Data models.StepData `json:"data"`
}

// StartSession resumes or creates the caller's onboarding session
// POST /api/onboarding/session
func (h *OnboardingHandler) StartSession(c *gin.Context) {
	principal := GetPrincipalFromContext(c)
	if principal == nil {
		RespondAppError(c, errors.NewUnauthorizedError("not authenticated"))
		return
	}

	result, err := h.onboarding.StartSession(c.Request.Context(), principal.ID)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// SubmitStep validates and applies one step submission
// POST /api/onboarding/session/:sessionId/step
func (h *OnboardingHandler) SubmitStep(c *gin.Context) {
	principal := GetPrincipalFromContext(c)
	if principal == nil {
		RespondAppError(c, errors.NewUnauthorizedError("not authenticated"))
		return
	}

	var req submitStepRequest
	if !BindJSON(c, &req) {
		return
	}
	if req.Data == nil {
		req.Data = models.StepData{}
	}

	result, err := h.onboarding.SubmitStep(c.Request.Context(),
		c.Param("sessionId"), principal.ID, constants.StepID(req.Step), req.Data)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Complete finalizes the session and hands off to the collaborators
// POST /api/onboarding/session/:sessionId/complete
func (h *OnboardingHandler) Complete(c *gin.Context) {
	principal := GetPrincipalFromContext(c)
	if principal == nil {
		RespondAppError(c, errors.NewUnauthorizedError("not authenticated"))
		return
	}

	session, err := h.finalizer.Complete(c.Request.Context(), c.Param("sessionId"), principal.ID)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		constants.FieldMessage: "onboarding completed",
		"session":              session,
	})
}

// Pause records an explicit save-and-exit
// POST /api/onboarding/session/:sessionId/pause
func (h *OnboardingHandler) Pause(c *gin.Context) {
	principal := GetPrincipalFromContext(c)
	if principal == nil {
		RespondAppError(c, errors.NewUnauthorizedError("not authenticated"))
		return
	}

	session, err := h.onboarding.Pause(c.Request.Context(), c.Param("sessionId"), principal.ID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Abandon flags the session as walked away from
// DELETE /api/onboarding/session/:sessionId
func (h *OnboardingHandler) Abandon(c *gin.Context) {
	principal := GetPrincipalFromContext(c)
	if principal == nil {
		RespondAppError(c, errors.NewUnauthorizedError("not authenticated"))
		return
	}

	session, err := h.onboarding.Abandon(c.Request.Context(), c.Param("sessionId"), principal.ID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Progress returns the read-only wizard projection
// GET /api/onboarding/session/:sessionId/progress
func (h *OnboardingHandler) Progress(c *gin.Context) {
	principal := GetPrincipalFromContext(c)
	if principal == nil {
		RespondAppError(c, errors.NewUnauthorizedError("not authenticated"))
		return
	}

	HandleGetEnvelope(c, "progress", func() (interface{}, error) {
		return h.onboarding.Progress(c.Request.Context(), c.Param("sessionId"), principal.ID)
	})
}
