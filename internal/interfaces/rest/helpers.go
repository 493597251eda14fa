package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/preceptly/backend/pkg/auth"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/errors"
)

// GetPrincipalFromContext extracts the authenticated principal from gin.Context
func GetPrincipalFromContext(c *gin.Context) *auth.Principal {
	value, exists := c.Get(constants.ContextKeyPrincipal)
	if !exists {
		return nil
	}
	principal := value.(auth.Principal)
	return &principal
}

// RespondAppError sends a standardised JSON error response using pkg/errors
func RespondAppError(c *gin.Context, err error) {
	status := errors.GetHTTPStatus(err)
	response := errors.ToResponse(err)

	c.JSON(status, gin.H{
		constants.ResponseError: response.Message,
		constants.FieldMessage:  response.Message,
		"code":                  response.Code,
		"data":                  response.Details,
	})
}

// BindJSON binds JSON and returns true if successful. If failed, it sends
// a bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// HandleGetEnvelope executes a read action and returns the result wrapped
// in a JSON key. Response: { [key]: result }
func HandleGetEnvelope(c *gin.Context, key string, action func() (interface{}, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}
