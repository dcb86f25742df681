package httpkit

import (
	"net/http"

	"lexmatch_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func Created(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// Accepted answers a request whose work continues in the background.
func Accepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

func Error(c *gin.Context, status int, message string, details any) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// HandleError writes err and reports whether there was one. Errors with an
// apperr kind answer with their own status and message; anything else is
// attached to the gin context for the request logger and answered with a
// bare 500.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := apperr.From(err); ok {
		Error(c, appErr.HTTPStatus(), appErr.Message, appErr.Details)
		return true
	}
	_ = c.Error(err)
	Error(c, http.StatusInternalServerError, "internal server error", nil)
	return true
}
