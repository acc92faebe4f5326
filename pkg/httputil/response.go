package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/ward-api/pkg/errors"
)

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	RespondWithStatus(c, http.StatusOK, data)
}

func RespondWithStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"status": "success",
		"data":   data,
	})
}

// RespondWithError sends an error response. Errors that are not an
// *errors.AppError are reported as a bare 500.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Internal(err)
	}

	body := gin.H{
		"status":  "error",
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	for k, v := range appErr.Details {
		body[k] = v
	}
	c.JSON(appErr.HTTPStatus(), body)
}
