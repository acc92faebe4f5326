package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/ward-api/pkg/errors"
)

// ErrorLogger logs the errors handlers attached with c.Error. Server errors
// are logged at error level with the wrapped cause; client errors at debug.
func ErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			event := log.Debug()
			if appErr, ok := apperrors.As(e.Err); !ok || appErr.HTTPStatus() >= 500 {
				event = log.Error()
			}
			event.
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}
	}
}
