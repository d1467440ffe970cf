package middleware

import (
	"net/http"

	"buildinghub_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errMethodNotAllowed = common.NewAPIError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "The method is not allowed for the requested URL.")

// ErrorHandler turns errors attached with c.Error into JSON error bodies and
// gives unmatched routes the same envelope.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			for _, ginErr := range c.Errors {
				apiErr, isAPIErr := common.IsAPIError(ginErr.Err)

				if isAPIErr {
					c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
				} else {
					logger.Error("Unhandled application error",
						zap.Error(ginErr.Err),
						zap.String("path", c.Request.URL.Path),
						zap.Any("meta", ginErr.Meta),
						zap.String("request_id", c.GetString(RequestIDContextKey)),
					)
					genericError := common.ErrInternalServer.WithDetails("An unexpected error occurred.")
					if gin.Mode() == gin.DebugMode && ginErr.Err != nil {
						genericError.Details = ginErr.Err.Error()
					}
					c.AbortWithStatusJSON(genericError.StatusCode, genericError)
				}
				return
			}
		}

		if c.Writer.Written() {
			return
		}
		switch c.Writer.Status() {
		case http.StatusNotFound:
			c.AbortWithStatusJSON(http.StatusNotFound, common.ErrNotFound.WithDetails("The requested endpoint does not exist."))
		case http.StatusMethodNotAllowed:
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, errMethodNotAllowed)
		}
	}
}
