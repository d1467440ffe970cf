package middleware

import (
	"time"

	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	RequestIDHeader     = "X-Request-ID"
	RequestIDContextKey = "requestID"
)

// ZapLogger logs every request with its latency and request ID. Outside
// release mode everything is logged at info level.
func ZapLogger(logger *zap.Logger, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			c.Header(RequestIDHeader, requestID)
		}
		c.Set(RequestIDContextKey, requestID)

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := []zapcore.Field{
			zap.Int("status_code", statusCode),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Duration("latency", latency),
			zap.String("request_id", requestID),
		}
		if userID := common.GetUserIDFromContext(c); userID != uuid.Nil {
			fields = append(fields, zap.String("user_id", userID.String()))
		}

		for _, e := range c.Errors.ByType(gin.ErrorTypePrivate) {
			fields = append(fields, zap.NamedError("error", e.Err))
		}

		switch {
		case cfg.GinMode != gin.ReleaseMode || statusCode < 400:
			logger.Info("Request handled", fields...)
		case statusCode < 500:
			logger.Warn("Client error", fields...)
		default:
			logger.Error("Server error", fields...)
		}
	}
}
