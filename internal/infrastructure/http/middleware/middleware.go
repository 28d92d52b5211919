package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/pkg/errors"
)

// Admin provides the gin middleware used by the admin server
type Admin struct {
	logger    *zap.Logger
	skipPaths map[string]struct{}
}

// NewAdmin creates admin middleware. Requests to skipPaths are not logged.
func NewAdmin(logger *zap.Logger, skipPaths ...string) *Admin {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return &Admin{logger: logger, skipPaths: skip}
}

// RequestID adds a unique request ID to the context
func (m *Admin) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// Logger provides structured logging for requests
func (m *Admin) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if _, skip := m.skipPaths[path]; skip {
			return
		}

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Int("status", statusCode),
			zap.Duration("latency", time.Since(start)),
		}

		switch {
		case statusCode >= 500:
			m.logger.Error("Server error", fields...)
		case statusCode >= 400:
			m.logger.Warn("Client error", fields...)
		default:
			m.logger.Debug("Request completed", fields...)
		}
	}
}

// Recovery recovers from panics and returns 500 error
func (m *Admin) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := c.GetString("request_id")
				m.logger.Error("Panic recovered",
					zap.String("request_id", requestID),
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError,
					errors.ToErrorResponse(errors.NewInternalError("Internal server error"), requestID))
			}
		}()

		c.Next()
	}
}
