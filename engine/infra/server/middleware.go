package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minutemate/minutemate/pkg/logger"
)

// LoggerMiddleware puts log into each request context and logs the request
// once it completes.
func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), log))
		c.Next()
		fields := []any{
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"status_code", c.Writer.Status(),
			"body_size", c.Writer.Size(),
			"path", path,
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, "error", msg)
		}
		if c.Request.URL.Path == "/metrics" {
			log.Debug("Request completed", fields...)
			return
		}
		log.Info("Request completed", fields...)
	}
}
