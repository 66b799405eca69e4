package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/supplycatalog/ingestion/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware assigns a request ID (reusing an inbound one if the
// caller already supplied it) and exposes it on the gin context and response
// header.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// loggingMiddleware logs one structured entry per request, the teacher's
// internal/order/transport/http.Middleware.LoggingMiddleware translated to
// gin's handler chain.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.WithFields(map[string]interface{}{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Info("request completed")
	}
}

// recoveryMiddleware recovers from a panic in a downstream handler, logs it,
// and returns a 500 rather than crashing the server.
func recoveryMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(map[string]interface{}{
					"request_id": c.GetString("request_id"),
					"path":       c.Request.URL.Path,
					"error":      err,
				}).Error("panic recovered")
				c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
