package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"safecircle/pkg/logger"
)

// CORSMiddleware configures CORS headers for the given origins. "*" allows
// any origin.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[strings.TrimSuffix(origin, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "Content-Length, X-Request-ID")
			c.Header("Access-Control-Max-Age", "600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

const requestIDKey = "request_id"

// RequestIDMiddleware adds a request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID))
		c.Next()
	}
}

// SecurityHeaders sets response headers for an API that serves no HTML.
// Share tokens travel in the path, so referrers are never sent.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// BodyLimit caps request bodies at maxBytes.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// LoggingMiddleware writes one structured line per request.
func LoggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// share tokens are credentials; log the route pattern, not the path
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		entry := log.WithFields(map[string]interface{}{
			"method": c.Request.Method,
			"route":  route,
			"status": c.Writer.Status(),
		})
		if requestID := c.GetString(requestIDKey); requestID != "" {
			entry = entry.WithRequestID(requestID)
		}
		if sender := SenderSubject(c); sender != "" {
			entry = entry.WithField("sender_id", sender)
		}
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Error("Request failed")
			return
		}
		entry.Debug("Request handled")
	}
}
