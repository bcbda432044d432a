package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"etaservice/internal/utils"
	"etaservice/pkg/logger"
	"etaservice/pkg/metrics"
)

// CORSMiddleware allows the configured origins. "*" allows any origin.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+utils.RequestIDHeader)
		c.Header("Access-Control-Expose-Headers", "Content-Length, "+utils.RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware adds a request ID to each request and carries it in
// the request context for downstream logging.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(utils.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(utils.ContextKeyRequest, requestID)
		c.Header(utils.RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID))
		c.Next()
	}
}

// LoggingMiddleware logs every request and reports its latency.
func LoggingMiddleware(log *logger.Logger, m *metrics.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		duration := time.Since(start)
		status := c.Writer.Status()

		log.LogAPIRequest(c.Request.Method, endpoint, status, duration, c.GetString(utils.ContextKeyRequest))
		m.Timing(metrics.APIRequestLatency, duration, metrics.Tags(
			"method", c.Request.Method,
			"endpoint", endpoint,
			"status", strconv.Itoa(status),
		))
	}
}

// RecoveryMiddleware turns a panic into a 500 response.
func RecoveryMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithContext(c.Request.Context()).WithFields(map[string]interface{}{
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
					"path":  c.Request.URL.Path,
				}).Error("Recovered from panic")
				if !c.Writer.Written() {
					utils.InternalServerErrorResponse(c)
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// TimeoutMiddleware bounds the request context.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
