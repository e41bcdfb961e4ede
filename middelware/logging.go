package middelware

import (
	"net/http"
	"time"

	"casetrack-backend/models"
	"casetrack-backend/utils/logger"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware provides request logging
type LoggingMiddleware struct {
	logger    logger.Logger
	skipPaths map[string]bool
}

// NewLoggingMiddleware creates a new logging middleware. Requests to
// skipPaths (health probes) are not logged.
func NewLoggingMiddleware(log logger.Logger, skipPaths ...string) *LoggingMiddleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &LoggingMiddleware{
		logger:    log,
		skipPaths: skip,
	}
}

// StructuredLogger logs one line per request with the caller and outcome
func (m *LoggingMiddleware) StructuredLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if m.skipPaths[path] {
			return
		}

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       path,
			"query":      raw,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}

		if actor, ok := ActorFrom(c); ok {
			fields["user_id"] = actor.UserID
			fields["role"] = actor.Role
		}
		if caseID := c.Param("id"); caseID != "" {
			fields["case"] = caseID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			m.logger.Errorf("HTTP request completed with error: %+v", fields)
		case status >= 400:
			m.logger.Warnf("HTTP request completed with client error: %+v", fields)
		default:
			m.logger.Infof("HTTP request completed successfully: %+v", fields)
		}
	}
}

// Recovery turns panics into a 500 envelope
func (m *LoggingMiddleware) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		m.logger.Errorf("Panic recovered on %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)

		c.AbortWithStatusJSON(http.StatusInternalServerError, models.APIResponse{
			Status:  "error",
			Code:    http.StatusInternalServerError,
			Message: "An unexpected error occurred",
			Error: &models.APIError{
				Type: "InternalError",
			},
		})
	})
}
