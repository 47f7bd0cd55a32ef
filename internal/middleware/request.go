package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/iamai-org/iamai-chat/internal/errordata"
	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/requestdata"
)

const RequestIDHeader = "X-Request-ID"

// AttachRequestContext seeds every request with requestdata and errordata.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New()
		if raw := c.GetHeader(RequestIDHeader); raw != "" {
			if parsed, err := uuid.Parse(raw); err == nil {
				requestID = parsed
			}
		}
		ctx := c.Request.Context()
		ctx = requestdata.WithRequestData(ctx, &requestdata.RequestData{
			RequestID:  requestID,
			RemoteAddr: c.ClientIP(),
			StartedAt:  time.Now(),
		})
		ctx = errordata.WithErrorData(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID.String())
		c.Next()
	}
}

// RequestLogger logs one line per request, including the error message a
// handler recorded in errordata.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	reqLog := log.With("middleware", "RequestLogger")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		}
		if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
			fields = append(fields, "requestID", rd.RequestID)
		}
		if ed := errordata.GetErrorData(c.Request.Context()); ed != nil && ed.HasMessage() {
			fields = append(fields, "error", ed.Message)
			reqLog.Warn("request failed", fields...)
			return
		}
		reqLog.Debug("request handled", fields...)
	}
}
