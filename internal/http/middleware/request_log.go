package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/ctxutil"
	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/logger"
)

// RequestLogger emits one structured line per request, severity keyed to
// the response status. Health probes are not logged; uptime checkers hit
// that route every few seconds.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil || c.Request.URL.Path == "/health" {
			return
		}

		status := c.Writer.Status()
		fields := requestFields(c, status, time.Since(start))

		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}

func requestFields(c *gin.Context, status int, elapsed time.Duration) []interface{} {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	fields := []interface{}{
		"method", strings.ToUpper(c.Request.Method),
		"path", path,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
		"client_ip", c.ClientIP(),
	}
	if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
		if td.TraceID != "" {
			fields = append(fields, "trace_id", td.TraceID)
		}
		if td.RequestID != "" {
			fields = append(fields, "request_id", td.RequestID)
		}
	}
	return fields
}
