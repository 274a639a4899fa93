package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/aivinjinu/Deep-Zoom-Image-Viewer-with-NASA-Integration-and-Annotation-System/internal/platform/ctxutil"
)

// Correlation headers, mirrored onto every response and exposed through CORS.
const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"
)

// AttachTraceContext gives every request a request id and a trace id.
// Caller-supplied header values win; the trace id otherwise comes from the
// active otel span, with a fresh uuid as the last resort. Both ids ride the
// request context as ctxutil.TraceData and are echoed in the response
// headers so the viewer can quote them in bug reports.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := headerValue(c, HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}

		traceID := headerValue(c, HeaderTraceID)
		if traceID == "" {
			traceID = activeSpanTraceID(c)
		}
		if traceID == "" {
			traceID = uuid.New().String()
		}

		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Writer.Header().Set(HeaderTraceID, traceID)
		c.Writer.Header().Set(HeaderRequestID, reqID)
		c.Next()
	}
}

func headerValue(c *gin.Context, name string) string {
	return strings.TrimSpace(c.GetHeader(name))
}

func activeSpanTraceID(c *gin.Context) string {
	spanCtx := trace.SpanContextFromContext(c.Request.Context())
	if !spanCtx.HasTraceID() {
		return ""
	}
	return spanCtx.TraceID().String()
}
