package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/ctxutil"
)

const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"

	maxRequestIDLen = 64
)

// RequestContext stores trace, request and run ids on the request context
// for logging and error bodies, and echoes the first two as headers. The
// span started by otelgin wins over a client supplied trace id.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		td := &ctxutil.TraceData{
			TraceID:   traceID(span, c.GetHeader(HeaderTraceID)),
			RequestID: requestID(c.GetHeader(HeaderRequestID)),
			RunID:     strings.TrimSpace(c.Param("id")),
		}
		span.SetAttributes(attribute.String("request.id", td.RequestID))
		if td.RunID != "" {
			span.SetAttributes(attribute.String("run.id", td.RunID))
		}

		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Writer.Header().Set(HeaderTraceID, td.TraceID)
		c.Writer.Header().Set(HeaderRequestID, td.RequestID)
		c.Next()
	}
}

func traceID(span trace.Span, header string) string {
	if sc := span.SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	if h := strings.TrimSpace(header); h != "" && validID(h) {
		return h
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// requestID keeps a caller's id only when it is short and header safe.
func requestID(header string) string {
	if h := strings.TrimSpace(header); h != "" && validID(h) {
		return h
	}
	return uuid.NewString()
}

func validID(s string) bool {
	if len(s) > maxRequestIDLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
