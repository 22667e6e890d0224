package log

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DefaultTraceIDHeader is the response header carrying the request trace ID.
const DefaultTraceIDHeader = "Ttrpg-Trace-Id"

// TraceID returns gin middleware that stores a trace ID in the request context
// under TraceIDKey and echoes it in header. A valid UUID sent by the client in
// the same header is reused. If header is empty, DefaultTraceIDHeader is used.
func TraceID(header string) gin.HandlerFunc {
	if header == "" {
		header = DefaultTraceIDHeader
	}

	return func(c *gin.Context) {
		traceID := c.GetHeader(header)
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(header, traceID)

		c.Next()
	}
}
