package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader carries the request ID between services.
	CorrelationIDHeader = "X-Request-ID"
	// CorrelationIDKey is the gin context key holding the request's ID.
	CorrelationIDKey = "correlation_id"
)

// correlationContextKey carries the ID in the request context so code below
// the HTTP layer can read it without gin.
type correlationContextKey struct{}

// CorrelationID accepts the caller's X-Request-ID or mints a fresh UUID,
// echoes it on the response, and threads it through both the gin context and
// the request context. Ingestion runs log it so a run can be traced back to
// the API call that started it.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(CorrelationIDKey, id)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), correlationContextKey{}, id),
		)
		c.Writer.Header().Set(CorrelationIDHeader, id)

		c.Next()
	}
}

// GetCorrelationID returns the request's correlation ID, or "" when the
// middleware has not run.
func GetCorrelationID(c *gin.Context) string {
	if v, ok := c.Get(CorrelationIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// CorrelationIDFromContext reads the ID from a plain context. Empty when the
// request carried none.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationContextKey{}).(string)
	return id
}
