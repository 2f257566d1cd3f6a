package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/internal/utils"
)

// TracingMiddleware creates a new span for each request and adds common tags
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(
			utils.WithCustomContextFromGinRequest(c),
			c.Request.Method+" "+c.FullPath(),
			c.Request.Header,
		)
		defer span.Finish()

		tracing.TagComponentRest(span)
		tracing.TagAccount(span, c.GetString("AccountID"))

		if id := c.Param("id"); id != "" {
			tracing.TagEntity(span, id)
		}

		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if status := c.Writer.Status(); status >= 400 {
			tracing.TraceErr(span, errors.Errorf("http %d", status))
		}
	}
}
