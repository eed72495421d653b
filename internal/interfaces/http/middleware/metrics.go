package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ordersplit/backend/internal/infrastructure/telemetry"
)

// unmatchedRoute labels requests that hit no route, keeping cardinality bounded
const unmatchedRoute = "unmatched"

// HTTPMetrics records request count, latency and concurrency.
// A nil metrics value yields a pass-through middleware.
func HTTPMetrics(metrics *telemetry.HTTPMetrics) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		metrics.Begin(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.End(ctx, c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
