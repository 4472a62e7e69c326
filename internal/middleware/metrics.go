package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nhien18112/system-with-dbs/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics observes request count and latency per route template. Requests to
// routes listed in skip (probes, the scrape endpoint) are not recorded, and
// requests that match no route share one label.
func Metrics(metrics *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, route := range skip {
		skipped[route] = struct{}{}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ok := skipped[route]; ok || metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
