package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pdb-slot-api/internal/service"
	"github.com/noah-isme/pdb-slot-api/pkg/response"
)

// Metrics records latency per route template and counts error responses by
// their application code. Unmatched routes share one label.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		if code := response.ErrorCode(c); code != "" {
			metricsSvc.ObserveHTTPError(route, code)
		}
	}
}
