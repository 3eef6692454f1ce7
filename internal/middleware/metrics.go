package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/dissent/internal/observability"
)

// Metrics records request counts and latency per route template.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := routeLabel(c)
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
