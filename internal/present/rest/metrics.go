package rest

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/memories/internal/infra/observability"
)

// RequestMetrics counts handled requests by route template.
func RequestMetrics(metrics *observability.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequests.WithLabelValues(
				c.Request().Method,
				route,
				strconv.Itoa(c.Response().Status),
			).Inc()
			return nil
		}
	}
}
