// middleware/metrics.go
package middleware

import (
	"time"

	"speech-practice/observe"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RequestMetrics records request latency labelled by the matched route
// pattern, never the raw path, so ids do not explode cardinality.
func RequestMetrics(m *observe.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		m.HTTPRequestDuration.Record(c.UserContext(), time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("method", c.Method()),
			attribute.String("route", c.Route().Path),
			attribute.Int("status", status),
		))
		return err
	}
}
