package observe

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Middleware starts a server span per request, continuing a W3C trace context
// sent by the client, and records request latency to
// [Metrics.HTTPRequestDuration]. The route template (e.g.
// /api/v1/history/:id) is used instead of the raw path to keep span names
// and label cardinality bounded. m may be nil to trace without metrics.
func Middleware(m *Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			prop := otel.GetTextMapPropagator()
			ctx := prop.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := StartSpan(ctx, req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(req.Method),
					semconv.URLPath(req.URL.Path),
					attribute.String("http.route", route),
				),
			)
			defer span.End()
			prop.Inject(ctx, propagation.HeaderCarrier(c.Response().Header()))
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			span.SetAttributes(semconv.HTTPResponseStatusCode(status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			if m != nil {
				m.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(),
					metric.WithAttributes(
						attribute.String("method", req.Method),
						attribute.String("route", route),
						attribute.String("status", strconv.Itoa(status)),
					),
				)
			}
			return err
		}
	}
}
