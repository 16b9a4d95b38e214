package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ScrapeRoute is where the status server exposes the Prometheus handler.
const ScrapeRoute = "/metrics"

// Route groups of the status server.
const (
	routeGroupRotation = "rotation"
	routeGroupKeys     = "keys"
	routeGroupHealth   = "health"
	routeGroupOther    = "other"
)

type statusInstruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newStatusInstruments(meter metric.Meter, namespace string) (*statusInstruments, error) {
	requests, err := meter.Int64Counter(
		namespace+"_status_requests_total",
		metric.WithDescription("Total number of status server requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		namespace+"_status_request_duration_seconds",
		metric.WithDescription("Status server request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &statusInstruments{requests: requests, duration: duration}, nil
}

// StatusServerMiddleware records status server requests labelled by route pattern, route group
// and status code. Key ids never become label values. Scrapes of ScrapeRoute are not recorded.
func StatusServerMiddleware(meterProvider metric.MeterProvider, namespace string) gin.HandlerFunc {
	instruments, err := newStatusInstruments(meterProvider.Meter(namespace), namespace)
	if err != nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if c.FullPath() == ScrapeRoute {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := routePattern(c.FullPath())
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", route),
			attribute.String("route_group", routeGroup(route)),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		)
		ctx := c.Request.Context()
		instruments.requests.Add(ctx, 1, attrs)
		instruments.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// routePattern is "unknown" for requests no route matched.
func routePattern(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}

func routeGroup(route string) string {
	switch {
	case strings.HasPrefix(route, "/rotation/"):
		return routeGroupRotation
	case route == "/keys" || strings.HasPrefix(route, "/keys/"):
		return routeGroupKeys
	case route == "/health" || route == "/ready":
		return routeGroupHealth
	default:
		return routeGroupOther
	}
}
