package metrics

import (
	"strconv"
	"time"

	"pantry-backend/internal/web"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pantry"

var (
	// stockOps counts ledger operations.
	// Labels: op (add, consume, remove, delete), outcome (ok, insufficient, error)
	stockOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stock",
		Name:      "operations_total",
		Help:      "Stock ledger operations by outcome",
	}, []string{"op", "outcome"})

	// lookups counts external product lookups.
	// Labels: outcome (hit, miss, error)
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lookup",
		Name:      "requests_total",
		Help:      "External product lookups by outcome",
	}, []string{"outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

const (
	OutcomeOK           = "ok"
	OutcomeInsufficient = "insufficient"
	OutcomeError        = "error"

	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

func StockOp(op, outcome string) {
	stockOps.WithLabelValues(op, outcome).Inc()
}

func Lookup(outcome string) {
	lookups.WithLabelValues(outcome).Inc()
}

// Middleware records request latency labelled by the matched route pattern.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := web.StatusOf(c, err)
		requestDuration.
			WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
