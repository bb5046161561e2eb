package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request counts and latencies per route.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var metricLabels = []string{"method", "route", "status"}

// NewMetrics registers the request collectors with reg. Registering twice on
// the same registerer reuses the collectors already there.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veritas",
		Name:      "requests_total",
		Help:      "Requests handled, by route and status.",
	}, metricLabels))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "veritas",
		Name:      "request_duration_seconds",
		Help:      "Time spent in the handler chain.",
		Buckets:   prometheus.DefBuckets,
	}, metricLabels))
	if err != nil {
		return nil, err
	}

	return &Metrics{requests: requests, duration: duration}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Handler observes every request that passes through it.
func (m *Metrics) Handler() Handler {
	return func(c *Context, next Next) error {
		start := time.Now()
		err := next()

		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  c.Pattern,
			"status": strconv.Itoa(responseStatus(c, err)),
		}
		m.requests.With(labels).Inc()
		m.duration.With(labels).Observe(time.Since(start).Seconds())
		return err
	}
}

// Instrument is NewMetrics(reg).Handler() for callers that only need the
// handler.
func Instrument(reg prometheus.Registerer) (Handler, error) {
	m, err := NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	return m.Handler(), nil
}

func responseStatus(c *Context, err error) int {
	switch {
	case err != nil:
		return StatusOf(err)
	case c.Written():
		return c.WrittenStatus()
	case c.Status != 0:
		return c.Status
	case c.Response == nil:
		return http.StatusNoContent
	default:
		return http.StatusOK
	}
}
