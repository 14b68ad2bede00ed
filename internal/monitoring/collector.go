package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stevenson"

// Collector owns the Prometheus series exported on /metrics. Each Collector
// has its own registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	Requests           *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	Evaluations        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	Projections        *prometheus.CounterVec
	InvalidInputs      prometheus.Counter
	CacheRequests      *prometheus.CounterVec
	RateLimitBlocks    prometheus.Counter
	TuningReloads      *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Successful classifications by quadrant.",
		}, []string{"quadrant"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent classifying one observation.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		}),
		Projections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projections_total",
			Help:      "Intervention projections by whether the quadrant changed.",
		}, []string{"crossed"}),
		InvalidInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_inputs_total",
			Help:      "Observations rejected by validation.",
		}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Response cache lookups by result.",
		}, []string{"result"}),
		RateLimitBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_blocks_total",
			Help:      "Requests rejected by the IP rate limiter.",
		}),
		TuningReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tuning_reloads_total",
			Help:      "Tuning file reloads by result.",
		}, []string{"result"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.Requests,
		c.RequestDuration,
		c.Evaluations,
		c.EvaluationDuration,
		c.Projections,
		c.InvalidInputs,
		c.CacheRequests,
		c.RateLimitBlocks,
		c.TuningReloads,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) observeRequest(method, route string, statusCode int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.Requests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
