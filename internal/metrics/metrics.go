// Package metrics exposes Prometheus collectors for the API backend and the site's API client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh outcomes recorded by RecordRefresh.
const (
	RefreshSucceeded = "success"
	RefreshFailed    = "failure"
)

// Collector holds every metric the portal publishes.
type Collector struct {
	apiRequests    *prometheus.CounterVec
	apiLatency     *prometheus.HistogramVec
	clientRequests *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	queued         prometheus.Counter
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduportal_api_requests_total",
			Help: "API requests served, by method, route and status code",
		}, []string{"method", "route", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eduportal_api_request_duration_seconds",
			Help:    "API request latency in seconds, by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		clientRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduportal_client_responses_total",
			Help: "Responses received by the site's API client, by method and status code",
		}, []string{"method", "status_code"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduportal_token_refresh_total",
			Help: "Access token refresh calls, by outcome",
		}, []string{"outcome"}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eduportal_token_refresh_queued_total",
			Help: "Requests that waited behind an in-flight token refresh",
		}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.clientRequests,
		c.refreshes,
		c.queued,
	)
	return c
}

// RecordAPIRequest records one request handled by the API backend.
func (c *Collector) RecordAPIRequest(method, route string, status int, elapsed time.Duration) {
	c.apiRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.apiLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RecordClientResponse records a response seen by the API client. Transport failures use status 0.
func (c *Collector) RecordClientResponse(method string, status int) {
	c.clientRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (c *Collector) RecordRefresh(outcome string) {
	c.refreshes.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordQueued() {
	c.queued.Inc()
}

// Handler serves the metrics in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
