// Package metrics exposes the prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rbroggi/parcelhub/internal/core/model"
)

const namespace = "parcelhub"

// Collector records HTTP traffic, parcel lifecycle transitions and consumed events.
type Collector struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	events      *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parcel_transitions_total",
			Help:      "Recorded parcel status transitions.",
		}, []string{"from", "to"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parcel_events_handled_total",
			Help:      "Parcel events consumed by the worker, by type and outcome.",
		}, []string{"type", "outcome"}),
	}
	reg.MustRegister(c.requests, c.latency, c.transitions, c.events)
	return c
}

// RecordRequest records a served HTTP request.
func (c *Collector) RecordRequest(route, method string, status int, d time.Duration) {
	c.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(route, method).Observe(d.Seconds())
}

// RecordTransition records a parcel moving between statuses. Creations have an empty from.
func (c *Collector) RecordTransition(from, to model.ParcelStatus) {
	if from == "" {
		from = "NONE"
	}
	c.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// RecordEvent records the outcome of handling a parcel event.
func (c *Collector) RecordEvent(eventType model.ParcelEventType, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.events.WithLabelValues(string(eventType), outcome).Inc()
}

// Handler returns the scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
