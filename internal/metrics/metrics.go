// Package metrics owns the process-wide Prometheus registry and the
// small set of counters the JSON /metrics summary reports, per
// spec.md §6.2 and §4.3's observability requirement.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide metrics home: one Prometheus registry
// every package's instruments register into, plus the handful of
// counters the JSON /metrics endpoint reports directly.
type Registry struct {
	Prometheus *prometheus.Registry

	startedAt        time.Time
	totalConnections atomic.Uint64
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		Prometheus: prometheus.NewRegistry(),
		startedAt:  time.Now(),
	}
}

// ConnectionOpened records one new WebSocket connection, for the
// total_connections JSON field. Connections are never decremented;
// it is a monotonic lifetime counter, not a gauge of live sockets.
func (r *Registry) ConnectionOpened() {
	r.totalConnections.Add(1)
}

// TotalConnections returns the lifetime count of opened connections.
func (r *Registry) TotalConnections() uint64 {
	return r.totalConnections.Load()
}

// UptimeSeconds returns seconds since the registry (and so the
// process) started serving.
func (r *Registry) UptimeSeconds() float64 {
	return time.Since(r.startedAt).Seconds()
}

// PrometheusHandler exposes the registry in the Prometheus exposition
// format, served at GET /debug/metrics — kept distinct from GET
// /metrics, which spec.md §6.2 reserves for the JSON summary above.
func (r *Registry) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(r.Prometheus, promhttp.HandlerOpts{})
}
