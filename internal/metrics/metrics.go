// Package metrics exposes the server's and client's Prometheus
// instrumentation: on the server, total bytes sent on the component
// channel, tick-loop duration, connected clients and missing inputs; on
// the client, clock corrections, hard jumps and rewind distance. The
// server's DependencyOverruns counter is registered and exported, but
// nothing in this repository increments it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the metrics a running server tick loop updates.
type Server struct {
	registry *prometheus.Registry

	TickDuration       prometheus.Histogram
	BytesSent          prometheus.Counter
	DependencyOverruns prometheus.Counter
	ConnectedClients   prometheus.Gauge
	InputsDropped      prometheus.Counter
}

// NewServer creates a fresh registry and registers every server metric
// against it. Namespace/subsystem follow the sabi_server_ prefix so
// metrics never collide with an embedding application's own.
func NewServer() *Server {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Server{
		registry: reg,
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sabi",
			Subsystem: "server",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent processing one server tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sabi",
			Subsystem: "server",
			Name:      "update_bytes_sent_total",
			Help:      "Total compressed bytes sent on the component channel.",
		}),
		DependencyOverruns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sabi",
			Subsystem: "server",
			Name:      "interest_dependency_overruns_total",
			Help:      "Times dependency closure pushed a client's update past its byte budget.",
		}),
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sabi",
			Subsystem: "server",
			Name:      "connected_clients",
			Help:      "Number of clients currently connected.",
		}),
		InputsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sabi",
			Subsystem: "server",
			Name:      "inputs_dropped_total",
			Help:      "Per-client server ticks that had no buffered input for that tick.",
		}),
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func (s *Server) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Client holds the metrics a running client loop updates.
type Client struct {
	registry *prometheus.Registry

	RewindDistance   prometheus.Histogram
	ClockCorrections prometheus.Counter
	HardJumps        prometheus.Counter
}

// NewClient creates a fresh registry with the client-side metrics.
func NewClient() *Client {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Client{
		registry: reg,
		RewindDistance: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sabi",
			Subsystem: "client",
			Name:      "rewind_distance_ticks",
			Help:      "Number of ticks rolled back and replayed per rewind.",
			Buckets:   prometheus.LinearBuckets(0, 2, 12),
		}),
		ClockCorrections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sabi",
			Subsystem: "client",
			Name:      "clock_corrections_total",
			Help:      "Times the simulation rate was accelerated or decelerated.",
		}),
		HardJumps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sabi",
			Subsystem: "client",
			Name:      "clock_hard_jumps_total",
			Help:      "Times the client tick was hard-reset after falling behind the server.",
		}),
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
