// Package metrics exposes Prometheus counters and histograms describing
// traffic the proxy has classified and relayed.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PacketsTotal counts packets classified, by dialect, direction and
	// packet type.
	PacketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbproxy_packets_total",
			Help: "Total number of packets classified and relayed",
		},
		[]string{"dialect", "direction", "type"},
	)

	// PacketBytesTotal counts bytes relayed, by dialect and direction.
	PacketBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbproxy_packet_bytes_total",
			Help: "Total bytes relayed",
		},
		[]string{"dialect", "direction"},
	)

	// PacketsDroppedTotal counts packets a handler dropped by returning an
	// empty-bytes packet.
	PacketsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbproxy_packets_dropped_total",
			Help: "Total number of packets dropped by a handler",
		},
		[]string{"dialect", "direction"},
	)

	// ConnectionsActive tracks the number of client connections currently
	// proxied.
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dbproxy_connections_active",
			Help: "Number of client connections currently being proxied",
		},
	)

	// HandlerDuration tracks how long a handler call took, by direction.
	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbproxy_handler_duration_seconds",
			Help:    "Time spent inside a PacketHandler call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"direction"},
	)

	once sync.Once
)

// Init registers every metric with the default Prometheus registry. It is
// safe to call more than once; registration happens at most once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(PacketsTotal)
		prometheus.MustRegister(PacketBytesTotal)
		prometheus.MustRegister(PacketsDroppedTotal)
		prometheus.MustRegister(ConnectionsActive)
		prometheus.MustRegister(HandlerDuration)
	})
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
