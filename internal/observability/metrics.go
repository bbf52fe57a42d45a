package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rovlink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rovlink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	linkPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rovlink",
			Subsystem: "link",
			Name:      "packets_total",
			Help:      "Packets moved over the peer link.",
		},
		[]string{"node", "direction", "tag"},
	)
	linkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rovlink",
			Subsystem: "link",
			Name:      "errors_total",
			Help:      "Dropped packets and updates by failure kind.",
		},
		[]string{"node", "kind"},
	)
	linkConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rovlink",
			Subsystem: "link",
			Name:      "connection_events_total",
			Help:      "Connection guard decisions.",
		},
		[]string{"node", "event"},
	)
	linkRTT = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rovlink",
			Subsystem: "link",
			Name:      "rtt_seconds",
			Help:      "Ping round trip time in seconds.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"node"},
	)
	storeUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rovlink",
			Subsystem: "store",
			Name:      "updates_total",
			Help:      "Store updates applied by origin.",
		},
		[]string{"node", "origin"},
	)
)

// Error kinds recorded by RecordLinkError.
const (
	ErrKindDecode   = "decode"
	ErrKindEncode   = "encode"
	ErrKindSend     = "send"
	ErrKindOrphan   = "orphan"
	ErrKindRejected = "rejected"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, linkPackets, linkErrors, linkConnections, linkRTT, storeUpdates)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordPacket counts one packet; direction is "in" or "out".
func RecordPacket(node, direction, tag string) {
	RegisterMetrics()
	linkPackets.WithLabelValues(node, direction, tag).Inc()
}

func RecordLinkError(node, kind string) {
	RegisterMetrics()
	linkErrors.WithLabelValues(node, kind).Inc()
}

// RecordConnectionEvent counts guard decisions such as "connected",
// "takeover", "rejected", "disconnected" and "connect_failed".
func RecordConnectionEvent(node, event string) {
	RegisterMetrics()
	linkConnections.WithLabelValues(node, event).Inc()
}

func ObserveRTT(node string, rtt time.Duration) {
	RegisterMetrics()
	linkRTT.WithLabelValues(node).Observe(rtt.Seconds())
}

func RecordStoreUpdate(node, origin string) {
	RegisterMetrics()
	storeUpdates.WithLabelValues(node, origin).Inc()
}
