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
			Namespace: "imagedb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imagedb",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	itpResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagedb",
			Subsystem: "itp",
			Name:      "responses_total",
			Help:      "ITP responses written, by image type and response type.",
		},
		[]string{"node", "image_type", "response_type"},
	)
	itpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imagedb",
			Subsystem: "itp",
			Name:      "exchange_duration_seconds",
			Help:      "Time from accept to close for one ITP connection.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "outcome"},
	)
	itpPayloadBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagedb",
			Subsystem: "itp",
			Name:      "payload_bytes_total",
			Help:      "Image payload bytes written to clients.",
		},
		[]string{"node"},
	)
	itpRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagedb",
			Subsystem: "itp",
			Name:      "rejected_total",
			Help:      "Connections closed without a response, by reason.",
		},
		[]string{"node", "reason"},
	)
	itpActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "imagedb",
			Subsystem: "itp",
			Name:      "active_connections",
			Help:      "ITP connections currently being served.",
		},
		[]string{"node"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, itpResponses, itpDuration, itpPayloadBytes, itpRejected, itpActive)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordResponse(node, imageType, responseType string, payloadBytes int) {
	RegisterMetrics()
	itpResponses.WithLabelValues(node, imageType, responseType).Inc()
	itpPayloadBytes.WithLabelValues(node).Add(float64(payloadBytes))
}

func RecordRejected(node, reason string) {
	RegisterMetrics()
	itpRejected.WithLabelValues(node, reason).Inc()
}

func RecordExchange(node, outcome string, duration time.Duration) {
	RegisterMetrics()
	itpDuration.WithLabelValues(node, outcome).Observe(duration.Seconds())
}

// TrackConnection increments the active gauge and returns its release.
func TrackConnection(node string) func() {
	RegisterMetrics()
	g := itpActive.WithLabelValues(node)
	g.Inc()
	return g.Dec
}
