package translate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess        = "success"
	statusRejected       = "rejected"
	statusMalformed      = "malformed"
	statusTransportError = "transport_error"
)

var (
	providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagetrans_provider_requests_total",
			Help: "Total number of translation provider requests",
		},
		[]string{"kind", "status"},
	)

	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagetrans_provider_request_duration_seconds",
			Help:    "Duration of translation provider requests in seconds",
			Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0},
		},
		[]string{"kind", "status"},
	)

	providerRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagetrans_provider_request_size_bytes",
			Help:    "Size of translation provider request bodies in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"kind"},
	)

	providerResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagetrans_provider_response_size_bytes",
			Help:    "Size of translation provider response bodies in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"kind"},
	)
)

// recordProviderRequest records metrics for one provider call.
func recordProviderRequest(kind ProviderKind, status string, duration time.Duration, requestSize, responseSize int) {
	k := string(kind)
	providerRequestsTotal.WithLabelValues(k, status).Inc()
	providerRequestDuration.WithLabelValues(k, status).Observe(duration.Seconds())
	providerRequestSize.WithLabelValues(k).Observe(float64(requestSize))
	if responseSize > 0 {
		providerResponseSize.WithLabelValues(k).Observe(float64(responseSize))
	}
}
