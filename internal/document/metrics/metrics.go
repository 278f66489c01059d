package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the issuance engine.
type Metrics struct {
	DocumentsIssued   *prometheus.CounterVec
	DocumentsApproved prometheus.Counter
	DocumentsRevoked  prometheus.Counter
	IssuanceFailures  *prometheus.CounterVec
	RenderFailures    prometheus.Counter
	IssuanceDuration  prometheus.Histogram
}

// New creates and registers all issuance metrics.
func New() *Metrics {
	return &Metrics{
		DocumentsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "labcert_documents_issued_total",
			Help: "Documents issued, by kind",
		}, []string{"kind"}),
		DocumentsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "labcert_documents_approved_total",
			Help: "Documents approved",
		}),
		DocumentsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "labcert_documents_revoked_total",
			Help: "Documents revoked",
		}),
		IssuanceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "labcert_issuance_failures_total",
			Help: "Issuance failures, by error code",
		}, []string{"code"}),
		RenderFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "labcert_render_failures_total",
			Help: "Template render failures",
		}),
		IssuanceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "labcert_issuance_duration_seconds",
			Help:    "End-to-end issuance latency excluding rendering",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
