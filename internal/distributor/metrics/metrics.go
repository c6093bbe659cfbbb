package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ClaimsPaid     prometheus.Counter
	ClaimsRejected *prometheus.CounterVec
	RootRotations  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ClaimsPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mintgate_claims_paid_total",
			Help: "Total successful allowlist claims",
		}),
		ClaimsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mintgate_claims_rejected_total",
			Help: "Total rejected claims by reason",
		}, []string{"reason"}),
		RootRotations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mintgate_claims_root_rotations_total",
			Help: "Total merkle root publications",
		}),
	}
}

func (m *Metrics) IncrementClaimsPaid() {
	m.ClaimsPaid.Inc()
}

func (m *Metrics) IncrementClaimsRejected(reason string) {
	m.ClaimsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementRootRotations() {
	m.RootRotations.Inc()
}
