package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	UnitsMinted    prometheus.Counter
	MintsRejected  *prometheus.CounterVec
	RefundFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		UnitsMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mintgate_mint_units_total",
			Help: "Total units minted",
		}),
		MintsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mintgate_mint_rejected_total",
			Help: "Mint attempts rejected, by reason",
		}, []string{"reason"}),
		RefundFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mintgate_mint_refund_failures_total",
			Help: "Best-effort refunds that failed and were retained",
		}),
	}
}

func (m *Metrics) AddUnitsMinted(n int) {
	m.UnitsMinted.Add(float64(n))
}

func (m *Metrics) IncrementRejected(reason string) {
	m.MintsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementRefundFailures() {
	m.RefundFailures.Inc()
}
