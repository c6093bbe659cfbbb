package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TotalStaked prometheus.Gauge
	RewardsPaid prometheus.Counter
	Settlements prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		TotalStaked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mintgate_staking_total_staked",
			Help: "Current total staked balance",
		}),
		RewardsPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mintgate_staking_rewards_paid_total",
			Help: "Total reward tokens paid out",
		}),
		Settlements: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mintgate_staking_settlements_total",
			Help: "Total accumulator settlements performed",
		}),
	}
}

func (m *Metrics) SetTotalStaked(total uint64) {
	m.TotalStaked.Set(float64(total))
}

func (m *Metrics) AddRewardsPaid(amount uint64) {
	m.RewardsPaid.Add(float64(amount))
}

func (m *Metrics) IncrementSettlements() {
	m.Settlements.Inc()
}
