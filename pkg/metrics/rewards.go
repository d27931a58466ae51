package metrics

import "github.com/prometheus/client_golang/prometheus"

// RewardMetrics records reward crediting outcomes.
type RewardMetrics struct {
	credited       *prometheus.CounterVec
	alreadyClaimed *prometheus.CounterVec
	coins          *prometheus.CounterVec
}

// NewRewardMetrics registers the reward metrics on the provided registerer.
func NewRewardMetrics(reg prometheus.Registerer) *RewardMetrics {
	if reg == nil {
		return &RewardMetrics{}
	}
	m := &RewardMetrics{
		credited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reward_credits_total",
			Help: "Rewards credited to wallets.",
		}, []string{"reason"}),
		alreadyClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reward_already_claimed_total",
			Help: "Credit attempts that hit an existing claim.",
		}, []string{"reason"}),
		coins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reward_coins_credited_total",
			Help: "Coins credited to wallets.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.credited, m.alreadyClaimed, m.coins)
	return m
}

// IncCredited counts a successful credit of amount coins.
func (m *RewardMetrics) IncCredited(reason string, amount int64) {
	if m == nil || m.credited == nil {
		return
	}
	reason = normalizeLabel(reason)
	m.credited.WithLabelValues(reason).Inc()
	m.coins.WithLabelValues(reason).Add(float64(amount))
}

// IncAlreadyClaimed counts an idempotent replay.
func (m *RewardMetrics) IncAlreadyClaimed(reason string) {
	if m == nil || m.alreadyClaimed == nil {
		return
	}
	m.alreadyClaimed.WithLabelValues(normalizeLabel(reason)).Inc()
}
