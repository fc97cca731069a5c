package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics tracks the health of the vault engine's reward accounting.
type VaultMetrics struct {
	deposits       prometheus.Counter
	withdrawals    prometheus.Counter
	rewardPaid     prometheus.Counter
	harvests       prometheus.Counter
	dust           prometheus.Counter
	epoch          prometheus.Gauge
	carryOver      prometheus.Gauge
	weightedShares prometheus.Gauge
	accPerShare    prometheus.Gauge
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the metrics registry for the vault engine.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			deposits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "granary",
				Subsystem: "vault",
				Name:      "deposits_total",
				Help:      "Count of accepted deposits.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "granary",
				Subsystem: "vault",
				Name:      "withdrawals_total",
				Help:      "Count of accepted withdrawals.",
			}),
			rewardPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "granary",
				Subsystem: "vault",
				Name:      "reward_settlements_total",
				Help:      "Count of reward entitlements settled into claimed totals.",
			}),
			harvests: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "granary",
				Subsystem: "vault",
				Name:      "harvests_total",
				Help:      "Count of completed epoch harvests.",
			}),
			dust: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "granary",
				Subsystem: "vault",
				Name:      "rounding_dust_total",
				Help:      "Cumulative reward left unattributed by integer truncation.",
			}),
			epoch: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "granary",
				Subsystem: "vault",
				Name:      "epoch",
				Help:      "Current vault epoch.",
			}),
			carryOver: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "granary",
				Subsystem: "vault",
				Name:      "carry_over_reward",
				Help:      "Undistributed reward carried into the next epoch.",
			}),
			weightedShares: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "granary",
				Subsystem: "vault",
				Name:      "total_weighted_shares",
				Help:      "Global time-weighted share total at the last harvest.",
			}),
			accPerShare: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "granary",
				Subsystem: "vault",
				Name:      "acc_reward_per_share",
				Help:      "Global reward accumulator, scaled by the precision factor.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.deposits,
			vaultRegistry.withdrawals,
			vaultRegistry.rewardPaid,
			vaultRegistry.harvests,
			vaultRegistry.dust,
			vaultRegistry.epoch,
			vaultRegistry.carryOver,
			vaultRegistry.weightedShares,
			vaultRegistry.accPerShare,
		)
	})
	return vaultRegistry
}

// RecordDeposit increments the deposit counter.
func (m *VaultMetrics) RecordDeposit() {
	if m == nil {
		return
	}
	m.deposits.Inc()
}

// RecordWithdrawal increments the withdrawal counter.
func (m *VaultMetrics) RecordWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

// RecordRewardPaid increments the reward settlement counter.
func (m *VaultMetrics) RecordRewardPaid() {
	if m == nil {
		return
	}
	m.rewardPaid.Inc()
}

// RecordHarvest updates the per-harvest gauges and the cumulative dust
// counter.
func (m *VaultMetrics) RecordHarvest(epoch uint64, weightedShares, accPerShare, dust *big.Int) {
	if m == nil {
		return
	}
	m.harvests.Inc()
	m.epoch.Set(float64(epoch))
	if weightedShares != nil {
		value, _ := new(big.Float).SetInt(weightedShares).Float64()
		m.weightedShares.Set(value)
	}
	if accPerShare != nil {
		value, _ := new(big.Float).SetInt(accPerShare).Float64()
		m.accPerShare.Set(value)
	}
	if dust != nil && dust.Sign() > 0 {
		value, _ := new(big.Float).SetInt(dust).Float64()
		m.dust.Add(value)
	}
}

// RecordCarryOver updates the undistributed-reward gauge.
func (m *VaultMetrics) RecordCarryOver(amount *big.Int) {
	if m == nil {
		return
	}
	if amount == nil {
		m.carryOver.Set(0)
		return
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	m.carryOver.Set(value)
}
