// Package metrics exposes Prometheus collectors for pool operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "minidex"

// Recorder owns the pool operation collectors.
type Recorder struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	swapVolume *prometheus.CounterVec
	swapFees   *prometheus.CounterVec
	reserves   *prometheus.GaugeVec
	lpSupply   *prometheus.GaugeVec
}

// NewRecorder registers the collectors with reg. A nil reg leaves them
// unregistered, which is useful in tests.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Pool operations by kind and outcome.",
		}, []string{"op", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Failed pool operations by error code and class.",
		}, []string{"op", "code", "class"}),
		swapVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_volume_total",
			Help:      "Swap input volume in raw token units.",
		}, []string{"pool", "token"}),
		swapFees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_fees_total",
			Help:      "Swap fees retained by the pool in raw token units.",
		}, []string{"pool", "token"}),
		reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_reserve",
			Help:      "Current pool reserve in raw token units.",
		}, []string{"pool", "side"}),
		lpSupply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_lp_supply",
			Help:      "Current total LP supply including locked liquidity.",
		}, []string{"pool"}),
	}
	if reg != nil {
		reg.MustRegister(r.operations, r.failures, r.swapVolume, r.swapFees, r.reserves, r.lpSupply)
	}
	return r
}

func (r *Recorder) Success(op string) {
	r.operations.WithLabelValues(op, "ok").Inc()
}

func (r *Recorder) Failure(op, code, class string) {
	r.operations.WithLabelValues(op, "error").Inc()
	r.failures.WithLabelValues(op, code, class).Inc()
}

func (r *Recorder) Swap(pool, token string, amountIn, fee uint64) {
	r.swapVolume.WithLabelValues(pool, token).Add(float64(amountIn))
	r.swapFees.WithLabelValues(pool, token).Add(float64(fee))
}

// PoolState records the latest reserves and supply of a pool.
func (r *Recorder) PoolState(pool string, reserveA, reserveB, lpSupply uint64) {
	r.reserves.WithLabelValues(pool, "a").Set(float64(reserveA))
	r.reserves.WithLabelValues(pool, "b").Set(float64(reserveB))
	r.lpSupply.WithLabelValues(pool).Set(float64(lpSupply))
}
