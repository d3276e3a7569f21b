package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Success("swap")
	r.Success("swap")
	r.Failure("swap", "SlippageExceeded", "slippage")
	r.Swap("0xpool", "0xaa", 100, 1)
	r.Swap("0xpool", "0xaa", 50, 1)
	r.PoolState("0xpool", 1100, 910, 1000)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("swap", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("swap", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures.WithLabelValues("swap", "SlippageExceeded", "slippage")))
	assert.Equal(t, 150.0, testutil.ToFloat64(r.swapVolume.WithLabelValues("0xpool", "0xaa")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.swapFees.WithLabelValues("0xpool", "0xaa")))
	assert.Equal(t, 910.0, testutil.ToFloat64(r.reserves.WithLabelValues("0xpool", "b")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(r.lpSupply.WithLabelValues("0xpool")))

	count, err := testutil.GatherAndCount(reg, "minidex_operations_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}
