package process

import (
	"testing"

	"github.com/notargets/sprmetric/spr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.observe(&Result{
		Recovery:        spr.Stats{Patches: 10, Contact: 3, Fallback: 1, Regularized: 2, Orphans: 1},
		GuardedElements: 4,
	})

	// The fallback patch ran both solves
	assert.Equal(t, 8.0, testutil.ToFloat64(m.Patches.WithLabelValues("standard")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Patches.WithLabelValues("contact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContactFallbacks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Regularized))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrphanNodes))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.GuardedElements))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs))
}
