package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentsUseOwnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	in := NewInstruments(reg)

	in.AdmittedTotal.WithLabelValues("warmup").Add(3)
	in.ActiveSessions.WithLabelValues("warmup").Set(2)

	assert.Equal(t, 3.0, testutil.ToFloat64(in.AdmittedTotal.WithLabelValues("warmup")))
	assert.Equal(t, 2.0, testutil.ToFloat64(in.ActiveSessions.WithLabelValues("warmup")))

	// A second registry must accept the same metric names.
	assert.NotPanics(t, func() { NewInstruments(prometheus.NewRegistry()) })
}
