package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerObservesDuration(t *testing.T) {
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_timer_seconds",
		Help: "test",
	})

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration(hist)

	var m dto.Metric
	require.NoError(t, hist.Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
	assert.Greater(t, m.GetHistogram().GetSampleSum(), 0.0)
}
