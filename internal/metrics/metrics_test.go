package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveOutcome("success")
	m.ObserveOutcome("success")
	m.ObserveOutcome("too_short")
	m.ObservePrediction("happy")
	m.IncRejected("queue_full")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.analyses.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analyses.WithLabelValues("too_short")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues("happy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("queue_full")))
}

func TestGauges(t *testing.T) {
	m := New()

	m.IncActiveStreams()
	m.IncActiveStreams()
	m.DecActiveStreams()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeStreams))

	m.SetModelAvailable(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelUp))
	m.SetModelAvailable(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.modelUp))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveOutcome("success")
	m.ObserveStage("decode", time.Second)
	m.IncActiveStreams()
	m.RegisterPool(func() int { return 0 }, func() int { return 0 })
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveStage("extract", 20*time.Millisecond)
	m.ObserveInput(4096)
	m.ObserveAudio(3 * time.Second)
	m.RegisterPool(func() int { return 2 }, func() int { return 5 })

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `emotion_stage_duration_seconds_count{stage="extract"} 1`)
	assert.Contains(t, text, "emotion_input_bytes_count 1")
	assert.Contains(t, text, "emotion_pool_active_jobs 2")
	assert.Contains(t, text, "emotion_pool_queued_jobs 5")
	assert.Contains(t, text, "go_goroutines")
}
