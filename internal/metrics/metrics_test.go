package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notam_parser/internal/engine"
)

func TestObserve(t *testing.T) {
	m := NewForTesting()

	m.Observe(engine.Result{
		Status:     engine.StatusOK,
		Outputs:    []string{"L736 NEDRA-GOMED FL045-FL130", "W187 TUSLI-DNH FL000-FL341"},
		Confidence: 0.91,
		Errors:     []engine.ErrorCode{engine.ErrMalformedCodedField},
	}, 2*time.Millisecond)
	m.Observe(engine.Result{Status: engine.StatusSaved}, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Processed.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Processed.WithLabelValues("saved_for_teaching")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("malformed_coded_field")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Closures))
}

func TestCounters(t *testing.T) {
	m := NewForTesting()
	m.CacheHit(true)
	m.CacheHit(false)
	m.CacheHit(false)
	m.BusMessage("ok")
	m.HistoryFailed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BusMessages.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryFailures))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe(engine.Result{Status: engine.StatusOK}, 0)
		m.CacheHit(true)
		m.BusMessage("ok")
		m.HistoryFailed()
	})
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewForTesting()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg), "second registration collides")
}

func TestServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewForTesting()
	require.NoError(t, m.Register(reg))
	m.BusMessage("ok")

	srv := NewServer(":0", reg)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `notam_bus_messages_total{outcome="ok"} 1`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
