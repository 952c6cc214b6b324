package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordFrame("assistant", DirectionInbound, "text")
		m.RecordProtocolError("assistant")
		m.RecordServerError("assistant")
		m.RecordStatus("assistant", "connected")
		m.RecordReconnectAttempt("assistant")
		m.RecordReconnectGiveUp("assistant")
		m.RecordConnectTimeout("assistant")
		m.IncSessionsActive("assistant")
		m.DecSessionsActive("assistant")
		m.ObserveREST("list", "200", time.Millisecond)
	})
	assert.Nil(t, m.Registry())
}

func TestRecordFrame(t *testing.T) {
	m := NewMetrics()

	m.RecordFrame("expand", DirectionInbound, "text")
	m.RecordFrame("expand", DirectionInbound, "text")
	m.RecordFrame("expand", DirectionOutbound, "ping")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Frames.WithLabelValues("expand", DirectionInbound, "text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("expand", DirectionOutbound, "ping")))
}

func TestSeparateRegistries(t *testing.T) {
	// Private registries must not collide on registration
	a := NewMetrics()
	b := NewMetrics()

	a.RecordReconnectAttempt("assistant")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ReconnectAttempts.WithLabelValues("assistant")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ReconnectAttempts.WithLabelValues("assistant")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.IncSessionsActive("features")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `chat_sessions_active{feature="features"} 1`))
}
