package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveFrame(10)
	m.ObserveExport(time.Millisecond)
	m.ExportFailed(ReasonTimeout)
	m.IdleCycle()
	m.SetConnected(true)
	m.Disconnected("user")
	m.SessionStarted()
	m.SetDevices(3)
	m.InitInfo("dev")
}

func value(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var out dto.Metric
	require.NoError(t, (<-ch).Write(&out))
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestRecording(t *testing.T) {
	m := New()
	m.ObserveFrame(1024)
	m.ObserveFrame(2048)
	m.ExportFailed(ReasonNoData)
	m.ExportFailed(ReasonNoData)
	m.ExportFailed(ReasonTimeout)
	m.SetConnected(true)
	m.SetDevices(2)

	assert.Equal(t, 2.0, value(t, m.FramesSent))
	assert.Equal(t, 3072.0, value(t, m.BytesSent))
	assert.Equal(t, 2.0, value(t, m.ExportFailures.WithLabelValues(ReasonNoData)))
	assert.Equal(t, 1.0, value(t, m.ExportFailures.WithLabelValues(ReasonTimeout)))
	assert.Equal(t, 1.0, value(t, m.Connected))
	assert.Equal(t, 2.0, value(t, m.DiscoveredDevices))

	m.SetConnected(false)
	assert.Equal(t, 0.0, value(t, m.Connected))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.InitInfo("1.2.3")
	m.SessionStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "scenestream_sessions_started_total 1")
	assert.Contains(t, string(body), `scenestream_info{go_version=`)
}
