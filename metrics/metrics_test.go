package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iosb-ics/opcua-gonm/socket"
	"github.com/iosb-ics/opcua-gonm/statuscode"
)

func TestSocketLifecycleCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg, Config{Namespace: "test"})

	m.SocketRegistered(false)
	m.SocketRegistered(true)
	m.SocketReaped(false)
	m.ActivityFailed(socket.ID(1), statuscode.BadCommunicationError)

	assert.InDelta(t, 2, testutilValue(t, m.SocketsRegistered), 0)
	assert.InDelta(t, 1, testutilValue(t, m.SocketsReaped), 0)
	assert.InDelta(t, 1, testutilValue(t, m.ActivityErrors), 0)
	assert.InDelta(t, 1, testutilGaugeValue(t, m.RegisteredSockets), 0)
}

func TestProcessCompletedAndExchangeObservedRecordSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg, Config{Namespace: "test"})

	m.ProcessCompleted(5 * time.Millisecond)
	m.ExchangeObserved(3)

	assert.EqualValues(t, 1, testutilHistogramCount(t, m.ProcessDuration))
	assert.EqualValues(t, 1, testutilHistogramCount(t, m.EncodeExchangeCount))
}

func testutilHistogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

type fakeCounter struct{ n int }

func (f fakeCounter) Len() int { return f.n }

func TestReadinessHandlerReflectsRegistrySize(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	ReadinessHandler(fakeCounter{n: 0})(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr2 := httptest.NewRecorder()
	ReadinessHandler(fakeCounter{n: 3})(rr2, req)
	assert.Equal(t, http.StatusOK, rr2.Code)
}

func TestHealthHandlerAlwaysOK(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	HealthHandler()(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func testutilValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func testutilGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}
