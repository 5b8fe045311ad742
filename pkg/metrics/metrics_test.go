package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveModelLoad(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveModelLoad("unigram.idx", time.Millisecond, nil)
	m.ObserveModelLoad("unigram.idx", time.Millisecond, errors.New("missing"))
	m.ObserveModelLoad("unigram.idx", time.Millisecond, nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	byStatus := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "model_loads_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" {
					byStatus[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 2.0, byStatus["ok"])
	assert.Equal(t, 1.0, byStatus["error"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveModelLoad("x", time.Second, nil)
		m.ObserveParse("ok", 3, time.Second)
	})
}

func TestHandlerExposesOwnRegistry(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	m.ObserveParse("ok", 4, 2*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `parse_requests_total{status="ok"} 1`)
	assert.NotContains(t, string(body), "go_goroutines")
}

func TestServeStopsOnCancel(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- m.Serve(ctx, "127.0.0.1:0") }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * metricsShutdownTimeout):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeReportsListenError(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	err := m.Serve(context.Background(), "127.0.0.1:-1")
	assert.Error(t, err)
}
