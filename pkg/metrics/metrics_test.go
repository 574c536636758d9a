package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementCounter(t *testing.T) {
	mc := NewMetricsCollector()

	mc.IncrementCounter("pieces_captured", map[string]string{"result": "success"})
	mc.IncrementCounter("pieces_captured", map[string]string{"result": "success"})
	mc.IncrementCounter("pieces_captured", map[string]string{"result": "invalid_upload"})
	mc.IncrementCounter("pieces_captured", map[string]string{"other": "ignored"})
	mc.IncrementCounter("plans_created", nil)

	assert.Equal(t, 2.0, mc.CounterValue("pieces_captured", map[string]string{"result": "success"}))
	assert.Equal(t, 1.0, mc.CounterValue("pieces_captured", map[string]string{"result": "invalid_upload"}))
	assert.Equal(t, 1.0, mc.CounterValue("plans_created", nil))
	assert.Equal(t, 0.0, mc.CounterValue("unknown", nil))

	counters := mc.GetCounters()
	assert.Equal(t, 2.0, counters["pieces_captured"]["result:success"])
	assert.Equal(t, 1.0, counters["plans_created"]["default"])
}

func TestHandlerExposesObservations(t *testing.T) {
	mc := NewMetricsCollector()
	mc.ObserveLatency("piece_capture", 120*time.Millisecond)
	mc.ObserveSize("piece_size", 2048)
	mc.IncrementCounter("documents_validated", nil)

	rec := httptest.NewRecorder()
	mc.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "doc_capture_piece_capture_duration_seconds_count 1")
	assert.Contains(t, string(body), "doc_capture_piece_size_bytes_count 1")
	assert.Contains(t, string(body), "doc_capture_documents_validated_total 1")
}
