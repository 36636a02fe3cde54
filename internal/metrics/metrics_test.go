package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gnss-tracker/internal/status"
)

func TestRecorder_State(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveState(status.Sampling, status.LED1|status.LED3, status.Continue)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.state.WithLabelValues("sampling")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.state.WithLabelValues("idle")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.leds))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.halted))

	r.ObserveState(status.FatalWriteError, status.All, status.Halt)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.state.WithLabelValues("sampling")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.state.WithLabelValues("fatal_write_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.halted))
}

func TestRecorder_Counters(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)

	r.IncSamples()
	r.IncSamples()
	r.IncSentences()
	r.AddBytes("nmea", 70)
	r.AddBytes("sensor", 30)
	r.AddBytes("nmea", 5)
	r.IncWriteFailure("sensor")
	r.IncRotations()
	r.SetFixValid(true)
	r.SetGPSDropped(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.samples))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sentences))
	assert.Equal(t, 75.0, testutil.ToFloat64(r.bytesWritten.WithLabelValues("nmea")))
	assert.Equal(t, 30.0, testutil.ToFloat64(r.bytesWritten.WithLabelValues("sensor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.writeFailures.WithLabelValues("sensor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rotations))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fixValid))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.gpsDropped))

	r.SetFixValid(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.fixValid))
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	r.ObserveState(status.Idle, status.LED1, status.Continue)
	r.IncSamples()
	r.AddBytes("nmea", 1)
	r.SetFixValid(true)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)
	r.IncSamples()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "gnss_tracker_sensor_samples_total 1"))
}
