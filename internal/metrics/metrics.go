// Package metrics exposes the tracker's runtime counters to Prometheus.
package metrics

import (
	"net/http"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"gnss-tracker/internal/status"
)

const namespace = "gnss_tracker"

var allStates = []status.State{
	status.Idle,
	status.RenewingFile,
	status.AwaitingFix,
	status.Sampling,
	status.RecoverableError,
	status.FatalWriteError,
}

// Recorder holds the tracker's Prometheus collectors. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	once          sync.Once
	state         *prom.GaugeVec
	leds          prom.Gauge
	halted        prom.Gauge
	samples       prom.Counter
	sentences     prom.Counter
	bytesWritten  *prom.CounterVec
	writeFailures *prom.CounterVec
	rotations     prom.Counter
	fixValid      prom.Gauge
	gpsDropped    prom.Gauge
}

// NewRecorder constructs the collectors and registers them on reg.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{}
	r.once.Do(func() {
		r.state = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Current operational state (1 for the active state)",
		}, []string{"state"})
		r.leds = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "led_pattern",
			Help:      "Status LED bit pattern (bit 0 is LED1)",
		})
		r.halted = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "halted",
			Help:      "1 once the device has entered a halting state",
		})
		r.samples = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_samples_total",
			Help:      "Sensor samples taken",
		})
		r.sentences = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "nmea_sentences_total",
			Help:      "NMEA sentences received from the receiver",
		})
		r.bytesWritten = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes appended to output files by kind",
		}, []string{"kind"})
		r.writeFailures = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "write_failures_total",
			Help:      "Failed or short writes by kind",
		}, []string{"kind"})
		r.rotations = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "file_rotations_total",
			Help:      "Output file renewals",
		})
		r.fixValid = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "fix_valid",
			Help:      "1 while the receiver reports a fresh valid fix",
		})
		r.gpsDropped = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "nmea_sentences_dropped",
			Help:      "NMEA sentences dropped because the consumer fell behind",
		})
		reg.MustRegister(r.state, r.leds, r.halted, r.samples, r.sentences,
			r.bytesWritten, r.writeFailures, r.rotations, r.fixValid, r.gpsDropped)
	})
	return r
}

// HTTPHandler serves the metrics gathered by reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveState matches status.Machine.Observe.
func (r *Recorder) ObserveState(s status.State, p status.Pattern, out status.Outcome) {
	if r == nil || r.state == nil {
		return
	}
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		r.state.WithLabelValues(st.String()).Set(v)
	}
	r.leds.Set(float64(p))
	if out == status.Halt {
		r.halted.Set(1)
	}
}

func (r *Recorder) IncSamples() {
	if r == nil || r.samples == nil {
		return
	}
	r.samples.Inc()
}

func (r *Recorder) IncSentences() {
	if r == nil || r.sentences == nil {
		return
	}
	r.sentences.Inc()
}

// AddBytes matches recorder.Recorder.OnWrite.
func (r *Recorder) AddBytes(kind string, n int) {
	if r == nil || r.bytesWritten == nil {
		return
	}
	r.bytesWritten.WithLabelValues(kind).Add(float64(n))
}

func (r *Recorder) IncWriteFailure(kind string) {
	if r == nil || r.writeFailures == nil {
		return
	}
	r.writeFailures.WithLabelValues(kind).Inc()
}

func (r *Recorder) IncRotations() {
	if r == nil || r.rotations == nil {
		return
	}
	r.rotations.Inc()
}

func (r *Recorder) SetFixValid(ok bool) {
	if r == nil || r.fixValid == nil {
		return
	}
	if ok {
		r.fixValid.Set(1)
	} else {
		r.fixValid.Set(0)
	}
}

func (r *Recorder) SetGPSDropped(n uint64) {
	if r == nil || r.gpsDropped == nil {
		return
	}
	r.gpsDropped.Set(float64(n))
}
