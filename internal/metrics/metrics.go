// Package metrics exposes decode statistics in the Prometheus textfile format
package metrics

import (
	"fmt"

	"oscwave/internal/processor"
	"oscwave/internal/version"
	"oscwave/internal/wave"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "oscwave"

type Metrics struct {
	registry   *prometheus.Registry
	runs       prometheus.Counter
	failures   prometheus.Counter
	samples    prometheus.Gauge
	levels     *prometheus.GaugeVec
	frames     prometheus.Gauge
	characters prometheus.Gauge
	elapsed    prometheus.Gauge
	period     prometheus.Gauge
	build      *prometheus.GaugeVec
}

// New registers the decode metrics on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_runs_total",
			Help:      "Decode runs completed.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Decode runs that returned an error.",
		}),
		samples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples",
			Help:      "Samples in the last capture.",
		}),
		levels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "level_periods",
			Help:      "Level periods in the last capture by level.",
		}, []string{"level"}),
		frames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frames",
			Help:      "Frames found in the last capture.",
		}),
		characters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "characters",
			Help:      "Characters decoded from the last capture.",
		}),
		elapsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "decode_duration_seconds",
			Help:      "Wall time of the last decode.",
		}),
		period: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sample_period_seconds",
			Help:      "Sample period of the last capture, 0 when unknown.",
		}),
		build: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build of the decoder, always 1.",
		}, []string{"version"}),
	}

	m.registry.MustRegister(m.runs, m.failures, m.samples, m.levels, m.frames,
		m.characters, m.elapsed, m.period, m.build)
	m.build.WithLabelValues(version.Get().Short()).Set(1)
	return m
}

// Registry returns the registry holding the metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records a finished decode
func (m *Metrics) Observe(r *processor.Result) {
	m.runs.Inc()
	m.samples.Set(float64(r.SampleCount))
	m.frames.Set(float64(len(r.Frames)))
	m.characters.Set(float64(r.CharacterCount()))
	m.elapsed.Set(r.Elapsed.Seconds())
	m.period.Set(r.SamplePeriod)

	for _, l := range []wave.Level{wave.Low, wave.High} {
		n := 0
		if r.Levels != nil {
			for _, c := range r.Levels.Periods(l) {
				n += c
			}
		}
		m.levels.WithLabelValues(l.String()).Set(float64(n))
	}
}

// ObserveFailure counts a decode that returned an error
func (m *Metrics) ObserveFailure() {
	m.failures.Inc()
}

// WriteTextfile writes the metrics for the node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
