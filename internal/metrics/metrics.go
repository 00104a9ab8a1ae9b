// Package metrics exports compilation statistics in the Prometheus text
// format, for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/flemzord/crongen/internal/joblist"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crongen"

// Recorder holds the gauges of the last compilation and the compile
// counter. It owns a private registry.
type Recorder struct {
	reg *prometheus.Registry

	jobs     prometheus.Gauge
	lines    prometheus.Gauge
	merged   prometheus.Gauge
	records  prometheus.Gauge
	last     prometheus.Gauge
	compiles *prometheus.CounterVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	r := &Recorder{
		reg:     prometheus.NewRegistry(),
		jobs:    gauge("jobs", "Jobs rendered by the last compilation."),
		lines:   gauge("cron_lines", "Crontab lines emitted by the last compilation."),
		merged:  gauge("cron_lines_merged", "Crontab lines folded away by the combiner."),
		records: gauge("records", "Structured records produced by the last compilation."),
		last:    gauge("last_compile_timestamp_seconds", "Unix time of the last successful compilation."),
		compiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compiles_total",
			Help:      "Compilations by result.",
		}, []string{"result"}),
	}
	r.reg.MustRegister(r.jobs, r.lines, r.merged, r.records, r.last, r.compiles)
	return r
}

// Observe records a successful compilation.
func (r *Recorder) Observe(s joblist.Stats, at time.Time) {
	r.jobs.Set(float64(s.Jobs))
	r.lines.Set(float64(s.Lines))
	r.merged.Set(float64(s.Merged))
	r.records.Set(float64(s.Records))
	r.last.Set(float64(at.Unix()))
	r.compiles.WithLabelValues("success").Inc()
}

// Failed records a failed compilation. Gauges keep their last values.
func (r *Recorder) Failed() {
	r.compiles.WithLabelValues("error").Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// WriteTextfile atomically writes every metric to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("metrics: writing %s: %w", path, err)
	}
	return nil
}
