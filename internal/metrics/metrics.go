// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the pipeline.
//
// It exposes a narrow Backend interface (counters plus duration
// observations) behind a global, pluggable backend that defaults to a no-op
// implementation, so instrumentation calls are always safe even when no real
// backend is configured. Concrete systems (Prometheus Pushgateway, Datadog)
// live in subpackages and are selected at startup by the CLI.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures one pipeline step for one entity: latency plus a
// success/failure counter. Steps are "normalize", "convert", and "write".
func RecordStep(job, entity, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "entity": entity, "step": step, "status": status}
	backend.IncCounter("pipeline_step_total", 1, lbls)
	backend.ObserveHistogram("pipeline_step_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given entity and kind.
// Kinds mirror the normalization stats: "emitted", "duplicates", "repaired",
// "dropped", "filtered", and "written" for the final artifact row count.
func RecordRows(job, entity, kind string, n int64) {
	if n == 0 {
		return
	}
	backend.IncCounter("pipeline_rows_total", float64(n), Labels{"job": job, "entity": entity, "kind": kind})
}
