package metrics

import (
	"errors"
	"testing"
	"time"
)

type capturedMetric struct {
	name   string
	value  float64
	labels Labels
}

type fakeBackend struct {
	counters   []capturedMetric
	histograms []capturedMetric
	flushed    int
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.counters = append(f.counters, capturedMetric{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.histograms = append(f.histograms, capturedMetric{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.flushed++
	return nil
}

func install(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	prev := backend
	SetBackend(fb)
	t.Cleanup(func() { backend = prev })
	return fb
}

func TestRecordStep(t *testing.T) {
	fb := install(t)

	RecordStep("job1", "schedule", "convert", nil, 250*time.Millisecond)
	RecordStep("job1", "schedule", "write", errors.New("boom"), time.Second)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("counters %d histograms %d, want 2 each", len(fb.counters), len(fb.histograms))
	}
	if fb.counters[0].labels["status"] != "success" {
		t.Errorf("first status: got %q want success", fb.counters[0].labels["status"])
	}
	if fb.counters[1].labels["status"] != "failure" {
		t.Errorf("second status: got %q want failure", fb.counters[1].labels["status"])
	}
	if fb.histograms[0].name != "pipeline_step_duration_seconds" {
		t.Errorf("histogram name: got %q", fb.histograms[0].name)
	}
	if got := fb.histograms[0].value; got != 0.25 {
		t.Errorf("duration: got %v want 0.25", got)
	}
	if fb.counters[0].labels["entity"] != "schedule" || fb.counters[0].labels["step"] != "convert" {
		t.Errorf("labels: %v", fb.counters[0].labels)
	}
}

func TestRecordRows(t *testing.T) {
	fb := install(t)

	RecordRows("job1", "park", "duplicates", 3)
	RecordRows("job1", "park", "dropped", 0)

	if len(fb.counters) != 1 {
		t.Fatalf("counters: got %d want 1 (zero counts are skipped)", len(fb.counters))
	}
	c := fb.counters[0]
	if c.name != "pipeline_rows_total" || c.value != 3 {
		t.Errorf("counter: %+v", c)
	}
	if c.labels["kind"] != "duplicates" {
		t.Errorf("kind label: got %q", c.labels["kind"])
	}
}

func TestSetBackendNilKeepsCurrent(t *testing.T) {
	fb := install(t)
	SetBackend(nil)
	RecordRows("job1", "park", "emitted", 1)
	if len(fb.counters) != 1 {
		t.Fatalf("nil backend replaced the installed one")
	}
}

func TestFlushDelegates(t *testing.T) {
	fb := install(t)
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if fb.flushed != 1 {
		t.Fatalf("flushed: got %d want 1", fb.flushed)
	}
}
