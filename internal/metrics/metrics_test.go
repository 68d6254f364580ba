package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledMetricsRecordNothing(t *testing.T) {
	m := New(Config{})
	m.Inc(MetricObtainSuccess)
	m.Observe(MetricVerifyLatency, time.Millisecond)
	s := m.Snapshot()
	if len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", s)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricObtainSuccess)
	if nilMetrics.Value(MetricObtainSuccess) != 0 {
		t.Fatal("nil metrics should read zero")
	}
}

func TestCountersAreConcurrent(t *testing.T) {
	m := New(Config{Enabled: true})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()
	if got := m.Value(MetricRefreshSuccess); got != 8000 {
		t.Fatalf("expected 8000, got %d", got)
	}
	if got := m.Snapshot().Counters[MetricRefreshSuccess]; got != 8000 {
		t.Fatalf("snapshot mismatch: %d", got)
	}
}

func TestLatencyBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricVerifyLatency, 3*time.Millisecond)
	m.Observe(MetricVerifyLatency, 40*time.Millisecond)
	m.Observe(MetricVerifyLatency, 2*time.Second)
	// counters are not histograms
	m.Observe(MetricVerifySuccess, time.Millisecond)

	s := m.Snapshot()
	got := s.Histograms[MetricVerifyLatency]
	want := []uint64{1, 0, 0, 1, 0, 0, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bucket %d: want %d got %d (%v)", i, want[i], got[i], got)
		}
	}
	if _, ok := s.Histograms[MetricVerifySuccess]; ok {
		t.Fatal("counter id must not appear as histogram")
	}
	if len(s.Histograms) != 3 {
		t.Fatalf("expected 3 latency histograms, got %d", len(s.Histograms))
	}
}
