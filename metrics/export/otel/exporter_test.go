package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/jwtauth"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot jwtauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() jwtauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := jwtauth.MetricsSnapshot{
		Counters:   make(map[jwtauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[jwtauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// point returns the value of name, picking the data point whose le
// attribute equals le when le is set.
func point(t *testing.T, rm metricdata.ResourceMetrics, name, le string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			var points []metricdata.DataPoint[int64]
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				points = data.DataPoints
			case metricdata.Gauge[int64]:
				points = data.DataPoints
			default:
				t.Fatalf("unexpected data type %T for %s", m.Data, name)
			}
			for _, dp := range points {
				if le == "" {
					return dp.Value
				}
				if v, ok := dp.Attributes.Value(attribute.Key("le")); ok && v.AsString() == le {
					return dp.Value
				}
			}
			t.Fatalf("%s has no point for le=%q", name, le)
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: jwtauth.MetricsSnapshot{
			Counters: map[jwtauth.MetricID]uint64{
				jwtauth.MetricObtainSuccess:        3,
				jwtauth.MetricRefreshReuseDetected: 2,
			},
			Histograms: map[jwtauth.MetricID][]uint64{
				jwtauth.MetricVerifyLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := New(provider.Meter("jwtauth-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got := point(t, rm, "jwtauth_obtain_success_total", ""); got != 3 {
		t.Fatalf("obtain success = %d", got)
	}
	if got := point(t, rm, "jwtauth_refresh_reuse_detected_total", ""); got != 2 {
		t.Fatalf("refresh reuse = %d", got)
	}
	if got := point(t, rm, "jwtauth_blacklist_hit_total", ""); got != 0 {
		t.Fatalf("blacklist hits = %d", got)
	}
	if got := point(t, rm, "jwtauth_verify_latency_seconds_bucket", "0.025"); got != 3 {
		t.Fatalf("cumulative bucket = %d", got)
	}
	if got := point(t, rm, "jwtauth_verify_latency_seconds_bucket", "+Inf"); got != 8 {
		t.Fatalf("+Inf bucket = %d", got)
	}
	if got := point(t, rm, "jwtauth_verify_latency_seconds_count", ""); got != 8 {
		t.Fatalf("histogram count = %d", got)
	}
	if got := point(t, rm, "jwtauth_refresh_latency_seconds_count", ""); got != 0 {
		t.Fatalf("idle refresh histogram count = %d", got)
	}
	if got := point(t, rm, "jwtauth_audit_dropped_total", ""); got != 1 {
		t.Fatalf("audit dropped = %d", got)
	}
}

func TestExporterStopsReportingAfterClose(t *testing.T) {
	reader, provider := newMeter()
	exp, err := New(provider.Meter("jwtauth-test"), &fakeSource{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		if len(sm.Metrics) != 0 {
			t.Fatalf("expected no points after Close, got %d metrics", len(sm.Metrics))
		}
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newMeter()
	if _, err := New(provider.Meter("jwtauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := New(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{snapshot: jwtauth.MetricsSnapshot{
		Counters:   map[jwtauth.MetricID]uint64{jwtauth.MetricVerifySuccess: 1},
		Histograms: map[jwtauth.MetricID][]uint64{},
	}}

	exp, err := New(provider.Meter("jwtauth-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[jwtauth.MetricVerifySuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
