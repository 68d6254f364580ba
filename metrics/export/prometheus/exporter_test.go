package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/jwtauth"
)

type fakeSource struct {
	snapshot jwtauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() jwtauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := New(fakeSource{snapshot: jwtauth.MetricsSnapshot{
		Counters:   map[jwtauth.MetricID]uint64{},
		Histograms: map[jwtauth.MetricID][]uint64{},
	}})
	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistograms(t *testing.T) {
	exp := New(fakeSource{
		snapshot: jwtauth.MetricsSnapshot{
			Counters: map[jwtauth.MetricID]uint64{
				jwtauth.MetricObtainSuccess:    7,
				jwtauth.MetricTokenBlacklisted: 2,
			},
			Histograms: map[jwtauth.MetricID][]uint64{
				jwtauth.MetricVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE jwtauth_obtain_success_total counter",
		"jwtauth_obtain_success_total 7",
		"jwtauth_token_blacklisted_total 2",
		"jwtauth_refresh_reuse_detected_total 0",
		`jwtauth_verify_latency_seconds_bucket{le="0.005"} 1`,
		`jwtauth_verify_latency_seconds_bucket{le="+Inf"} 36`,
		"jwtauth_verify_latency_seconds_count 36",
		`jwtauth_obtain_latency_seconds_bucket{le="+Inf"} 0`,
		"jwtauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestRenderOrdersTokenPaths(t *testing.T) {
	out := New(fakeSource{snapshot: jwtauth.MetricsSnapshot{
		Counters:   map[jwtauth.MetricID]uint64{jwtauth.MetricVerifySuccess: 1},
		Histograms: map[jwtauth.MetricID][]uint64{},
	}}).Render()

	last := -1
	for _, family := range []string{
		"# TYPE jwtauth_obtain_success_total counter",
		"# TYPE jwtauth_refresh_success_total counter",
		"# TYPE jwtauth_verify_success_total counter",
		"# TYPE jwtauth_token_blacklisted_total counter",
		"# TYPE jwtauth_obtain_latency_seconds histogram",
		"# TYPE jwtauth_audit_dropped_total counter",
	} {
		i := strings.Index(out, family)
		if i < 0 {
			t.Fatalf("missing %q in output:\n%s", family, out)
		}
		if i < last {
			t.Fatalf("%q rendered out of order:\n%s", family, out)
		}
		last = i
	}
	if !strings.Contains(out, "jwtauth_verify_latency_seconds_sum 0\njwtauth_verify_latency_seconds_count 0\n") {
		t.Fatalf("expected empty verify histogram tail:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := New(fakeSource{snapshot: jwtauth.MetricsSnapshot{
		Counters:   map[jwtauth.MetricID]uint64{jwtauth.MetricObtainSuccess: 1},
		Histograms: map[jwtauth.MetricID][]uint64{},
	}})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
}

func TestEscapeHelp(t *testing.T) {
	if got := escapeHelp("a\\b\nc"); got != `a\\b\nc` {
		t.Fatalf("got %q", got)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := New(fakeSource{snapshot: jwtauth.MetricsSnapshot{
		Counters: map[jwtauth.MetricID]uint64{
			jwtauth.MetricObtainSuccess:  1000,
			jwtauth.MetricObtainFailure:  40,
			jwtauth.MetricRefreshSuccess: 800,
			jwtauth.MetricVerifySuccess:  9000,
		},
		Histograms: map[jwtauth.MetricID][]uint64{
			jwtauth.MetricVerifyLatency: {10, 20, 30, 40, 50, 60, 70, 80},
		},
	}})

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
