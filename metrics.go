package jwtauth

import (
	"time"

	internalmetrics "github.com/MrEthical07/jwtauth/internal/metrics"
)

// MetricID identifies one engine counter or latency histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricObtainSuccess        = internalmetrics.MetricObtainSuccess
	MetricObtainFailure        = internalmetrics.MetricObtainFailure
	MetricObtainRateLimited    = internalmetrics.MetricObtainRateLimited
	MetricRefreshSuccess       = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure       = internalmetrics.MetricRefreshFailure
	MetricRefreshReuseDetected = internalmetrics.MetricRefreshReuseDetected
	MetricRefreshRateLimited   = internalmetrics.MetricRefreshRateLimited
	MetricRefreshRotated       = internalmetrics.MetricRefreshRotated
	MetricVerifySuccess        = internalmetrics.MetricVerifySuccess
	MetricVerifyFailure        = internalmetrics.MetricVerifyFailure
	MetricTokenBlacklisted     = internalmetrics.MetricTokenBlacklisted
	MetricBlacklistHit         = internalmetrics.MetricBlacklistHit
	MetricRateLimitHit         = internalmetrics.MetricRateLimitHit
	MetricUserRevoked          = internalmetrics.MetricUserRevoked
	MetricObtainLatency        = internalmetrics.MetricObtainLatency
	MetricRefreshLatency       = internalmetrics.MetricRefreshLatency
	MetricVerifyLatency        = internalmetrics.MetricVerifyLatency
)

// Metrics is the engine's in-process metric store.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a copy of all counters and histograms.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics returns a metric store configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeSince(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}
