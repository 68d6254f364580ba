package internaldefs

import (
	"github.com/MrEthical07/jwtauth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   jwtauth.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram for export.
type HistogramDef struct {
	ID   jwtauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters.
const AuditDroppedName = "jwtauth_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: jwtauth.MetricObtainSuccess, Name: "jwtauth_obtain_success_total", Help: "Token pairs issued."},
	{ID: jwtauth.MetricObtainFailure, Name: "jwtauth_obtain_failure_total", Help: "Rejected obtain attempts."},
	{ID: jwtauth.MetricObtainRateLimited, Name: "jwtauth_obtain_rate_limited_total", Help: "Obtain attempts refused by the login limiter."},
	{ID: jwtauth.MetricRefreshSuccess, Name: "jwtauth_refresh_success_total", Help: "Successful refreshes."},
	{ID: jwtauth.MetricRefreshFailure, Name: "jwtauth_refresh_failure_total", Help: "Rejected refreshes."},
	{ID: jwtauth.MetricRefreshReuseDetected, Name: "jwtauth_refresh_reuse_detected_total", Help: "Rotated refresh tokens presented again."},
	{ID: jwtauth.MetricRefreshRateLimited, Name: "jwtauth_refresh_rate_limited_total", Help: "Refreshes refused by the refresh limiter."},
	{ID: jwtauth.MetricRefreshRotated, Name: "jwtauth_refresh_rotated_total", Help: "Refreshes that issued a new refresh token."},
	{ID: jwtauth.MetricVerifySuccess, Name: "jwtauth_verify_success_total", Help: "Tokens accepted by verification."},
	{ID: jwtauth.MetricVerifyFailure, Name: "jwtauth_verify_failure_total", Help: "Tokens rejected by verification."},
	{ID: jwtauth.MetricTokenBlacklisted, Name: "jwtauth_token_blacklisted_total", Help: "Tokens added to the blacklist."},
	{ID: jwtauth.MetricBlacklistHit, Name: "jwtauth_blacklist_hit_total", Help: "Presented tokens found on the blacklist."},
	{ID: jwtauth.MetricRateLimitHit, Name: "jwtauth_rate_limit_hit_total", Help: "Limiter checks that denied a request."},
	{ID: jwtauth.MetricUserRevoked, Name: "jwtauth_user_revoked_total", Help: "Bulk revocations of a user's refresh tokens."},
}

var HistogramDefs = []HistogramDef{
	{ID: jwtauth.MetricObtainLatency, Name: "jwtauth_obtain_latency_seconds", Help: "Obtain latency."},
	{ID: jwtauth.MetricRefreshLatency, Name: "jwtauth_refresh_latency_seconds", Help: "Refresh latency."},
	{ID: jwtauth.MetricVerifyLatency, Name: "jwtauth_verify_latency_seconds", Help: "Verify latency."},
}

// HistogramBounds are the upper bounds of the engine's latency buckets in
// seconds.
var HistogramBounds = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
