// Package prometheus renders engine metrics in the Prometheus text exposition
// format.
//
// Counters are named jwtauth_*_total; latency histograms are
// jwtauth_*_latency_seconds with the engine's fixed bucket bounds.
//
// # What this package must NOT do
//
//   - Register in a global registry. Callers mount Handler.
//   - Mutate engine state.
package prometheus
