// Package metrics provides lock-free counters and latency histograms for the
// token engine.
//
// Counters live in cache-line-padded uint64 slots and are incremented with
// sync/atomic. Histograms use 8 fixed buckets (<=5ms up to +Inf). The write
// path does not allocate.
//
// # Architecture boundaries
//
// Export (Prometheus, OTel) lives in metrics/export and reads Snapshot values.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Import the root package.
//   - Keep global registries.
package metrics
