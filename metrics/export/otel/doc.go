// Package otel publishes engine metrics through an OpenTelemetry Meter.
//
// Every engine counter becomes an Int64ObservableCounter of the same name.
// Each latency histogram becomes a <name>_bucket gauge with one point per le
// attribute and a <name>_count gauge. A single callback reads the engine
// snapshot on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
