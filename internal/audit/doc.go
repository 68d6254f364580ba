// Package audit carries security events (logins, refreshes, revocations)
// from the engine to a caller-supplied [Sink] without blocking request paths.
//
// # Architecture boundaries
//
// The engine decides which events to emit. This package only buffers and
// delivers them.
//
// # What this package must NOT do
//
//   - Filter events on business rules.
//   - Import the root package or any sibling internal package.
package audit
