// Package flows contains the orchestration behind every Engine operation:
// obtain, refresh, verify, blacklist and revoke.
//
// Each Run function takes a dependency struct and returns a result with a
// failure kind. The root package maps kinds to public errors, metrics and
// audit events.
//
// # What this package must NOT do
//
//   - Hold state between calls.
//   - Import the root package.
//   - Perform I/O except through its dependencies.
package flows
