// Package jwtauth issues and verifies JWT access/refresh token pairs with
// Redis- or SQL-backed blacklisting.
//
// Build an [Engine] with [New], configure it through [Builder], then call
// [Engine.ObtainPair], [Engine.Refresh], [Engine.Verify] and
// [Engine.Blacklist] from any goroutine.
//
// # Architecture boundaries
//
// jwtauth is the public surface: [Engine], [Builder], [Config] and value
// types. Flow orchestration, rate limiting, audit dispatch and metric storage
// live under internal/ and are never exported directly.
//
// # What this package must NOT do
//
//   - Expose Redis clients or store internals in its public API.
//   - Log or persist plaintext passwords or raw tokens.
//   - Import a package that re-imports jwtauth.
//
// # Performance contract
//
// Verify in ModeStateless performs no I/O. ModeStrict adds one blacklist
// lookup. ObtainPair and Refresh do a bounded number of store round-trips.
package jwtauth
