// Package middleware exposes HTTP adapters that authenticate requests with a
// Bearer access token verified by jwtauth.Engine.
//
// # Guards
//
//   - [Guard]: net/http guard with an explicit validation mode.
//   - [RequireStateless]: signature and expiry only, no Redis call.
//   - [RequireStrict]: also rejects blacklisted access tokens.
//   - [GinGuard] and [GinOptional]: gin handlers for required and optional auth.
//
// Each guard reads the Authorization header, calls Engine.VerifyWithMode, and
// stores the resulting *jwtauth.AuthResult in the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Authentication
// decisions are delegated to the Verifier.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis.
//   - Make authorization decisions beyond pass/reject.
package middleware
