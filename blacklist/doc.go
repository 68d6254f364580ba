// Package blacklist keeps track of issued refresh tokens and of revoked token
// identifiers in Redis.
//
// Two records exist per token id: an outstanding record written when a
// refresh token is issued, and a blacklist record written when the token is
// revoked. Both expire with the entry's ExpiresAt, which callers set to the
// token's exp plus the parser leeway, so Redis never holds entries for tokens
// that would already fail on exp. A per-user set indexes the outstanding ids
// for bulk revocation.
//
// Rotate and RevokeUser run scripts over keys of different token ids, which
// land in different hash slots. Use a single-node or sentinel client; Redis
// Cluster is not supported.
//
// # Key layout
//
//   - <prefix>:bl:<jti> blacklisted token, value is the user id
//   - <prefix>:ot:<jti> outstanding token, value is the user id
//   - <prefix>:bu:<uid> set of outstanding ids for a user
//   - <prefix>:rr:<uid> refresh reuse counter
//
// # What this package must NOT do
//
//   - Parse or verify tokens.
//   - Import jwtauth or jwt (no upward imports).
package blacklist
