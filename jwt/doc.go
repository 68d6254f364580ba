// Package jwt is the token codec: it signs access and refresh claims into
// compact JWS strings and verifies them back.
//
// Every token carries token_type, user_id, sub, jti, iat and exp. Parse
// recomputes the signature over the received header and payload bytes with
// the configured algorithm only, then enforces exp > iat and the expected
// token type.
//
// # What this package must NOT do
//
//   - Consult the blacklist or any other storage.
//   - Decide whether a user is allowed to authenticate.
package jwt
