// Package rate implements the fixed-window Redis counters behind login and
// refresh throttling.
//
// Each window starts on its first hit (INCR then PEXPIRE, in one script).
// Key layout under the configured prefix:
//   - lu:<username>  failed logins per username
//   - li:<ip>        failed logins per client IP
//   - rf:<jti>       refresh attempts per refresh token
//
// # What this package must NOT do
//
//   - Decide what counts as a failure; callers do.
//   - Be imported outside this module.
package rate
