// Package password hashes and verifies user passwords with Argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<iterations>,p=<threads>$<salt>$<key>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters so the
// caller can upgrade them after a successful login.
//
// # What this package must NOT do
//
//   - Store or look up passwords.
//   - Log plaintext passwords.
package password
